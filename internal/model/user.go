package model

// Warning is a moderator-issued tip against a user.
type Warning struct {
	UserID       HashedUserID
	IssueTime    int64
	IssuerUserID HashedUserID
	Enabled      bool
	Reason       string
	Type         int
}

// WarningTypeStandard is the only warning type counted toward vote rejection.
const WarningTypeStandard = 0

// Trust summarizes the privilege tier of a voter for one segment.
type Trust struct {
	IsVIP           bool
	IsTempVIP       bool
	IsOwnSubmission bool
	IsBanned        bool
}
