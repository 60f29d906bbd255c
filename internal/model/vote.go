package model

// VoteType is the signed vote code stored on a vote row. Negative values are
// amplified increments recorded verbatim.
type VoteType int

const (
	VoteDownvote      VoteType = 0
	VoteUpvote        VoteType = 1
	VoteExtraDownvote VoteType = 2
	VoteUndo          VoteType = 20
	VoteMalicious     VoteType = 30
)

// IsDownvote reports whether the type removes trust from a segment.
func (t VoteType) IsDownvote() bool {
	return t == VoteDownvote || t == VoteMalicious
}

// Vote is a private per-(segment, voter) vote row.
type Vote struct {
	UUID         SegmentID
	UserID       SegmentVoterID
	HashedIP     HashedIP
	Type         VoteType
	OriginalType VoteType
	NormalUserID HashedUserID
}

// CategoryChoice is the private record of which category a user last picked
// for a segment. It is keyed by the public hashed user ID so the submitter's
// implicit choice can be matched against their later votes.
type CategoryChoice struct {
	UUID          SegmentID
	UserID        HashedUserID
	HashedIP      HashedIP
	Category      Category
	TimeSubmitted int64
}

// VoteRequest is an inbound vote. Exactly one of Type or Category is set.
type VoteRequest struct {
	IP        string
	SegmentID SegmentID
	UserID    RawUserID
	Type      *VoteType
	Category  *Category
}

// VoteResult is the caller-visible outcome of a vote.
type VoteResult struct {
	Status  int
	Message string
}
