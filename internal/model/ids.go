package model

// Identifier types are distinct so a raw user ID can never be passed where a
// hashed one is expected.
type (
	SegmentID      string
	VideoID        string
	HashedVideoID  string
	Service        string
	Category       string
	ActionType     string
	RawUserID      string
	HashedUserID   string
	SegmentVoterID string
	HashedIP       string
)

const ServiceYouTube Service = "YouTube"

const (
	ActionSkip    ActionType = "skip"
	ActionMute    ActionType = "mute"
	ActionChapter ActionType = "chapter"
	ActionFull    ActionType = "full"
	ActionPOI     ActionType = "poi"
)

// ParseService normalizes a service name, defaulting to YouTube.
func ParseService(s string) Service {
	switch Service(s) {
	case "", ServiceYouTube:
		return ServiceYouTube
	}
	return Service(s)
}
