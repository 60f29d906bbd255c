package model

// Segment is a time-ranged, crowd-moderated span of a video.
type Segment struct {
	UUID          SegmentID
	VideoID       VideoID
	HashedVideoID HashedVideoID
	Service       Service
	Category      Category
	ActionType    ActionType
	StartTime     float64
	EndTime       float64
	Votes         int
	Locked        bool
	Hidden        int
	ShadowHidden  int
	VideoDuration float64
	UserID        HashedUserID
	TimeSubmitted int64
	Views         int
	Description   string
}

// Visible reports whether the segment is served by public listings.
func (s Segment) Visible() bool {
	return s.Hidden == 0 && s.ShadowHidden == 0 && s.Votes > -2
}

// CacheRef returns the fields needed to drop the segment's derived cache entries.
func (s Segment) CacheRef() SegmentCacheRef {
	return SegmentCacheRef{
		VideoID:       s.VideoID,
		HashedVideoID: s.HashedVideoID,
		Service:       s.Service,
		UserID:        s.UserID,
	}
}

// SegmentCacheRef identifies the cache views derived from a segment.
// CID is optional; when empty every grouped view of the video is dropped.
type SegmentCacheRef struct {
	VideoID       VideoID
	HashedVideoID HashedVideoID
	Service       Service
	CID           string
	UserID        HashedUserID
}

// SegmentResponse is the public representation of a visible segment.
type SegmentResponse struct {
	UUID          SegmentID  `json:"UUID"`
	Segment       [2]float64 `json:"segment"`
	Category      Category   `json:"category"`
	ActionType    ActionType `json:"actionType"`
	Votes         int        `json:"votes"`
	Locked        bool       `json:"locked"`
	VideoDuration float64    `json:"videoDuration"`
	Description   string     `json:"description"`
}

// VideoSegments groups segments by video for hash-prefix lookups.
type VideoSegments struct {
	VideoID  VideoID           `json:"videoID"`
	Hash     HashedVideoID     `json:"hash"`
	Segments []SegmentResponse `json:"segments"`
}

// ToResponse converts a stored segment into its public form.
func (s *Segment) ToResponse() SegmentResponse {
	return SegmentResponse{
		UUID:          s.UUID,
		Segment:       [2]float64{s.StartTime, s.EndTime},
		Category:      s.Category,
		ActionType:    s.ActionType,
		Votes:         s.Votes,
		Locked:        s.Locked,
		VideoDuration: s.VideoDuration,
		Description:   s.Description,
	}
}
