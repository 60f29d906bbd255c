package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/model"
)

// tempVIPLookupTimeout bounds the channel lookup made while the vote lock is held.
const tempVIPLookupTimeout = 2 * time.Second

// TrustService resolves the privilege tier and ban status of a voter.
type TrustService struct {
	users         UserStore
	rdb           *redis.Client
	videos        VideoDetailsFetcher
	logger        zerolog.Logger
	lookupTimeout time.Duration
}

// NewTrustService creates a TrustService. rdb may be nil, in which case nobody
// is a temporary VIP.
func NewTrustService(users UserStore, rdb *redis.Client, videos VideoDetailsFetcher, logger zerolog.Logger) *TrustService {
	return &TrustService{
		users:         users,
		rdb:           rdb,
		videos:        videos,
		logger:        logger.With().Str("component", "trust").Logger(),
		lookupTimeout: tempVIPLookupTimeout,
	}
}

// Resolve returns the voter's tier for seg. Store failures are returned;
// temp-VIP lookups degrade to false.
func (s *TrustService) Resolve(ctx context.Context, userID model.HashedUserID, ip model.HashedIP, seg *model.Segment) (model.Trust, error) {
	var t model.Trust

	vip, err := s.users.IsVIP(ctx, userID)
	if err != nil {
		return t, err
	}
	t.IsVIP = vip
	t.IsTempVIP = s.IsTempVIP(ctx, userID, seg.VideoID)
	t.IsOwnSubmission = seg.UserID == userID

	banned, err := s.users.IsBanned(ctx, userID, ip)
	if err != nil {
		return t, err
	}
	t.IsBanned = banned
	return t, nil
}

// IsVIP reports global VIP status.
func (s *TrustService) IsVIP(ctx context.Context, userID model.HashedUserID) (bool, error) {
	return s.users.IsVIP(ctx, userID)
}

// IsTempVIP reports whether the user holds a channel-scoped VIP grant for the
// channel that owns videoID.
func (s *TrustService) IsTempVIP(ctx context.Context, userID model.HashedUserID, videoID model.VideoID) bool {
	if s.rdb == nil {
		return false
	}

	channelID, err := s.rdb.Get(ctx, TempVIPKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("temp vip lookup failed")
		return false
	}
	if channelID == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	details, err := s.videos.GetVideoDetails(ctx, videoID, false)
	if err != nil {
		s.logger.Warn().Err(err).Str("video_id", string(videoID)).Msg("temp vip channel lookup failed")
		return false
	}
	return details.ChannelID == channelID
}
