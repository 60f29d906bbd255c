package service

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/lock"
	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
)

// Retired vote codes. Clients still sending them get a 400.
const (
	voteRetiredA model.VoteType = 12
	voteRetiredB model.VoteType = 13
)

// Legacy increments recorded by older vote rows.
const (
	legacyExtraDownvoteIncrement = -4
	legacyMaliciousIncrement     = -500
	maliciousCap                 = 5
)

// hiddenThreshold is the vote count at or below which a segment is hidden.
const hiddenThreshold = -2

const warningMessage = "Vote rejected due to a tip from a moderator. This means that we noticed you were making " +
	"some common mistakes that are not malicious, and we just want to clarify the rules. " +
	"Could you please reach out so we can further help you?"

// DurationQueue schedules a non-blocking duration recheck for a video.
type DurationQueue interface {
	Enqueue(videoID model.VideoID, service model.Service)
}

// DurationRefresher updates a segment's stored video duration.
type DurationRefresher interface {
	RefreshSegment(ctx context.Context, seg *model.Segment) error
}

// VoteOptions are the tunables of the vote path.
type VoteOptions struct {
	MinUserIDLength   int
	MaxActiveWarnings int
	WarningExpiry     time.Duration
	LockTimeout       time.Duration
}

// VoteDeps are the collaborators of VoteService.
type VoteDeps struct {
	Segments   SegmentStore
	LockCats   LockCategoryStore
	Users      UserStore
	Votes      VoteStore
	Hasher     *Hasher
	Trust      *TrustService
	Locker     lock.Locker
	Cache      *CacheService
	Categories *CategoryService
	Durations  DurationQueue
	Refresher  DurationRefresher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// VoteService is the numeric vote pipeline and the entry point for category
// votes.
type VoteService struct {
	VoteDeps
	opts   VoteOptions
	logger zerolog.Logger
	now    func() time.Time
}

func NewVoteService(deps VoteDeps, opts VoteOptions) *VoteService {
	return &VoteService{
		VoteDeps: deps,
		opts:     opts,
		logger:   deps.Logger.With().Str("component", "vote").Logger(),
		now:      time.Now,
	}
}

func result(status int, message string) model.VoteResult {
	return model.VoteResult{Status: status, Message: message}
}

var (
	resultOK       = result(http.StatusOK, "")
	resultInternal = result(http.StatusInternalServerError, "Internal server error")
)

// Vote applies one vote and reports the caller-visible outcome. It never
// returns an error; persistence failures surface as a 500 result.
func (s *VoteService) Vote(ctx context.Context, req model.VoteRequest) model.VoteResult {
	kind := "numeric"
	if req.Category != nil {
		kind = "category"
	}
	res := s.vote(ctx, req)
	s.Metrics.Vote(kind, strconv.Itoa(res.Status))
	return res
}

func (s *VoteService) vote(ctx context.Context, req model.VoteRequest) model.VoteResult {
	if req.SegmentID == "" || req.UserID == "" {
		return result(http.StatusBadRequest, "Missing required parameters: UUID and userID")
	}
	if (req.Type == nil) == (req.Category == nil) {
		return result(http.StatusBadRequest, "Exactly one of type or category is required")
	}
	if len(req.UserID) < s.opts.MinUserIDLength {
		// Silent so short ids don't reveal the length rule to abusive clients.
		return resultOK
	}

	userID := s.Hasher.UserID(req.UserID)
	voter := s.Hasher.SegmentVoter(req.UserID, req.SegmentID)
	ip := s.Hasher.IP(req.IP)

	lease, held := s.Locker.Acquire(ctx, lock.VoteKey(req.SegmentID, req.UserID), s.opts.LockTimeout)
	if !held {
		return result(http.StatusTooManyRequests, "Vote already in progress")
	}
	defer lease.Release()

	log := s.logger.With().Str("segment", string(req.SegmentID)).Str("user", string(userID)).Logger()

	seg, err := s.Segments.FindByUUID(ctx, req.SegmentID)
	if err != nil {
		log.Error().Err(err).Msg("load segment")
		return resultInternal
	}
	if seg == nil {
		return result(http.StatusNotFound, "Segment not found")
	}

	trust, err := s.Trust.Resolve(ctx, userID, ip, seg)
	if err != nil {
		log.Error().Err(err).Msg("resolve trust")
		return resultInternal
	}

	if req.Type != nil && (*req.Type == voteRetiredA || *req.Type == voteRetiredB) {
		return result(http.StatusBadRequest, "Vote type is no longer supported")
	}

	since := s.now().Add(-s.opts.WarningExpiry).UnixMilli()
	warnings, err := s.Users.ActiveWarnings(ctx, userID, since)
	if err != nil {
		log.Error().Err(err).Msg("load warnings")
		return resultInternal
	}
	if len(warnings) >= s.opts.MaxActiveWarnings {
		msg := warningMessage
		if reason := warnings[0].Reason; reason != "" {
			msg += " Tip message: '" + reason + "'"
		}
		return result(http.StatusForbidden, msg)
	}

	if trust.IsBanned {
		return resultOK
	}

	if req.Category != nil {
		res, err := s.Categories.Vote(ctx, CategoryVoteInput{
			Segment:   seg,
			UserID:    userID,
			Trust:     trust,
			Candidate: *req.Category,
			HashedIP:  ip,
			Status:    http.StatusOK,
		})
		if err != nil {
			log.Error().Err(err).Msg("category vote")
			return resultInternal
		}
		return res
	}

	res, err := s.numericVote(ctx, seg, *req.Type, userID, voter, ip, trust)
	if err != nil {
		log.Error().Err(err).Int("type", int(*req.Type)).Msg("numeric vote")
		return resultInternal
	}
	return res
}

func (s *VoteService) numericVote(
	ctx context.Context,
	seg *model.Segment,
	voteType model.VoteType,
	userID model.HashedUserID,
	voter model.SegmentVoterID,
	ip model.HashedIP,
	trust model.Trust,
) (model.VoteResult, error) {
	blocked := false
	if !trust.IsVIP && (voteType != model.VoteUpvote || seg.Votes <= hiddenThreshold) {
		locked := seg.Locked
		if !locked {
			var err error
			locked, err = s.LockCats.IsActionLocked(ctx, seg.VideoID, seg.Service, seg.Category, seg.ActionType)
			if err != nil {
				return model.VoteResult{}, err
			}
		}
		blocked = locked
	}

	if seg.Votes <= hiddenThreshold && seg.ActionType != model.ActionFull &&
		!(trust.IsVIP || trust.IsTempVIP || trust.IsOwnSubmission) {
		switch {
		case voteType == model.VoteUpvote:
			return result(http.StatusForbidden, "Not allowed to upvote segment with too many downvotes unless you are VIP."), nil
		case voteType.IsDownvote():
			return resultOK, nil
		}
	}

	if voteType.IsDownvote() {
		s.Durations.Enqueue(seg.VideoID, seg.Service)
	}

	prev, err := s.Votes.FindVote(ctx, seg.UUID, voter)
	if err != nil {
		return model.VoteResult{}, err
	}

	inc, ok := increment(voteType)
	if !ok {
		return result(http.StatusBadRequest, "Invalid vote type"), nil
	}
	old := 0
	if prev != nil {
		old = storedIncrement(prev.Type)
	}

	stored := voteType
	if (trust.IsVIP || trust.IsTempVIP || trust.IsOwnSubmission) && inc < 0 {
		// Cancel the segment back to exactly the hidden threshold, net of
		// this voter's previous contribution.
		inc = -(seg.Votes - hiddenThreshold - old)
		stored = model.VoteType(inc)
	}
	if voteType == model.VoteMalicious {
		inc = -min(seg.Votes-hiddenThreshold-old, maliciousCap)
		stored = model.VoteType(inc)
	}

	able, err := s.ableToVote(ctx, seg, voteType, inc, old, blocked, userID, voter, ip, trust)
	if err != nil {
		return model.VoteResult{}, err
	}
	if !able {
		return resultOK, nil
	}

	if prev != nil {
		err = s.Votes.UpdateVote(ctx, seg.UUID, voter, stored, voteType)
	} else {
		err = s.Votes.InsertVote(ctx, model.Vote{
			UUID:         seg.UUID,
			UserID:       voter,
			HashedIP:     ip,
			Type:         stored,
			OriginalType: voteType,
			NormalUserID: userID,
		})
	}
	if err != nil {
		return model.VoteResult{}, err
	}

	if delta := inc - old; delta != 0 {
		if err := s.Segments.AddVotes(ctx, seg.UUID, delta); err != nil {
			return model.VoteResult{}, err
		}
	}

	normal := voteType != model.VoteMalicious
	if trust.IsTempVIP && inc > 0 && normal {
		if err := s.Segments.Unhide(ctx, seg.UUID); err != nil {
			return model.VoteResult{}, err
		}
	}
	if trust.IsVIP && normal {
		if inc > 0 {
			if err := s.Refresher.RefreshSegment(ctx, seg); err != nil {
				s.logger.Warn().Err(err).Str("segment", string(seg.UUID)).Msg("refresh video duration")
			}
			err = s.Segments.LockAndUnhide(ctx, seg.UUID)
		} else {
			err = s.Segments.Unlock(ctx, seg.UUID)
		}
		if err != nil {
			return model.VoteResult{}, err
		}
	}

	s.Cache.InvalidateSegment(seg.CacheRef())
	return resultOK, nil
}

// ableToVote is the final eligibility gate. Checks that need the store run
// last and only when everything cheaper passed.
func (s *VoteService) ableToVote(
	ctx context.Context,
	seg *model.Segment,
	voteType model.VoteType,
	inc, old int,
	blocked bool,
	userID model.HashedUserID,
	voter model.SegmentVoterID,
	ip model.HashedIP,
	trust model.Trust,
) (bool, error) {
	if trust.IsVIP || trust.IsTempVIP {
		return true, nil
	}
	if trust.IsOwnSubmission && inc > 0 && old >= 0 {
		return false, nil
	}
	if voteType == model.VoteMalicious && seg.ActionType != model.ActionChapter {
		return false, nil
	}
	if blocked {
		return false, nil
	}

	counted, err := s.Segments.HasCountedSubmission(ctx, userID, seg.Category)
	if err != nil || !counted {
		return false, err
	}

	colluding, err := s.Votes.HasOtherVoteFromIP(ctx, seg.UUID, ip, voter)
	if err != nil {
		return false, err
	}
	return !colluding, nil
}

// increment maps a requested vote type to its vote delta.
func increment(t model.VoteType) (int, bool) {
	switch t {
	case model.VoteUpvote:
		return 1, true
	case model.VoteDownvote, model.VoteMalicious:
		return -1, true
	case model.VoteUndo:
		return 0, true
	}
	return 0, false
}

// storedIncrement maps a stored vote type to the delta it contributed.
func storedIncrement(t model.VoteType) int {
	switch {
	case t < 0:
		return int(t)
	case t == model.VoteUpvote:
		return 1
	case t == model.VoteDownvote:
		return -1
	case t == model.VoteExtraDownvote:
		return legacyExtraDownvoteIncrement
	case t == model.VoteMalicious:
		return legacyMaliciousIncrement
	}
	return 0
}
