package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/model"
)

const (
	// Weight of a single category vote.
	categoryWeightNormal = 1
	categoryWeightVIP    = 500

	// Implicit weight given to a segment's current category the first time it
	// is contested.
	categorySeedNormal = 1
	categorySeedVIP    = 10000
)

// unknownIP marks choice rows that were not cast from a request.
const unknownIP model.HashedIP = "unknown"


// CategoryVoteInput is a category vote after identity and trust resolution.
// Status is the result already decided by the caller's ban and warning checks.
type CategoryVoteInput struct {
	Segment   *model.Segment
	UserID    model.HashedUserID
	Trust     model.Trust
	Candidate model.Category
	HashedIP  model.HashedIP
	Status    int
}

// CategoryService tallies weighted category votes and decides when a
// segment's category changes.
type CategoryService struct {
	segments SegmentStore
	lockCats LockCategoryStore
	votes    VoteStore
	catVotes CategoryVoteStore
	users    UserStore
	cache    *CacheService
	support  map[model.Category][]model.ActionType
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCategoryService(
	segments SegmentStore,
	lockCats LockCategoryStore,
	votes VoteStore,
	catVotes CategoryVoteStore,
	users UserStore,
	cache *CacheService,
	support map[string][]string,
	logger zerolog.Logger,
) *CategoryService {
	table := make(map[model.Category][]model.ActionType, len(support))
	for category, actions := range support {
		for _, a := range actions {
			table[model.Category(category)] = append(table[model.Category(category)], model.ActionType(a))
		}
	}
	return &CategoryService{
		segments: segments,
		lockCats: lockCats,
		votes:    votes,
		catVotes: catVotes,
		users:    users,
		cache:    cache,
		support:  table,
		logger:   logger.With().Str("component", "category").Logger(),
		now:      time.Now,
	}
}

// Vote applies a category vote. Policy outcomes are returned as a result;
// only persistence failures produce an error.
func (s *CategoryService) Vote(ctx context.Context, in CategoryVoteInput) (model.VoteResult, error) {
	seg := in.Segment
	ok := model.VoteResult{Status: in.Status}

	prior, err := s.votes.FindCategoryChoice(ctx, seg.UUID, in.UserID)
	if err != nil {
		return model.VoteResult{}, err
	}
	if prior != nil && prior.Category == in.Candidate {
		return ok, nil
	}

	actions, known := s.support[in.Candidate]
	if !known {
		return model.VoteResult{Status: http.StatusBadRequest, Message: "Category doesn't exist."}, nil
	}
	if !slices.Contains(actions, seg.ActionType) {
		return model.VoteResult{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Not allowed to change to %s when for segment of type %s", in.Candidate, seg.ActionType),
		}, nil
	}

	if !in.Trust.IsVIP {
		locked, err := s.lockCats.IsCategoryLocked(ctx, seg.VideoID, seg.Service, in.Candidate)
		if err != nil {
			return model.VoteResult{}, err
		}
		if locked || seg.Locked {
			return ok, nil
		}
	}

	weight := categoryWeightNormal
	if in.Trust.IsVIP || in.Trust.IsTempVIP {
		weight = categoryWeightVIP
	}

	next, _, err := s.catVotes.CategoryVotes(ctx, seg.UUID, in.Candidate)
	if err != nil {
		return model.VoteResult{}, err
	}
	if err := s.catVotes.AddCategoryVotes(ctx, seg.UUID, in.Candidate, weight); err != nil {
		return model.VoteResult{}, err
	}

	choice := model.CategoryChoice{
		UUID:          seg.UUID,
		UserID:        in.UserID,
		HashedIP:      in.HashedIP,
		Category:      in.Candidate,
		TimeSubmitted: s.now().UnixMilli(),
	}
	if prior != nil {
		// Move the voter's weight rather than adding a second vote.
		if err := s.catVotes.AddCategoryVotes(ctx, seg.UUID, prior.Category, -weight); err != nil {
			return model.VoteResult{}, err
		}
		if err := s.votes.UpdateCategoryChoice(ctx, choice); err != nil {
			return model.VoteResult{}, err
		}
	} else if err := s.votes.InsertCategoryChoice(ctx, choice); err != nil {
		return model.VoteResult{}, err
	}

	current, found, err := s.catVotes.CategoryVotes(ctx, seg.UUID, seg.Category)
	if err != nil {
		return model.VoteResult{}, err
	}
	if !found {
		seed := categorySeedNormal
		submitterVIP, err := s.users.IsVIP(ctx, seg.UserID)
		if err != nil {
			return model.VoteResult{}, err
		}
		if submitterVIP {
			seed = categorySeedVIP
		}
		if err := s.catVotes.EnsureCategoryVotes(ctx, seg.UUID, seg.Category, seed); err != nil {
			return model.VoteResult{}, err
		}
		if err := s.seedSubmitterChoice(ctx, seg); err != nil {
			return model.VoteResult{}, err
		}
		current = seed
	}

	if in.Trust.IsVIP || in.Trust.IsTempVIP || in.Trust.IsOwnSubmission ||
		next+weight-current >= flipThreshold(seg.Votes) {
		if err := s.segments.SetCategory(ctx, seg.UUID, in.Candidate); err != nil {
			return model.VoteResult{}, err
		}
		s.logger.Debug().
			Str("segment", string(seg.UUID)).
			Str("from", string(seg.Category)).
			Str("to", string(in.Candidate)).
			Msg("category changed")
	}

	s.cache.InvalidateSegment(seg.CacheRef())
	return ok, nil
}

// seedSubmitterChoice records the submitter's implicit pick of the original
// category, so a later vote by the submitter moves that weight instead of
// adding to it.
func (s *CategoryService) seedSubmitterChoice(ctx context.Context, seg *model.Segment) error {
	existing, err := s.votes.FindCategoryChoice(ctx, seg.UUID, seg.UserID)
	if err != nil || existing != nil {
		return err
	}
	return s.votes.InsertCategoryChoice(ctx, model.CategoryChoice{
		UUID:          seg.UUID,
		UserID:        seg.UserID,
		HashedIP:      unknownIP,
		Category:      seg.Category,
		TimeSubmitted: seg.TimeSubmitted,
	})
}

// flipThreshold is the lead a candidate category needs over the current one:
// half the segment's votes, never less than 2.
func flipThreshold(votes int) int {
	return max(int(math.Ceil(float64(votes)/2.0)), 2)
}
