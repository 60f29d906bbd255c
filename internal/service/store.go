package service

import (
	"context"

	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/videoapi"
)

// Persistence contracts consumed by the engines. Lookups of absent rows
// return nil (or false) with a nil error.

type SegmentStore interface {
	FindByUUID(ctx context.Context, id model.SegmentID) (*model.Segment, error)
	HasCountedSubmission(ctx context.Context, userID model.HashedUserID, category model.Category) (bool, error)
	AddVotes(ctx context.Context, id model.SegmentID, delta int) error
	Unhide(ctx context.Context, id model.SegmentID) error
	LockAndUnhide(ctx context.Context, id model.SegmentID) error
	Unlock(ctx context.Context, id model.SegmentID) error
	SetVideoDuration(ctx context.Context, id model.SegmentID, duration float64) error
	SetCategory(ctx context.Context, id model.SegmentID, category model.Category) error
	LatestVisibleSubmission(ctx context.Context, videoID model.VideoID, service model.Service) (*model.Segment, error)
	HideSubmittedBefore(ctx context.Context, videoID model.VideoID, service model.Service, before int64) (int64, error)
	ListVisibleByVideo(ctx context.Context, videoID model.VideoID, service model.Service) ([]model.Segment, error)
	ListVisibleByHashPrefix(ctx context.Context, prefix string, service model.Service) ([]model.Segment, error)
}

type LockCategoryStore interface {
	IsActionLocked(ctx context.Context, videoID model.VideoID, service model.Service, category model.Category, action model.ActionType) (bool, error)
	IsCategoryLocked(ctx context.Context, videoID model.VideoID, service model.Service, category model.Category) (bool, error)
	DeleteByVideo(ctx context.Context, videoID model.VideoID, service model.Service) error
}

type UserStore interface {
	IsVIP(ctx context.Context, userID model.HashedUserID) (bool, error)
	IsBanned(ctx context.Context, userID model.HashedUserID, ip model.HashedIP) (bool, error)
	// ActiveWarnings returns enabled standard warnings issued after since
	// (unix ms), newest first.
	ActiveWarnings(ctx context.Context, userID model.HashedUserID, since int64) ([]model.Warning, error)
}

// VoteStore is the private, identity-bearing store.
type VoteStore interface {
	FindVote(ctx context.Context, id model.SegmentID, voter model.SegmentVoterID) (*model.Vote, error)
	InsertVote(ctx context.Context, v model.Vote) error
	UpdateVote(ctx context.Context, id model.SegmentID, voter model.SegmentVoterID, voteType, originalType model.VoteType) error
	HasOtherVoteFromIP(ctx context.Context, id model.SegmentID, ip model.HashedIP, except model.SegmentVoterID) (bool, error)
	FindCategoryChoice(ctx context.Context, id model.SegmentID, userID model.HashedUserID) (*model.CategoryChoice, error)
	InsertCategoryChoice(ctx context.Context, c model.CategoryChoice) error
	UpdateCategoryChoice(ctx context.Context, c model.CategoryChoice) error
}

type CategoryVoteStore interface {
	// CategoryVotes returns the aggregate weight and whether the row exists.
	CategoryVotes(ctx context.Context, id model.SegmentID, category model.Category) (int, bool, error)
	AddCategoryVotes(ctx context.Context, id model.SegmentID, category model.Category, amount int) error
	EnsureCategoryVotes(ctx context.Context, id model.SegmentID, category model.Category, seed int) error
}

type VideoDetailsFetcher interface {
	GetVideoDetails(ctx context.Context, videoID model.VideoID, bypassCache bool) (*videoapi.Details, error)
}

// Runner executes detached background work.
type Runner interface {
	Go(fn func(ctx context.Context))
}
