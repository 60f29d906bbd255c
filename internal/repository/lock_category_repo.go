package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/segvote/internal/model"
)

// LockCategoryRepo reads moderator lock records from the public store.
type LockCategoryRepo struct {
	pool *pgxpool.Pool
}

func NewLockCategoryRepo(pool *pgxpool.Pool) *LockCategoryRepo {
	return &LockCategoryRepo{pool: pool}
}

// IsActionLocked reports whether a lock exists for the exact category and action type.
func (r *LockCategoryRepo) IsActionLocked(ctx context.Context, videoID model.VideoID, service model.Service, category model.Category, action model.ActionType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM "lockCategories"
			WHERE "videoID" = $1 AND "service" = $2 AND "category" = $3 AND "actionType" = $4
		)`, videoID, service, category, action).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check action lock: %w", err)
	}
	return exists, nil
}

// IsCategoryLocked reports whether any lock exists for the category on the video.
func (r *LockCategoryRepo) IsCategoryLocked(ctx context.Context, videoID model.VideoID, service model.Service, category model.Category) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM "lockCategories"
			WHERE "videoID" = $1 AND "service" = $2 AND "category" = $3
		)`, videoID, service, category).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category lock: %w", err)
	}
	return exists, nil
}

// DeleteByVideo drops every lock record of the video.
func (r *LockCategoryRepo) DeleteByVideo(ctx context.Context, videoID model.VideoID, service model.Service) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM "lockCategories" WHERE "videoID" = $1 AND "service" = $2`, videoID, service)
	if err != nil {
		return fmt.Errorf("delete video locks: %w", err)
	}
	return nil
}
