package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/segvote/internal/model"
)

// SegmentRepo reads and mutates "sponsorTimes" in the public store.
type SegmentRepo struct {
	pool    *pgxpool.Pool
	replica *pgxpool.Pool
}

// NewSegmentRepo creates a SegmentRepo. replica may be nil, in which case
// replica reads go to the primary.
func NewSegmentRepo(pool, replica *pgxpool.Pool) *SegmentRepo {
	if replica == nil {
		replica = pool
	}
	return &SegmentRepo{pool: pool, replica: replica}
}

const segmentColumns = `"UUID", "videoID", "hashedVideoID", "service", "category", "actionType",
	"startTime", "endTime", "votes", "locked" = 1, "hidden", "shadowHidden", "videoDuration",
	"userID", "timeSubmitted", "views", "description"`

func scanSegment(row pgx.Row) (*model.Segment, error) {
	var s model.Segment
	err := row.Scan(
		&s.UUID, &s.VideoID, &s.HashedVideoID, &s.Service, &s.Category, &s.ActionType,
		&s.StartTime, &s.EndTime, &s.Votes, &s.Locked, &s.Hidden, &s.ShadowHidden, &s.VideoDuration,
		&s.UserID, &s.TimeSubmitted, &s.Views, &s.Description,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SegmentRepo) reader(useReplica bool) *pgxpool.Pool {
	if useReplica {
		return r.replica
	}
	return r.pool
}

// FindByUUID returns the segment, or nil when it does not exist.
func (r *SegmentRepo) FindByUUID(ctx context.Context, id model.SegmentID) (*model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM "sponsorTimes" WHERE "UUID" = $1`

	s, err := scanSegment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find segment: %w", err)
	}
	return s, nil
}

// HasCountedSubmission reports whether the user owns a visible, non-downvoted
// segment in the category.
func (r *SegmentRepo) HasCountedSubmission(ctx context.Context, userID model.HashedUserID, category model.Category) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM "sponsorTimes"
			WHERE "userID" = $1 AND "category" = $2
			  AND "votes" > -2 AND "hidden" = 0 AND "shadowHidden" = 0
		)`, userID, category).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check counted submission: %w", err)
	}
	return exists, nil
}

// AddVotes applies a signed delta to the segment's vote count in one statement.
func (r *SegmentRepo) AddVotes(ctx context.Context, id model.SegmentID, delta int) error {
	_, err := r.pool.Exec(ctx, `UPDATE "sponsorTimes" SET "votes" = "votes" + $1 WHERE "UUID" = $2`, delta, id)
	if err != nil {
		return fmt.Errorf("add votes: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Unhide(ctx context.Context, id model.SegmentID) error {
	_, err := r.pool.Exec(ctx, `UPDATE "sponsorTimes" SET "hidden" = 0 WHERE "UUID" = $1`, id)
	if err != nil {
		return fmt.Errorf("unhide segment: %w", err)
	}
	return nil
}

// LockAndUnhide pins the segment and clears both hidden flags.
func (r *SegmentRepo) LockAndUnhide(ctx context.Context, id model.SegmentID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE "sponsorTimes" SET "locked" = 1, "hidden" = 0, "shadowHidden" = 0
		WHERE "UUID" = $1`, id)
	if err != nil {
		return fmt.Errorf("lock segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Unlock(ctx context.Context, id model.SegmentID) error {
	_, err := r.pool.Exec(ctx, `UPDATE "sponsorTimes" SET "locked" = 0 WHERE "UUID" = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) SetVideoDuration(ctx context.Context, id model.SegmentID, duration float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE "sponsorTimes" SET "videoDuration" = $1 WHERE "UUID" = $2`, duration, id)
	if err != nil {
		return fmt.Errorf("set video duration: %w", err)
	}
	return nil
}

func (r *SegmentRepo) SetCategory(ctx context.Context, id model.SegmentID, category model.Category) error {
	_, err := r.pool.Exec(ctx, `UPDATE "sponsorTimes" SET "category" = $1 WHERE "UUID" = $2`, category, id)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	return nil
}

// LatestVisibleSubmission returns the newest visible, non-full segment of the
// video that recorded a duration, or nil.
func (r *SegmentRepo) LatestVisibleSubmission(ctx context.Context, videoID model.VideoID, service model.Service) (*model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM "sponsorTimes"
		WHERE "videoID" = $1 AND "service" = $2
		  AND "hidden" = 0 AND "shadowHidden" = 0 AND "votes" > -2
		  AND "actionType" != 'full' AND "videoDuration" != 0
		ORDER BY "timeSubmitted" DESC
		LIMIT 1`

	s, err := scanSegment(r.pool.QueryRow(ctx, query, videoID, service))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest submission: %w", err)
	}
	return s, nil
}

// HideSubmittedBefore hides every visible segment of the video with a recorded
// duration submitted at or before the given time. Returns the rows affected.
func (r *SegmentRepo) HideSubmittedBefore(ctx context.Context, videoID model.VideoID, service model.Service, before int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE "sponsorTimes" SET "hidden" = 1
		WHERE "videoID" = $1 AND "service" = $2 AND "timeSubmitted" <= $3
		  AND "hidden" = 0 AND "shadowHidden" = 0 AND "votes" > -2 AND "videoDuration" != 0`,
		videoID, service, before)
	if err != nil {
		return 0, fmt.Errorf("hide stale segments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListVisibleByVideo returns visible segments for a video from the replica.
func (r *SegmentRepo) ListVisibleByVideo(ctx context.Context, videoID model.VideoID, service model.Service) ([]model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM "sponsorTimes"
		WHERE "videoID" = $1 AND "service" = $2
		  AND "hidden" = 0 AND "shadowHidden" = 0 AND "votes" > -2
		ORDER BY "startTime"`
	return r.list(ctx, query, videoID, service)
}

// ListVisibleByHashPrefix returns visible segments whose hashed video ID starts
// with prefix, from the replica.
func (r *SegmentRepo) ListVisibleByHashPrefix(ctx context.Context, prefix string, service model.Service) ([]model.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM "sponsorTimes"
		WHERE "hashedVideoID" LIKE $1 || '%' AND "service" = $2
		  AND "hidden" = 0 AND "shadowHidden" = 0 AND "votes" > -2
		ORDER BY "videoID", "startTime"
		LIMIT 5000`
	return r.list(ctx, query, prefix, service)
}

func (r *SegmentRepo) list(ctx context.Context, query string, args ...any) ([]model.Segment, error) {
	rows, err := r.reader(true).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []model.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, *s)
	}
	return segments, rows.Err()
}
