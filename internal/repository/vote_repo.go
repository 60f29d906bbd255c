package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/segvote/internal/model"
)

// VoteRepo stores identity-bearing vote rows in the private store.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// FindVote returns the voter's row for the segment, or nil.
func (r *VoteRepo) FindVote(ctx context.Context, id model.SegmentID, voter model.SegmentVoterID) (*model.Vote, error) {
	var v model.Vote
	err := r.pool.QueryRow(ctx, `
		SELECT "UUID", "userID", "hashedIP", "type", "originalType", "normalUserID"
		FROM "votes" WHERE "UUID" = $1 AND "userID" = $2`,
		id, voter).Scan(&v.UUID, &v.UserID, &v.HashedIP, &v.Type, &v.OriginalType, &v.NormalUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &v, nil
}

func (r *VoteRepo) InsertVote(ctx context.Context, v model.Vote) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO "votes" ("UUID", "userID", "hashedIP", "type", "originalType", "normalUserID")
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.UUID, v.UserID, v.HashedIP, v.Type, v.OriginalType, v.NormalUserID)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// UpdateVote overwrites the type of an existing row. The row is never
// deleted, so undo leaves a zero-effect record behind.
func (r *VoteRepo) UpdateVote(ctx context.Context, id model.SegmentID, voter model.SegmentVoterID, voteType, originalType model.VoteType) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE "votes" SET "type" = $1, "originalType" = $2
		WHERE "UUID" = $3 AND "userID" = $4`,
		voteType, originalType, id, voter)
	if err != nil {
		return fmt.Errorf("update vote: %w", err)
	}
	return nil
}

// HasOtherVoteFromIP reports whether a different voter already voted on the
// segment from the same hashed IP.
func (r *VoteRepo) HasOtherVoteFromIP(ctx context.Context, id model.SegmentID, ip model.HashedIP, except model.SegmentVoterID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM "votes" WHERE "UUID" = $1 AND "hashedIP" = $2 AND "userID" != $3
		)`, id, ip, except).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ip votes: %w", err)
	}
	return exists, nil
}

// FindCategoryChoice returns the user's last category pick for the segment, or nil.
func (r *VoteRepo) FindCategoryChoice(ctx context.Context, id model.SegmentID, userID model.HashedUserID) (*model.CategoryChoice, error) {
	var c model.CategoryChoice
	err := r.pool.QueryRow(ctx, `
		SELECT "UUID", "userID", "hashedIP", "category", "timeSubmitted"
		FROM "categoryVotes" WHERE "UUID" = $1 AND "userID" = $2`,
		id, userID).Scan(&c.UUID, &c.UserID, &c.HashedIP, &c.Category, &c.TimeSubmitted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category choice: %w", err)
	}
	return &c, nil
}

func (r *VoteRepo) InsertCategoryChoice(ctx context.Context, c model.CategoryChoice) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO "categoryVotes" ("UUID", "userID", "hashedIP", "category", "timeSubmitted")
		VALUES ($1, $2, $3, $4, $5)`,
		c.UUID, c.UserID, c.HashedIP, c.Category, c.TimeSubmitted)
	if err != nil {
		return fmt.Errorf("insert category choice: %w", err)
	}
	return nil
}

func (r *VoteRepo) UpdateCategoryChoice(ctx context.Context, c model.CategoryChoice) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE "categoryVotes" SET "category" = $1, "timeSubmitted" = $2, "hashedIP" = $3
		WHERE "UUID" = $4 AND "userID" = $5`,
		c.Category, c.TimeSubmitted, c.HashedIP, c.UUID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category choice: %w", err)
	}
	return nil
}
