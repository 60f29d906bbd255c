package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/segvote/internal/model"
)

// CategoryVoteRepo holds the public per-(segment, category) aggregate weights.
type CategoryVoteRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryVoteRepo(pool *pgxpool.Pool) *CategoryVoteRepo {
	return &CategoryVoteRepo{pool: pool}
}

// CategoryVotes returns the aggregate weight and whether the row exists.
func (r *CategoryVoteRepo) CategoryVotes(ctx context.Context, id model.SegmentID, category model.Category) (int, bool, error) {
	var votes int
	err := r.pool.QueryRow(ctx, `
		SELECT "votes" FROM "categoryVotes" WHERE "UUID" = $1 AND "category" = $2`,
		id, category).Scan(&votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get category votes: %w", err)
	}
	return votes, true, nil
}

// AddCategoryVotes creates the aggregate at amount or increments it.
func (r *CategoryVoteRepo) AddCategoryVotes(ctx context.Context, id model.SegmentID, category model.Category, amount int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO "categoryVotes" ("UUID", "category", "votes") VALUES ($1, $2, $3)
		ON CONFLICT ("UUID", "category") DO UPDATE
		SET "votes" = "categoryVotes"."votes" + EXCLUDED."votes"`,
		id, category, amount)
	if err != nil {
		return fmt.Errorf("add category votes: %w", err)
	}
	return nil
}

// EnsureCategoryVotes seeds the aggregate row if it is missing.
func (r *CategoryVoteRepo) EnsureCategoryVotes(ctx context.Context, id model.SegmentID, category model.Category, seed int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO "categoryVotes" ("UUID", "category", "votes") VALUES ($1, $2, $3)
		ON CONFLICT ("UUID", "category") DO NOTHING`,
		id, category, seed)
	if err != nil {
		return fmt.Errorf("seed category votes: %w", err)
	}
	return nil
}
