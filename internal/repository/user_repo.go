package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/segvote/internal/model"
)

// UserRepo answers trust and moderation questions about a hashed user.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) IsVIP(ctx context.Context, userID model.HashedUserID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM "vipUsers" WHERE "userID" = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vip: %w", err)
	}
	return exists, nil
}

// IsBanned reports whether the user or the IP is shadow banned.
func (r *UserRepo) IsBanned(ctx context.Context, userID model.HashedUserID, ip model.HashedIP) (bool, error) {
	var banned bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM "shadowBannedUsers" WHERE "userID" = $1)
		    OR EXISTS (SELECT 1 FROM "shadowBannedIPs" WHERE "hashedIP" = $2)`,
		userID, ip).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return banned, nil
}

// ActiveWarnings returns enabled standard warnings issued after since (unix ms),
// newest first.
func (r *UserRepo) ActiveWarnings(ctx context.Context, userID model.HashedUserID, since int64) ([]model.Warning, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT "userID", "issueTime", "issuerUserID", "reason", "type"
		FROM "warnings"
		WHERE "userID" = $1 AND "issueTime" > $2 AND "enabled" = 1 AND "type" = $3
		ORDER BY "issueTime" DESC`,
		userID, since, model.WarningTypeStandard)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var warnings []model.Warning
	for rows.Next() {
		w := model.Warning{Enabled: true}
		if err := rows.Scan(&w.UserID, &w.IssueTime, &w.IssuerUserID, &w.Reason, &w.Type); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}
