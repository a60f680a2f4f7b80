package repository

import (
	"context"
	"fmt"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/pkg"
)

type sqliteFollowRepo struct {
	db database.TxQuerier
}

// NewSQLiteFollowRepo returns a FollowRepository over db.
func NewSQLiteFollowRepo(db database.TxQuerier) FollowRepository {
	return &sqliteFollowRepo{db: db}
}

func (r *sqliteFollowRepo) Create(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
		followerID, followeeID, timeNowUTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already following", pkg.ErrAlreadyExists)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user", pkg.ErrNotFound)
		}
		return fmt.Errorf("failed to create follow: %w", err)
	}
	return nil
}

func (r *sqliteFollowRepo) Delete(ctx context.Context, followerID, followeeID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteFollowRepo) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return n > 0, nil
}

func (r *sqliteFollowRepo) ListFollowerIDs(ctx context.Context, followeeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT follower_id FROM follows WHERE followee_id = ? ORDER BY created_at`, followeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating followers: %w", err)
	}
	return ids, nil
}
