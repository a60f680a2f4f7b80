package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

type sqlitePublisherRequestRepo struct {
	db database.TxQuerier
}

// NewSQLitePublisherRequestRepo returns a PublisherRequestRepository over db.
func NewSQLitePublisherRequestRepo(db database.TxQuerier) PublisherRequestRepository {
	return &sqlitePublisherRequestRepo{db: db}
}

const publisherRequestSelect = `
	SELECT pr.id, pr.user_id, u.username, pr.reason, pr.status, pr.reviewer_id, pr.created_at, pr.reviewed_at
	FROM publisher_requests pr
	JOIN users u ON u.id = pr.user_id`

func scanPublisherRequest(row interface{ Scan(...any) error }, pr *models.PublisherRequest) error {
	var reviewedAt sql.NullTime
	if err := row.Scan(&pr.ID, &pr.UserID, &pr.Username, &pr.Reason, &pr.Status,
		&pr.ReviewerID, &pr.CreatedAt, &reviewedAt); err != nil {
		return err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		pr.ReviewedAt = &t
	}
	return nil
}

func (r *sqlitePublisherRequestRepo) Create(ctx context.Context, req *models.PublisherRequest) error {
	req.ID = newID()
	req.Status = models.PublisherRequestPending
	req.CreatedAt = timeNowUTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO publisher_requests (id, user_id, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Reason, req.Status, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create publisher request: %w", err)
	}
	return nil
}

func (r *sqlitePublisherRequestRepo) GetByID(ctx context.Context, id string) (*models.PublisherRequest, error) {
	pr := &models.PublisherRequest{}
	err := scanPublisherRequest(r.db.QueryRowContext(ctx, publisherRequestSelect+` WHERE pr.id = ?`, id), pr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher request: %w", err)
	}
	return pr, nil
}

func (r *sqlitePublisherRequestRepo) HasPending(ctx context.Context, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publisher_requests WHERE user_id = ? AND status = ?`,
		userID, models.PublisherRequestPending).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check pending publisher request: %w", err)
	}
	return n > 0, nil
}

func (r *sqlitePublisherRequestRepo) ListByStatus(ctx context.Context, status models.PublisherRequestStatus) ([]models.PublisherRequest, error) {
	rows, err := r.db.QueryContext(ctx, publisherRequestSelect+` WHERE pr.status = ? ORDER BY pr.created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list publisher requests: %w", err)
	}
	defer rows.Close()

	requests := []models.PublisherRequest{}
	for rows.Next() {
		var pr models.PublisherRequest
		if err := scanPublisherRequest(rows, &pr); err != nil {
			return nil, fmt.Errorf("failed to scan publisher request: %w", err)
		}
		requests = append(requests, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publisher requests: %w", err)
	}
	return requests, nil
}

func (r *sqlitePublisherRequestRepo) Review(ctx context.Context, id, reviewerID string, status models.PublisherRequestStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE publisher_requests SET status = ?, reviewer_id = ?, reviewed_at = ?
		WHERE id = ? AND status = ?`,
		status, reviewerID, timeNowUTC(), id, models.PublisherRequestPending)
	if err != nil {
		return fmt.Errorf("failed to review publisher request: %w", err)
	}
	return requireAffected(res)
}
