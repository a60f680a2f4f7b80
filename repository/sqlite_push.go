package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

type sqlitePushRepo struct {
	db *sqlx.DB
}

// NewSQLitePushRepo returns a PushSubscriptionRepository over db.
func NewSQLitePushRepo(db *sqlx.DB) PushSubscriptionRepository {
	return &sqlitePushRepo{db: db}
}

func (r *sqlitePushRepo) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = newID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = timeNowUTC()
	}

	query := `
		INSERT INTO push_subscriptions (id, user_id, token, endpoint, p256dh, auth, device_name, created_at)
		VALUES (:id, :user_id, :token, :endpoint, :p256dh, :auth, :device_name, :created_at)
		ON CONFLICT(token) DO UPDATE SET
			user_id = excluded.user_id,
			endpoint = excluded.endpoint,
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			device_name = excluded.device_name`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user does not exist", pkg.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}

	// On conflict the stored row keeps its original id.
	if err := r.db.GetContext(ctx, &sub.ID, `SELECT id FROM push_subscriptions WHERE token = ?`, sub.Token); err != nil {
		return fmt.Errorf("failed to read push subscription id: %w", err)
	}
	return nil
}

func (r *sqlitePushRepo) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT id, user_id, token, endpoint, p256dh, auth, device_name, created_at
		FROM push_subscriptions WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return subs, nil
}

func (r *sqlitePushRepo) DeleteByToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return requireAffected(res)
}

func (r *sqlitePushRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
