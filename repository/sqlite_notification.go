package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

type sqliteNotificationRepo struct {
	db *sqlx.DB
}

// NewSQLiteNotificationRepo returns a NotificationRepository over db.
func NewSQLiteNotificationRepo(db *sqlx.DB) NotificationRepository {
	return &sqliteNotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, message, is_read, data, created_at`

func (r *sqliteNotificationRepo) Create(ctx context.Context, n *models.Notification) (models.UnreadCount, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = timeNowUTC()
	}

	return r.mutate(ctx, n.UserID, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO notifications (id, user_id, type, title, message, is_read, data, created_at)
			VALUES (:id, :user_id, :type, :title, :message, :is_read, :data, :created_at)`, n)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: recipient does not exist", pkg.ErrNotFound)
			}
			return fmt.Errorf("failed to insert notification: %w", err)
		}
		return nil
	})
}

func (r *sqliteNotificationRepo) GetByID(ctx context.Context, userID, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ? AND user_id = ?`, id, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *sqliteNotificationRepo) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Notification, bool, error) {
	page, limit = models.NormalizePage(page, limit)

	// One extra row tells whether another page exists.
	var rows []models.Notification
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, userID, limit+1, (page-1)*limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list notifications: %w", err)
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, hasMore, nil
}

func (r *sqliteNotificationRepo) UnreadCount(ctx context.Context, userID string) (models.UnreadCount, error) {
	return readUnread(ctx, r.db, userID)
}

func (r *sqliteNotificationRepo) MarkRead(ctx context.Context, userID, id string) (models.UnreadCount, error) {
	return r.mutate(ctx, userID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("failed to mark notification read: %w", err)
		}
		return requireAffected(res)
	})
}

func (r *sqliteNotificationRepo) MarkAllRead(ctx context.Context, userID string) (models.UnreadCount, error) {
	return r.mutate(ctx, userID, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID); err != nil {
			return fmt.Errorf("failed to mark all notifications read: %w", err)
		}
		return nil
	})
}

func (r *sqliteNotificationRepo) Delete(ctx context.Context, userID, id string) (models.UnreadCount, error) {
	return r.mutate(ctx, userID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("failed to delete notification: %w", err)
		}
		return requireAffected(res)
	})
}

// mutate runs fn, bumps the user's notification version and reads the fresh
// unread count, all in one transaction.
func (r *sqliteNotificationRepo) mutate(ctx context.Context, userID string, fn func(tx *sqlx.Tx) error) (models.UnreadCount, error) {
	var uc models.UnreadCount

	err := database.WithTxx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE users SET notification_version = notification_version + 1 WHERE id = ?`, userID)
		if err != nil {
			return fmt.Errorf("failed to bump notification version: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		uc, err = readUnread(ctx, tx, userID)
		return err
	})

	return uc, err
}

func readUnread(ctx context.Context, q sqlx.QueryerContext, userID string) (models.UnreadCount, error) {
	var uc models.UnreadCount
	err := sqlx.GetContext(ctx, q, &uc, `
		SELECT
			(SELECT COUNT(*) FROM notifications WHERE user_id = u.id AND is_read = 0) AS count,
			u.notification_version AS version
		FROM users u WHERE u.id = ?`, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return models.UnreadCount{}, pkg.ErrNotFound
	}
	if err != nil {
		return models.UnreadCount{}, fmt.Errorf("failed to read unread count: %w", err)
	}
	return uc, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
