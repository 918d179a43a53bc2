package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/alatoul/ride-hailing/pkg/database"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `
	id, user_id, type, title, message, related_id, link,
	is_read, read_at, created_at, updated_at`

type Repository struct {
	db database.Querier
}

func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	n := &models.Notification{}
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.RelatedID,
		&n.Link,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Create inserts a notification and fills in its timestamps
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, link)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_read, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.RelatedID,
		n.Link,
	).Scan(&n.IsRead, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns the newest notifications of a user
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND (NOT $2::boolean OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3`

	return database.RetryableQuery(ctx, r.db, query, []interface{}{userID, unreadOnly, limit}, func(rows pgx.Rows) ([]*models.Notification, error) {
		out := make([]*models.Notification, 0)
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, rows.Err()
	})
}

// CountUnread counts unread notifications of a user
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`

	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{userID}, func(row pgx.Row) (int64, error) {
		var count int64
		err := row.Scan(&count)
		return count, err
	})
}

// MarkAsRead flags one notification as read. It only touches rows owned by
// userID; when nothing matches it tells a missing row from a foreign one.
func (r *Repository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns

	n, err := scanNotification(r.db.QueryRow(ctx, query, id, userID))
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}

	var owner uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT user_id FROM notifications WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification owner: %w", err)
	}
	return nil, ErrNotOwner
}

// MarkAllAsRead flags every unread notification of a user and returns how
// many changed
func (r *Repository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return tag.RowsAffected(), nil
}
