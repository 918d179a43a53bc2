package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const messageColumns = `
	id, sender_id, receiver_id, ride_id, type, content,
	is_read, read_at, created_at, updated_at`

// pq error code for foreign_key_violation
const fkViolation = "23503"

// Repository stores chat messages. It runs on database/sql with the lib/pq
// driver.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a message repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.RideID,
		&m.Type,
		&m.Content,
		&m.IsRead,
		&m.ReadAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetRideParties loads who is on a ride and where it stands
func (r *Repository) GetRideParties(ctx context.Context, rideID uuid.UUID) (*RideParties, error) {
	query := `SELECT id, passenger_id, driver_id, status FROM rides WHERE id = $1`

	p := &RideParties{}
	err := r.db.QueryRowContext(ctx, query, rideID).Scan(&p.RideID, &p.PassengerID, &p.DriverID, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride parties: %w", err)
	}
	return p, nil
}

// CreateMessage inserts m and fills in the server-side columns
func (r *Repository) CreateMessage(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, ride_id, type, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING is_read, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.RideID,
		m.Type,
		m.Content,
	).Scan(&m.IsRead, &m.CreatedAt, &m.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
		return ErrUnknownParty
	}
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Conversation returns the messages exchanged by two users, oldest first.
// A non-nil rideID limits them to that ride.
func (r *Repository) Conversation(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND ($3::uuid IS NULL OR ride_id = $3::uuid)
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, otherID, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return messages, nil
}

// CountUnread counts messages addressed to userID that are unread
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkAsRead flags a message read on behalf of its receiver
func (r *Repository) MarkAsRead(ctx context.Context, id, receiverID uuid.UUID) (*models.Message, error) {
	query := `
		UPDATE messages
		SET is_read = TRUE, read_at = COALESCE(read_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND receiver_id = $2
		RETURNING ` + messageColumns

	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id, receiverID))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark message as read: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up message: %w", err)
	}
	if !exists {
		return nil, ErrMessageNotFound
	}
	return nil, ErrNotReceiver
}

// Ping checks the database connection. Used by readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
