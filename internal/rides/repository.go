package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alatoul/ride-hailing/pkg/database"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const rideColumns = `
	id, passenger_id, driver_id, type, status,
	pickup_location, pickup_latitude, pickup_longitude,
	destination, destination_latitude, destination_longitude,
	proposed_fare, accepted_fare, final_fare, distance, estimated_duration,
	passengers, scheduled_date::text, scheduled_time,
	started_at, completed_at, cancelled_at, cancellation_reason,
	created_at, updated_at`

// Repository handles database operations for rides
type Repository struct {
	db database.Querier
}

// NewRepository creates a new rides repository
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// scanRide reads rideColumns followed by any extra destinations.
func scanRide(row pgx.Row, extra ...interface{}) (*models.Ride, error) {
	ride := &models.Ride{}
	dest := []interface{}{
		&ride.ID,
		&ride.PassengerID,
		&ride.DriverID,
		&ride.Type,
		&ride.Status,
		&ride.PickupLocation,
		&ride.PickupLatitude,
		&ride.PickupLongitude,
		&ride.Destination,
		&ride.DestinationLatitude,
		&ride.DestinationLongitude,
		&ride.ProposedFare,
		&ride.AcceptedFare,
		&ride.FinalFare,
		&ride.Distance,
		&ride.EstimatedDuration,
		&ride.Passengers,
		&ride.ScheduledDate,
		&ride.ScheduledTime,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.CancellationReason,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return ride, nil
}

func scanRides(rows pgx.Rows) ([]*models.Ride, error) {
	rides := make([]*models.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Create inserts a new ride and fills its generated fields
func (r *Repository) Create(ctx context.Context, ride *models.Ride) error {
	query := `
		INSERT INTO rides (
			id, passenger_id, type, status,
			pickup_location, pickup_latitude, pickup_longitude,
			destination, destination_latitude, destination_longitude,
			proposed_fare, distance, estimated_duration, passengers,
			scheduled_date, scheduled_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::date, $16)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.PassengerID,
		ride.Type,
		ride.Status,
		ride.PickupLocation,
		ride.PickupLatitude,
		ride.PickupLongitude,
		ride.Destination,
		ride.DestinationLatitude,
		ride.DestinationLongitude,
		ride.ProposedFare,
		ride.Distance,
		ride.EstimatedDuration,
		ride.Passengers,
		ride.ScheduledDate,
		ride.ScheduledTime,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

// GetByID retrieves a ride by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := database.RetryableQueryRow(ctx, r.db, query, []interface{}{id}, func(row pgx.Row) (*models.Ride, error) {
		return scanRide(row)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

// Accept assigns driverID and sets the accepted fare in one conditional
// write. A pending ride takes counterOffer or the proposed fare. A ride
// already accepted by driverID only changes when counterOffer is set, and
// changed reports whether the row was modified. Any other state matches no
// row and yields ErrAcceptRejected.
func (r *Repository) Accept(ctx context.Context, rideID, driverID uuid.UUID, counterOffer *float64) (*models.Ride, bool, error) {
	query := `
		UPDATE rides
		SET driver_id = COALESCE(driver_id, $2),
			accepted_fare = CASE
				WHEN status = 'pending' THEN COALESCE($3::numeric, proposed_fare)
				ELSE COALESCE($3::numeric, accepted_fare)
			END,
			updated_at = CASE
				WHEN status = 'pending' OR $3::numeric IS NOT NULL THEN NOW()
				ELSE updated_at
			END,
			status = 'accepted'
		WHERE id = $1
			AND (status = 'pending' OR (status = 'accepted' AND driver_id = $2))
		RETURNING ` + rideColumns + `, updated_at = NOW()`

	var changed bool
	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID, driverID, counterOffer), &changed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, ErrAcceptRejected
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to accept ride: %w", err)
	}
	return ride, changed, nil
}

// Save writes the mutable lifecycle fields of ride, guarded by the status
// the caller read. A concurrent change yields ErrStatusConflict.
func (r *Repository) Save(ctx context.Context, ride *models.Ride, expected models.RideStatus) error {
	query := `
		UPDATE rides
		SET status = $2, accepted_fare = $3, final_fare = $4, distance = $5,
			estimated_duration = $6, started_at = $7, completed_at = $8,
			cancelled_at = $9, cancellation_reason = $10, updated_at = NOW()
		WHERE id = $1 AND status = $11
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.Status,
		ride.AcceptedFare,
		ride.FinalFare,
		ride.Distance,
		ride.EstimatedDuration,
		ride.StartedAt,
		ride.CompletedAt,
		ride.CancelledAt,
		ride.CancellationReason,
		expected,
	).Scan(&ride.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStatusConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save ride: %w", err)
	}
	return nil
}

// List returns a page of rides matching filter, newest first, and the
// total number of matches.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*models.Ride, int64, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.PassengerID != nil {
		args = append(args, *filter.PassengerID)
		conditions = append(conditions, fmt.Sprintf("passenger_id = $%d", len(args)))
	}
	if filter.DriverID != nil {
		args = append(args, *filter.DriverID)
		conditions = append(conditions, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	total, err := database.RetryableQueryRow(ctx, r.db, `SELECT COUNT(*) FROM rides`+where, args, func(row pgx.Row) (int64, error) {
		var n int64
		err := row.Scan(&n)
		return n, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM rides%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		rideColumns, where, len(args)+1, len(args)+2)

	rides, err := database.RetryableQuery(ctx, r.db, query, pageArgs, scanRides)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	return rides, total, nil
}

// ListPending returns every pending ride, newest first
func (r *Repository) ListPending(ctx context.Context) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = 'pending' ORDER BY created_at DESC`

	rides, err := database.RetryableQuery(ctx, r.db, query, nil, scanRides)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending rides: %w", err)
	}
	return rides, nil
}

// Statistics counts rides. The total is scoped to passengerID when given;
// the per-status counts are platform wide.
func (r *Repository) Statistics(ctx context.Context, passengerID *uuid.UUID) (*models.RideStatistics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE $1::uuid IS NULL OR passenger_id = $1::uuid),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress')
		FROM rides
	`

	stats, err := database.RetryableQueryRow(ctx, r.db, query, []interface{}{passengerID}, func(row pgx.Row) (*models.RideStatistics, error) {
		s := &models.RideStatistics{}
		if err := row.Scan(&s.TotalRides, &s.CompletedRides, &s.PendingRides, &s.InProgressRides); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ride statistics: %w", err)
	}
	return stats, nil
}

// Delete removes a ride and reports whether it existed
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM rides WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ride: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetUserByID reads the account fields shown to the other party of a ride
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, name, role, created_at FROM users WHERE id = $1`

	user, err := database.RetryableQueryRow(ctx, r.db, query, []interface{}{id}, func(row pgx.Row) (*models.User, error) {
		u := &models.User{}
		if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
