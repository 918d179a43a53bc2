package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/alatoul/ride-hailing/pkg/database"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/jackc/pgx/v5"
)

const settingsColumns = `
	id::text, key, platform_fee_percent, minimum_fare, base_rate_per_mile,
	base_rate_per_minute, platform_name, support_email, support_phone,
	timezone, default_language, created_at, updated_at`

// Repository handles database operations for platform settings
type Repository struct {
	db database.DB
}

// NewRepository creates a new settings repository
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreate returns the row for defaults.Key, inserting defaults first
// when it does not exist yet. Concurrent first reads converge on one row.
func (r *Repository) GetOrCreate(ctx context.Context, defaults models.Settings) (*models.Settings, error) {
	s, err := r.get(ctx, defaults.Key)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	insert := `
		INSERT INTO settings (
			key, platform_fee_percent, minimum_fare, base_rate_per_mile,
			base_rate_per_minute, platform_name, support_email, support_phone,
			timezone, default_language
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert,
		defaults.Key,
		defaults.PlatformFeePercent,
		defaults.MinimumFare,
		defaults.BaseRatePerMile,
		defaults.BaseRatePerMinute,
		defaults.PlatformName,
		defaults.SupportEmail,
		defaults.SupportPhone,
		defaults.Timezone,
		defaults.DefaultLanguage,
	); err != nil {
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}

	s, err = r.get(ctx, defaults.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

func (r *Repository) get(ctx context.Context, key string) (*models.Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM settings WHERE key = $1`

	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{key}, scanSettings)
}

func scanSettings(row pgx.Row) (*models.Settings, error) {
	s := &models.Settings{}
	err := row.Scan(
		&s.ID,
		&s.Key,
		&s.PlatformFeePercent,
		&s.MinimumFare,
		&s.BaseRatePerMile,
		&s.BaseRatePerMinute,
		&s.PlatformName,
		&s.SupportEmail,
		&s.SupportPhone,
		&s.Timezone,
		&s.DefaultLanguage,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update applies a read-modify-write to the settings row under a row lock,
// so concurrent partial updates never drop each other's fields.
func (r *Repository) Update(ctx context.Context, defaults models.Settings, apply func(*models.Settings)) (*models.Settings, error) {
	if _, err := r.GetOrCreate(ctx, defaults); err != nil {
		return nil, err
	}

	selectQuery := `SELECT ` + settingsColumns + ` FROM settings WHERE key = $1 FOR UPDATE`
	updateQuery := `
		UPDATE settings
		SET platform_fee_percent = $2, minimum_fare = $3, base_rate_per_mile = $4,
			base_rate_per_minute = $5, platform_name = $6, support_email = $7,
			support_phone = $8, timezone = $9, default_language = $10,
			updated_at = NOW()
		WHERE key = $1
		RETURNING updated_at
	`

	var updated *models.Settings
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		s, err := scanSettings(tx.QueryRow(ctx, selectQuery, defaults.Key))
		if err != nil {
			return err
		}
		apply(s)

		if err := tx.QueryRow(ctx, updateQuery,
			s.Key,
			s.PlatformFeePercent,
			s.MinimumFare,
			s.BaseRatePerMile,
			s.BaseRatePerMinute,
			s.PlatformName,
			s.SupportEmail,
			s.SupportPhone,
			s.Timezone,
			s.DefaultLanguage,
		).Scan(&s.UpdatedAt); err != nil {
			return err
		}
		updated = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return updated, nil
}
