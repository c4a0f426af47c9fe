package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelcraft/concierge/internal/availability"
)

// DB is the subset of pgxpool.Pool the stores use. pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSettingsStore persists appointment settings in Postgres.
type PostgresSettingsStore struct {
	db DB
}

// NewPostgresSettingsStore initializes a store backed by pgxpool.
func NewPostgresSettingsStore(pool *pgxpool.Pool) *PostgresSettingsStore {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresSettingsStore{db: pool}
}

// NewPostgresSettingsStoreWithDB allows injecting mocks for tests.
func NewPostgresSettingsStoreWithDB(db DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

// Get loads the settings row for a business.
func (s *PostgresSettingsStore) Get(ctx context.Context, businessID string) (*availability.Settings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT business_id, timezone, available_days, start_hour, end_hour,
		       default_duration_mins, buffer_mins, min_advance_hours, max_advance_days
		FROM appointment_settings
		WHERE business_id = $1
	`, businessID)

	var (
		settings availability.Settings
		days     []int32
	)
	err := row.Scan(
		&settings.BusinessID,
		&settings.Timezone,
		&days,
		&settings.StartHour,
		&settings.EndHour,
		&settings.DurationMins,
		&settings.BufferMins,
		&settings.MinAdvanceHours,
		&settings.MaxAdvanceDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("schedule: settings select failed: %w", err)
	}
	for _, d := range days {
		settings.AvailableDays = append(settings.AvailableDays, int(d))
	}
	return &settings, nil
}

// Upsert validates and writes the settings row.
func (s *PostgresSettingsStore) Upsert(ctx context.Context, settings availability.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	days := make([]int32, 0, len(settings.AvailableDays))
	for _, d := range settings.AvailableDays {
		days = append(days, int32(d))
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointment_settings
			(business_id, timezone, available_days, start_hour, end_hour,
			 default_duration_mins, buffer_mins, min_advance_hours, max_advance_days, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (business_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			available_days = EXCLUDED.available_days,
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			default_duration_mins = EXCLUDED.default_duration_mins,
			buffer_mins = EXCLUDED.buffer_mins,
			min_advance_hours = EXCLUDED.min_advance_hours,
			max_advance_days = EXCLUDED.max_advance_days,
			updated_at = now()
	`, settings.BusinessID, settings.Timezone, days, settings.StartHour, settings.EndHour,
		settings.DurationMins, settings.BufferMins, settings.MinAdvanceHours, settings.MaxAdvanceDays)
	if err != nil {
		return fmt.Errorf("schedule: settings upsert failed: %w", err)
	}
	return nil
}

// PostgresBlockedSlotStore persists blocked slots in Postgres.
type PostgresBlockedSlotStore struct {
	db DB
}

// NewPostgresBlockedSlotStore initializes a store backed by pgxpool.
func NewPostgresBlockedSlotStore(pool *pgxpool.Pool) *PostgresBlockedSlotStore {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresBlockedSlotStore{db: pool}
}

// NewPostgresBlockedSlotStoreWithDB allows injecting mocks for tests.
func NewPostgresBlockedSlotStoreWithDB(db DB) *PostgresBlockedSlotStore {
	return &PostgresBlockedSlotStore{db: db}
}

// List returns every block for the business, dated ones first.
func (s *PostgresBlockedSlotStore) List(ctx context.Context, businessID string) ([]BlockedSlot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, business_id, date, start_time, end_time, is_recurring, recurring_days, reason, created_at
		FROM blocked_slots
		WHERE business_id = $1
		ORDER BY is_recurring, date, start_time
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("schedule: blocked list failed: %w", err)
	}
	defer rows.Close()

	var out []BlockedSlot
	for rows.Next() {
		var (
			slot   BlockedSlot
			date   pgtype.Text
			start  pgtype.Text
			end    pgtype.Text
			reason pgtype.Text
			days   []int32
		)
		if err := rows.Scan(&slot.ID, &slot.BusinessID, &date, &start, &end,
			&slot.Recurring, &days, &reason, &slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedule: blocked scan failed: %w", err)
		}
		slot.Date = date.String
		slot.StartTime = start.String
		slot.EndTime = end.String
		slot.Reason = reason.String
		for _, d := range days {
			slot.RecurringDays = append(slot.RecurringDays, int(d))
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// Create validates and inserts a new block.
func (s *PostgresBlockedSlotStore) Create(ctx context.Context, slot *BlockedSlot) (*BlockedSlot, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	created := *slot
	created.ID = uuid.New().String()
	days := make([]int32, 0, len(slot.RecurringDays))
	for _, d := range slot.RecurringDays {
		days = append(days, int32(d))
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO blocked_slots
			(id, business_id, date, start_time, end_time, is_recurring, recurring_days, reason)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		RETURNING created_at
	`, created.ID, slot.BusinessID, slot.Date, slot.StartTime, slot.EndTime,
		slot.Recurring, days, slot.Reason,
	).Scan(&created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("schedule: blocked insert failed: %w", err)
	}
	return &created, nil
}

// Delete removes a block.
func (s *PostgresBlockedSlotStore) Delete(ctx context.Context, businessID, id string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM blocked_slots WHERE id = $1 AND business_id = $2
	`, id, businessID)
	if err != nil {
		return fmt.Errorf("schedule: blocked delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedSlotNotFound
	}
	return nil
}

var (
	_ SettingsStore    = (*PostgresSettingsStore)(nil)
	_ BlockedSlotStore = (*PostgresBlockedSlotStore)(nil)
)
