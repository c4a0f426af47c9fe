package appointments

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelcraft/concierge/internal/availability"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists appointments in Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithDB allows injecting mocks for tests.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const appointmentColumns = `id, business_id, date, start_time, end_time, duration_mins,
	customer_name, customer_email, customer_phone, status, cancelled_at, cancel_reason, created_at`

// Get returns an appointment scoped to the business.
func (s *PostgresStore) Get(ctx context.Context, businessID, id string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
	`, id, businessID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

// ListForDate returns all appointments for a date in start-time order,
// every status included.
func (s *PostgresStore) ListForDate(ctx context.Context, businessID, date string) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND date = $2
		ORDER BY start_time
	`, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate failed: %w", err)
	}
	return out, nil
}

// Create books the slot inside a transaction holding an advisory lock per
// (business, date). The conflict check and insert are atomic, which is the
// sole guard against double booking: displayed slots may go stale, the
// write never does.
func (s *PostgresStore) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start, _ := availability.ParseClock(req.StartTime)
	end, _ := availability.ParseClock(req.EndTime)
	date, _ := time.Parse(availability.DateFormat, req.Date)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(req.BusinessID, req.Date)); err != nil {
		return nil, fmt.Errorf("appointments: advisory lock failed: %w", err)
	}

	busy, err := confirmedIntervals(ctx, tx, req.BusinessID, req.Date)
	if err != nil {
		return nil, err
	}
	for _, b := range busy {
		if availability.Overlaps(b[0], b[1], start, end, req.BufferMins) {
			return nil, ErrSlotConflict
		}
	}

	blocks, err := blocksForDate(ctx, tx, req.BusinessID, req.Date)
	if err != nil {
		return nil, err
	}
	if availability.ConflictsWithBlocks(blocks, date, start, end) {
		return nil, ErrSlotConflict
	}

	id := uuid.New()
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, business_id, date, start_time, end_time, duration_mins,
			 customer_name, customer_email, customer_phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'confirmed')
		RETURNING created_at
	`, id, req.BusinessID, req.Date, req.StartTime, req.EndTime, end-start,
		req.Customer.Name, req.Customer.Email, req.Customer.Phone,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit failed: %w", err)
	}

	return &Appointment{
		ID:           id.String(),
		BusinessID:   req.BusinessID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		DurationMins: end - start,
		Customer:     req.Customer,
		Status:       StatusConfirmed,
		CreatedAt:    createdAt,
	}, nil
}

// Cancel transitions a confirmed appointment to cancelled; the row stays
// for the audit trail.
func (s *PostgresStore) Cancel(ctx context.Context, businessID, id, reason string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = now(), cancel_reason = $3
		WHERE id = $1 AND business_id = $2 AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, id, businessID, reason)
	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: cancel failed: %w", err)
	}

	// Distinguish a missing row from a terminal status.
	var status Status
	err = s.db.QueryRow(ctx, `
		SELECT status FROM appointments WHERE id = $1 AND business_id = $2
	`, id, businessID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: status lookup failed: %w", err)
	}
	return nil, ErrInvalidTransition
}

func confirmedIntervals(ctx context.Context, tx pgx.Tx, businessID, date string) ([][2]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE business_id = $1 AND date = $2 AND status = 'confirmed'
	`, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: confirmed lookup failed: %w", err)
	}
	defer rows.Close()

	var out [][2]int
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, fmt.Errorf("appointments: confirmed scan failed: %w", err)
		}
		start, err := availability.ParseClock(startStr)
		if err != nil {
			continue
		}
		end, err := availability.ParseClock(endStr)
		if err != nil {
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out, rows.Err()
}

func blocksForDate(ctx context.Context, tx pgx.Tx, businessID, date string) ([]availability.Block, error) {
	rows, err := tx.Query(ctx, `
		SELECT date, start_time, end_time, is_recurring, recurring_days
		FROM blocked_slots
		WHERE business_id = $1 AND (date = $2 OR is_recurring)
	`, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: blocked lookup failed: %w", err)
	}
	defer rows.Close()

	var out []availability.Block
	for rows.Next() {
		var (
			blockDate  pgtype.Text
			startTime  pgtype.Text
			endTime    pgtype.Text
			recurring  bool
			recurDays  []int32
		)
		if err := rows.Scan(&blockDate, &startTime, &endTime, &recurring, &recurDays); err != nil {
			return nil, fmt.Errorf("appointments: blocked scan failed: %w", err)
		}
		block := availability.Block{
			Date:      blockDate.String,
			Start:     startTime.String,
			End:       endTime.String,
			Recurring: recurring,
		}
		for _, d := range recurDays {
			block.RecurringDays = append(block.RecurringDays, int(d))
		}
		out = append(out, block)
	}
	return out, rows.Err()
}

// slotLockKey hashes (businessID, date) into the advisory lock keyspace.
func slotLockKey(businessID, date string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(businessID))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(date))
	return int64(h.Sum64())
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt        Appointment
		phone       pgtype.Text
		cancelledAt pgtype.Timestamptz
		reason      pgtype.Text
	)
	err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.Date,
		&appt.StartTime,
		&appt.EndTime,
		&appt.DurationMins,
		&appt.Customer.Name,
		&appt.Customer.Email,
		&phone,
		&appt.Status,
		&cancelledAt,
		&reason,
		&appt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Customer.Phone = phone.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		appt.CancelledAt = &t
	}
	appt.CancelReason = reason.String
	return &appt, nil
}

var _ Store = (*PostgresStore)(nil)
