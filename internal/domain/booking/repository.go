package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `id, client_id, worker_id, worker_service_id, booking_type, start_date, end_date,
	duration_hours, hourly_rate_usd, total_price_usd, status, escrow_id, payment_transaction_id, notes,
	decline_reason, cancellation_reason, cancelled_by, confirmed_at, started_at, worker_completed_at,
	client_completed_at, created_at, updated_at`

const serviceColumns = `id, worker_id, title, hourly_rate_usd, daily_discount_percent,
	weekly_discount_percent, monthly_discount_percent, is_active, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateService(ctx context.Context, ws *WorkerService) error {
	ws.CreatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO worker_services (
			id, worker_id, title, hourly_rate_usd, daily_discount_percent,
			weekly_discount_percent, monthly_discount_percent, is_active, created_at
		) VALUES (
			:id, :worker_id, :title, :hourly_rate_usd, :daily_discount_percent,
			:weekly_discount_percent, :monthly_discount_percent, :is_active, :created_at
		)`, ws)
	return err
}

func (r *Repository) GetService(ctx context.Context, id uuid.UUID) (*WorkerService, error) {
	var ws WorkerService
	err := r.db.GetContext(ctx, &ws, `SELECT `+serviceColumns+` FROM worker_services WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListServices returns the active services of a worker.
func (r *Repository) ListServices(ctx context.Context, workerID uuid.UUID) ([]WorkerService, error) {
	items := []WorkerService{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+serviceColumns+` FROM worker_services
		WHERE worker_id = $1 AND is_active = TRUE
		ORDER BY created_at`, workerID)
	return items, err
}

func (r *Repository) Create(ctx context.Context, b *Booking) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO bookings (
			id, client_id, worker_id, worker_service_id, booking_type, start_date, end_date,
			duration_hours, hourly_rate_usd, total_price_usd, status, notes, created_at, updated_at
		) VALUES (
			:id, :client_id, :worker_id, :worker_service_id, :booking_type, :start_date, :end_date,
			:duration_hours, :hourly_rate_usd, :total_price_usd, :status, :notes, :created_at, :updated_at
		)`, b)
	return err
}

func getBooking(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, forUpdate bool) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var b Booking
	if err := sqlx.GetContext(ctx, q, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// saveState writes the mutable part of a booking after a transition.
func saveState(ctx context.Context, q sqlx.ExtContext, b *Booking) error {
	b.UpdatedAt = time.Now().UTC()
	_, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE bookings SET
			status = :status,
			escrow_id = :escrow_id,
			payment_transaction_id = :payment_transaction_id,
			decline_reason = :decline_reason,
			cancellation_reason = :cancellation_reason,
			cancelled_by = :cancelled_by,
			confirmed_at = :confirmed_at,
			started_at = :started_at,
			worker_completed_at = :worker_completed_at,
			client_completed_at = :client_completed_at,
			updated_at = :updated_at
		WHERE id = :id`, b)
	if err != nil {
		return fmt.Errorf("save booking: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return getBooking(ctx, r.db, id, false)
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Booking, int, error) {
	f.normalize()

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.ClientID != nil {
		add("client_id = ?", *f.ClientID)
	}
	if f.WorkerID != nil {
		add("worker_id = ?", *f.WorkerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY(?)", pq.Array(statuses))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("booking_type = ANY(?)", pq.Array(types))
	}
	if f.DateFrom != nil {
		add("start_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("start_date <= ?", *f.DateTo)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, clause, len(args)+1, len(args)+2)
	items := []Booking{}
	if err := r.db.SelectContext(ctx, &items, query, append(args, f.Limit, (f.Page-1)*f.Limit)...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return items, total, nil
}
