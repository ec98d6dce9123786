package escrow

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

const holdColumns = `id, job_id, employer_id, worker_id, total_amount_usd, platform_fee_usd, insurance_fee_usd,
	worker_amount_usd, status, description, payment_transaction_id, release_transaction_id,
	cooling_period_days, hold_until, has_complaint, complaint_description, complaint_filed_by,
	complaint_filed_at, resolution, resolution_notes, resolved_by, resolved_at, released_at,
	created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func insertHold(ctx context.Context, q sqlx.ExtContext, h *Hold) error {
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO escrow_holds (
			id, job_id, employer_id, worker_id, total_amount_usd, platform_fee_usd, insurance_fee_usd,
			worker_amount_usd, status, description, payment_transaction_id, cooling_period_days,
			hold_until, created_at, updated_at
		) VALUES (
			:id, :job_id, :employer_id, :worker_id, :total_amount_usd, :platform_fee_usd, :insurance_fee_usd,
			:worker_amount_usd, :status, :description, :payment_transaction_id, :cooling_period_days,
			:hold_until, :created_at, :updated_at
		)`, h)
	if err != nil {
		return fmt.Errorf("insert escrow hold: %w", err)
	}
	return nil
}

func getHold(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, forUpdate bool) (*Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM escrow_holds WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var h Hold
	if err := sqlx.GetContext(ctx, q, &h, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("get escrow hold: %w", err)
	}
	return &h, nil
}

// saveOutcome persists the mutable columns of a locked hold.
func saveOutcome(ctx context.Context, q sqlx.ExtContext, h *Hold) error {
	h.UpdatedAt = time.Now().UTC()
	_, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE escrow_holds SET
			status = :status,
			release_transaction_id = :release_transaction_id,
			has_complaint = :has_complaint,
			complaint_description = :complaint_description,
			complaint_filed_by = :complaint_filed_by,
			complaint_filed_at = :complaint_filed_at,
			resolution = :resolution,
			resolution_notes = :resolution_notes,
			resolved_by = :resolved_by,
			resolved_at = :resolved_at,
			released_at = :released_at,
			updated_at = :updated_at
		WHERE id = :id`, h)
	if err != nil {
		return fmt.Errorf("update escrow hold: %w", err)
	}
	return nil
}

// bookingWindow is the part of a booking that decides when complaints may
// be filed against its escrow.
type bookingWindow struct {
	StartDate         time.Time  `db:"start_date"`
	EndDate           time.Time  `db:"end_date"`
	Status            string     `db:"status"`
	WorkerCompletedAt *time.Time `db:"worker_completed_at"`
}

func getBookingWindow(ctx context.Context, q sqlx.ExtContext, bookingID uuid.UUID) (*bookingWindow, error) {
	var b bookingWindow
	err := sqlx.GetContext(ctx, q, &b, `
		SELECT start_date, end_date, status, worker_completed_at
		FROM bookings WHERE id = $1
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking window: %w", err)
	}
	return &b, nil
}

// markBookingDisputed flags the booking paid by a disputed hold. Job ids that
// are not bookings match no row.
func markBookingDisputed(ctx context.Context, q sqlx.ExtContext, bookingID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		UPDATE bookings SET status = 'disputed', updated_at = now()
		WHERE id = $1 AND status IN ('worker_confirmed', 'in_progress', 'worker_completed')
	`, bookingID)
	if err != nil {
		return fmt.Errorf("mark booking disputed: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return getHold(ctx, r.db, id, false)
}

// DueIDs returns held escrows without complaint whose cooling period ended.
func (r *Repository) DueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM escrow_holds
		WHERE status = 'held' AND has_complaint = FALSE AND hold_until <= $1
		ORDER BY hold_until
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due escrows: %w", err)
	}
	return ids, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Hold, int, error) {
	f.normalize()

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.EmployerID != nil {
		add("employer_id = ?", *f.EmployerID)
	}
	if f.WorkerID != nil {
		add("worker_id = ?", *f.WorkerID)
	}
	if f.PartyID != nil {
		add("(employer_id = ? OR worker_id = ?)", *f.PartyID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY(?)", pq.Array(statuses))
	}
	if f.HasComplaint != nil {
		add("has_complaint = ?", *f.HasComplaint)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM escrow_holds`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count escrows: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM escrow_holds%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		holdColumns, clause, len(args)+1, len(args)+2)
	items := []Hold{}
	if err := r.db.SelectContext(ctx, &items, query, append(args, f.Limit, (f.Page-1)*f.Limit)...); err != nil {
		return nil, 0, fmt.Errorf("list escrows: %w", err)
	}
	return items, total, nil
}
