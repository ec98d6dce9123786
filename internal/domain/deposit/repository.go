package deposit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskhub/taskhub-api/internal/domain/wallet"
)

const depositColumns = `id, user_id, amount_usd, amount_vnd, transfer_content, qr_code_url, bank_name,
	bank_account, status, expires_at, webhook_received, webhook_data, reference_code,
	bank_transaction_id, transaction_id, needs_review, failure_reason, verified_at, completed_at,
	created_at, updated_at`

const paypalOrderTTL = 24 * time.Hour

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) Create(ctx context.Context, d *BankDeposit) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO bank_deposits (
			id, user_id, amount_usd, amount_vnd, transfer_content, qr_code_url, bank_name,
			bank_account, status, expires_at, created_at, updated_at
		) VALUES (
			:id, :user_id, :amount_usd, :amount_vnd, :transfer_content, :qr_code_url, :bank_name,
			:bank_account, :status, :expires_at, :created_at, :updated_at
		)`, d)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*BankDeposit, error) {
	var d BankDeposit
	err := r.db.GetContext(ctx, &d, `SELECT `+depositColumns+` FROM bank_deposits WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// lockByContent returns the deposit for a transfer memo, holding its row
// lock. A nil deposit means no request carries that memo.
func lockByContent(ctx context.Context, q sqlx.ExtContext, content string) (*BankDeposit, error) {
	var d BankDeposit
	err := sqlx.GetContext(ctx, q, &d, `
		SELECT `+depositColumns+` FROM bank_deposits
		WHERE transfer_content = $1
		FOR UPDATE`, content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock deposit: %w", err)
	}
	return &d, nil
}

func markCompleted(ctx context.Context, q sqlx.ExtContext, d *BankDeposit) error {
	_, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE bank_deposits SET
			status = :status,
			webhook_received = TRUE,
			webhook_data = :webhook_data,
			reference_code = :reference_code,
			bank_transaction_id = :bank_transaction_id,
			transaction_id = :transaction_id,
			needs_review = :needs_review,
			failure_reason = NULL,
			verified_at = :verified_at,
			completed_at = :completed_at,
			updated_at = now()
		WHERE id = :id`, d)
	if err != nil {
		return fmt.Errorf("complete deposit: %w", err)
	}
	return nil
}

// MarkFailed records a failed credit attempt. It never touches a deposit that
// was completed meanwhile.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bank_deposits SET
			status = 'failed',
			failure_reason = $2,
			webhook_received = TRUE,
			webhook_data = COALESCE($3::jsonb, webhook_data),
			updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'verifying')`, id, reason, nullJSON(payload))
	return err
}

// Expire moves one pending deposit past its deadline to expired.
func (r *Repository) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bank_deposits SET status = 'expired', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2`, id, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *Repository) ExpireBankDeposits(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bank_deposits SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CancelAbandonedOrders cancels PayPal deposit transactions that were never
// captured.
func (r *Repository) CancelAbandonedOrders(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = 'cancelled', updated_at = now()
		WHERE type = $1 AND payment_method = $2 AND status = 'pending' AND created_at < $3`,
		wallet.TypeDeposit, wallet.MethodPayPal, now.Add(-paypalOrderTTL))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// findOrder returns the deposit transaction created for a PayPal order.
func findOrder(ctx context.Context, q sqlx.ExtContext, orderID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := sqlx.GetContext(ctx, q, &id, `
		SELECT id FROM transactions
		WHERE type = $1 AND payment_method = $2 AND payment_gateway_id = $3`,
		wallet.TypeDeposit, wallet.MethodPayPal, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrOrderNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find paypal order: %w", err)
	}
	return id, nil
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
