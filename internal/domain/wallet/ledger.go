package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// The helpers in this file take a sqlx.ExtContext so that escrow, deposit and
// withdrawal flows can combine several ledger writes in one database
// transaction. Balances are only ever changed by ApplyDelta.

const walletColumns = `id, user_id, balance_usd, pending_usd, total_earned_usd, total_spent_usd,
	currency, status, created_at, updated_at`

const transactionColumns = `id, user_id, type, amount_usd, status, payment_method, payment_gateway_id,
	balance_before, balance_after, escrow_id, job_id, related_user_id, description, metadata,
	created_at, updated_at, completed_at, failed_at`

// Delta is a signed change applied to a wallet's counters.
type Delta struct {
	Balance decimal.Decimal
	Pending decimal.Decimal
	Earned  decimal.Decimal
	Spent   decimal.Decimal
}

func (d Delta) debits() bool {
	return d.Balance.IsNegative() || d.Pending.IsNegative()
}

func (d Delta) wholeCents() bool {
	return WholeCents(d.Balance) && WholeCents(d.Pending) && WholeCents(d.Earned) && WholeCents(d.Spent)
}

// WholeCents reports whether amount is stored exactly by a NUMERIC(14,2)
// column. Postgres would round anything finer on each write.
func WholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}

// EnsureWallet creates an empty wallet for the user if none exists.
func EnsureWallet(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// LockWallet returns the user's wallet holding a row lock until the
// surrounding transaction ends.
func LockWallet(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (*Wallet, error) {
	if err := EnsureWallet(ctx, q, userID); err != nil {
		return nil, err
	}
	var w Wallet
	err := sqlx.GetContext(ctx, q, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &w, nil
}

// ApplyDelta changes the wallet counters in a single conditional UPDATE.
// Balance and pending never go negative; any debit requires an active wallet.
func ApplyDelta(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, d Delta) (*Wallet, error) {
	if !d.wholeCents() {
		return nil, ErrSubCentAmount
	}
	var w Wallet
	err := sqlx.GetContext(ctx, q, &w, `
		UPDATE wallets SET
			balance_usd = balance_usd + $2,
			pending_usd = pending_usd + $3,
			total_earned_usd = total_earned_usd + $4,
			total_spent_usd = total_spent_usd + $5,
			updated_at = now()
		WHERE user_id = $1
			AND balance_usd + $2 >= 0
			AND pending_usd + $3 >= 0
			AND ($6 = FALSE OR status = 'active')
		RETURNING `+walletColumns,
		userID, d.Balance, d.Pending, d.Earned, d.Spent, d.debits())
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("apply wallet delta: %w", err)
	}

	var status Status
	err = sqlx.GetContext(ctx, q, &status, `SELECT status FROM wallets WHERE user_id = $1`, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrWalletNotFound
	case err != nil:
		return nil, fmt.Errorf("read wallet status: %w", err)
	case status != StatusActive && d.debits():
		return nil, ErrWalletFrozen
	default:
		return nil, ErrInsufficientBalance
	}
}

// InsertTransaction writes a ledger entry. Zero ID, timestamps and metadata
// are filled in.
func InsertTransaction(ctx context.Context, q sqlx.ExtContext, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if len(t.Metadata) == 0 {
		t.Metadata = types.JSONText(`{}`)
	}
	if t.Status == TxCompleted && t.CompletedAt == nil {
		t.CompletedAt = &now
	}

	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO transactions (
			id, user_id, type, amount_usd, status, payment_method, payment_gateway_id,
			balance_before, balance_after, escrow_id, job_id, related_user_id, description, metadata,
			created_at, updated_at, completed_at, failed_at
		) VALUES (
			:id, :user_id, :type, :amount_usd, :status, :payment_method, :payment_gateway_id,
			:balance_before, :balance_after, :escrow_id, :job_id, :related_user_id, :description, :metadata,
			:created_at, :updated_at, :completed_at, :failed_at
		)`, t)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction loads a transaction, optionally locking the row.
func GetTransaction(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, forUpdate bool) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var t Transaction
	if err := sqlx.GetContext(ctx, q, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// Mark describes a status change. Metadata keys are merged into the existing
// metadata object.
type Mark struct {
	Status    TransactionStatus
	GatewayID string
	Metadata  map[string]interface{}
}

// MarkTransaction moves a transaction forward. Final transactions and
// backward moves are rejected with ErrTransactionFinal.
func MarkTransaction(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, m Mark) (*Transaction, error) {
	meta, err := json.Marshal(metadataOrEmpty(m.Metadata))
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}

	var from []string
	for _, s := range []TransactionStatus{TxPending, TxProcessing} {
		if s.rank() < m.Status.rank() {
			from = append(from, string(s))
		}
	}

	var t Transaction
	err = sqlx.GetContext(ctx, q, &t, `
		UPDATE transactions SET
			status = $2,
			payment_gateway_id = COALESCE(NULLIF($3, ''), payment_gateway_id),
			metadata = metadata || $4::jsonb,
			completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
			failed_at = CASE WHEN $2 = 'failed' THEN now() ELSE failed_at END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+transactionColumns,
		id, string(m.Status), m.GatewayID, string(meta), pq.Array(from))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := GetTransaction(ctx, q, id, false); getErr != nil {
			return nil, getErr
		}
		return nil, ErrTransactionFinal
	}
	if err != nil {
		return nil, fmt.Errorf("mark transaction: %w", err)
	}
	return &t, nil
}

// AnnotateTransaction merges metadata without touching the status. It is
// the only write allowed on a final transaction.
func AnnotateTransaction(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, metadata map[string]interface{}) error {
	meta, err := json.Marshal(metadataOrEmpty(metadata))
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE transactions SET metadata = metadata || $2::jsonb, updated_at = now()
		WHERE id = $1
	`, id, string(meta))
	if err != nil {
		return fmt.Errorf("annotate transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// MetadataJSON encodes a metadata map for a new Transaction.
func MetadataJSON(m map[string]interface{}) types.JSONText {
	b, err := json.Marshal(metadataOrEmpty(m))
	if err != nil {
		return types.JSONText(`{}`)
	}
	return types.JSONText(b)
}

func metadataOrEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// NullAmount wraps a balance snapshot for Transaction.BalanceBefore/After.
func NullAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
