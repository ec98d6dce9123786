package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the handle for callers composing ledger writes in a transaction.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// GetWallet returns the user's wallet, creating an empty one on first access.
func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := EnsureWallet(ctx, r.db, userID); err != nil {
		return nil, err
	}
	var w Wallet
	if err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// Activity counts the held escrows the user is a party of and their
// withdrawals still waiting to be paid out.
type Activity struct {
	ActiveEscrows      int `db:"active_escrows"`
	PendingWithdrawals int `db:"pending_withdrawals"`
}

func (r *Repository) CountActivity(ctx context.Context, userID uuid.UUID) (*Activity, error) {
	var a Activity
	err := r.db.GetContext(ctx, &a, `
		SELECT
			(SELECT COUNT(*) FROM escrow_holds
				WHERE status = 'held' AND (employer_id = $1 OR worker_id = $1)) AS active_escrows,
			(SELECT COUNT(*) FROM transactions
				WHERE user_id = $1 AND type = 'withdrawal' AND status IN ('pending', 'processing')) AS pending_withdrawals
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("count wallet activity: %w", err)
	}
	return &a, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return GetTransaction(ctx, r.db, id, false)
}

// ListTransactions returns one page of transactions, newest first, and the
// total number matching the filter.
func (r *Repository) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error) {
	f.normalize()

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Method != "" {
		add("payment_method = $%d", string(f.Method))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	if f.MinAmount != nil {
		add("amount_usd >= $%d", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount_usd <= $%d", *f.MaxAmount)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, clause, len(args)+1, len(args)+2)
	items := []Transaction{}
	if err := r.db.SelectContext(ctx, &items, query, append(args, f.Limit, (f.Page-1)*f.Limit)...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}
