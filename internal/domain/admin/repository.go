package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// WalletStats aggregates the ledger in one round trip.
func (r *Repository) WalletStats(ctx context.Context) (*WalletStats, error) {
	var s WalletStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM wallets) AS total_wallets,
			(SELECT COALESCE(SUM(balance_usd), 0) FROM wallets) AS total_balance,
			(SELECT COALESCE(SUM(pending_usd), 0) FROM wallets) AS total_pending,
			(SELECT COUNT(*) FROM transactions WHERE created_at >= CURRENT_DATE) AS transactions_today,
			(SELECT COUNT(*) FROM escrow_holds WHERE status = 'held') AS active_escrows,
			(SELECT COALESCE(SUM(total_amount_usd), 0) FROM escrow_holds WHERE status = 'held') AS active_escrow_amount,
			(SELECT COUNT(*) FROM escrow_holds WHERE status = 'disputed') AS complaints,
			(SELECT COALESCE(SUM(amount_usd), 0) FROM transactions
				WHERE type = 'platform_fee' AND status = 'completed') AS platform_revenue,
			(SELECT COALESCE(SUM(amount_usd), 0) FROM transactions
				WHERE type = 'insurance_fee' AND status = 'completed') AS insurance_fund,
			(SELECT COUNT(*) FROM transactions
				WHERE type = 'withdrawal' AND status IN ('pending', 'processing')) AS pending_withdrawals,
			(SELECT COUNT(*) FROM bank_deposits WHERE needs_review OR status = 'failed') AS deposits_to_review
	`)
	if err != nil {
		return nil, fmt.Errorf("wallet stats: %w", err)
	}
	return &s, nil
}

func (r *Repository) CreateAuditLog(ctx context.Context, entry *AuditLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO admin_audit_logs (id, admin_id, action, path, status_code, request_id, ip_address, user_agent, created_at)
		VALUES (:id, :admin_id, :action, :path, :status_code, :request_id, :ip_address, :user_agent, :created_at)
	`, entry)
	return err
}

func (r *Repository) ListAuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if f.AdminID != nil {
		add("admin_id = ?", *f.AdminID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if f.FromDate != nil {
		add("created_at >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		add("created_at <= ?", *f.ToDate)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_audit_logs`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, admin_id, action, path, status_code, request_id, ip_address, user_agent, created_at
		FROM admin_audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	logs := []AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}
