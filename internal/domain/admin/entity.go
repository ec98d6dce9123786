package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStats is the money overview of the admin dashboard.
type WalletStats struct {
	TotalWallets       int             `db:"total_wallets" json:"total_wallets"`
	TotalBalance       decimal.Decimal `db:"total_balance" json:"total_balance"`
	TotalPending       decimal.Decimal `db:"total_pending" json:"total_pending"`
	TransactionsToday  int             `db:"transactions_today" json:"transactions_today"`
	ActiveEscrows      int             `db:"active_escrows" json:"active_escrows"`
	ActiveEscrowAmount decimal.Decimal `db:"active_escrow_amount" json:"active_escrow_amount"`
	Complaints         int             `db:"complaints" json:"complaints"`
	PlatformRevenue    decimal.Decimal `db:"platform_revenue" json:"platform_revenue"`
	InsuranceFund      decimal.Decimal `db:"insurance_fund" json:"insurance_fund"`
	PendingWithdrawals int             `db:"pending_withdrawals" json:"pending_withdrawals"`
	DepositsToReview   int             `db:"deposits_to_review" json:"deposits_to_review"`
}

// AuditLog records one state-changing admin request.
type AuditLog struct {
	ID         uuid.UUID `db:"id" json:"id"`
	AdminID    uuid.UUID `db:"admin_id" json:"admin_id"`
	Action     string    `db:"action" json:"action"`
	Path       string    `db:"path" json:"path"`
	StatusCode int       `db:"status_code" json:"status_code"`
	RequestID  *string   `db:"request_id" json:"request_id,omitempty"`
	IPAddress  *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string   `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter for filtering audit logs
type AuditFilter struct {
	AdminID  *uuid.UUID
	Action   string
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
