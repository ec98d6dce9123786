package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusFrozen    Status = "frozen"
	StatusSuspended Status = "suspended"
)

type TransactionType string

const (
	TypeDeposit       TransactionType = "deposit"
	TypeWithdrawal    TransactionType = "withdrawal"
	TypePayment       TransactionType = "payment"
	TypeEarning       TransactionType = "earning"
	TypePlatformFee   TransactionType = "platform_fee"
	TypeInsuranceFee  TransactionType = "insurance_fee"
	TypeRefund        TransactionType = "refund"
	TypeEscrowHold    TransactionType = "escrow_hold"
	TypeEscrowRelease TransactionType = "escrow_release"
)

type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
	TxCancelled  TransactionStatus = "cancelled"
)

// Final reports whether the status can no longer change.
func (s TransactionStatus) Final() bool {
	return s == TxCompleted || s == TxFailed || s == TxCancelled
}

// rank orders statuses so that transitions only move forward.
func (s TransactionStatus) rank() int {
	switch s {
	case TxPending:
		return 0
	case TxProcessing:
		return 1
	default:
		return 2
	}
}

type PaymentMethod string

const (
	MethodPayPal       PaymentMethod = "paypal"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodEscrow       PaymentMethod = "escrow"
	MethodInternal     PaymentMethod = "internal"
)

type Wallet struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	BalanceUSD     decimal.Decimal `db:"balance_usd" json:"balance_usd"`
	PendingUSD     decimal.Decimal `db:"pending_usd" json:"pending_usd"`
	TotalEarnedUSD decimal.Decimal `db:"total_earned_usd" json:"total_earned_usd"`
	TotalSpentUSD  decimal.Decimal `db:"total_spent_usd" json:"total_spent_usd"`
	Currency       string          `db:"currency" json:"currency"`
	Status         Status          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type Transaction struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	UserID           uuid.UUID           `db:"user_id" json:"user_id"`
	Type             TransactionType     `db:"type" json:"type"`
	AmountUSD        decimal.Decimal     `db:"amount_usd" json:"amount_usd"`
	Status           TransactionStatus   `db:"status" json:"status"`
	PaymentMethod    PaymentMethod       `db:"payment_method" json:"payment_method"`
	PaymentGatewayID *string             `db:"payment_gateway_id" json:"payment_gateway_id,omitempty"`
	BalanceBefore    decimal.NullDecimal `db:"balance_before" json:"balance_before"`
	BalanceAfter     decimal.NullDecimal `db:"balance_after" json:"balance_after"`
	EscrowID         *uuid.UUID          `db:"escrow_id" json:"escrow_id,omitempty"`
	JobID            *uuid.UUID          `db:"job_id" json:"job_id,omitempty"`
	RelatedUserID    *uuid.UUID          `db:"related_user_id" json:"related_user_id,omitempty"`
	Description      string              `db:"description" json:"description"`
	Metadata         types.JSONText      `db:"metadata" json:"metadata"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	FailedAt         *time.Time          `db:"failed_at" json:"failed_at,omitempty"`
}

// TransactionFilter narrows transaction listings. A nil UserID lists every
// user (admin view).
type TransactionFilter struct {
	UserID    *uuid.UUID
	Type      TransactionType
	Status    TransactionStatus
	Method    PaymentMethod
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Page      int
	Limit     int
}

func (f *TransactionFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}
