package deposit

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// BankDeposit is a request to top up the wallet by VietQR bank transfer.
// It is matched to the incoming transfer by TransferContent.
type BankDeposit struct {
	ID                uuid.UUID          `db:"id" json:"id"`
	UserID            uuid.UUID          `db:"user_id" json:"user_id"`
	AmountUSD         decimal.Decimal    `db:"amount_usd" json:"amount_usd"`
	AmountVND         decimal.Decimal    `db:"amount_vnd" json:"amount_vnd"`
	TransferContent   string             `db:"transfer_content" json:"transfer_content"`
	QRCodeURL         string             `db:"qr_code_url" json:"qr_code_url"`
	BankName          string             `db:"bank_name" json:"bank_name"`
	BankAccount       string             `db:"bank_account" json:"bank_account"`
	Status            Status             `db:"status" json:"status"`
	ExpiresAt         time.Time          `db:"expires_at" json:"expires_at"`
	WebhookReceived   bool               `db:"webhook_received" json:"webhook_received"`
	WebhookData       types.NullJSONText `db:"webhook_data" json:"-"`
	ReferenceCode     *string            `db:"reference_code" json:"reference_code,omitempty"`
	BankTransactionID *string            `db:"bank_transaction_id" json:"bank_transaction_id,omitempty"`
	TransactionID     *uuid.UUID         `db:"transaction_id" json:"transaction_id,omitempty"`
	NeedsReview       bool               `db:"needs_review" json:"needs_review"`
	FailureReason     *string            `db:"failure_reason" json:"failure_reason,omitempty"`
	VerifiedAt        *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CompletedAt       *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// Settled reports whether the money of this deposit already reached the wallet.
func (d *BankDeposit) Settled() bool {
	return d.Status == StatusCompleted || d.Status == StatusVerifying
}

// WebhookAction tells what a bank notification caused.
type WebhookAction string

const (
	ActionIgnored   WebhookAction = "ignored"
	ActionDuplicate WebhookAction = "duplicate"
	ActionCredited  WebhookAction = "credited"
	ActionFailed    WebhookAction = "failed"
)

type WebhookResult struct {
	Action        WebhookAction `json:"action"`
	Reason        string        `json:"reason,omitempty"`
	DepositID     *uuid.UUID    `json:"deposit_id,omitempty"`
	TransactionID *uuid.UUID    `json:"transaction_id,omitempty"`
	NeedsReview   bool          `json:"needs_review,omitempty"`
}

// PayPalOrder is returned when a PayPal deposit is started.
type PayPalOrder struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
}

// ExpireResult summarizes one expiry sweep.
type ExpireResult struct {
	BankDeposits int `json:"bank_deposits"`
	PayPalOrders int `json:"paypal_orders"`
}
