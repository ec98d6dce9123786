package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/wallet"
)

type Status string

const (
	StatusHeld      Status = "held"
	StatusReleased  Status = "released"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether funds have left the escrow.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded || s == StatusCancelled
}

type Action string

const (
	ActionReleaseToWorker  Action = "release_to_worker"
	ActionRefundToEmployer Action = "refund_to_employer"
	ActionPartialRefund    Action = "partial_refund"
)

// Hold is money taken from an employer and kept until it is released to the
// worker or refunded.
type Hold struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	JobID                *uuid.UUID      `db:"job_id" json:"job_id,omitempty"`
	EmployerID           uuid.UUID       `db:"employer_id" json:"employer_id"`
	WorkerID             uuid.UUID       `db:"worker_id" json:"worker_id"`
	TotalAmountUSD       decimal.Decimal `db:"total_amount_usd" json:"total_amount_usd"`
	PlatformFeeUSD       decimal.Decimal `db:"platform_fee_usd" json:"platform_fee_usd"`
	InsuranceFeeUSD      decimal.Decimal `db:"insurance_fee_usd" json:"insurance_fee_usd"`
	WorkerAmountUSD      decimal.Decimal `db:"worker_amount_usd" json:"worker_amount_usd"`
	Status               Status          `db:"status" json:"status"`
	Description          string          `db:"description" json:"description"`
	PaymentTransactionID *uuid.UUID      `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	ReleaseTransactionID *uuid.UUID      `db:"release_transaction_id" json:"release_transaction_id,omitempty"`
	CoolingPeriodDays    int             `db:"cooling_period_days" json:"cooling_period_days"`
	HoldUntil            time.Time       `db:"hold_until" json:"hold_until"`
	HasComplaint         bool            `db:"has_complaint" json:"has_complaint"`
	ComplaintDescription *string         `db:"complaint_description" json:"complaint_description,omitempty"`
	ComplaintFiledBy     *uuid.UUID      `db:"complaint_filed_by" json:"complaint_filed_by,omitempty"`
	ComplaintFiledAt     *time.Time      `db:"complaint_filed_at" json:"complaint_filed_at,omitempty"`
	Resolution           *string         `db:"resolution" json:"resolution,omitempty"`
	ResolutionNotes      *string         `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedBy           *uuid.UUID      `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	ReleasedAt           *time.Time      `db:"released_at" json:"released_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// IsParty reports whether userID paid into or is paid from the hold.
func (h *Hold) IsParty(userID uuid.UUID) bool {
	return h.EmployerID == userID || h.WorkerID == userID
}

// PaymentResult is returned when a client pays a worker.
type PaymentResult struct {
	Escrow      *Hold               `json:"escrow"`
	Transaction *wallet.Transaction `json:"transaction"`
}

// ReleaseBy identifies who triggers a release. The zero value is the
// automatic release after the cooling period.
type ReleaseBy struct {
	UserID uuid.UUID
	// Admin may release disputed holds and skip the cooling period.
	Admin bool
	// Employer confirms the work early, skipping the cooling period.
	Employer bool
}

func (r ReleaseBy) label() string {
	switch {
	case r.Admin:
		return r.UserID.String()
	case r.Employer:
		return "employer:" + r.UserID.String()
	default:
		return "auto"
	}
}

// Filter narrows escrow listings.
type Filter struct {
	EmployerID   *uuid.UUID
	WorkerID     *uuid.UUID
	PartyID      *uuid.UUID
	Statuses     []Status
	HasComplaint *bool
	Page         int
	Limit        int
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// SweepResult summarizes one automatic release run.
type SweepResult struct {
	Total    int      `json:"total"`
	Released int      `json:"released"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}
