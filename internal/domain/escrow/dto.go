package escrow

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is the body of POST /wallet/payment
type PaymentRequest struct {
	WorkerID          uuid.UUID       `json:"worker_id" validate:"required"`
	JobID             *uuid.UUID      `json:"job_id,omitempty"`
	AmountUSD         decimal.Decimal `json:"amount_usd"`
	Description       string          `json:"description,omitempty" validate:"max=500"`
	CoolingPeriodDays *int            `json:"cooling_period_days,omitempty" validate:"omitempty,gte=0,lte=90"`
}

// ComplaintRequest is the body of POST /wallet/escrow/complaint
type ComplaintRequest struct {
	EscrowID    uuid.UUID `json:"escrow_id" validate:"required"`
	Description string    `json:"description" validate:"required,max=2000"`
}

// ResolveRequest is the body of POST /admin/wallet/escrow/resolve
type ResolveRequest struct {
	EscrowID        uuid.UUID        `json:"escrow_id" validate:"required"`
	Action          Action           `json:"action" validate:"required,escrow_action"`
	ResolutionNotes string           `json:"resolution_notes" validate:"required"`
	WorkerAmount    *decimal.Decimal `json:"worker_amount,omitempty"`
	EmployerRefund  *decimal.Decimal `json:"employer_refund,omitempty"`
}

// ReleaseRequest is the body of POST /admin/wallet/escrow/release
type ReleaseRequest struct {
	EscrowID uuid.UUID `json:"escrow_id" validate:"required"`
}
