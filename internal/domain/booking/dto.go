package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CalculateRequest struct {
	WorkerServiceID uuid.UUID `json:"worker_service_id" validate:"required"`
	BookingType     Type      `json:"booking_type" validate:"required,booking_type"`
	DurationHours   int       `json:"duration_hours" validate:"required,gt=0"`
}

type CreateRequest struct {
	WorkerID        uuid.UUID  `json:"worker_id" validate:"required"`
	WorkerServiceID uuid.UUID  `json:"worker_service_id" validate:"required"`
	BookingType     Type       `json:"booking_type" validate:"required,booking_type"`
	DurationHours   int        `json:"duration_hours" validate:"required,gt=0"`
	StartDate       time.Time  `json:"start_date" validate:"required"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Notes           string     `json:"notes,omitempty" validate:"max=2000"`
}

// ReasonRequest is the optional body of decline and cancel.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

type CreateServiceRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	HourlyRateUSD   decimal.Decimal `json:"hourly_rate_usd"`
	DailyDiscount   decimal.Decimal `json:"daily_discount_percent"`
	WeeklyDiscount  decimal.Decimal `json:"weekly_discount_percent"`
	MonthlyDiscount decimal.Decimal `json:"monthly_discount_percent"`
}
