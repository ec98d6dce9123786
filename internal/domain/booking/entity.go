package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeHourly  Type = "hourly"
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
)

type Status string

const (
	StatusPending         Status = "pending_worker_confirmation"
	StatusConfirmed       Status = "worker_confirmed"
	StatusDeclined        Status = "worker_declined"
	StatusInProgress      Status = "in_progress"
	StatusWorkerCompleted Status = "worker_completed"
	StatusClientCompleted Status = "client_completed"
	StatusCancelled       Status = "cancelled"
	StatusDisputed        Status = "disputed"
)

// Action is a state change requested by one side of a booking.
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionDecline        Action = "decline"
	ActionStart          Action = "start"
	ActionCompleteWorker Action = "complete-worker"
	ActionCompleteClient Action = "complete-client"
	ActionCancel         Action = "cancel"
)

type actor int

const (
	actorWorker actor = iota
	actorClient
	actorEither
)

type transition struct {
	from  []Status
	to    Status
	actor actor
}

var transitions = map[Action]transition{
	ActionConfirm:        {from: []Status{StatusPending}, to: StatusConfirmed, actor: actorWorker},
	ActionDecline:        {from: []Status{StatusPending}, to: StatusDeclined, actor: actorWorker},
	ActionStart:          {from: []Status{StatusConfirmed}, to: StatusInProgress, actor: actorWorker},
	ActionCompleteWorker: {from: []Status{StatusConfirmed, StatusInProgress}, to: StatusWorkerCompleted, actor: actorWorker},
	ActionCompleteClient: {from: []Status{StatusWorkerCompleted}, to: StatusClientCompleted, actor: actorClient},
	ActionCancel:         {from: []Status{StatusPending, StatusConfirmed, StatusInProgress}, to: StatusCancelled, actor: actorEither},
}

func (t transition) allows(s Status) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// WorkerService is a service a worker offers at an hourly rate, with
// optional discounts for longer bookings.
type WorkerService struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	WorkerID        uuid.UUID       `db:"worker_id" json:"worker_id"`
	Title           string          `db:"title" json:"title"`
	HourlyRateUSD   decimal.Decimal `db:"hourly_rate_usd" json:"hourly_rate_usd"`
	DailyDiscount   decimal.Decimal `db:"daily_discount_percent" json:"daily_discount_percent"`
	WeeklyDiscount  decimal.Decimal `db:"weekly_discount_percent" json:"weekly_discount_percent"`
	MonthlyDiscount decimal.Decimal `db:"monthly_discount_percent" json:"monthly_discount_percent"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// DiscountFor returns the discount percent that applies to a booking type.
func (ws *WorkerService) DiscountFor(t Type) decimal.Decimal {
	switch t {
	case TypeDaily:
		return ws.DailyDiscount
	case TypeWeekly:
		return ws.WeeklyDiscount
	case TypeMonthly:
		return ws.MonthlyDiscount
	}
	return decimal.Zero
}

// Quote is the price of a booking before it is created.
type Quote struct {
	HourlyRateUSD   decimal.Decimal `json:"hourly_rate_usd"`
	TotalAmountUSD  decimal.Decimal `json:"total_amount_usd"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FinalAmountUSD  decimal.Decimal `json:"final_amount_usd"`
	CanAfford       bool            `json:"can_afford"`
	ClientBalance   decimal.Decimal `json:"client_balance"`
	RequiredAmount  decimal.Decimal `json:"required_amount"`
}

// Price computes the amounts of a quote. The final amount is rounded to cents.
func Price(ws *WorkerService, t Type, hours int) Quote {
	total := ws.HourlyRateUSD.Mul(decimal.NewFromInt(int64(hours)))
	discount := ws.DiscountFor(t)
	final := total.Sub(total.Mul(discount).Div(decimal.NewFromInt(100))).Round(2)
	return Quote{
		HourlyRateUSD:   ws.HourlyRateUSD,
		TotalAmountUSD:  total,
		DiscountPercent: discount,
		FinalAmountUSD:  final,
		RequiredAmount:  final,
	}
}

type Booking struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	ClientID             uuid.UUID       `db:"client_id" json:"client_id"`
	WorkerID             uuid.UUID       `db:"worker_id" json:"worker_id"`
	WorkerServiceID      uuid.UUID       `db:"worker_service_id" json:"worker_service_id"`
	BookingType          Type            `db:"booking_type" json:"booking_type"`
	StartDate            time.Time       `db:"start_date" json:"start_date"`
	EndDate              time.Time       `db:"end_date" json:"end_date"`
	DurationHours        int             `db:"duration_hours" json:"duration_hours"`
	HourlyRateUSD        decimal.Decimal `db:"hourly_rate_usd" json:"hourly_rate_usd"`
	TotalPriceUSD        decimal.Decimal `db:"total_price_usd" json:"total_price_usd"`
	Status               Status          `db:"status" json:"status"`
	EscrowID             *uuid.UUID      `db:"escrow_id" json:"escrow_id,omitempty"`
	PaymentTransactionID *uuid.UUID      `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	Notes                string          `db:"notes" json:"notes"`
	DeclineReason        *string         `db:"decline_reason" json:"decline_reason,omitempty"`
	CancellationReason   *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy          *uuid.UUID      `db:"cancelled_by" json:"cancelled_by,omitempty"`
	ConfirmedAt          *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	StartedAt            *time.Time      `db:"started_at" json:"started_at,omitempty"`
	WorkerCompletedAt    *time.Time      `db:"worker_completed_at" json:"worker_completed_at,omitempty"`
	ClientCompletedAt    *time.Time      `db:"client_completed_at" json:"client_completed_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.ClientID == userID || b.WorkerID == userID
}

// Filter narrows booking listings. Client and worker are set from the caller's
// role; admins see every booking.
type Filter struct {
	ClientID *uuid.UUID
	WorkerID *uuid.UUID
	Statuses []Status
	Types    []Type
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}
