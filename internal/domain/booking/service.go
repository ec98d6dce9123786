package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/escrow"
	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
)

// Escrow moves booking money in and out of escrow inside the booking's
// database transaction.
type Escrow interface {
	PayInTx(ctx context.Context, tx sqlx.ExtContext, employerID uuid.UUID, req escrow.PaymentRequest) (*escrow.PaymentResult, error)
	ReleaseInTx(ctx context.Context, tx sqlx.ExtContext, id uuid.UUID, by escrow.ReleaseBy) (*escrow.Hold, error)
	CancelInTx(ctx context.Context, tx sqlx.ExtContext, id uuid.UUID, reason string) (*escrow.Hold, error)
	AfterCommit(ctx context.Context, h *escrow.Hold)
}

// BalanceChecker tells whether a client can pay an amount.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, *wallet.Wallet, error)
}

// ProfileReader loads user profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error)
}

// EventPublisher pushes realtime events to a user.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data interface{})
}

type Service struct {
	repo     *Repository
	escrow   Escrow
	balances BalanceChecker
	users    ProfileReader
	events   EventPublisher
	now      func() time.Time
}

func NewService(repo *Repository, escrowService Escrow, balances BalanceChecker, users ProfileReader) *Service {
	return &Service{
		repo:     repo,
		escrow:   escrowService,
		balances: balances,
		users:    users,
		now:      time.Now,
	}
}

func (s *Service) SetEventPublisher(events EventPublisher) {
	s.events = events
}

// CreateService adds a service offered by a worker.
func (s *Service) CreateService(ctx context.Context, workerID uuid.UUID, req CreateServiceRequest) (*WorkerService, error) {
	if !req.HourlyRateUSD.IsPositive() {
		return nil, ErrInvalidRate
	}
	if !wallet.WholeCents(req.HourlyRateUSD) {
		return nil, wallet.ErrSubCentAmount
	}
	hundred := decimal.NewFromInt(100)
	for name, d := range map[string]decimal.Decimal{
		"daily_discount_percent":   req.DailyDiscount,
		"weekly_discount_percent":  req.WeeklyDiscount,
		"monthly_discount_percent": req.MonthlyDiscount,
	} {
		if d.IsNegative() || d.GreaterThan(hundred) {
			return nil, apperror.Validation("INVALID_DISCOUNT", name+" must be between 0 and 100")
		}
	}

	ws := &WorkerService{
		ID:              uuid.New(),
		WorkerID:        workerID,
		Title:           strings.TrimSpace(req.Title),
		HourlyRateUSD:   req.HourlyRateUSD,
		DailyDiscount:   req.DailyDiscount,
		WeeklyDiscount:  req.WeeklyDiscount,
		MonthlyDiscount: req.MonthlyDiscount,
		IsActive:        true,
	}
	if err := s.repo.CreateService(ctx, ws); err != nil {
		return nil, apperror.Infra("SERVICE_CREATE_FAILED", err)
	}
	return ws, nil
}

func (s *Service) ListServices(ctx context.Context, workerID uuid.UUID) ([]WorkerService, error) {
	items, err := s.repo.ListServices(ctx, workerID)
	if err != nil {
		return nil, apperror.Infra("SERVICE_LIST_FAILED", err)
	}
	return items, nil
}

func (s *Service) activeService(ctx context.Context, id uuid.UUID) (*WorkerService, error) {
	ws, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, apperror.OrInfra("SERVICE_LOAD_FAILED", err)
	}
	if !ws.IsActive {
		return nil, ErrServiceNotFound
	}
	return ws, nil
}

// Calculate prices a booking and checks it against the client's balance.
func (s *Service) Calculate(ctx context.Context, clientID uuid.UUID, req CalculateRequest) (*Quote, error) {
	if req.DurationHours <= 0 {
		return nil, ErrInvalidDuration
	}
	ws, err := s.activeService(ctx, req.WorkerServiceID)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, clientID, ws, req.BookingType, req.DurationHours)
}

func (s *Service) quote(ctx context.Context, clientID uuid.UUID, ws *WorkerService, t Type, hours int) (*Quote, error) {
	q := Price(ws, t, hours)
	ok, w, err := s.balances.CheckBalance(ctx, clientID, q.FinalAmountUSD)
	if err != nil {
		return nil, err
	}
	q.CanAfford = ok
	q.ClientBalance = w.BalanceUSD
	return &q, nil
}

// Create records a booking request. No money moves until the worker confirms.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, req CreateRequest) (*Booking, error) {
	if req.DurationHours <= 0 {
		return nil, ErrInvalidDuration
	}
	now := s.now()
	if req.StartDate.IsZero() || req.StartDate.Before(now) {
		return nil, ErrInvalidDate.WithMessage("Start date must be in the future")
	}
	end := req.StartDate.Add(time.Duration(req.DurationHours) * time.Hour)
	if req.EndDate != nil {
		if !req.EndDate.After(req.StartDate) {
			return nil, ErrInvalidDate.WithMessage("End date must be after start date")
		}
		end = *req.EndDate
	}

	worker, err := s.users.GetByID(ctx, req.WorkerID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, apperror.OrInfra("WORKER_LOAD_FAILED", err)
	}
	if !worker.IsWorker() {
		return nil, ErrNotAWorker
	}
	if worker.IsBanned {
		return nil, ErrWorkerBanned
	}

	ws, err := s.activeService(ctx, req.WorkerServiceID)
	if err != nil {
		return nil, err
	}
	if ws.WorkerID != req.WorkerID {
		return nil, ErrServiceNotOwned
	}
	q, err := s.quote(ctx, clientID, ws, req.BookingType, req.DurationHours)
	if err != nil {
		return nil, err
	}
	if !q.CanAfford {
		return nil, ErrInsufficientBalance.WithMessage("Insufficient balance. Required: $%s, Available: $%s",
			q.RequiredAmount.StringFixed(2), q.ClientBalance.StringFixed(2))
	}

	b := &Booking{
		ID:              uuid.New(),
		ClientID:        clientID,
		WorkerID:        req.WorkerID,
		WorkerServiceID: ws.ID,
		BookingType:     req.BookingType,
		StartDate:       req.StartDate.UTC(),
		EndDate:         end.UTC(),
		DurationHours:   req.DurationHours,
		HourlyRateUSD:   q.HourlyRateUSD,
		TotalPriceUSD:   q.FinalAmountUSD,
		Status:          StatusPending,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, apperror.Infra("BOOKING_CREATE_FAILED", err)
	}

	log.Info().
		Str("booking_id", b.ID.String()).
		Str("client_id", clientID.String()).
		Str("worker_id", req.WorkerID.String()).
		Str("total_usd", b.TotalPriceUSD.StringFixed(2)).
		Msg("Booking created")

	s.publish(ctx, b)
	return b, nil
}

// Transition applies action to a booking on behalf of userID. Money moves in
// the same database transaction as the status change.
func (s *Service) Transition(ctx context.Context, id, userID uuid.UUID, action Action, reason string) (*Booking, error) {
	t, ok := transitions[action]
	if !ok {
		return nil, ErrInvalidTransition
	}
	reason = strings.TrimSpace(reason)

	var (
		out  *Booking
		hold *escrow.Hold
	)
	err := database.WithTx(ctx, s.repo.db, func(tx *sqlx.Tx) error {
		b, err := getBooking(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !allowedActor(t.actor, b, userID) {
			return ErrNotParty
		}
		if !t.allows(b.Status) {
			return ErrInvalidTransition.WithMessage("Booking cannot %s. Current status: %s", action, b.Status)
		}

		now := s.now().UTC()
		switch action {
		case ActionConfirm:
			res, err := s.escrow.PayInTx(ctx, tx, b.ClientID, escrow.PaymentRequest{
				WorkerID:    b.WorkerID,
				JobID:       &b.ID,
				AmountUSD:   b.TotalPriceUSD,
				Description: fmt.Sprintf("Payment for booking %s", b.ID),
			})
			if err != nil {
				return err
			}
			hold = res.Escrow
			b.EscrowID = &res.Escrow.ID
			b.PaymentTransactionID = &res.Transaction.ID
			b.ConfirmedAt = &now
		case ActionDecline:
			if reason != "" {
				b.DeclineReason = &reason
			}
		case ActionStart:
			b.StartedAt = &now
		case ActionCompleteWorker:
			b.WorkerCompletedAt = &now
		case ActionCompleteClient:
			if b.EscrowID == nil {
				return ErrEscrowMissing
			}
			hold, err = s.escrow.ReleaseInTx(ctx, tx, *b.EscrowID, escrow.ReleaseBy{UserID: userID, Employer: true})
			if err != nil {
				return err
			}
			b.ClientCompletedAt = &now
		case ActionCancel:
			if b.EscrowID != nil {
				note := "Booking cancelled"
				if reason != "" {
					note += ": " + reason
				}
				hold, err = s.escrow.CancelInTx(ctx, tx, *b.EscrowID, note)
				if err != nil {
					return err
				}
			}
			b.CancelledBy = &userID
			if reason != "" {
				b.CancellationReason = &reason
			}
		}

		b.Status = t.to
		if err := saveState(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, apperror.OrInfra("BOOKING_UPDATE_FAILED", err)
	}

	log.Info().
		Str("booking_id", out.ID.String()).
		Str("user_id", userID.String()).
		Str("action", string(action)).
		Str("status", string(out.Status)).
		Msg("Booking updated")

	if hold != nil {
		s.escrow.AfterCommit(ctx, hold)
	}
	s.publish(ctx, out)
	return out, nil
}

func allowedActor(a actor, b *Booking, userID uuid.UUID) bool {
	switch a {
	case actorWorker:
		return b.WorkerID == userID
	case actorClient:
		return b.ClientID == userID
	default:
		return b.IsParty(userID)
	}
}

func (s *Service) Get(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.OrInfra("BOOKING_LOAD_FAILED", err)
	}
	if !isAdmin && !b.IsParty(userID) {
		return nil, ErrNotParty
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Booking, int, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperror.Infra("BOOKING_LIST_FAILED", err)
	}
	return items, total, nil
}

func (s *Service) publish(ctx context.Context, b *Booking) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, b.ClientID, realtime.EventBookingUpdated, b)
	s.events.Publish(ctx, b.WorkerID, realtime.EventBookingUpdated, b)
}
