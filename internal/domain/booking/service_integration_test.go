package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/escrow"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/database/dbtest"
)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	escrow  *escrow.Service
	client  uuid.UUID
	worker  uuid.UUID
	service *WorkerService
}

func newFixture(t *testing.T, clientBalance string) *fixture {
	db := dbtest.Open(t)
	cfg := settings.NewService(settings.NewRepository(db), cache.New(nil, 0))
	users := user.NewRepository(db)
	escrowSvc := escrow.NewService(escrow.NewRepository(db), users, cfg)
	walletSvc := wallet.NewService(wallet.NewRepository(db), cfg, nil, nil, nil)

	f := &fixture{
		db:     db,
		svc:    NewService(NewRepository(db), escrowSvc, walletSvc, users),
		escrow: escrowSvc,
		client: dbtest.CreateUser(t, db, "client"),
		worker: dbtest.CreateUser(t, db, "worker"),
	}
	dbtest.Fund(t, db, f.client, clientBalance)

	ws, err := f.svc.CreateService(context.Background(), f.worker, CreateServiceRequest{
		Title:          "House cleaning",
		HourlyRateUSD:  decimal.NewFromInt(20),
		DailyDiscount:  decimal.NewFromInt(10),
		WeeklyDiscount: decimal.NewFromInt(15),
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	f.service = ws
	return f
}

func (f *fixture) book(t *testing.T, hours int) *Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), f.client, CreateRequest{
		WorkerID:        f.worker,
		WorkerServiceID: f.service.ID,
		BookingType:     TypeHourly,
		DurationHours:   hours,
		StartDate:       time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) move(t *testing.T, b *Booking, by uuid.UUID, action Action) *Booking {
	t.Helper()
	out, err := f.svc.Transition(context.Background(), b.ID, by, action, "")
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return out
}

func TestCalculateReportsAffordability(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	q, err := f.svc.Calculate(ctx, f.client, CalculateRequest{WorkerServiceID: f.service.ID, BookingType: TypeDaily, DurationHours: 5})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !q.FinalAmountUSD.Equal(decimal.NewFromInt(90)) || !q.CanAfford {
		t.Fatalf("unexpected quote: %+v", q)
	}

	q, err = f.svc.Calculate(ctx, f.client, CalculateRequest{WorkerServiceID: f.service.ID, BookingType: TypeHourly, DurationHours: 6})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if q.CanAfford || !q.ClientBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected unaffordable quote, got %+v", q)
	}
}

func TestCreateValidatesWorkerAndService(t *testing.T) {
	f := newFixture(t, "500")
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	base := CreateRequest{WorkerID: f.worker, WorkerServiceID: f.service.ID, BookingType: TypeHourly, DurationHours: 2, StartDate: start}

	past := base
	past.StartDate = time.Now().Add(-time.Hour)
	if _, err := f.svc.Create(ctx, f.client, past); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}

	other := base
	other.WorkerID = dbtest.CreateUser(t, f.db, "worker")
	if _, err := f.svc.Create(ctx, f.client, other); !errors.Is(err, ErrServiceNotOwned) {
		t.Fatalf("expected service mismatch, got %v", err)
	}

	notWorker := base
	notWorker.WorkerID = dbtest.CreateUser(t, f.db, "client")
	if _, err := f.svc.Create(ctx, f.client, notWorker); !errors.Is(err, ErrNotAWorker) {
		t.Fatalf("expected not a worker, got %v", err)
	}

	if _, err := f.db.Exec(`UPDATE users SET is_banned = TRUE WHERE id = $1`, f.worker); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.client, base); !errors.Is(err, ErrWorkerBanned) {
		t.Fatalf("expected banned worker, got %v", err)
	}
}

func TestCreateRejectsUnaffordableBooking(t *testing.T) {
	f := newFixture(t, "10")
	_, err := f.svc.Create(context.Background(), f.client, CreateRequest{
		WorkerID: f.worker, WorkerServiceID: f.service.ID, BookingType: TypeHourly,
		DurationHours: 2, StartDate: time.Now().Add(time.Hour),
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestBookingLifecyclePaysWorker(t *testing.T) {
	f := newFixture(t, "100")
	b := f.book(t, 3)
	if !b.TotalPriceUSD.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected price 60, got %s", b.TotalPriceUSD)
	}

	b = f.move(t, b, f.worker, ActionConfirm)
	if b.Status != StatusConfirmed || b.EscrowID == nil || b.PaymentTransactionID == nil {
		t.Fatalf("confirm should hold the payment: %+v", b)
	}
	if got := dbtest.Balance(t, f.db, f.client); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected client balance 40, got %s", got)
	}

	b = f.move(t, b, f.worker, ActionStart)
	b = f.move(t, b, f.worker, ActionCompleteWorker)
	if b.WorkerCompletedAt == nil {
		t.Fatalf("worker completion time not recorded")
	}
	b = f.move(t, b, f.client, ActionCompleteClient)
	if b.Status != StatusClientCompleted {
		t.Fatalf("expected client_completed, got %s", b.Status)
	}

	hold, err := f.escrow.Get(context.Background(), *b.EscrowID, f.client, false)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if hold.Status != escrow.StatusReleased {
		t.Fatalf("expected released escrow, got %s", hold.Status)
	}
	if got := dbtest.Balance(t, f.db, f.worker); !got.Equal(hold.WorkerAmountUSD) {
		t.Fatalf("expected worker balance %s, got %s", hold.WorkerAmountUSD, got)
	}
}

func TestCancelRefundsHeldEscrow(t *testing.T) {
	f := newFixture(t, "100")
	b := f.book(t, 2)
	b = f.move(t, b, f.worker, ActionConfirm)

	out, err := f.svc.Transition(context.Background(), b.ID, f.client, ActionCancel, "plans changed")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != StatusCancelled || out.CancelledBy == nil || *out.CancelledBy != f.client {
		t.Fatalf("unexpected cancelled booking: %+v", out)
	}
	if got := dbtest.Balance(t, f.db, f.client); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected full refund, got %s", got)
	}

	if _, err := f.svc.Transition(context.Background(), b.ID, f.client, ActionCancel, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second cancel, got %v", err)
	}
}

func TestDeclineMovesNoMoney(t *testing.T) {
	f := newFixture(t, "100")
	b := f.book(t, 2)

	out, err := f.svc.Transition(context.Background(), b.ID, f.worker, ActionDecline, "fully booked")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if out.Status != StatusDeclined || out.DeclineReason == nil {
		t.Fatalf("unexpected declined booking: %+v", out)
	}
	if got := dbtest.Balance(t, f.db, f.client); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("decline must not charge the client, got %s", got)
	}
}

func TestTransitionGuards(t *testing.T) {
	f := newFixture(t, "100")
	b := f.book(t, 2)
	ctx := context.Background()

	if _, err := f.svc.Transition(ctx, b.ID, f.client, ActionConfirm, ""); !errors.Is(err, ErrNotParty) {
		t.Fatalf("client cannot confirm, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, b.ID, uuid.New(), ActionCancel, ""); !errors.Is(err, ErrNotParty) {
		t.Fatalf("stranger cannot cancel, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, b.ID, f.worker, ActionStart, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cannot start an unconfirmed booking, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, uuid.New(), f.worker, ActionStart, ""); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmFailsWhenClientSpentTheMoney(t *testing.T) {
	f := newFixture(t, "100")
	b := f.book(t, 3)
	dbtest.Fund(t, f.db, f.client, "10")

	if _, err := f.svc.Transition(context.Background(), b.ID, f.worker, ActionConfirm, ""); err == nil {
		t.Fatalf("expected confirm to fail")
	}
	stored, err := f.svc.Get(context.Background(), b.ID, f.worker, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusPending || stored.EscrowID != nil {
		t.Fatalf("failed confirm must leave the booking pending: %+v", stored)
	}
}
