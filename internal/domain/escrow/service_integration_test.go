package escrow

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/database/dbtest"
)

type scheduled struct {
	id uuid.UUID
	at time.Time
}

type recordingScheduler struct {
	calls []scheduled
}

func (r *recordingScheduler) ScheduleEscrowRelease(_ context.Context, id uuid.UUID, at time.Time) error {
	r.calls = append(r.calls, scheduled{id: id, at: at})
	return nil
}

type fixture struct {
	db        *sqlx.DB
	svc       *Service
	scheduler *recordingScheduler
	client    uuid.UUID
	worker    uuid.UUID
	admin     uuid.UUID
}

func newFixture(t *testing.T, clientBalance string) *fixture {
	db := dbtest.Open(t)
	svc := NewService(
		NewRepository(db),
		user.NewRepository(db),
		settings.NewService(settings.NewRepository(db), cache.New(nil, 0)),
	)
	sched := &recordingScheduler{}
	svc.SetScheduler(sched)

	f := &fixture{
		db:        db,
		svc:       svc,
		scheduler: sched,
		client:    dbtest.CreateUser(t, db, "client"),
		worker:    dbtest.CreateUser(t, db, "worker"),
		admin:     dbtest.CreateUser(t, db, "admin"),
	}
	dbtest.Fund(t, db, f.client, clientBalance)
	return f
}

func (f *fixture) pay(t *testing.T, amount string, cooling int) *PaymentResult {
	t.Helper()
	res, err := f.svc.ProcessPayment(context.Background(), f.client, PaymentRequest{
		WorkerID:          f.worker,
		AmountUSD:         decimal.RequireFromString(amount),
		CoolingPeriodDays: &cooling,
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	return res
}

func TestPaymentCreatesHeldEscrow(t *testing.T) {
	f := newFixture(t, "250")
	before := time.Now()

	res := f.pay(t, "100", 3)

	if res.Escrow.Status != StatusHeld || !res.Escrow.TotalAmountUSD.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected escrow %+v", res.Escrow)
	}
	if res.Transaction.Type != wallet.TypePayment || res.Transaction.Status != wallet.TxCompleted {
		t.Fatalf("unexpected payment transaction %+v", res.Transaction)
	}
	wantUntil := before.Add(72 * time.Hour)
	if res.Escrow.HoldUntil.Before(wantUntil) || res.Escrow.HoldUntil.After(wantUntil.Add(time.Minute)) {
		t.Fatalf("hold_until %s not three days out", res.Escrow.HoldUntil)
	}
	if !dbtest.Balance(t, f.db, f.client).Equal(decimal.NewFromInt(150)) {
		t.Fatalf("employer not debited")
	}
	if len(f.scheduler.calls) != 1 || f.scheduler.calls[0].id != res.Escrow.ID {
		t.Fatalf("release not scheduled: %+v", f.scheduler.calls)
	}

	stored, err := f.svc.repo.GetByID(context.Background(), res.Escrow.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.PaymentTransactionID == nil || *stored.PaymentTransactionID != res.Transaction.ID {
		t.Fatalf("payment transaction not linked")
	}
}

func TestPaymentRejectsNonWorkerAndOverdraft(t *testing.T) {
	f := newFixture(t, "50")
	ctx := context.Background()
	other := dbtest.CreateUser(t, f.db, "client")

	_, err := f.svc.ProcessPayment(ctx, f.client, PaymentRequest{WorkerID: other, AmountUSD: decimal.NewFromInt(10)})
	if !errors.Is(err, ErrInvalidWorker) {
		t.Fatalf("expected ErrInvalidWorker, got %v", err)
	}
	_, err = f.svc.ProcessPayment(ctx, f.client, PaymentRequest{WorkerID: uuid.New(), AmountUSD: decimal.NewFromInt(10)})
	if !errors.Is(err, ErrInvalidWorker) {
		t.Fatalf("expected ErrInvalidWorker for unknown user, got %v", err)
	}
	_, err = f.svc.ProcessPayment(ctx, f.client, PaymentRequest{WorkerID: f.worker, AmountUSD: decimal.NewFromInt(80)})
	if !errors.Is(err, wallet.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !dbtest.Balance(t, f.db, f.client).Equal(decimal.NewFromInt(50)) {
		t.Fatalf("failed payment changed the balance")
	}
}

func TestRefundToEmployerOnlyOnce(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	res := f.pay(t, "100", 3)

	req := ResolveRequest{EscrowID: res.Escrow.ID, Action: ActionRefundToEmployer, ResolutionNotes: "work not delivered"}
	hold, err := f.svc.Resolve(ctx, req, f.admin)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if hold.Status != StatusRefunded {
		t.Fatalf("expected refunded, got %s", hold.Status)
	}
	if !dbtest.Balance(t, f.db, f.client).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("employer not refunded")
	}

	_, err = f.svc.Resolve(ctx, req, f.admin)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if apperror.Status(apperror.From(err).Kind) != http.StatusConflict {
		t.Fatalf("expected 409 mapping")
	}
	if !dbtest.Balance(t, f.db, f.client).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("second resolution refunded again")
	}
}

func TestPartialRefundMustMatchTotal(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	res := f.pay(t, "100", 3)

	workerShare := decimal.NewFromInt(60)
	tooSmall := decimal.NewFromInt(30)
	_, err := f.svc.Resolve(ctx, ResolveRequest{
		EscrowID: res.Escrow.ID, Action: ActionPartialRefund, ResolutionNotes: "split",
		WorkerAmount: &workerShare, EmployerRefund: &tooSmall,
	}, f.admin)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}

	employerShare := decimal.NewFromInt(40)
	hold, err := f.svc.Resolve(ctx, ResolveRequest{
		EscrowID: res.Escrow.ID, Action: ActionPartialRefund, ResolutionNotes: "split",
		WorkerAmount: &workerShare, EmployerRefund: &employerShare,
	}, f.admin)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if hold.Status != StatusReleased || hold.Resolution == nil || *hold.Resolution != string(ActionPartialRefund) {
		t.Fatalf("unexpected hold %+v", hold)
	}
	if !dbtest.Balance(t, f.db, f.worker).Equal(workerShare) || !dbtest.Balance(t, f.db, f.client).Equal(employerShare) {
		t.Fatalf("split not applied")
	}
}

func TestComplaintBlocksAutomaticRelease(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	res := f.pay(t, "100", 1)

	if _, err := f.svc.Release(ctx, res.Escrow.ID, ReleaseBy{}); !errors.Is(err, ErrCoolingPeriodActive) {
		t.Fatalf("expected ErrCoolingPeriodActive, got %v", err)
	}

	stranger := dbtest.CreateUser(t, f.db, "client")
	if _, err := f.svc.FileComplaint(ctx, res.Escrow.ID, stranger, "not mine"); !errors.Is(err, ErrNotParty) {
		t.Fatalf("expected ErrNotParty, got %v", err)
	}
	hold, err := f.svc.FileComplaint(ctx, res.Escrow.ID, f.client, "worker did not show up")
	if err != nil {
		t.Fatalf("file complaint: %v", err)
	}
	if hold.Status != StatusDisputed || !hold.HasComplaint {
		t.Fatalf("expected disputed hold, got %+v", hold)
	}

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := f.svc.Release(ctx, res.Escrow.ID, ReleaseBy{}); !errors.Is(err, ErrHasComplaint) {
		t.Fatalf("expected ErrHasComplaint, got %v", err)
	}

	hold, err = f.svc.Release(ctx, res.Escrow.ID, ReleaseBy{UserID: f.admin, Admin: true})
	if err != nil {
		t.Fatalf("admin release: %v", err)
	}
	if hold.Status != StatusReleased || !dbtest.Balance(t, f.db, f.worker).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("worker not paid: %+v", hold)
	}
}

func TestReleaseDuePaysWorkerAndBooksFees(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	// pretend fees were withheld when the client paid
	res := f.pay(t, "100", 1)
	if _, err := f.db.Exec(`
		UPDATE escrow_holds
		SET hold_until = now() - interval '1 minute', platform_fee_usd = 10, insurance_fee_usd = 2, worker_amount_usd = 88
		WHERE id = $1
	`, res.Escrow.ID); err != nil {
		t.Fatalf("backdate hold: %v", err)
	}

	result, err := f.svc.ReleaseDue(ctx)
	if err != nil {
		t.Fatalf("release due: %v", err)
	}
	if result.Released < 1 {
		t.Fatalf("expected at least one release, got %+v", result)
	}

	hold, err := f.svc.repo.GetByID(ctx, res.Escrow.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if hold.Status != StatusReleased {
		t.Fatalf("expected released, got %s", hold.Status)
	}
	if !dbtest.Balance(t, f.db, f.worker).Equal(decimal.NewFromInt(88)) {
		t.Fatalf("worker should receive the amount net of fees")
	}

	var fees int
	if err := f.db.Get(&fees, `
		SELECT COUNT(*) FROM transactions
		WHERE escrow_id = $1 AND type IN ('platform_fee', 'insurance_fee') AND status = 'completed'
	`, res.Escrow.ID); err != nil {
		t.Fatalf("count fees: %v", err)
	}
	if fees != 2 {
		t.Fatalf("expected 2 fee transactions, got %d", fees)
	}
}

func TestCancelRefundsHeldEscrow(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	res := f.pay(t, "70", 3)

	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	hold, err := f.svc.CancelInTx(ctx, tx, res.Escrow.ID, "booking cancelled")
	if err != nil {
		tx.Rollback()
		t.Fatalf("cancel: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if hold.Status != StatusCancelled || !dbtest.Balance(t, f.db, f.client).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected cancelled hold and refunded employer")
	}
}
