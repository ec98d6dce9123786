package wallet_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/database/dbtest"
	"github.com/taskhub/taskhub-api/internal/pkg/paypal"
)

type stubPayouts struct {
	err   error
	calls int
}

func (s *stubPayouts) Configured() bool { return true }

func (s *stubPayouts) SendPayout(_ context.Context, _ string, _ decimal.Decimal, reference, _ string) (*paypal.Payout, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &paypal.Payout{BatchID: "batch-" + reference, ItemID: "item-" + reference, BatchStatus: "PENDING"}, nil
}

type recordedAlert struct {
	transactionID string
	amount        decimal.Decimal
}

type stubOps struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (s *stubOps) ManualWithdrawal(transactionID, _ string, amount decimal.Decimal, _, _, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, recordedAlert{transactionID: transactionID, amount: amount})
}

func newService(t *testing.T, payouts wallet.PayoutSender, ops wallet.OpsNotifier) (*wallet.Service, *wallet.Repository) {
	db := dbtest.Open(t)
	repo := wallet.NewRepository(db)
	settingsSvc := settings.NewService(settings.NewRepository(db), cache.New(nil, 0))
	return wallet.NewService(repo, settingsSvc, payouts, ops, nil), repo
}

func bankRequest(amount string) wallet.WithdrawRequest {
	return wallet.WithdrawRequest{
		AmountUSD:     decimal.RequireFromString(amount),
		PaymentMethod: wallet.MethodBankTransfer,
		Destination: wallet.Destination{
			BankAccount:   "0123456789",
			BankName:      "Vietcombank",
			AccountHolder: "Nguyen Van A",
		},
	}
}

func TestBankWithdrawalAndCompletion(t *testing.T) {
	ops := &stubOps{}
	svc, repo := newService(t, nil, ops)
	db := repo.DB()
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db, "worker")
	adminID := dbtest.CreateUser(t, db, "admin")
	dbtest.Fund(t, db, userID, "100")

	tx, err := svc.Withdraw(ctx, userID, bankRequest("40"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if tx.Status != wallet.TxPending || tx.Type != wallet.TypeWithdrawal {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if len(ops.alerts) != 1 || ops.alerts[0].transactionID != tx.ID.String() {
		t.Fatalf("expected ops alert, got %+v", ops.alerts)
	}

	w, _ := svc.GetWallet(ctx, userID)
	if !w.BalanceUSD.Equal(decimal.NewFromInt(60)) || !w.PendingUSD.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 60 available / 40 pending, got %s / %s", w.BalanceUSD, w.PendingUSD)
	}

	done, err := svc.CompleteWithdrawal(ctx, tx.ID, adminID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != wallet.TxCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed transaction, got %+v", done)
	}

	w, _ = svc.GetWallet(ctx, userID)
	if !w.PendingUSD.IsZero() || !w.TotalSpentUSD.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected pending settled into spent, got pending=%s spent=%s", w.PendingUSD, w.TotalSpentUSD)
	}

	// completing twice is a client error and changes nothing
	_, err = svc.CompleteWithdrawal(ctx, tx.ID, adminID)
	if !errors.Is(err, wallet.ErrTransactionFinal) {
		t.Fatalf("expected ErrTransactionFinal, got %v", err)
	}
	if apperror.Status(apperror.From(err).Kind) != http.StatusBadRequest {
		t.Fatalf("expected 400 mapping, got %v", err)
	}
	w2, _ := svc.GetWallet(ctx, userID)
	if !w2.TotalSpentUSD.Equal(w.TotalSpentUSD) {
		t.Fatalf("second completion changed the wallet")
	}
}

func TestCompleteRejectsFailedAndUnknownTransactions(t *testing.T) {
	svc, repo := newService(t, &stubPayouts{err: errors.New("receiver unregistered")}, nil)
	db := repo.DB()
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db, "worker")
	adminID := dbtest.CreateUser(t, db, "admin")
	dbtest.Fund(t, db, userID, "100")

	_, err := svc.Withdraw(ctx, userID, wallet.WithdrawRequest{
		AmountUSD:     decimal.NewFromInt(30),
		PaymentMethod: wallet.MethodPayPal,
		Destination:   wallet.Destination{PayPalEmail: "worker@example.com"},
	})
	if !errors.Is(err, wallet.ErrPayoutFailed) {
		t.Fatalf("expected ErrPayoutFailed, got %v", err)
	}

	uid := userID
	items, _, err := repo.ListTransactions(ctx, wallet.TransactionFilter{UserID: &uid, Type: wallet.TypeWithdrawal})
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one withdrawal, got %d (%v)", len(items), err)
	}
	failed := items[0]
	if failed.Status != wallet.TxFailed || failed.FailedAt == nil {
		t.Fatalf("expected failed withdrawal, got %+v", failed)
	}
	if dbtest.Balance(t, db, userID).Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("balance not restored after payout failure")
	}

	if _, err := svc.CompleteWithdrawal(ctx, failed.ID, adminID); !errors.Is(err, wallet.ErrTransactionFinal) {
		t.Fatalf("expected ErrTransactionFinal for failed tx, got %v", err)
	}
	if _, err := svc.CompleteWithdrawal(ctx, uuid.New(), adminID); !errors.Is(err, wallet.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestPayPalWithdrawalDebitsOnce(t *testing.T) {
	payouts := &stubPayouts{}
	svc, repo := newService(t, payouts, nil)
	db := repo.DB()
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db, "worker")
	dbtest.Fund(t, db, userID, "75.50")

	tx, err := svc.Withdraw(ctx, userID, wallet.WithdrawRequest{
		AmountUSD:     decimal.RequireFromString("25.50"),
		PaymentMethod: wallet.MethodPayPal,
		Destination:   wallet.Destination{PayPalEmail: "worker@example.com"},
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if tx.Status != wallet.TxCompleted || tx.PaymentGatewayID == nil || *tx.PaymentGatewayID != "item-"+tx.ID.String() {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	w, _ := svc.GetWallet(ctx, userID)
	if !w.BalanceUSD.Equal(decimal.NewFromInt(50)) || !w.PendingUSD.IsZero() || !w.TotalSpentUSD.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("unexpected wallet %+v", w)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, repo := newService(t, nil, nil)
	db := repo.DB()

	userID := dbtest.CreateUser(t, db, "worker")
	dbtest.Fund(t, db, userID, "25")

	_, err := svc.Withdraw(context.Background(), userID, bankRequest("30"))
	if !errors.Is(err, wallet.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, repo := newService(t, nil, nil)
	db := repo.DB()

	userID := dbtest.CreateUser(t, db, "worker")
	dbtest.Fund(t, db, userID, "100")

	const attempts = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(context.Background(), userID, bankRequest("20"))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, wallet.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 5 {
		t.Fatalf("expected 5 successful withdrawals, got %d", success)
	}
	if !dbtest.Balance(t, db, userID).IsZero() {
		t.Fatalf("expected zero balance")
	}
}
