package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/middleware"
)

type stubSettings struct {
	s *settings.Settings
}

func (s stubSettings) Get(context.Context) (*settings.Settings, error) {
	return s.s, nil
}

func TestWithdrawBelowMinimumIsRejected(t *testing.T) {
	// repo is nil: the minimum check must happen before any database access
	svc := NewService(nil, stubSettings{settings.Defaults()}, nil, nil, nil)

	for _, amount := range []string{"0", "0.01", "5", "19.99"} {
		_, err := svc.Withdraw(context.Background(), uuid.New(), WithdrawRequest{
			AmountUSD:     decimal.RequireFromString(amount),
			PaymentMethod: MethodBankTransfer,
			Destination:   Destination{BankAccount: "1", BankName: "B", AccountHolder: "H"},
		})
		if !errors.Is(err, ErrBelowMinimum) {
			t.Fatalf("amount %s: expected ErrBelowMinimum, got %v", amount, err)
		}
	}
}

func TestWithdrawRejectsFractionalCents(t *testing.T) {
	svc := NewService(nil, stubSettings{settings.Defaults()}, nil, nil, nil)

	_, err := svc.Withdraw(context.Background(), uuid.New(), WithdrawRequest{
		AmountUSD:     decimal.RequireFromString("50.005"),
		PaymentMethod: MethodBankTransfer,
		Destination:   Destination{BankAccount: "1", BankName: "B", AccountHolder: "H"},
	})
	if !errors.Is(err, ErrSubCentAmount) {
		t.Fatalf("expected ErrSubCentAmount, got %v", err)
	}
}

func TestWithdrawRequiresDestination(t *testing.T) {
	svc := NewService(nil, stubSettings{settings.Defaults()}, nil, nil, nil)

	cases := []WithdrawRequest{
		{AmountUSD: decimal.NewFromInt(50), PaymentMethod: MethodPayPal},
		{AmountUSD: decimal.NewFromInt(50), PaymentMethod: MethodBankTransfer, Destination: Destination{BankName: "VCB"}},
	}
	for _, req := range cases {
		if _, err := svc.Withdraw(context.Background(), uuid.New(), req); !errors.Is(err, ErrInvalidDestination) {
			t.Fatalf("%s: expected ErrInvalidDestination, got %v", req.PaymentMethod, err)
		}
	}
}

func TestWithdrawPayPalWithoutCredentials(t *testing.T) {
	svc := NewService(nil, stubSettings{settings.Defaults()}, nil, nil, nil)

	_, err := svc.Withdraw(context.Background(), uuid.New(), WithdrawRequest{
		AmountUSD:     decimal.NewFromInt(50),
		PaymentMethod: MethodPayPal,
		Destination:   Destination{PayPalEmail: "worker@example.com"},
	})
	if !errors.Is(err, ErrPayoutsUnavailable) {
		t.Fatalf("expected ErrPayoutsUnavailable, got %v", err)
	}
}

func TestWithdrawHandlerMapsErrorsTo400(t *testing.T) {
	h := NewHandler(NewService(nil, stubSettings{settings.Defaults()}, nil, nil, nil))

	cases := map[string]string{
		"below minimum":  `{"amount_usd": 5, "payment_method": "bank_transfer", "destination": {"bank_account": "1", "bank_name": "B", "account_holder": "H"}}`,
		"bad method":     `{"amount_usd": 50, "payment_method": "cash"}`,
		"missing method": `{"amount_usd": 50}`,
		"malformed":      `{"amount_usd":`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet/withdraw", strings.NewReader(body))
		req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), "worker"))
		rec := httptest.NewRecorder()
		h.Withdraw(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", name, rec.Code, rec.Body.String())
		}
	}
}

func TestParseTransactionFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/transactions?type=deposit&status=completed&min_amount=10&from=2026-01-02T00:00:00Z&page=2&limit=5", nil)
	f, err := ParseTransactionFilter(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Type != TypeDeposit || f.Status != TxCompleted || f.Page != 2 || f.Limit != 5 {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.MinAmount == nil || !f.MinAmount.Equal(decimal.NewFromInt(10)) || f.From == nil {
		t.Fatalf("amount/date filters not parsed: %+v", f)
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/wallet/transactions?to=yesterday", nil)
	if _, err := ParseTransactionFilter(bad); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestBalanceIncludesSummary(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO wallets`).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM wallets WHERE user_id = \$1`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(walletCols).
			AddRow(uuid.New(), userID, "80.00", "20.00", "150.00", "50.00", "USD", "active", now, now))
	mock.ExpectQuery(`FROM escrow_holds`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"active_escrows", "pending_withdrawals"}).AddRow(2, 1))

	h := NewHandler(NewService(NewRepository(db), stubSettings{settings.Defaults()}, nil, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID, "worker"))
	rec := httptest.NewRecorder()
	h.Balance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data struct {
			Wallet  *Wallet  `json:"wallet"`
			Summary *Summary `json:"summary"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sum := body.Data.Summary
	if body.Data.Wallet == nil || sum == nil {
		t.Fatalf("wallet or summary missing: %s", rec.Body.String())
	}
	if sum.ActiveEscrows != 2 || sum.PendingWithdrawals != 1 {
		t.Fatalf("unexpected counters %+v", sum)
	}
	if !sum.AvailableBalance.Equal(decimal.NewFromInt(80)) || !sum.TotalEarned.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected balances %+v", sum)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
