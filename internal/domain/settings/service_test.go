package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/pkg/cache"
)

type memoryStore struct {
	values map[string]json.RawMessage
	reads  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]json.RawMessage{}}
}

func (m *memoryStore) All(context.Context) (map[string]json.RawMessage, error) {
	m.reads++
	out := make(map[string]json.RawMessage, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) Upsert(_ context.Context, key string, value json.RawMessage, _ uuid.UUID) error {
	m.values[key] = value
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateFeesDisabledGivesWorkerEverything(t *testing.T) {
	calc := Defaults().CalculateFees(d("100"))
	if !calc.PlatformFee.IsZero() || !calc.InsuranceFee.IsZero() || !calc.WorkerAmount.Equal(d("100")) {
		t.Fatalf("unexpected calculation %+v", calc)
	}
	if calc.FeesEnabled {
		t.Fatalf("fees should be disabled by default")
	}
}

func TestCalculateFeesRoundsToCents(t *testing.T) {
	s := Defaults()
	s.PaymentFeesEnabled = true

	calc := s.CalculateFees(d("33.33"))
	// 10% of 33.33 = 3.333 -> 3.33, 2% = 0.6666 -> 0.67
	if !calc.PlatformFee.Equal(d("3.33")) || !calc.InsuranceFee.Equal(d("0.67")) {
		t.Fatalf("unexpected fees %+v", calc)
	}
	if !calc.WorkerAmount.Equal(d("29.33")) {
		t.Fatalf("unexpected worker amount %s", calc.WorkerAmount)
	}
	if !calc.WorkerAmount.Add(calc.PlatformFee).Add(calc.InsuranceFee).Equal(calc.TotalAmount) {
		t.Fatalf("parts do not add up to total")
	}
}

func TestGetOverlaysStoredValuesOnDefaults(t *testing.T) {
	store := newMemoryStore()
	store.values[KeyPaymentFeesEnabled] = json.RawMessage(`true`)
	store.values[KeyMinimumWithdrawalUSD] = json.RawMessage(`"50"`)
	store.values[KeyEscrowCoolingPeriodDays] = json.RawMessage(`"bad"`)

	s, err := NewService(store, cache.New(nil, 0)).Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !s.PaymentFeesEnabled || !s.MinimumWithdrawalUSD.Equal(d("50")) {
		t.Fatalf("stored values not applied: %+v", s)
	}
	if s.EscrowCoolingPeriodDays != 7 || !s.MinimumDepositUSD.Equal(d("10")) {
		t.Fatalf("defaults not kept: %+v", s)
	}
}

func TestGetIsCachedAndUpdateInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	store := newMemoryStore()
	svc := NewService(store, cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Get(ctx); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if store.reads != 1 {
		t.Fatalf("expected one store read, got %d", store.reads)
	}

	s, err := svc.Update(ctx, KeyPlatformFeePercentage, json.RawMessage(`15`), uuid.New())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !s.PlatformFeePercentage.Equal(d("15")) {
		t.Fatalf("update not visible: %s", s.PlatformFeePercentage)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	svc := NewService(newMemoryStore(), cache.New(nil, 0))
	cases := []struct {
		key   string
		value string
	}{
		{"unknown_key", `1`},
		{KeyPaymentFeesEnabled, `"yes"`},
		{KeyPlatformFeePercentage, `120`},
		{KeyMinimumDepositUSD, `-1`},
		{KeyEscrowCoolingPeriodDays, `400`},
		{KeyBankTransferInfo, `"not an object"`},
		{KeyMinimumWithdrawalUSD, `null`},
	}
	for _, tc := range cases {
		_, err := svc.Update(context.Background(), tc.key, json.RawMessage(tc.value), uuid.New())
		if !errors.Is(err, ErrInvalidSetting) {
			t.Fatalf("%s=%s: expected ErrInvalidSetting, got %v", tc.key, tc.value, err)
		}
	}
}

func TestCalculateFeesRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMemoryStore(), cache.New(nil, 0))
	for _, amount := range []string{"0", "-5"} {
		if _, err := svc.CalculateFees(context.Background(), d(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestUpdateRejectsFeesAboveHundredTogether(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, cache.New(nil, 0))
	ctx := context.Background()

	// default insurance is 2%
	if _, err := svc.Update(ctx, KeyPlatformFeePercentage, json.RawMessage(`99`), uuid.New()); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected ErrInvalidSetting for 99+2, got %v", err)
	}
	if _, ok := store.values[KeyPlatformFeePercentage]; ok {
		t.Fatalf("rejected value was stored")
	}

	if _, err := svc.Update(ctx, KeyPlatformFeePercentage, json.RawMessage(`98`), uuid.New()); err != nil {
		t.Fatalf("98+2 should be accepted: %v", err)
	}
	if _, err := svc.Update(ctx, KeyInsuranceFundPercentage, json.RawMessage(`"2.5"`), uuid.New()); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected ErrInvalidSetting for 98+2.5, got %v", err)
	}
	if _, err := svc.Update(ctx, KeyInsuranceFundPercentage, json.RawMessage(`0`), uuid.New()); err != nil {
		t.Fatalf("98+0 should be accepted: %v", err)
	}
}

func TestCalculateFeesNeverLeavesWorkerNegative(t *testing.T) {
	s := Defaults()
	s.PaymentFeesEnabled = true
	s.PlatformFeePercentage = d("50")
	s.InsuranceFundPercentage = d("50")

	// both fees round 0.005 up to 0.01
	calc := s.CalculateFees(d("0.01"))
	if calc.WorkerAmount.IsNegative() {
		t.Fatalf("worker amount went negative: %+v", calc)
	}
	if !calc.WorkerAmount.Add(calc.PlatformFee).Add(calc.InsuranceFee).Equal(calc.TotalAmount) {
		t.Fatalf("parts do not add up to total: %+v", calc)
	}

	// rows stored before the combined limit existed
	s.PlatformFeePercentage = d("99")
	s.InsuranceFundPercentage = d("2")
	calc = s.CalculateFees(d("100"))
	if !calc.PlatformFee.Equal(d("99")) || !calc.InsuranceFee.Equal(d("1")) || !calc.WorkerAmount.IsZero() {
		t.Fatalf("unexpected capped calculation %+v", calc)
	}
}
