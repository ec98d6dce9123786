package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
)

const (
	cacheKey = "settings:platform"
	cacheTTL = time.Minute
)

// Store persists raw setting values.
type Store interface {
	All(ctx context.Context) (map[string]json.RawMessage, error)
	Upsert(ctx context.Context, key string, value json.RawMessage, updatedBy uuid.UUID) error
}

type Service struct {
	store Store
	cache cache.Cache
}

func NewService(store Store, c cache.Cache) *Service {
	return &Service{store: store, cache: c}
}

// Get returns the current settings, reading through the shared cache.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	var cached map[string]string
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		raw := make(map[string]json.RawMessage, len(cached))
		for k, v := range cached {
			raw[k] = json.RawMessage(v)
		}
		return parse(raw), nil
	}

	raw, err := s.store.All(ctx)
	if err != nil {
		return nil, apperror.Infra("SETTINGS_LOAD_FAILED", err)
	}

	toCache := make(map[string]string, len(raw))
	for k, v := range raw {
		toCache[k] = string(v)
	}
	if err := s.cache.Set(ctx, cacheKey, toCache, cacheTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache platform settings")
	}

	return parse(raw), nil
}

// Update validates and stores one setting, then drops the cached copy.
func (s *Service) Update(ctx context.Context, key string, value json.RawMessage, adminID uuid.UUID) (*Settings, error) {
	if err := validateValue(key, value); err != nil {
		return nil, err
	}
	if key == KeyPlatformFeePercentage || key == KeyInsuranceFundPercentage {
		if err := s.checkFeeTotal(ctx, key, value); err != nil {
			return nil, err
		}
	}
	if err := s.store.Upsert(ctx, key, value, adminID); err != nil {
		return nil, apperror.Infra("SETTINGS_UPDATE_FAILED", err)
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate platform settings cache")
	}

	log.Info().Str("key", key).Str("admin_id", adminID.String()).RawJSON("value", value).Msg("Platform setting updated")
	return s.Get(ctx)
}

// checkFeeTotal keeps platform and insurance fees within the amount paid.
// The stored rows are read directly so a stale cache cannot let a pair of
// updates add up to more than 100.
func (s *Service) checkFeeTotal(ctx context.Context, key string, value json.RawMessage) error {
	raw, err := s.store.All(ctx)
	if err != nil {
		return apperror.Infra("SETTINGS_LOAD_FAILED", err)
	}
	candidate := parse(raw)
	if err := json.Unmarshal(value, candidate.field(key)); err != nil {
		return ErrInvalidSetting.WithMessage("Invalid value for %s", key)
	}
	if candidate.PlatformFeePercentage.Add(candidate.InsuranceFundPercentage).GreaterThan(hundred) {
		return ErrInvalidSetting.WithMessage("%s and %s must not exceed 100 together",
			KeyPlatformFeePercentage, KeyInsuranceFundPercentage)
	}
	return nil
}

// CalculateFees splits amount using the current settings.
func (s *Service) CalculateFees(ctx context.Context, amount decimal.Decimal) (*FeeCalculation, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	calc := settings.CalculateFees(amount)
	return &calc, nil
}

// parse overlays stored values on the defaults. A malformed stored value
// keeps its default so one bad row cannot take payments down.
func parse(raw map[string]json.RawMessage) *Settings {
	s := Defaults()
	for key, value := range raw {
		target := s.field(key)
		if target == nil {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Ignoring malformed platform setting")
		}
	}
	return s
}

func (s *Settings) field(key string) interface{} {
	switch key {
	case KeyPaymentFeesEnabled:
		return &s.PaymentFeesEnabled
	case KeyPlatformFeePercentage:
		return &s.PlatformFeePercentage
	case KeyInsuranceFundPercentage:
		return &s.InsuranceFundPercentage
	case KeyEscrowCoolingPeriodDays:
		return &s.EscrowCoolingPeriodDays
	case KeyMinimumDepositUSD:
		return &s.MinimumDepositUSD
	case KeyMinimumWithdrawalUSD:
		return &s.MinimumWithdrawalUSD
	case KeyBankTransferInfo:
		return &s.BankTransferInfo
	}
	return nil
}

func validateValue(key string, value json.RawMessage) error {
	probe := Defaults()
	target := probe.field(key)
	if target == nil {
		return ErrInvalidSetting.WithMessage("Unknown setting key %q", key)
	}
	if len(value) == 0 || string(value) == "null" {
		return ErrInvalidSetting.WithMessage("Value is required for %s", key)
	}
	if err := json.Unmarshal(value, target); err != nil {
		return ErrInvalidSetting.WithMessage("Invalid value for %s", key)
	}

	switch key {
	case KeyPlatformFeePercentage, KeyInsuranceFundPercentage:
		v := *(target.(*decimal.Decimal))
		if v.IsNegative() || v.GreaterThan(hundred) {
			return ErrInvalidSetting.WithMessage("%s must be between 0 and 100", key)
		}
	case KeyMinimumDepositUSD, KeyMinimumWithdrawalUSD:
		if target.(*decimal.Decimal).IsNegative() {
			return ErrInvalidSetting.WithMessage("%s must not be negative", key)
		}
	case KeyEscrowCoolingPeriodDays:
		if v := *(target.(*int)); v < 0 || v > 365 {
			return ErrInvalidSetting.WithMessage("%s must be between 0 and 365", key)
		}
	}
	return nil
}
