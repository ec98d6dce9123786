package settings

import (
	"github.com/shopspring/decimal"
)

// Setting keys. The set is closed, PUT rejects anything else.
const (
	KeyPaymentFeesEnabled      = "payment_fees_enabled"
	KeyPlatformFeePercentage   = "platform_fee_percentage"
	KeyInsuranceFundPercentage = "insurance_fund_percentage"
	KeyEscrowCoolingPeriodDays = "escrow_cooling_period_days"
	KeyMinimumDepositUSD       = "minimum_deposit_usd"
	KeyMinimumWithdrawalUSD    = "minimum_withdrawal_usd"
	KeyBankTransferInfo        = "bank_transfer_info"
)

// BankTransferInfo is shown to users paying by bank transfer.
type BankTransferInfo struct {
	Bank        string `json:"bank"`
	Account     string `json:"account"`
	AccountName string `json:"account_name"`
}

// Settings are the platform wide payment settings.
type Settings struct {
	PaymentFeesEnabled      bool             `json:"payment_fees_enabled"`
	PlatformFeePercentage   decimal.Decimal  `json:"platform_fee_percentage"`
	InsuranceFundPercentage decimal.Decimal  `json:"insurance_fund_percentage"`
	EscrowCoolingPeriodDays int              `json:"escrow_cooling_period_days"`
	MinimumDepositUSD       decimal.Decimal  `json:"minimum_deposit_usd"`
	MinimumWithdrawalUSD    decimal.Decimal  `json:"minimum_withdrawal_usd"`
	BankTransferInfo        BankTransferInfo `json:"bank_transfer_info"`
}

// Defaults returns the settings used when a row is missing.
func Defaults() *Settings {
	return &Settings{
		PaymentFeesEnabled:      false,
		PlatformFeePercentage:   decimal.NewFromInt(10),
		InsuranceFundPercentage: decimal.NewFromInt(2),
		EscrowCoolingPeriodDays: 7,
		MinimumDepositUSD:       decimal.NewFromInt(10),
		MinimumWithdrawalUSD:    decimal.NewFromInt(20),
	}
}

// FeeCalculation splits a payment into fees and the worker share.
type FeeCalculation struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	InsuranceFee decimal.Decimal `json:"insurance_fee"`
	WorkerAmount decimal.Decimal `json:"worker_amount"`
	FeesEnabled  bool            `json:"fees_enabled"`
}

var hundred = decimal.NewFromInt(100)

// CalculateFees applies the fee percentages to amount. Each fee is rounded to
// cents and the worker receives the remainder. The insurance fee is cut when
// rounding would leave the worker less than zero.
func (s *Settings) CalculateFees(amount decimal.Decimal) FeeCalculation {
	calc := FeeCalculation{
		TotalAmount:  amount,
		PlatformFee:  decimal.Zero,
		InsuranceFee: decimal.Zero,
		FeesEnabled:  s.PaymentFeesEnabled,
	}
	if s.PaymentFeesEnabled {
		calc.PlatformFee = amount.Mul(s.PlatformFeePercentage).Div(hundred).Round(2)
		calc.InsuranceFee = amount.Mul(s.InsuranceFundPercentage).Div(hundred).Round(2)
		if rest := amount.Sub(calc.PlatformFee); calc.InsuranceFee.GreaterThan(rest) {
			calc.InsuranceFee = decimal.Max(rest, decimal.Zero)
		}
	}
	calc.WorkerAmount = amount.Sub(calc.PlatformFee).Sub(calc.InsuranceFee)
	return calc
}
