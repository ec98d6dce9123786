package wallet

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Destination holds the payout target. Which fields are required depends on
// the payment method.
type Destination struct {
	PayPalEmail   string `json:"paypal_email,omitempty"`
	BankAccount   string `json:"bank_account,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
}

// WithdrawRequest is the body of POST /wallet/withdraw
type WithdrawRequest struct {
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,withdraw_method"`
	Destination   Destination     `json:"destination"`
}

// CompleteRequest is the body of POST /admin/wallet/transaction/complete
type CompleteRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
}

// BalanceResponse answers GET /wallet/balance
type BalanceResponse struct {
	Wallet  *Wallet  `json:"wallet"`
	Summary *Summary `json:"summary"`
}

// Summary is the wallet overview shown next to the balance.
type Summary struct {
	AvailableBalance   decimal.Decimal `json:"available_balance"`
	PendingBalance     decimal.Decimal `json:"pending_balance"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	ActiveEscrows      int             `json:"active_escrows"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
}
