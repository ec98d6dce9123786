package deposit

import (
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/wallet"
)

type CreateRequest struct {
	AmountUSD     decimal.Decimal      `json:"amount_usd"`
	PaymentMethod wallet.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
	Metadata      *CreateMetadata      `json:"metadata,omitempty"`
}

type CreateMetadata struct {
	AmountVND *decimal.Decimal `json:"amount_vnd,omitempty"`
}

func (r *CreateRequest) amountVND() *decimal.Decimal {
	if r.Metadata == nil {
		return nil
	}
	return r.Metadata.AmountVND
}

type CaptureRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type BankDepositResponse struct {
	Deposit *BankDeposit `json:"deposit"`
}

type PayPalDepositResponse struct {
	PayPal        PayPalOrder `json:"paypal"`
	TransactionID string      `json:"transaction_id"`
}
