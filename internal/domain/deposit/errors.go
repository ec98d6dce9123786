package deposit

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrBelowMinimum        = apperror.Validation("BELOW_MINIMUM_DEPOSIT", "Amount is below the minimum deposit")
	ErrInvalidAmount       = apperror.Validation("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrInvalidMethod       = apperror.Validation("INVALID_PAYMENT_METHOD", "Invalid payment method")
	ErrBankUnavailable     = apperror.Validation("BANK_TRANSFER_UNAVAILABLE", "Bank transfer deposits are not configured")
	ErrPayPalUnavailable   = apperror.Validation("PAYPAL_UNAVAILABLE", "PayPal deposits are not configured")
	ErrDepositNotFound     = apperror.NotFound("DEPOSIT_NOT_FOUND", "Deposit not found")
	ErrOrderNotFound       = apperror.NotFound("PAYPAL_ORDER_NOT_FOUND", "PayPal order not found")
	ErrOrderClosed         = apperror.Conflict("PAYPAL_ORDER_CLOSED", "PayPal order is no longer payable")
	ErrCaptureInProgress   = apperror.Conflict("PAYPAL_CAPTURE_IN_PROGRESS", "PayPal payment is being processed, try again shortly")
	ErrPaymentNotCompleted = apperror.Validation("PAYMENT_NOT_COMPLETED", "PayPal payment was not completed")
	ErrPayPalFailed        = apperror.New(apperror.KindInfra, "PAYPAL_ERROR", "PayPal request failed")
)
