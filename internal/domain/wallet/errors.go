package wallet

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrInvalidAmount          = apperror.Validation("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrSubCentAmount          = apperror.Validation("INVALID_AMOUNT_PRECISION", "Amounts may have at most 2 decimal places")
	ErrInsufficientBalance    = apperror.Validation("INSUFFICIENT_BALANCE", "Insufficient wallet balance")
	ErrWalletFrozen           = apperror.Forbidden("WALLET_FROZEN", "Wallet is not active")
	ErrWalletNotFound         = apperror.NotFound("WALLET_NOT_FOUND", "Wallet not found")
	ErrBelowMinimum           = apperror.Validation("BELOW_MINIMUM_WITHDRAWAL", "Amount is below the minimum withdrawal")
	ErrInvalidDestination     = apperror.Validation("INVALID_DESTINATION", "Withdrawal destination is incomplete")
	ErrTransactionNotFound    = apperror.NotFound("TRANSACTION_NOT_FOUND", "Transaction not found")
	ErrNotWithdrawal          = apperror.Validation("NOT_A_WITHDRAWAL", "Only withdrawals can be completed")
	ErrTransactionFinal       = apperror.Validation("TRANSACTION_ALREADY_FINAL", "Transaction is already completed or failed")
	ErrPayoutFailed           = apperror.New(apperror.KindInfra, "PAYOUT_FAILED", "Payout could not be sent")
	ErrPayoutsUnavailable     = apperror.Validation("PAYPAL_UNAVAILABLE", "PayPal withdrawals are not configured")
	ErrInvalidTransactionType = apperror.Validation("INVALID_TRANSACTION_TYPE", "Unknown transaction type")
)
