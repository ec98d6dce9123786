package booking

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrBookingNotFound     = apperror.NotFound("BOOKING_NOT_FOUND", "Booking not found")
	ErrServiceNotFound     = apperror.NotFound("WORKER_SERVICE_NOT_FOUND", "Worker service not found")
	ErrServiceNotOwned     = apperror.Validation("WORKER_SERVICE_MISMATCH", "Worker service does not belong to the specified worker")
	ErrWorkerNotFound      = apperror.NotFound("WORKER_NOT_FOUND", "Worker not found")
	ErrNotAWorker          = apperror.Validation("INVALID_WORKER", "The specified user is not a worker")
	ErrWorkerBanned        = apperror.Forbidden("WORKER_BANNED", "Worker account is banned")
	ErrInvalidDuration     = apperror.Validation("INVALID_DURATION", "Duration must be greater than zero")
	ErrInvalidDate         = apperror.Validation("INVALID_DATE", "Invalid booking dates")
	ErrInsufficientBalance = apperror.Validation("INSUFFICIENT_BALANCE", "Insufficient wallet balance")
	ErrInvalidTransition   = apperror.Validation("INVALID_TRANSITION", "Booking cannot change to the requested status")
	ErrNotParty            = apperror.Forbidden("NOT_BOOKING_PARTY", "You are not allowed to change this booking")
	ErrEscrowMissing       = apperror.NotFound("ESCROW_NOT_FOUND", "Escrow not found for this booking")
	ErrInvalidRate         = apperror.Validation("INVALID_RATE", "Hourly rate must be greater than zero")
)
