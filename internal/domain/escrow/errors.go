package escrow

import "github.com/taskhub/taskhub-api/internal/pkg/apperror"

var (
	ErrEscrowNotFound          = apperror.NotFound("ESCROW_NOT_FOUND", "Escrow not found")
	ErrAlreadyResolved         = apperror.Conflict("ESCROW_ALREADY_RESOLVED", "Escrow has already been resolved")
	ErrHasComplaint            = apperror.Conflict("ESCROW_HAS_COMPLAINT", "Escrow is under dispute")
	ErrCoolingPeriodActive     = apperror.Validation("COOLING_PERIOD_ACTIVE", "Cooling period not yet complete")
	ErrComplaintWindowExpired  = apperror.Validation("COMPLAINT_WINDOW_EXPIRED", "Complaint window expired")
	ErrComplaintTooEarly       = apperror.Validation("COMPLAINT_NOT_ALLOWED", "Complaint not allowed before the job is overdue or completed")
	ErrAmountMismatch          = apperror.Validation("AMOUNT_MISMATCH", "Worker amount and employer refund must add up to the escrow total")
	ErrPartialAmountsRequired  = apperror.Validation("INVALID_RESOLUTION", "worker_amount and employer_refund are required for partial_refund")
	ErrResolutionNotesRequired = apperror.Validation("RESOLUTION_NOTES_REQUIRED", "resolution_notes is required")
	ErrInvalidAction           = apperror.Validation("INVALID_ACTION", "Unknown resolution action")
	ErrInvalidAmount           = apperror.Validation("INVALID_AMOUNT", "Invalid payment amount")
	ErrFeesExceedAmount        = apperror.Validation("INVALID_FEES", "Platform fees exceed the payment amount")
	ErrInvalidWorker           = apperror.Validation("INVALID_WORKER", "Recipient is not a worker")
	ErrSelfPayment             = apperror.Validation("SELF_PAYMENT", "You cannot pay yourself")
	ErrSweepRunning            = apperror.Conflict("SWEEP_IN_PROGRESS", "Another release sweep is running")
	ErrNotParty                = apperror.Forbidden("NOT_ESCROW_PARTY", "You are not a party of this escrow")
)
