package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
	"github.com/taskhub/taskhub-api/internal/pkg/lock"
)

const (
	complaintWindow = 72 * time.Hour
	sweepBatchSize  = 500
	sweepLockKey    = "lock:escrow:release_due"
	sweepLockTTL    = 5 * time.Minute
)

// ProfileReader loads user profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error)
}

// SettingsProvider returns the current platform settings.
type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// ReleaseScheduler queues the automatic release of a hold.
type ReleaseScheduler interface {
	ScheduleEscrowRelease(ctx context.Context, escrowID uuid.UUID, at time.Time) error
}

// DisputeNotifier alerts operations about new complaints.
type DisputeNotifier interface {
	EscrowDisputed(escrowID, filedBy string, amount decimal.Decimal, description string)
}

// EventPublisher pushes realtime events to a user.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data interface{})
}

type Service struct {
	repo      *Repository
	users     ProfileReader
	settings  SettingsProvider
	scheduler ReleaseScheduler
	notifier  DisputeNotifier
	events    EventPublisher
	redis     *redis.Client
	now       func() time.Time
}

func NewService(repo *Repository, users ProfileReader, settingsProvider SettingsProvider) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		settings: settingsProvider,
		now:      time.Now,
	}
}

// SetScheduler sets the job queue used for automatic releases.
func (s *Service) SetScheduler(scheduler ReleaseScheduler) {
	s.scheduler = scheduler
}

func (s *Service) SetNotifier(notifier DisputeNotifier) {
	s.notifier = notifier
}

func (s *Service) SetEventPublisher(events EventPublisher) {
	s.events = events
}

// SetLockClient makes ReleaseDue exclusive across processes.
func (s *Service) SetLockClient(client *redis.Client) {
	s.redis = client
}

// DB exposes the handle so callers can compose escrow writes with their own.
func (s *Service) DB() *sqlx.DB {
	return s.repo.db
}

// ProcessPayment takes amount from the employer and holds it for the worker.
func (s *Service) ProcessPayment(ctx context.Context, employerID uuid.UUID, req PaymentRequest) (*PaymentResult, error) {
	var res *PaymentResult
	err := database.WithTx(ctx, s.repo.db, func(tx *sqlx.Tx) error {
		var err error
		res, err = s.PayInTx(ctx, tx, employerID, req)
		return err
	})
	if err != nil {
		return nil, apperror.OrInfra("PAYMENT_FAILED", err)
	}
	s.AfterCommit(ctx, res.Escrow)
	return res, nil
}

// PayInTx is ProcessPayment inside a caller owned transaction. The caller
// must invoke AfterCommit with the hold once the transaction commits.
func (s *Service) PayInTx(ctx context.Context, tx sqlx.ExtContext, employerID uuid.UUID, req PaymentRequest) (*PaymentResult, error) {
	if !req.AmountUSD.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !wallet.WholeCents(req.AmountUSD) {
		return nil, wallet.ErrSubCentAmount
	}
	if req.WorkerID == employerID {
		return nil, ErrSelfPayment
	}

	worker, err := s.users.GetByID(ctx, req.WorkerID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidWorker
		}
		return nil, err
	}
	if !worker.IsWorker() || worker.IsBanned {
		return nil, ErrInvalidWorker
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	fees := cfg.CalculateFees(req.AmountUSD)
	if fees.WorkerAmount.IsNegative() {
		return nil, ErrFeesExceedAmount
	}
	cooling := cfg.EscrowCoolingPeriodDays
	if req.CoolingPeriodDays != nil && *req.CoolingPeriodDays > 0 {
		cooling = *req.CoolingPeriodDays
	}

	now := s.now().UTC()
	hold := &Hold{
		ID:                uuid.New(),
		JobID:             req.JobID,
		EmployerID:        employerID,
		WorkerID:          req.WorkerID,
		TotalAmountUSD:    req.AmountUSD,
		PlatformFeeUSD:    fees.PlatformFee,
		InsuranceFeeUSD:   fees.InsuranceFee,
		WorkerAmountUSD:   fees.WorkerAmount,
		Status:            StatusHeld,
		Description:       req.Description,
		CoolingPeriodDays: cooling,
		HoldUntil:         now.Add(time.Duration(cooling) * 24 * time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	description := req.Description
	if description == "" {
		description = "Payment to " + worker.FullName
	}
	meta := map[string]interface{}{"fees": fees, "worker_id": req.WorkerID.String()}

	if err := wallet.EnsureWallet(ctx, tx, employerID); err != nil {
		return nil, err
	}
	w, err := wallet.ApplyDelta(ctx, tx, employerID, wallet.Delta{
		Balance: req.AmountUSD.Neg(),
		Spent:   req.AmountUSD,
	})
	if err != nil {
		return nil, err
	}

	payment := &wallet.Transaction{
		UserID:        employerID,
		Type:          wallet.TypePayment,
		AmountUSD:     req.AmountUSD,
		Status:        wallet.TxCompleted,
		PaymentMethod: wallet.MethodEscrow,
		BalanceBefore: wallet.NullAmount(w.BalanceUSD.Add(req.AmountUSD)),
		BalanceAfter:  wallet.NullAmount(w.BalanceUSD),
		EscrowID:      &hold.ID,
		JobID:         req.JobID,
		RelatedUserID: &req.WorkerID,
		Description:   description,
		Metadata:      wallet.MetadataJSON(meta),
	}
	if err := wallet.InsertTransaction(ctx, tx, payment); err != nil {
		return nil, err
	}

	hold.PaymentTransactionID = &payment.ID
	if err := insertHold(ctx, tx, hold); err != nil {
		return nil, err
	}

	// visible in the worker's history; the balance moves on release
	if err := wallet.EnsureWallet(ctx, tx, req.WorkerID); err != nil {
		return nil, err
	}
	audit := &wallet.Transaction{
		UserID:        req.WorkerID,
		Type:          wallet.TypeEscrowHold,
		AmountUSD:     fees.WorkerAmount,
		Status:        wallet.TxCompleted,
		PaymentMethod: wallet.MethodEscrow,
		EscrowID:      &hold.ID,
		JobID:         req.JobID,
		RelatedUserID: &employerID,
		Description:   "Funds held in escrow",
		Metadata:      wallet.MetadataJSON(meta),
	}
	if err := wallet.InsertTransaction(ctx, tx, audit); err != nil {
		return nil, err
	}

	log.Info().
		Str("escrow_id", hold.ID.String()).
		Str("employer_id", employerID.String()).
		Str("worker_id", req.WorkerID.String()).
		Str("amount_usd", req.AmountUSD.StringFixed(2)).
		Time("hold_until", hold.HoldUntil).
		Msg("Escrow payment held")

	return &PaymentResult{Escrow: hold, Transaction: payment}, nil
}

// Release pays the worker share out of a hold.
func (s *Service) Release(ctx context.Context, id uuid.UUID, by ReleaseBy) (*Hold, error) {
	var hold *Hold
	err := database.WithTx(ctx, s.repo.db, func(tx *sqlx.Tx) error {
		var err error
		hold, err = s.ReleaseInTx(ctx, tx, id, by)
		return err
	})
	if err != nil {
		return nil, apperror.OrInfra("ESCROW_RELEASE_FAILED", err)
	}
	s.AfterCommit(ctx, hold)
	return hold, nil
}

// ReleaseInTx is Release inside a caller owned transaction.
func (s *Service) ReleaseInTx(ctx context.Context, tx sqlx.ExtContext, id uuid.UUID, by ReleaseBy) (*Hold, error) {
	hold, err := getHold(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkRelease(hold, by); err != nil {
		return nil, err
	}
	if err := s.release(ctx, tx, hold, by.label()); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *Service) checkRelease(h *Hold, by ReleaseBy) error {
	if h.Status.Terminal() {
		return ErrAlreadyResolved
	}
	if by.Employer && h.EmployerID != by.UserID {
		return ErrNotParty
	}
	if by.Admin {
		return nil
	}
	if h.Status == StatusDisputed || h.HasComplaint {
		return ErrHasComplaint
	}
	if !by.Employer && h.HoldUntil.After(s.now()) {
		return ErrCoolingPeriodActive
	}
	return nil
}

// release credits the worker share and books the withheld fees.
func (s *Service) release(ctx context.Context, tx sqlx.ExtContext, h *Hold, releasedBy string) error {
	payout, err := s.payWorker(ctx, tx, h, h.WorkerAmountUSD, "Payment received", map[string]interface{}{
		"released_by": releasedBy,
	})
	if err != nil {
		return err
	}

	fees := []struct {
		typ    wallet.TransactionType
		amount decimal.Decimal
	}{
		{wallet.TypePlatformFee, h.PlatformFeeUSD},
		{wallet.TypeInsuranceFee, h.InsuranceFeeUSD},
	}
	for _, fee := range fees {
		if !fee.amount.IsPositive() {
			continue
		}
		if err := wallet.InsertTransaction(ctx, tx, &wallet.Transaction{
			UserID:        h.WorkerID,
			Type:          fee.typ,
			AmountUSD:     fee.amount,
			Status:        wallet.TxCompleted,
			PaymentMethod: wallet.MethodInternal,
			EscrowID:      &h.ID,
			JobID:         h.JobID,
			RelatedUserID: &h.EmployerID,
			Description:   fmt.Sprintf("%s withheld from escrow", strings.ReplaceAll(string(fee.typ), "_", " ")),
		}); err != nil {
			return err
		}
	}

	now := s.now().UTC()
	h.Status = StatusReleased
	h.ReleaseTransactionID = &payout.ID
	h.ReleasedAt = &now
	if err := saveOutcome(ctx, tx, h); err != nil {
		return err
	}

	log.Info().
		Str("escrow_id", h.ID.String()).
		Str("worker_id", h.WorkerID.String()).
		Str("amount_usd", h.WorkerAmountUSD.StringFixed(2)).
		Str("released_by", releasedBy).
		Msg("Escrow released")
	return nil
}

func (s *Service) payWorker(ctx context.Context, tx sqlx.ExtContext, h *Hold, amount decimal.Decimal, description string, meta map[string]interface{}) (*wallet.Transaction, error) {
	if err := wallet.EnsureWallet(ctx, tx, h.WorkerID); err != nil {
		return nil, err
	}
	w, err := wallet.ApplyDelta(ctx, tx, h.WorkerID, wallet.Delta{Balance: amount, Earned: amount})
	if err != nil {
		return nil, err
	}
	t := &wallet.Transaction{
		UserID:        h.WorkerID,
		Type:          wallet.TypeEscrowRelease,
		AmountUSD:     amount,
		Status:        wallet.TxCompleted,
		PaymentMethod: wallet.MethodEscrow,
		BalanceBefore: wallet.NullAmount(w.BalanceUSD.Sub(amount)),
		BalanceAfter:  wallet.NullAmount(w.BalanceUSD),
		EscrowID:      &h.ID,
		JobID:         h.JobID,
		RelatedUserID: &h.EmployerID,
		Description:   description,
		Metadata:      wallet.MetadataJSON(meta),
	}
	if err := wallet.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) refundEmployer(ctx context.Context, tx sqlx.ExtContext, h *Hold, amount decimal.Decimal, description string, meta map[string]interface{}) (*wallet.Transaction, error) {
	w, err := wallet.ApplyDelta(ctx, tx, h.EmployerID, wallet.Delta{Balance: amount, Spent: amount.Neg()})
	if err != nil {
		return nil, err
	}
	t := &wallet.Transaction{
		UserID:        h.EmployerID,
		Type:          wallet.TypeRefund,
		AmountUSD:     amount,
		Status:        wallet.TxCompleted,
		PaymentMethod: wallet.MethodEscrow,
		BalanceBefore: wallet.NullAmount(w.BalanceUSD.Sub(amount)),
		BalanceAfter:  wallet.NullAmount(w.BalanceUSD),
		EscrowID:      &h.ID,
		JobID:         h.JobID,
		RelatedUserID: &h.WorkerID,
		Description:   description,
		Metadata:      wallet.MetadataJSON(meta),
	}
	if err := wallet.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// FileComplaint puts a hold under dispute. Either party may complain while
// the money is still held.
func (s *Service) FileComplaint(ctx context.Context, id, userID uuid.UUID, description string) (*Hold, error) {
	var hold *Hold
	err := database.WithTx(ctx, s.repo.db, func(tx *sqlx.Tx) error {
		h, err := getHold(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !h.IsParty(userID) {
			return ErrNotParty
		}
		if h.Status != StatusHeld && h.Status != StatusDisputed {
			return ErrComplaintWindowExpired
		}
		if h.JobID != nil {
			if err := s.checkComplaintWindow(ctx, tx, *h.JobID); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		desc := strings.TrimSpace(description)
		h.Status = StatusDisputed
		h.HasComplaint = true
		h.ComplaintDescription = &desc
		h.ComplaintFiledBy = &userID
		h.ComplaintFiledAt = &now
		if err := saveOutcome(ctx, tx, h); err != nil {
			return err
		}
		if h.JobID != nil {
			if err := markBookingDisputed(ctx, tx, *h.JobID); err != nil {
				return err
			}
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, apperror.OrInfra("COMPLAINT_FAILED", err)
	}

	log.Info().Str("escrow_id", id.String()).Str("user_id", userID.String()).Msg("Escrow complaint filed")
	s.AfterCommit(ctx, hold)
	return hold, nil
}

// checkComplaintWindow applies the booking rules: a complaint is allowed
// once the job is overdue or the worker marked it done, and for 72 hours
// after that.
func (s *Service) checkComplaintWindow(ctx context.Context, q sqlx.ExtContext, bookingID uuid.UUID) error {
	b, err := getBookingWindow(ctx, q, bookingID)
	if err != nil || b == nil {
		return err
	}
	now := s.now()
	overdue := now.After(b.EndDate)
	if !overdue && b.WorkerCompletedAt == nil {
		return ErrComplaintTooEarly
	}

	base := b.EndDate
	if (b.Status == "worker_completed" || b.Status == "client_completed") && b.WorkerCompletedAt != nil {
		base = *b.WorkerCompletedAt
	}
	if now.Sub(base) > complaintWindow {
		return ErrComplaintWindowExpired
	}
	return nil
}

// Resolve settles a hold on an admin decision.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest, adminID uuid.UUID) (*Hold, error) {
	notes := strings.TrimSpace(req.ResolutionNotes)
	if notes == "" {
		return nil, ErrResolutionNotesRequired
	}
	switch req.Action {
	case ActionReleaseToWorker, ActionRefundToEmployer:
	case ActionPartialRefund:
		if req.WorkerAmount == nil || req.EmployerRefund == nil {
			return nil, ErrPartialAmountsRequired
		}
		if req.WorkerAmount.IsNegative() || req.EmployerRefund.IsNegative() {
			return nil, ErrInvalidAmount.WithMessage("Partial refund amounts must not be negative")
		}
		if !wallet.WholeCents(*req.WorkerAmount) || !wallet.WholeCents(*req.EmployerRefund) {
			return nil, wallet.ErrSubCentAmount
		}
	default:
		return nil, ErrInvalidAction
	}

	var hold *Hold
	err := database.WithTx(ctx, s.repo.db, func(tx *sqlx.Tx) error {
		h, err := getHold(ctx, tx, req.EscrowID, true)
		if err != nil {
			return err
		}
		if h.Status.Terminal() {
			return ErrAlreadyResolved
		}

		meta := map[string]interface{}{"resolved_by": adminID.String(), "resolution_notes": notes}
		switch req.Action {
		case ActionReleaseToWorker:
			if err := s.release(ctx, tx, h, adminID.String()); err != nil {
				return err
			}
		case ActionRefundToEmployer:
			refund, err := s.refundEmployer(ctx, tx, h, h.TotalAmountUSD, "Refund due to complaint resolution", meta)
			if err != nil {
				return err
			}
			h.Status = StatusRefunded
			h.ReleaseTransactionID = &refund.ID
		case ActionPartialRefund:
			if !req.WorkerAmount.Add(*req.EmployerRefund).Equal(h.TotalAmountUSD) {
				return ErrAmountMismatch.WithMessage("worker_amount + employer_refund must equal %s", h.TotalAmountUSD.StringFixed(2))
			}
			if err := s.splitHold(ctx, tx, h, *req.WorkerAmount, *req.EmployerRefund, meta); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		resolution := string(req.Action)
		h.Resolution = &resolution
		h.ResolutionNotes = &notes
		h.ResolvedBy = &adminID
		h.ResolvedAt = &now
		if h.ReleasedAt == nil {
			h.ReleasedAt = &now
		}
		if err := saveOutcome(ctx, tx, h); err != nil {
			return err
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, apperror.OrInfra("RESOLUTION_FAILED", err)
	}

	log.Info().
		Str("escrow_id", hold.ID.String()).
		Str("admin_id", adminID.String()).
		Str("action", string(req.Action)).
		Msg("Escrow resolved")

	s.AfterCommit(ctx, hold)
	return hold, nil
}

// splitHold pays out a partial refund. Fees are waived on disputed splits.
func (s *Service) splitHold(ctx context.Context, tx sqlx.ExtContext, h *Hold, workerAmount, employerRefund decimal.Decimal, meta map[string]interface{}) error {
	var releaseTx *wallet.Transaction
	if workerAmount.IsPositive() {
		t, err := s.payWorker(ctx, tx, h, workerAmount, "Partial payment (complaint resolution)", meta)
		if err != nil {
			return err
		}
		releaseTx = t
	}
	if employerRefund.IsPositive() {
		t, err := s.refundEmployer(ctx, tx, h, employerRefund, "Partial refund (complaint resolution)", meta)
		if err != nil {
			return err
		}
		if releaseTx == nil {
			releaseTx = t
		}
	}
	h.Status = StatusReleased
	if releaseTx != nil {
		h.ReleaseTransactionID = &releaseTx.ID
	}
	return nil
}

// CancelInTx refunds the full amount of a held escrow to the employer. It is
// used when the booking behind the escrow is cancelled.
func (s *Service) CancelInTx(ctx context.Context, tx sqlx.ExtContext, id uuid.UUID, reason string) (*Hold, error) {
	h, err := getHold(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if h.Status.Terminal() {
		return nil, ErrAlreadyResolved
	}
	if h.Status == StatusDisputed {
		return nil, ErrHasComplaint
	}

	refund, err := s.refundEmployer(ctx, tx, h, h.TotalAmountUSD, "Refund for cancelled booking", map[string]interface{}{
		"reason": reason,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	h.Status = StatusCancelled
	h.ReleaseTransactionID = &refund.ID
	h.ResolutionNotes = &reason
	h.ReleasedAt = &now
	if err := saveOutcome(ctx, tx, h); err != nil {
		return nil, err
	}

	log.Info().Str("escrow_id", h.ID.String()).Str("reason", reason).Msg("Escrow cancelled and refunded")
	return h, nil
}

// ReleaseDue releases every hold whose cooling period ended without a
// complaint. Only one process runs the sweep at a time.
func (s *Service) ReleaseDue(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{Errors: []string{}}
	err := lock.Run(ctx, s.redis, sweepLockKey, sweepLockTTL, func(ctx context.Context) error {
		ids, err := s.repo.DueIDs(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return err
		}
		result.Total = len(ids)
		for _, id := range ids {
			if _, err := s.Release(ctx, id, ReleaseBy{}); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
				log.Warn().Err(err).Str("escrow_id", id.String()).Msg("Automatic escrow release failed")
				continue
			}
			result.Released++
		}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, ErrSweepRunning
	}
	if err != nil {
		return nil, apperror.OrInfra("ESCROW_SWEEP_FAILED", err)
	}

	log.Info().Int("total", result.Total).Int("released", result.Released).Int("failed", result.Failed).Msg("Escrow release sweep finished")
	return result, nil
}

func (s *Service) Get(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*Hold, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.OrInfra("ESCROW_LOAD_FAILED", err)
	}
	if !isAdmin && !h.IsParty(userID) {
		return nil, ErrNotParty
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Hold, int, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperror.Infra("ESCROW_LIST_FAILED", err)
	}
	return items, total, nil
}

// AfterCommit runs the side effects of a committed escrow change: the
// release job for new holds, realtime events and dispute alerts.
func (s *Service) AfterCommit(ctx context.Context, h *Hold) {
	if h == nil {
		return
	}
	switch h.Status {
	case StatusHeld:
		if s.scheduler != nil {
			if err := s.scheduler.ScheduleEscrowRelease(ctx, h.ID, h.HoldUntil); err != nil {
				// the periodic sweep still releases it
				log.Warn().Err(err).Str("escrow_id", h.ID.String()).Msg("Failed to schedule escrow release")
			}
		}
		s.publish(ctx, h, realtime.EventEscrowCreated)
	case StatusReleased:
		s.publish(ctx, h, realtime.EventEscrowReleased)
	case StatusRefunded, StatusCancelled:
		s.publish(ctx, h, realtime.EventEscrowRefunded)
	case StatusDisputed:
		s.publish(ctx, h, realtime.EventEscrowDisputed)
		if s.notifier != nil {
			filedBy, description := "", ""
			if h.ComplaintFiledBy != nil {
				filedBy = h.ComplaintFiledBy.String()
			}
			if h.ComplaintDescription != nil {
				description = *h.ComplaintDescription
			}
			s.notifier.EscrowDisputed(h.ID.String(), filedBy, h.TotalAmountUSD, description)
		}
	}
}

func (s *Service) publish(ctx context.Context, h *Hold, event string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, h.EmployerID, event, h)
	s.events.Publish(ctx, h.WorkerID, event, h)
	s.events.Publish(ctx, h.EmployerID, realtime.EventWalletUpdated, nil)
	s.events.Publish(ctx, h.WorkerID, realtime.EventWalletUpdated, nil)
}
