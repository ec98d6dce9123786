package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
	"github.com/taskhub/taskhub-api/internal/pkg/paypal"
	"github.com/taskhub/taskhub-api/internal/pkg/sepay"
	"github.com/taskhub/taskhub-api/internal/pkg/storage"
)

const createAttempts = 3

var reviewTolerance = decimal.NewFromInt(2)

// SettingsProvider returns the current platform settings.
type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// OrderGateway creates and captures PayPal checkout orders.
type OrderGateway interface {
	Configured() bool
	CreateOrder(ctx context.Context, amount decimal.Decimal, reference, description string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

// OpsNotifier alerts the operations team about deposits needing a human.
type OpsNotifier interface {
	DepositCreditFailed(depositID, transferContent, referenceCode string, amountVND decimal.Decimal, reason string)
	DepositNeedsReview(depositID, referenceCode string, expected, received decimal.Decimal)
}

// ExpiryScheduler queues the expiry of an unpaid bank deposit.
type ExpiryScheduler interface {
	ScheduleDepositExpiry(ctx context.Context, depositID uuid.UUID, at time.Time) error
}

// EventPublisher pushes realtime events to a user.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data interface{})
}

// Config holds the receiving bank account and conversion parameters.
type Config struct {
	Account  sepay.Account
	USDToVND decimal.Decimal
	TTL      time.Duration
}

type Service struct {
	repo      *Repository
	settings  SettingsProvider
	cfg       Config
	orders    OrderGateway
	archive   storage.Archive
	ops       OpsNotifier
	scheduler ExpiryScheduler
	events    EventPublisher
	now       func() time.Time
}

func NewService(repo *Repository, settingsProvider SettingsProvider, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if !cfg.USDToVND.IsPositive() {
		cfg.USDToVND = decimal.NewFromInt(24000)
	}
	return &Service{
		repo:     repo,
		settings: settingsProvider,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetOrderGateway enables PayPal deposits.
func (s *Service) SetOrderGateway(orders OrderGateway) {
	s.orders = orders
}

// SetArchive sets where raw webhook bodies are kept.
func (s *Service) SetArchive(archive storage.Archive) {
	s.archive = archive
}

func (s *Service) SetNotifier(ops OpsNotifier) {
	s.ops = ops
}

func (s *Service) SetScheduler(scheduler ExpiryScheduler) {
	s.scheduler = scheduler
}

func (s *Service) SetEventPublisher(events EventPublisher) {
	s.events = events
}

func (s *Service) checkMinimum(ctx context.Context, amount decimal.Decimal) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if amount.LessThan(cfg.MinimumDepositUSD) {
		return ErrBelowMinimum.WithMessage("Minimum deposit is $%s", cfg.MinimumDepositUSD.StringFixed(2))
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !wallet.WholeCents(amount) {
		return wallet.ErrSubCentAmount
	}
	return nil
}

// account returns the receiving account, falling back to the bank details
// an admin stored in the platform settings.
func (s *Service) account(ctx context.Context) (sepay.Account, error) {
	acc := s.cfg.Account
	if acc.AccountNumber != "" {
		return acc, nil
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return acc, err
	}
	if cfg.BankTransferInfo.Account == "" {
		return acc, ErrBankUnavailable
	}
	acc.AccountNumber = cfg.BankTransferInfo.Account
	acc.BankName = cfg.BankTransferInfo.Bank
	acc.AccountName = cfg.BankTransferInfo.AccountName
	return acc, nil
}

// CreateBankDeposit opens a VietQR deposit request. amountVND overrides the
// converted amount when the client already quoted one.
func (s *Service) CreateBankDeposit(ctx context.Context, userID uuid.UUID, amountUSD decimal.Decimal, amountVND *decimal.Decimal) (*BankDeposit, error) {
	if err := s.checkMinimum(ctx, amountUSD); err != nil {
		return nil, err
	}
	acc, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	vnd := amountUSD.Mul(s.cfg.USDToVND).Round(0)
	if amountVND != nil && amountVND.IsPositive() {
		vnd = amountVND.Round(0)
	}

	now := s.now().UTC()
	d := &BankDeposit{
		ID:          uuid.New(),
		UserID:      userID,
		AmountUSD:   amountUSD,
		AmountVND:   vnd,
		BankName:    acc.BankName,
		BankAccount: acc.AccountNumber,
		Status:      StatusPending,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	// transfer memos are random; retry the rare collision
	for attempt := 1; ; attempt++ {
		d.TransferContent = sepay.NewTransferContent(s.now())
		d.QRCodeURL = acc.QRURL(vnd, d.TransferContent, sepay.TemplateCompact2)
		err = s.repo.Create(ctx, d)
		if err == nil {
			break
		}
		if !database.IsUniqueViolation(err) || attempt == createAttempts {
			return nil, apperror.Infra("DEPOSIT_CREATE_FAILED", err)
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleDepositExpiry(ctx, d.ID, d.ExpiresAt); err != nil {
			log.Warn().Err(err).Str("deposit_id", d.ID.String()).Msg("Failed to schedule deposit expiry")
		}
	}

	log.Info().
		Str("deposit_id", d.ID.String()).
		Str("user_id", userID.String()).
		Str("amount_usd", amountUSD.StringFixed(2)).
		Str("amount_vnd", vnd.String()).
		Str("transfer_content", d.TransferContent).
		Msg("Bank deposit created")

	return d, nil
}

// GetDeposit returns a deposit owned by the user.
func (s *Service) GetDeposit(ctx context.Context, id, userID uuid.UUID) (*BankDeposit, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.OrInfra("DEPOSIT_LOAD_FAILED", err)
	}
	if d.UserID != userID {
		return nil, ErrDepositNotFound
	}
	return d, nil
}

// ProcessBankWebhook credits the deposit a bank notification refers to.
// Notifications are delivered at least once; a deposit is credited at most
// once. Credit failures are reported in the result, not as an error.
func (s *Service) ProcessBankWebhook(ctx context.Context, p *sepay.WebhookPayload, raw []byte) *WebhookResult {
	now := s.now().UTC()
	s.archivePayload(ctx, p, raw, now)

	if !p.Incoming() {
		return &WebhookResult{Action: ActionIgnored, Reason: "outgoing transfer"}
	}
	if s.cfg.Account.AccountNumber != "" && p.AccountNumber != s.cfg.Account.AccountNumber {
		return &WebhookResult{Action: ActionIgnored, Reason: "foreign account"}
	}
	code, ok := sepay.ExtractCode(p.Content)
	if !ok {
		if code, ok = sepay.ExtractCode(p.Code); !ok {
			return &WebhookResult{Action: ActionIgnored, Reason: "no deposit code"}
		}
	}

	var (
		matched *BankDeposit
		result  *WebhookResult
	)
	err := database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		d, err := lockByContent(ctx, tx, code)
		if err != nil {
			return err
		}
		if d == nil {
			result = &WebhookResult{Action: ActionIgnored, Reason: "unknown deposit code"}
			return nil
		}
		matched = d
		if d.Settled() {
			result = &WebhookResult{Action: ActionDuplicate, DepositID: &d.ID, TransactionID: d.TransactionID}
			return nil
		}
		result, err = s.credit(ctx, tx, d, p, raw, now)
		return err
	})

	switch {
	case err == nil:
	case database.IsUniqueViolation(err):
		// the same bank reference already credited another memo
		log.Warn().Str("reference", p.Reference()).Str("transfer_content", code).Msg("Duplicate bank reference ignored")
		return &WebhookResult{Action: ActionDuplicate, Reason: "reference already processed"}
	default:
		return s.creditFailed(ctx, matched, p, raw, err)
	}

	if result.Action == ActionCredited {
		s.afterCredit(ctx, matched, p, result)
	}
	return result
}

func (s *Service) credit(ctx context.Context, tx *sqlx.Tx, d *BankDeposit, p *sepay.WebhookPayload, raw []byte, now time.Time) (*WebhookResult, error) {
	expired := d.Status == StatusExpired || now.After(d.ExpiresAt)
	review := !sepay.WithinTolerance(d.AmountVND, p.TransferAmount, reviewTolerance)
	reference := p.Reference()

	if err := wallet.EnsureWallet(ctx, tx, d.UserID); err != nil {
		return nil, err
	}
	w, err := wallet.ApplyDelta(ctx, tx, d.UserID, wallet.Delta{Balance: d.AmountUSD, Earned: d.AmountUSD})
	if err != nil {
		return nil, err
	}

	t := &wallet.Transaction{
		UserID:           d.UserID,
		Type:             wallet.TypeDeposit,
		AmountUSD:        d.AmountUSD,
		Status:           wallet.TxProcessing,
		PaymentMethod:    wallet.MethodBankTransfer,
		PaymentGatewayID: &reference,
		BalanceBefore:    wallet.NullAmount(w.BalanceUSD.Sub(d.AmountUSD)),
		BalanceAfter:     wallet.NullAmount(w.BalanceUSD),
		Description:      "Bank transfer deposit " + d.TransferContent,
		Metadata: wallet.MetadataJSON(map[string]interface{}{
			"deposit_id":          d.ID.String(),
			"bank_transaction_id": fmt.Sprintf("%d", p.ID),
			"reference_code":      reference,
			"transfer_content":    p.Content,
			"amount_vnd":          p.TransferAmount.String(),
			"expected_vnd":        d.AmountVND.String(),
			"expired":             expired,
			"needs_review":        review,
		}),
	}
	if err := wallet.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if _, err := wallet.MarkTransaction(ctx, tx, t.ID, wallet.Mark{Status: wallet.TxCompleted}); err != nil {
		return nil, err
	}

	bankID := fmt.Sprintf("%d", p.ID)
	d.Status = StatusCompleted
	d.WebhookData = types.NullJSONText{JSONText: payloadJSON(p, raw), Valid: true}
	d.ReferenceCode = &reference
	d.BankTransactionID = &bankID
	d.TransactionID = &t.ID
	d.NeedsReview = review
	d.VerifiedAt = &now
	d.CompletedAt = &now
	if err := markCompleted(ctx, tx, d); err != nil {
		return nil, err
	}

	return &WebhookResult{
		Action:        ActionCredited,
		DepositID:     &d.ID,
		TransactionID: &t.ID,
		NeedsReview:   review,
	}, nil
}

func (s *Service) creditFailed(ctx context.Context, d *BankDeposit, p *sepay.WebhookPayload, raw []byte, cause error) *WebhookResult {
	if d == nil {
		log.Error().Err(cause).Str("reference", p.Reference()).Msg("Bank webhook lookup failed")
		return &WebhookResult{Action: ActionFailed, Reason: "lookup failed"}
	}

	reason := cause.Error()
	log.Error().Err(cause).
		Str("deposit_id", d.ID.String()).
		Str("reference", p.Reference()).
		Msg("Failed to credit bank deposit")

	if err := s.repo.MarkFailed(ctx, d.ID, reason, payloadJSON(p, raw)); err != nil {
		log.Error().Err(err).Str("deposit_id", d.ID.String()).Msg("Failed to mark deposit failed")
	}
	if s.ops != nil {
		s.ops.DepositCreditFailed(d.ID.String(), d.TransferContent, p.Reference(), p.TransferAmount, reason)
	}
	return &WebhookResult{Action: ActionFailed, Reason: "credit failed", DepositID: &d.ID}
}

func (s *Service) afterCredit(ctx context.Context, d *BankDeposit, p *sepay.WebhookPayload, result *WebhookResult) {
	log.Info().
		Str("deposit_id", d.ID.String()).
		Str("user_id", d.UserID.String()).
		Str("amount_usd", d.AmountUSD.StringFixed(2)).
		Str("reference", p.Reference()).
		Bool("needs_review", result.NeedsReview).
		Msg("Bank deposit credited")

	if result.NeedsReview && s.ops != nil {
		s.ops.DepositNeedsReview(d.ID.String(), p.Reference(), d.AmountVND, p.TransferAmount)
	}
	if s.events != nil {
		s.events.Publish(ctx, d.UserID, realtime.EventDepositCompleted, d)
	}
	s.publishWallet(ctx, d.UserID)
}

func (s *Service) archivePayload(ctx context.Context, p *sepay.WebhookPayload, raw []byte, now time.Time) {
	if s.archive == nil {
		return
	}
	key := storage.WebhookKey("sepay", p.Reference(), now)
	if err := s.archive.Put(ctx, key, payloadJSON(p, raw), "application/json"); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to archive webhook payload")
	}
}

func payloadJSON(p *sepay.WebhookPayload, raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	b, _ := json.Marshal(p)
	return b
}

// CreatePayPalDeposit creates a PayPal order and a pending deposit
// transaction keyed by the order id.
func (s *Service) CreatePayPalDeposit(ctx context.Context, userID uuid.UUID, amountUSD decimal.Decimal) (*PayPalDepositResponse, error) {
	if err := s.checkMinimum(ctx, amountUSD); err != nil {
		return nil, err
	}
	if s.orders == nil || !s.orders.Configured() {
		return nil, ErrPayPalUnavailable
	}

	txID := uuid.New()
	order, err := s.orders.CreateOrder(ctx, amountUSD, txID.String(), "TaskHub wallet deposit")
	if err != nil {
		return nil, ErrPayPalFailed.Wrap(err)
	}

	if err := wallet.EnsureWallet(ctx, s.repo.DB(), userID); err != nil {
		return nil, apperror.Infra("DEPOSIT_CREATE_FAILED", err)
	}
	t := &wallet.Transaction{
		ID:               txID,
		UserID:           userID,
		Type:             wallet.TypeDeposit,
		AmountUSD:        amountUSD,
		Status:           wallet.TxPending,
		PaymentMethod:    wallet.MethodPayPal,
		PaymentGatewayID: &order.ID,
		Description:      "PayPal deposit",
		Metadata:         wallet.MetadataJSON(map[string]interface{}{"paypal_order_id": order.ID}),
	}
	if err := wallet.InsertTransaction(ctx, s.repo.DB(), t); err != nil {
		return nil, apperror.Infra("DEPOSIT_CREATE_FAILED", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", txID.String()).
		Str("paypal_order_id", order.ID).
		Str("amount_usd", amountUSD.StringFixed(2)).
		Msg("PayPal deposit created")

	return &PayPalDepositResponse{
		PayPal:        PayPalOrder{OrderID: order.ID, ApprovalURL: order.ApprovalURL},
		TransactionID: txID.String(),
	}, nil
}

// CapturePayPalDeposit captures an approved order and credits the wallet.
// Capturing an already credited order returns the existing transaction.
func (s *Service) CapturePayPalDeposit(ctx context.Context, userID uuid.UUID, orderID string) (*wallet.Transaction, error) {
	if s.orders == nil || !s.orders.Configured() {
		return nil, ErrPayPalUnavailable
	}
	txID, err := findOrder(ctx, s.repo.DB(), orderID)
	if err != nil {
		return nil, apperror.OrInfra("DEPOSIT_LOAD_FAILED", err)
	}
	t, err := wallet.GetTransaction(ctx, s.repo.DB(), txID, false)
	if err != nil {
		return nil, apperror.OrInfra("DEPOSIT_LOAD_FAILED", err)
	}
	if t.UserID != userID {
		return nil, ErrOrderNotFound
	}
	switch t.Status {
	case wallet.TxCompleted:
		return t, nil
	case wallet.TxFailed, wallet.TxCancelled:
		return nil, ErrOrderClosed
	}

	capture, err := s.orders.CaptureOrder(ctx, orderID)
	if err != nil {
		if settled := s.creditedDeposit(ctx, txID); settled != nil {
			return settled, nil
		}
		if paypal.IsAlreadyCaptured(err) {
			return nil, ErrCaptureInProgress
		}
		return nil, ErrPayPalFailed.Wrap(err)
	}
	if !capture.Completed() {
		return nil, ErrPaymentNotCompleted.WithMessage("PayPal payment status is %s", capture.Status)
	}

	var out *wallet.Transaction
	credited := false
	err = database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		locked, err := wallet.GetTransaction(ctx, tx, txID, true)
		if err != nil {
			return err
		}
		if locked.Status == wallet.TxCompleted {
			out = locked
			return nil
		}
		if _, err := wallet.ApplyDelta(ctx, tx, userID, wallet.Delta{Balance: locked.AmountUSD, Earned: locked.AmountUSD}); err != nil {
			return err
		}
		meta := map[string]interface{}{"paypal_capture_id": capture.CaptureID}
		if !capture.Amount.IsZero() && !capture.Amount.Equal(locked.AmountUSD) {
			meta["captured_amount"] = capture.Amount.StringFixed(2)
		}
		out, err = wallet.MarkTransaction(ctx, tx, txID, wallet.Mark{Status: wallet.TxCompleted, Metadata: meta})
		credited = err == nil
		return err
	})
	if err != nil {
		if errors.Is(err, wallet.ErrTransactionFinal) {
			return nil, ErrOrderClosed
		}
		log.Error().Err(err).Str("paypal_order_id", orderID).Str("capture_id", capture.CaptureID).Msg("PayPal captured but credit failed")
		return nil, apperror.OrInfra("DEPOSIT_CREDIT_FAILED", err)
	}

	if credited {
		log.Info().
			Str("user_id", userID.String()).
			Str("transaction_id", txID.String()).
			Str("paypal_order_id", orderID).
			Str("amount_usd", out.AmountUSD.StringFixed(2)).
			Msg("PayPal deposit credited")
		if s.events != nil {
			s.events.Publish(ctx, userID, realtime.EventDepositCompleted, out)
		}
		s.publishWallet(ctx, userID)
	}
	return out, nil
}

// creditedDeposit returns the deposit transaction when a concurrent capture
// already credited it. The locking read waits for that capture to commit.
func (s *Service) creditedDeposit(ctx context.Context, txID uuid.UUID) *wallet.Transaction {
	var t *wallet.Transaction
	err := database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		var err error
		t, err = wallet.GetTransaction(ctx, tx, txID, true)
		return err
	})
	if err != nil || t.Status != wallet.TxCompleted {
		return nil
	}
	return t
}

// Expire marks a single unpaid bank deposit as expired. It is a no-op when
// the deposit was paid or is not due yet.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.repo.Expire(ctx, id, s.now().UTC())
	if err != nil {
		return false, apperror.Infra("DEPOSIT_EXPIRE_FAILED", err)
	}
	return ok, nil
}

// ExpireStale expires unpaid bank deposits past their deadline and cancels
// PayPal orders that were never captured.
func (s *Service) ExpireStale(ctx context.Context) (*ExpireResult, error) {
	now := s.now().UTC()
	banks, err := s.repo.ExpireBankDeposits(ctx, now)
	if err != nil {
		return nil, apperror.Infra("DEPOSIT_EXPIRE_FAILED", err)
	}
	orders, err := s.repo.CancelAbandonedOrders(ctx, now)
	if err != nil {
		return nil, apperror.Infra("DEPOSIT_EXPIRE_FAILED", err)
	}
	if banks > 0 || orders > 0 {
		log.Info().Int("bank_deposits", banks).Int("paypal_orders", orders).Msg("Stale deposits expired")
	}
	return &ExpireResult{BankDeposits: banks, PayPalOrders: orders}, nil
}

func (s *Service) publishWallet(ctx context.Context, userID uuid.UUID) {
	if s.events == nil {
		return
	}
	w, err := wallet.NewRepository(s.repo.DB()).GetWallet(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Skipping wallet event")
		return
	}
	s.events.Publish(ctx, userID, realtime.EventWalletUpdated, w)
}
