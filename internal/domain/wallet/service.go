package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
	"github.com/taskhub/taskhub-api/internal/pkg/paypal"
)

// SettingsProvider returns the current platform settings.
type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// PayoutSender sends money to a PayPal account.
type PayoutSender interface {
	Configured() bool
	SendPayout(ctx context.Context, email string, amount decimal.Decimal, reference, note string) (*paypal.Payout, error)
}

// OpsNotifier alerts the operations team about manual work.
type OpsNotifier interface {
	ManualWithdrawal(transactionID, userID string, amount decimal.Decimal, bankName, bankAccount, holder string)
}

// EventPublisher pushes realtime events to a user.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, data interface{})
}

type Service struct {
	repo     *Repository
	settings SettingsProvider
	payouts  PayoutSender
	ops      OpsNotifier
	events   EventPublisher
}

func NewService(repo *Repository, settingsProvider SettingsProvider, payouts PayoutSender, ops OpsNotifier, events EventPublisher) *Service {
	return &Service{
		repo:     repo,
		settings: settingsProvider,
		payouts:  payouts,
		ops:      ops,
		events:   events,
	}
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, apperror.Infra("WALLET_LOAD_FAILED", err)
	}
	return w, nil
}

// GetSummary returns the wallet with its overview counters.
func (s *Service) GetSummary(ctx context.Context, userID uuid.UUID) (*Wallet, *Summary, error) {
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.repo.CountActivity(ctx, userID)
	if err != nil {
		return nil, nil, apperror.Infra("WALLET_LOAD_FAILED", err)
	}
	return w, &Summary{
		AvailableBalance:   w.BalanceUSD,
		PendingBalance:     w.PendingUSD,
		TotalEarned:        w.TotalEarnedUSD,
		TotalSpent:         w.TotalSpentUSD,
		ActiveEscrows:      a.ActiveEscrows,
		PendingWithdrawals: a.PendingWithdrawals,
	}, nil
}

// CheckBalance reports whether the user can spend amount right now.
func (s *Service) CheckBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, *Wallet, error) {
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return w.Status == StatusActive && w.BalanceUSD.GreaterThanOrEqual(amount), w, nil
}

func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error) {
	items, total, err := s.repo.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, apperror.Infra("TRANSACTIONS_LOAD_FAILED", err)
	}
	return items, total, nil
}

// Withdraw moves money out of the wallet. PayPal withdrawals are paid out
// immediately; bank withdrawals wait in pending_usd until an admin settles
// them with CompleteWithdrawal.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, req WithdrawRequest) (*Transaction, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if req.AmountUSD.LessThan(cfg.MinimumWithdrawalUSD) {
		return nil, ErrBelowMinimum.WithMessage("Minimum withdrawal is $%s", cfg.MinimumWithdrawalUSD.StringFixed(2))
	}
	if !req.AmountUSD.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !WholeCents(req.AmountUSD) {
		return nil, ErrSubCentAmount
	}
	if err := validateDestination(req.PaymentMethod, req.Destination); err != nil {
		return nil, err
	}

	switch req.PaymentMethod {
	case MethodPayPal:
		return s.withdrawPayPal(ctx, userID, req)
	case MethodBankTransfer:
		return s.withdrawBank(ctx, userID, req)
	default:
		return nil, ErrInvalidDestination.WithMessage("Unsupported payment method %q", req.PaymentMethod)
	}
}

func validateDestination(method PaymentMethod, d Destination) error {
	switch method {
	case MethodPayPal:
		if strings.TrimSpace(d.PayPalEmail) == "" {
			return ErrInvalidDestination.WithMessage("destination.paypal_email is required")
		}
	case MethodBankTransfer:
		var missing []string
		if strings.TrimSpace(d.BankAccount) == "" {
			missing = append(missing, "bank_account")
		}
		if strings.TrimSpace(d.BankName) == "" {
			missing = append(missing, "bank_name")
		}
		if strings.TrimSpace(d.AccountHolder) == "" {
			missing = append(missing, "account_holder")
		}
		if len(missing) > 0 {
			return ErrInvalidDestination.WithMessage("destination is missing %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// reserve takes amount out of the spendable balance into pending_usd and
// records the withdrawal in the given status.
func (s *Service) reserve(ctx context.Context, userID uuid.UUID, req WithdrawRequest, status TransactionStatus, meta map[string]interface{}) (*Transaction, error) {
	var out *Transaction
	err := database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		if err := EnsureWallet(ctx, tx, userID); err != nil {
			return err
		}
		w, err := ApplyDelta(ctx, tx, userID, Delta{
			Balance: req.AmountUSD.Neg(),
			Pending: req.AmountUSD,
		})
		if err != nil {
			return err
		}
		out = &Transaction{
			UserID:        userID,
			Type:          TypeWithdrawal,
			AmountUSD:     req.AmountUSD,
			Status:        status,
			PaymentMethod: req.PaymentMethod,
			BalanceBefore: NullAmount(w.BalanceUSD.Add(req.AmountUSD)),
			BalanceAfter:  NullAmount(w.BalanceUSD),
			Description:   fmt.Sprintf("Withdrawal via %s", req.PaymentMethod),
			Metadata:      MetadataJSON(meta),
		}
		return InsertTransaction(ctx, tx, out)
	})
	if err != nil {
		return nil, apperror.OrInfra("WITHDRAWAL_FAILED", err)
	}
	return out, nil
}

func (s *Service) withdrawPayPal(ctx context.Context, userID uuid.UUID, req WithdrawRequest) (*Transaction, error) {
	if s.payouts == nil || !s.payouts.Configured() {
		return nil, ErrPayoutsUnavailable
	}

	t, err := s.reserve(ctx, userID, req, TxProcessing, map[string]interface{}{
		"paypal_email": req.Destination.PayPalEmail,
	})
	if err != nil {
		return nil, err
	}

	payout, payoutErr := s.payouts.SendPayout(ctx, req.Destination.PayPalEmail, req.AmountUSD, t.ID.String(), "TaskHub wallet withdrawal")
	if payoutErr != nil {
		log.Error().Err(payoutErr).Str("transaction_id", t.ID.String()).Str("user_id", userID.String()).Msg("PayPal payout failed")
		if err := s.settleReserved(ctx, t, Mark{
			Status:   TxFailed,
			Metadata: map[string]interface{}{"error": payoutErr.Error()},
		}, Delta{Balance: t.AmountUSD, Pending: t.AmountUSD.Neg()}); err != nil {
			log.Error().Err(err).Str("transaction_id", t.ID.String()).Msg("Failed to restore balance after payout failure")
		}
		return nil, ErrPayoutFailed.Wrap(payoutErr)
	}

	gatewayID := payout.ItemID
	if gatewayID == "" {
		gatewayID = payout.BatchID
	}
	if err := s.settleReserved(ctx, t, Mark{
		Status:    TxCompleted,
		GatewayID: gatewayID,
		Metadata: map[string]interface{}{
			"payout_batch_id":     payout.BatchID,
			"payout_batch_status": payout.BatchStatus,
		},
	}, Delta{Pending: t.AmountUSD.Neg(), Spent: t.AmountUSD}); err != nil {
		// the payout left PayPal; the reservation stays in pending_usd for an admin
		log.Error().Err(err).Str("transaction_id", t.ID.String()).Str("payout_batch_id", payout.BatchID).Msg("Payout sent but ledger update failed")
		return nil, apperror.OrInfra("WITHDRAWAL_FAILED", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", t.ID.String()).
		Str("amount_usd", req.AmountUSD.StringFixed(2)).
		Str("payout_batch_id", payout.BatchID).
		Msg("PayPal withdrawal completed")

	s.publish(ctx, userID)
	return s.repo.GetTransaction(ctx, t.ID)
}

func (s *Service) withdrawBank(ctx context.Context, userID uuid.UUID, req WithdrawRequest) (*Transaction, error) {
	t, err := s.reserve(ctx, userID, req, TxPending, map[string]interface{}{
		"bank_name":      req.Destination.BankName,
		"bank_account":   req.Destination.BankAccount,
		"account_holder": req.Destination.AccountHolder,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", t.ID.String()).
		Str("amount_usd", req.AmountUSD.StringFixed(2)).
		Msg("Bank withdrawal requested")

	if s.ops != nil {
		s.ops.ManualWithdrawal(t.ID.String(), userID.String(), req.AmountUSD,
			req.Destination.BankName, req.Destination.BankAccount, req.Destination.AccountHolder)
	}
	s.publish(ctx, userID)
	return t, nil
}

func (s *Service) settleReserved(ctx context.Context, t *Transaction, m Mark, d Delta) error {
	return database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		if _, err := MarkTransaction(ctx, tx, t.ID, m); err != nil {
			return err
		}
		_, err := ApplyDelta(ctx, tx, t.UserID, d)
		return err
	})
}

// CompleteWithdrawal settles a pending withdrawal after the money was sent
// manually. The reserved amount leaves pending_usd and counts as spent.
func (s *Service) CompleteWithdrawal(ctx context.Context, transactionID, adminID uuid.UUID) (*Transaction, error) {
	var out *Transaction
	err := database.WithTx(ctx, s.repo.DB(), func(tx *sqlx.Tx) error {
		t, err := GetTransaction(ctx, tx, transactionID, true)
		if err != nil {
			return err
		}
		if t.Type != TypeWithdrawal {
			return ErrNotWithdrawal
		}
		if t.Status.Final() {
			return ErrTransactionFinal.WithMessage("Transaction is already %s", t.Status)
		}

		if _, err := ApplyDelta(ctx, tx, t.UserID, Delta{Pending: t.AmountUSD.Neg(), Spent: t.AmountUSD}); err != nil {
			return err
		}
		out, err = MarkTransaction(ctx, tx, t.ID, Mark{
			Status: TxCompleted,
			Metadata: map[string]interface{}{
				"completed_by": adminID.String(),
				"completed_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
		return err
	})
	if err != nil {
		return nil, apperror.OrInfra("TRANSACTION_COMPLETE_FAILED", err)
	}

	log.Info().
		Str("transaction_id", out.ID.String()).
		Str("admin_id", adminID.String()).
		Str("amount_usd", out.AmountUSD.StringFixed(2)).
		Msg("Withdrawal completed by admin")

	s.publish(ctx, out.UserID)
	return out, nil
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID) {
	if s.events == nil {
		return
	}
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Skipping wallet event")
		return
	}
	s.events.Publish(ctx, userID, realtime.EventWalletUpdated, w)
}
