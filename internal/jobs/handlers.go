package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/taskhub/taskhub-api/internal/domain/deposit"
	"github.com/taskhub/taskhub-api/internal/domain/escrow"
)

// EscrowReleaser is the part of the escrow service the worker drives.
type EscrowReleaser interface {
	Release(ctx context.Context, id uuid.UUID, by escrow.ReleaseBy) (*escrow.Hold, error)
	ReleaseDue(ctx context.Context) (*escrow.SweepResult, error)
}

// DepositExpirer is the part of the deposit service the worker drives.
type DepositExpirer interface {
	Expire(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireStale(ctx context.Context) (*deposit.ExpireResult, error)
}

type Processor struct {
	escrows  EscrowReleaser
	deposits DepositExpirer
}

func NewProcessor(escrows EscrowReleaser, deposits DepositExpirer) *Processor {
	return &Processor{escrows: escrows, deposits: deposits}
}

// Register adds every task handler to mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEscrowRelease, p.ReleaseEscrow)
	mux.HandleFunc(TypeEscrowReleaseDue, p.ReleaseDue)
	mux.HandleFunc(TypeDepositExpire, p.ExpireDeposit)
	mux.HandleFunc(TypeDepositExpireStale, p.ExpireStale)
}

// ReleaseEscrow releases one hold whose cooling period ended. Holds that
// were disputed or settled meanwhile are dropped without retry.
func (p *Processor) ReleaseEscrow(ctx context.Context, t *asynq.Task) error {
	id, err := parseID(t)
	if err != nil {
		return err
	}

	_, err = p.escrows.Release(ctx, id, escrow.ReleaseBy{})
	switch {
	case err == nil:
		log.Info().Str("escrow_id", id.String()).Msg("Escrow released by schedule")
		return nil
	case errors.Is(err, escrow.ErrCoolingPeriodActive),
		errors.Is(err, escrow.ErrAlreadyResolved),
		errors.Is(err, escrow.ErrHasComplaint),
		errors.Is(err, escrow.ErrEscrowNotFound):
		log.Info().Err(err).Str("escrow_id", id.String()).Msg("Scheduled escrow release skipped")
		return fmt.Errorf("escrow %s: %v: %w", id, err, asynq.SkipRetry)
	default:
		return err
	}
}

// ReleaseDue runs the periodic sweep. A sweep already running elsewhere is
// not an error.
func (p *Processor) ReleaseDue(ctx context.Context, _ *asynq.Task) error {
	result, err := p.escrows.ReleaseDue(ctx)
	if errors.Is(err, escrow.ErrSweepRunning) {
		log.Debug().Msg("Escrow sweep already running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		log.Warn().Int("failed", result.Failed).Strs("errors", result.Errors).Msg("Escrow sweep had failures")
	}
	return nil
}

func (p *Processor) ExpireDeposit(ctx context.Context, t *asynq.Task) error {
	id, err := parseID(t)
	if err != nil {
		return err
	}
	expired, err := p.deposits.Expire(ctx, id)
	if err != nil {
		return err
	}
	log.Debug().Str("deposit_id", id.String()).Bool("expired", expired).Msg("Deposit expiry processed")
	return nil
}

func (p *Processor) ExpireStale(ctx context.Context, _ *asynq.Task) error {
	result, err := p.deposits.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if result.BankDeposits > 0 || result.PayPalOrders > 0 {
		log.Info().
			Int("bank_deposits", result.BankDeposits).
			Int("paypal_orders", result.PayPalOrders).
			Msg("Stale deposits expired")
	}
	return nil
}
