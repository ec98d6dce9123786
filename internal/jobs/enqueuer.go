package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Enqueuer schedules delayed tasks. Its methods satisfy the schedulers the
// escrow and deposit services accept.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// ScheduleEscrowRelease queues the automatic release of a hold at at.
// Scheduling the same hold twice is a no-op.
func (e *Enqueuer) ScheduleEscrowRelease(ctx context.Context, escrowID uuid.UUID, at time.Time) error {
	task, err := newIDTask(TypeEscrowRelease, escrowID,
		asynq.TaskID(escrowReleaseTaskID(escrowID)),
		asynq.Queue(QueueEscrow),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, escrowID)
}

// ScheduleDepositExpiry queues the expiry of an unpaid bank deposit.
func (e *Enqueuer) ScheduleDepositExpiry(ctx context.Context, depositID uuid.UUID, at time.Time) error {
	task, err := newIDTask(TypeDepositExpire, depositID,
		asynq.TaskID(depositExpireTaskID(depositID)),
		asynq.Queue(QueueMaintenance),
		asynq.ProcessAt(at),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, depositID)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, id uuid.UUID) error {
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Debug().
		Str("task", task.Type()).
		Str("id", id.String()).
		Time("process_at", info.NextProcessAt).
		Msg("Task scheduled")
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
