package jobs

import (
	"time"

	"github.com/hibiken/asynq"
)

const asynqUniqueTTL = 4 * time.Minute

// RegisterPeriodic adds the sweeps to scheduler. Unique keeps a slow sweep
// from piling up behind itself.
func RegisterPeriodic(scheduler *asynq.Scheduler) error {
	periodic := []struct {
		spec     string
		typename string
	}{
		{ReleaseDueSpec, TypeEscrowReleaseDue},
		{ExpireStaleSpec, TypeDepositExpireStale},
	}
	for _, p := range periodic {
		task := asynq.NewTask(p.typename, nil,
			asynq.Queue(QueueMaintenance),
			asynq.MaxRetry(0),
			asynq.Unique(asynqUniqueTTL),
		)
		if _, err := scheduler.Register(p.spec, task); err != nil {
			return err
		}
	}
	return nil
}
