// Package jobs runs the delayed and periodic money work on asynq: releasing
// escrows when their cooling period ends and expiring unpaid deposits.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeEscrowRelease      = "escrow:release"
	TypeDepositExpire      = "deposit:expire"
	TypeEscrowReleaseDue   = "escrow:release_due"
	TypeDepositExpireStale = "deposit:expire_stale"
)

// Queues and their worker weights.
const (
	QueueEscrow      = "escrow"
	QueueMaintenance = "maintenance"
)

func Queues() map[string]int {
	return map[string]int{
		QueueEscrow:      6,
		QueueMaintenance: 2,
	}
}

// Periodic sweeps. They catch every job the delayed tasks missed.
const (
	ReleaseDueSpec  = "@every 5m"
	ExpireStaleSpec = "@every 10m"
)

type idPayload struct {
	ID uuid.UUID `json:"id"`
}

func newIDTask(typename string, id uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(idPayload{ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, payload, opts...), nil
}

func parseID(t *asynq.Task) (uuid.UUID, error) {
	var p idPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.ID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s payload without id: %w", t.Type(), asynq.SkipRetry)
	}
	return p.ID, nil
}

func escrowReleaseTaskID(id uuid.UUID) string {
	return "escrow-release:" + id.String()
}

func depositExpireTaskID(id uuid.UUID) string {
	return "deposit-expire:" + id.String()
}
