package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskhub/taskhub-api/internal/pkg/apperror"
)

// Store is the persistence used by the admin service.
type Store interface {
	WalletStats(ctx context.Context) (*WalletStats, error)
	CreateAuditLog(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, int, error)
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) WalletStats(ctx context.Context) (*WalletStats, error) {
	stats, err := s.repo.WalletStats(ctx)
	if err != nil {
		return nil, apperror.Infra("STATS_FAILED", err)
	}
	return stats, nil
}

// ListAuditLogs returns audit logs
func (s *Service) ListAuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, int, error) {
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	logs, total, err := s.repo.ListAuditLogs(ctx, f)
	if err != nil {
		return nil, 0, apperror.Infra("AUDIT_LOGS_FAILED", err)
	}
	return logs, total, nil
}

// Record stores an audit entry. A failure is logged and never blocks the
// admin request.
func (s *Service) Record(ctx context.Context, entry *AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("Failed to create audit log")
	}
}
