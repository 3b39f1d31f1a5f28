package service

import (
	"context"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit records are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *auditService) Log(ctx context.Context, record *domain.AuditRecord) {
	go func() {
		s.log.Info().
			Str("action", string(record.Action)).
			Str("resource_type", record.ResourceType).
			Str("resource_id", record.ResourceID).
			Str("ip", record.IPAddress).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), record); err != nil {
				s.log.Warn().Err(err).Str("action", string(record.Action)).Msg("failed to persist audit record")
			}
		}
	}()
}
