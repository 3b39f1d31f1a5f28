package postgres

import (
	"context"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, record *domain.AuditRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_records (id, actor_id, action, resource_type, resource_id, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.ActorID, string(record.Action), record.ResourceType,
		record.ResourceID, record.Details, record.IPAddress, record.CreatedAt,
	)
	return err
}
