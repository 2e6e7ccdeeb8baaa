package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/retail-ledger/internal/ledger"
)

const entityAccount = "account"

// AuditService writes immutable audit trail entries inside the caller's unit
// of work, so an entry exists exactly when the change it describes commits.
type AuditService struct {
	now func() time.Time
}

func NewAuditService(now func() time.Time) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{now: now}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, tx ledger.Tx, entityType string, entityID, actorID int64, action string, metadata map[string]any) error {
	if err := tx.InsertAudit(ctx, ledger.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		Metadata:   metadata,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
