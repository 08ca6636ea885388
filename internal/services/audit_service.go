package services

import (
	"context"
	"log"

	"graphgate/internal/models"
	"graphgate/internal/repositories"

	"github.com/google/uuid"
)

// AuditRecorder appends provisioning events. Audit is informational, not
// authoritative: a failed write is logged and swallowed so it can never
// abort the state transition it describes.
type AuditRecorder struct {
	auditRepo repositories.ProvisionAuditRepository
}

func NewAuditRecorder(auditRepo repositories.ProvisionAuditRepository) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo}
}

func (a *AuditRecorder) Record(ctx context.Context, domainID uuid.UUID, event, actor, result string, payload map[string]interface{}) {
	entry := &models.ProvisionAudit{
		DomainID: domainID,
		Event:    event,
		Actor:    actor,
		Result:   result,
		Payload:  payload,
	}
	if err := a.auditRepo.Append(ctx, entry); err != nil {
		log.Printf("WARN: failed to write provision audit event %s for domain %s: %v", event, domainID.String(), err)
	}
}
