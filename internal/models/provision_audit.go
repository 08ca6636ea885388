package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event vocabulary.
const (
	AuditEventRequested           = "requested"
	AuditEventProvisioningStarted = "provisioning_started"
	AuditEventDatabaseCreated     = "database_created"
	AuditEventWaitTimeout         = "wait_timeout"
	AuditEventCredentialsSaved    = "credentials_saved"
	AuditEventMarkedOnline        = "marked_online"
	AuditEventMarkedFailed        = "marked_failed"
	AuditEventRedispatched        = "redispatched"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
	AuditResultPending = "pending"
)

// ActorSystem is the actor recorded for engine-driven transitions.
const ActorSystem = "system"

// ProvisionAudit is an append-only event log entry. Never updated or
// deleted by this service.
type ProvisionAudit struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	DomainID  uuid.UUID              `json:"domain_id" db:"domain_id"`
	Event     string                 `json:"event" db:"event"`
	Actor     string                 `json:"actor" db:"actor"`
	Result    string                 `json:"result" db:"result"`
	Payload   map[string]interface{} `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
