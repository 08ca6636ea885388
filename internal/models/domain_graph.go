package models

import (
	"time"

	"github.com/google/uuid"
)

// Provisioning lifecycle. Online and failed are terminal; a failed graph is
// only re-entered via an explicit retry that moves it back to provisioning.
const (
	ProvisionStatusProvisioning = "provisioning"
	ProvisionStatusOnline       = "online"
	ProvisionStatusFailed       = "failed"
)

// Seed lifecycle for the later content-seeding step. Recorded here, driven
// elsewhere.
const (
	SeedStatusNotStarted = "not_started"
	SeedStatusSeeding    = "seeding"
	SeedStatusSeeded     = "seeded"
	SeedStatusFailed     = "failed"
)

// DomainGraph is the provisioning record for a domain's dedicated graph
// database. Connection fields stay nil until provisioning succeeds.
type DomainGraph struct {
	DomainID        uuid.UUID `json:"domain_id" db:"domain_id"`
	ProvisionStatus string    `json:"provision_status" db:"provision_status"`
	SeedStatus      string    `json:"seed_status" db:"seed_status"`
	IdempotencyKey  string    `json:"idempotency_key" db:"idempotency_key"`
	CredVersion     int       `json:"cred_version" db:"cred_version"`
	GraphURI        *string   `json:"graph_uri,omitempty" db:"graph_uri"`
	DatabaseName    *string   `json:"database_name,omitempty" db:"database_name"`
	Username        *string   `json:"username,omitempty" db:"username"`
	SecretEnc       *string   `json:"-" db:"secret_enc"`
	FailReason      *string   `json:"fail_reason,omitempty" db:"fail_reason"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ConnDescriptor carries the connection identity written on markOnline.
type ConnDescriptor struct {
	URI          string
	DatabaseName string
	Username     string
}
