package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan tiers recognized by the registry. Unknown plans fall back to the
// STANDARD quota.
const (
	PlanStandard = "STANDARD"
	PlanPro      = "PRO"
	PlanUltimate = "ULTIMATE"
)

type Tenant struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerUserID uuid.UUID `json:"owner_user_id" db:"owner_user_id"`
	OwnerEmail  *string   `json:"owner_email,omitempty" db:"owner_email"`
	Plan        string    `json:"plan" db:"plan"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DomainQuota returns how many domains a plan may own.
func DomainQuota(plan string) int {
	switch plan {
	case PlanPro:
		return 5
	case PlanUltimate:
		return 20
	default:
		return 1
	}
}
