package services

import (
	"context"
	"strings"

	"graphgate/internal/models"
	"graphgate/internal/repositories"

	"github.com/google/uuid"
)

type TenantService interface {
	// FindOrCreateForUser returns the tenant owned by the user, lazily
	// creating a STANDARD one on first contact.
	FindOrCreateForUser(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string) (*models.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
}

func NewTenantService(tenantRepo repositories.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo}
}

func (s *tenantService) FindOrCreateForUser(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string) (*models.Tenant, error) {
	name := deriveWorkspaceName(ownerEmail)
	return s.tenantRepo.FindOrCreateByOwner(ctx, ownerUserID, name, ownerEmail)
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.tenantRepo.Deactivate(ctx, id)
}

func deriveWorkspaceName(email *string) string {
	if email == nil || *email == "" {
		return "Workspace"
	}
	prefix := strings.SplitN(*email, "@", 2)[0]
	return prefix + "'s Workspace"
}
