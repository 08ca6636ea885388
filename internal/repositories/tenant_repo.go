package repositories

import (
	"context"

	"graphgate/internal/models"

	"github.com/google/uuid"
)

type TenantRepository interface {
	FindOrCreateByOwner(ctx context.Context, ownerUserID uuid.UUID, name string, ownerEmail *string) (*models.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByOwnerUserID(ctx context.Context, ownerUserID uuid.UUID) (*models.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type tenantRepo struct {
	db Database
}

func NewTenantRepo(db Database) TenantRepository {
	return &tenantRepo{db: db}
}

// FindOrCreateByOwner returns the tenant owning domains for this user,
// creating a STANDARD one if absent. The unique constraint on
// owner_user_id makes concurrent callers safe: the loser's insert is a
// no-op and the follow-up read observes the winner's row.
func (r *tenantRepo) FindOrCreateByOwner(ctx context.Context, ownerUserID uuid.UUID, name string, ownerEmail *string) (*models.Tenant, error) {
	query := `
		INSERT INTO tenants (id, name, owner_user_id, owner_email, plan, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW(), NOW())
		ON CONFLICT (owner_user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, uuid.New(), name, ownerUserID, ownerEmail, models.PlanStandard)
	if err != nil {
		return nil, err
	}
	return r.GetByOwnerUserID(ctx, ownerUserID)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, owner_user_id, owner_email, plan, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.OwnerUserID, &tenant.OwnerEmail, &tenant.Plan, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) GetByOwnerUserID(ctx context.Context, ownerUserID uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, owner_user_id, owner_email, plan, is_active, created_at, updated_at
		FROM tenants
		WHERE owner_user_id = $1
	`
	err := r.db.QueryRow(ctx, query, ownerUserID).Scan(&tenant.ID, &tenant.Name, &tenant.OwnerUserID, &tenant.OwnerEmail, &tenant.Plan, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// Deactivate flips is_active off. Tenants are never deleted by this
// service.
func (r *tenantRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tenants
		SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
