package repositories

import (
	"context"
	"errors"
	"fmt"

	"graphgate/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type DomainRepository interface {
	// CreateWithPlaceholder inserts the domain and its DomainGraph
	// placeholder (status provisioning) in one transaction. If a graph row
	// already exists for the idempotency key, the existing domain id is
	// returned and nothing is inserted.
	CreateWithPlaceholder(ctx context.Context, tenantID uuid.UUID, name string, icon *string, idempotencyKey string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Domain, error)
	GetByName(ctx context.Context, name string) (*models.Domain, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Domain, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
	ExistsByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (bool, error)
	// Delete removes the domain; the domain_graphs row goes with it via
	// ON DELETE CASCADE.
	Delete(ctx context.Context, id uuid.UUID) error
	SetIcon(ctx context.Context, id uuid.UUID, icon string) error
}

type domainRepo struct {
	db Database
}

func NewDomainRepo(db Database) DomainRepository {
	return &domainRepo{db: db}
}

func (r *domainRepo) CreateWithPlaceholder(ctx context.Context, tenantID uuid.UUID, name string, icon *string, idempotencyKey string) (uuid.UUID, error) {
	existing, err := r.domainIDByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != uuid.Nil {
		return existing, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	domainID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO domains (id, tenant_id, name, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, domainID, tenantID, name, icon)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert domain: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO domain_graphs (domain_id, provision_status, seed_status, idempotency_key, cred_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
	`, domainID, models.ProvisionStatusProvisioning, models.SeedStatusNotStarted, idempotencyKey)
	if err != nil {
		// A concurrent request with the same key won the race; its row is
		// the one that counts.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			winner, readErr := r.domainIDByIdempotencyKey(ctx, idempotencyKey)
			if readErr != nil {
				return uuid.Nil, readErr
			}
			return winner, nil
		}
		return uuid.Nil, fmt.Errorf("insert domain graph placeholder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return domainID, nil
}

func (r *domainRepo) domainIDByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error) {
	var id uuid.UUID
	query := `SELECT domain_id FROM domain_graphs WHERE idempotency_key = $1`
	err := r.db.QueryRow(ctx, query, key).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *domainRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Domain, error) {
	domain := &models.Domain{}
	query := `
		SELECT id, tenant_id, name, icon, created_at, updated_at
		FROM domains
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&domain.ID, &domain.TenantID, &domain.Name, &domain.Icon, &domain.CreatedAt, &domain.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return domain, nil
}

func (r *domainRepo) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	domain := &models.Domain{}
	query := `
		SELECT id, tenant_id, name, icon, created_at, updated_at
		FROM domains
		WHERE name = $1
	`
	err := r.db.QueryRow(ctx, query, name).Scan(&domain.ID, &domain.TenantID, &domain.Name, &domain.Icon, &domain.CreatedAt, &domain.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return domain, nil
}

func (r *domainRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Domain, error) {
	query := `
		SELECT id, tenant_id, name, icon, created_at, updated_at
		FROM domains
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*models.Domain
	for rows.Next() {
		domain := &models.Domain{}
		if err := rows.Scan(&domain.ID, &domain.TenantID, &domain.Name, &domain.Icon, &domain.CreatedAt, &domain.UpdatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func (r *domainRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM domains WHERE tenant_id = $1`
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

func (r *domainRepo) ExistsByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM domains WHERE tenant_id = $1 AND name = $2)`
	err := r.db.QueryRow(ctx, query, tenantID, name).Scan(&exists)
	return exists, err
}

func (r *domainRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM domains WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *domainRepo) SetIcon(ctx context.Context, id uuid.UUID, icon string) error {
	query := `
		UPDATE domains
		SET icon = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.Exec(ctx, query, icon, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
