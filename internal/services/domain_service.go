package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"graphgate/internal/caching"
	"graphgate/internal/common"
	"graphgate/internal/graph"
	"graphgate/internal/models"
	"graphgate/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Scheduler hands a domain to the provisioning dispatcher. Satisfied by
// jobs.Dispatcher; kept as an interface so tests can substitute an inline
// recorder.
type Scheduler interface {
	Schedule(domainID uuid.UUID) bool
}

const statusCacheTTL = 3 * time.Second

// DomainDTO is the creation/detail response shape.
type DomainDTO struct {
	DomainID        uuid.UUID `json:"domain_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	Name            string    `json:"name"`
	Icon            *string   `json:"icon,omitempty"`
	ProvisionStatus string    `json:"provision_status"`
	SeedStatus      string    `json:"seed_status"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type DomainService interface {
	// Create accepts a domain-creation request: find-or-create tenant,
	// enforce quota and per-tenant name uniqueness, insert the placeholder
	// rows, then dispatch provisioning. The placeholder transaction commits
	// before Schedule is called; the worker never races the registry write.
	Create(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string, name string, icon *string, idempotencyKey string) (*DomainDTO, error)
	List(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string, limit, offset int) ([]*models.Domain, error)
	GetDetailByName(ctx context.Context, name string) (*DomainDTO, error)
	GetStatus(ctx context.Context, domainID uuid.UUID) (*caching.DomainStatus, error)
	// RetryProvision re-enters provisioning for a non-online graph and
	// dispatches a fresh run. The explicit operator path; nothing retries
	// a failed graph automatically.
	RetryProvision(ctx context.Context, actor string, domainID uuid.UUID) error
	// Delete drops the domain's graph database (idempotent at the engine)
	// and removes the registry rows; the graph row goes via cascade.
	Delete(ctx context.Context, domainID uuid.UUID) error
	SetIcon(ctx context.Context, domainID uuid.UUID, icon string) error
}

type domainService struct {
	tenantSvc  TenantService
	domainRepo repositories.DomainRepository
	graphRepo  repositories.DomainGraphRepository
	admin      graph.AdminClient
	audit      *AuditRecorder
	cache      caching.CacheService
	scheduler  Scheduler
	defaultDB  string
}

func NewDomainService(
	tenantSvc TenantService,
	domainRepo repositories.DomainRepository,
	graphRepo repositories.DomainGraphRepository,
	admin graph.AdminClient,
	audit *AuditRecorder,
	cache caching.CacheService,
	scheduler Scheduler,
	defaultDB string,
) DomainService {
	if defaultDB == "" {
		defaultDB = "neo4j"
	}
	return &domainService{
		tenantSvc:  tenantSvc,
		domainRepo: domainRepo,
		graphRepo:  graphRepo,
		admin:      admin,
		audit:      audit,
		cache:      cache,
		scheduler:  scheduler,
		defaultDB:  defaultDB,
	}
}

func (s *domainService) Create(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string, name string, icon *string, idempotencyKey string) (*DomainDTO, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := common.ValidateDomainName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomainName, err)
	}

	tenant, err := s.tenantSvc.FindOrCreateForUser(ctx, ownerUserID, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	count, err := s.domainRepo.CountByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	if count >= models.DomainQuota(tenant.Plan) {
		return nil, ErrQuotaExceeded
	}

	exists, err := s.domainRepo.ExistsByTenantAndName(ctx, tenant.ID, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDomainNameTaken
	}

	if idempotencyKey == "" {
		idempotencyKey = generateIdempotencyKey()
	}

	domainID, err := s.domainRepo.CreateWithPlaceholder(ctx, tenant.ID, name, icon, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create domain: %w", err)
	}

	s.audit.Record(ctx, domainID, models.AuditEventRequested, ownerUserID.String(), models.AuditResultPending, map[string]interface{}{
		"name":            name,
		"idempotency_key": idempotencyKey,
	})

	// Dispatch only after the placeholder transaction has returned; a
	// duplicate Schedule for an already-running domain is a no-op.
	if !s.scheduler.Schedule(domainID) {
		log.Printf("[domain] provisioning already active for domain=%s", domainID.String())
	}

	dg, err := s.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	domain, err := s.domainRepo.GetByID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	return domainToDTO(domain, dg), nil
}

func (s *domainService) List(ctx context.Context, ownerUserID uuid.UUID, ownerEmail *string, limit, offset int) ([]*models.Domain, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tenant, err := s.tenantSvc.FindOrCreateForUser(ctx, ownerUserID, ownerEmail)
	if err != nil {
		return nil, err
	}
	return s.domainRepo.ListByTenant(ctx, tenant.ID, limit, offset)
}

func (s *domainService) GetDetailByName(ctx context.Context, name string) (*DomainDTO, error) {
	domain, err := s.domainRepo.GetByName(ctx, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	dg, err := s.graphRepo.GetByDomainID(ctx, domain.ID)
	if err != nil {
		return nil, err
	}
	return domainToDTO(domain, dg), nil
}

func (s *domainService) GetStatus(ctx context.Context, domainID uuid.UUID) (*caching.DomainStatus, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDomainStatus(ctx, domainID)
		if err != nil {
			log.Printf("WARN: status cache read failed for domain %s: %v", domainID.String(), err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	dg, err := s.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}

	status := &caching.DomainStatus{
		DomainID:        domainID,
		ProvisionStatus: dg.ProvisionStatus,
		SeedStatus:      dg.SeedStatus,
		FailReason:      dg.FailReason,
		UpdatedAt:       dg.UpdatedAt,
	}
	if s.cache != nil {
		if err := s.cache.SetDomainStatus(ctx, status, statusCacheTTL); err != nil {
			log.Printf("WARN: status cache write failed for domain %s: %v", domainID.String(), err)
		}
	}
	return status, nil
}

func (s *domainService) RetryProvision(ctx context.Context, actor string, domainID uuid.UUID) error {
	dg, err := s.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDomainNotFound
		}
		return err
	}
	if dg.ProvisionStatus == models.ProvisionStatusOnline {
		return ErrGraphAlreadyOnline
	}

	if err := s.graphRepo.MarkProvisioning(ctx, domainID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteDomainStatus(ctx, domainID); err != nil {
			log.Printf("WARN: failed to invalidate status cache for domain %s: %v", domainID.String(), err)
		}
	}

	s.audit.Record(ctx, domainID, models.AuditEventRequested, actor, models.AuditResultPending, map[string]interface{}{
		"retry": true,
	})
	if !s.scheduler.Schedule(domainID) {
		log.Printf("[domain] provisioning already active for domain=%s", domainID.String())
	}
	return nil
}

func (s *domainService) Delete(ctx context.Context, domainID uuid.UUID) error {
	domain, err := s.domainRepo.GetByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDomainNotFound
		}
		return err
	}
	dg, err := s.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDomainNotFound
		}
		return err
	}

	// Drop the per-domain database first; the shared default is never
	// dropped.
	if dg.DatabaseName != nil && *dg.DatabaseName != s.defaultDB {
		if err := s.admin.DropDatabase(ctx, *dg.DatabaseName); err != nil {
			return fmt.Errorf("failed to drop graph database: %w", err)
		}
	}

	if err := s.domainRepo.Delete(ctx, domainID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteDomainStatus(ctx, domainID); err != nil {
			log.Printf("WARN: failed to invalidate status cache for domain %s: %v", domainID.String(), err)
		}
		if err := s.cache.InvalidateTenantCache(ctx, domain.TenantID); err != nil {
			log.Printf("WARN: failed to invalidate tenant cache for tenant %s: %v", domain.TenantID.String(), err)
		}
	}
	return nil
}

func (s *domainService) SetIcon(ctx context.Context, domainID uuid.UUID, icon string) error {
	if err := s.domainRepo.SetIcon(ctx, domainID, icon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDomainNotFound
		}
		return err
	}
	return nil
}

func domainToDTO(domain *models.Domain, dg *models.DomainGraph) *DomainDTO {
	return &DomainDTO{
		DomainID:        domain.ID,
		TenantID:        domain.TenantID,
		Name:            domain.Name,
		Icon:            domain.Icon,
		ProvisionStatus: dg.ProvisionStatus,
		SeedStatus:      dg.SeedStatus,
		IdempotencyKey:  dg.IdempotencyKey,
		CreatedAt:       domain.CreatedAt,
		UpdatedAt:       domain.UpdatedAt,
	}
}

func generateIdempotencyKey() string {
	return "idem_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
