package services

import (
	"context"
	"time"

	"graphgate/internal/caching"
	"graphgate/internal/graph"
	"graphgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindOrCreateByOwner(ctx context.Context, ownerUserID uuid.UUID, name string, ownerEmail *string) (*models.Tenant, error) {
	args := m.Called(ctx, ownerUserID, name, ownerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByOwnerUserID(ctx context.Context, ownerUserID uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDomainRepository struct {
	mock.Mock
}

func (m *MockDomainRepository) CreateWithPlaceholder(ctx context.Context, tenantID uuid.UUID, name string, icon *string, idempotencyKey string) (uuid.UUID, error) {
	args := m.Called(ctx, tenantID, name, icon, idempotencyKey)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockDomainRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Domain, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Domain), args.Error(1)
}

func (m *MockDomainRepository) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Domain), args.Error(1)
}

func (m *MockDomainRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Domain, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Domain), args.Error(1)
}

func (m *MockDomainRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockDomainRepository) ExistsByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (bool, error) {
	args := m.Called(ctx, tenantID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockDomainRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDomainRepository) SetIcon(ctx context.Context, id uuid.UUID, icon string) error {
	args := m.Called(ctx, id, icon)
	return args.Error(0)
}

type MockDomainGraphRepository struct {
	mock.Mock
}

func (m *MockDomainGraphRepository) GetByDomainID(ctx context.Context, domainID uuid.UUID) (*models.DomainGraph, error) {
	args := m.Called(ctx, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DomainGraph), args.Error(1)
}

func (m *MockDomainGraphRepository) MarkProvisioning(ctx context.Context, domainID uuid.UUID) error {
	args := m.Called(ctx, domainID)
	return args.Error(0)
}

func (m *MockDomainGraphRepository) MarkOnline(ctx context.Context, domainID uuid.UUID, conn models.ConnDescriptor, secretEnc string, credVersion int) error {
	args := m.Called(ctx, domainID, conn, secretEnc, credVersion)
	return args.Error(0)
}

func (m *MockDomainGraphRepository) MarkFailed(ctx context.Context, domainID uuid.UUID, reason string) error {
	args := m.Called(ctx, domainID, reason)
	return args.Error(0)
}

func (m *MockDomainGraphRepository) UpdateSeedStatus(ctx context.Context, domainID uuid.UUID, seedStatus string) error {
	args := m.Called(ctx, domainID, seedStatus)
	return args.Error(0)
}

func (m *MockDomainGraphRepository) ListStuckProvisioning(ctx context.Context, updatedBefore time.Time) ([]*models.DomainGraph, error) {
	args := m.Called(ctx, updatedBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DomainGraph), args.Error(1)
}

type MockProvisionAuditRepository struct {
	mock.Mock
}

func (m *MockProvisionAuditRepository) Append(ctx context.Context, entry *models.ProvisionAudit) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockProvisionAuditRepository) ListByDomain(ctx context.Context, domainID uuid.UUID, limit, offset int) ([]*models.ProvisionAudit, error) {
	args := m.Called(ctx, domainID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProvisionAudit), args.Error(1)
}

type MockAdminClient struct {
	mock.Mock
}

func (m *MockAdminClient) SupportsMultiDatabase(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockAdminClient) CreateDatabase(ctx context.Context, name string) (graph.CreateStatus, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(graph.CreateStatus), args.Error(1)
}

func (m *MockAdminClient) WaitUntilOnline(ctx context.Context, name string, deadline time.Duration) (graph.WaitStatus, error) {
	args := m.Called(ctx, name, deadline)
	return args.Get(0).(graph.WaitStatus), args.Error(1)
}

func (m *MockAdminClient) DropDatabase(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockAdminClient) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockVault struct {
	mock.Mock
}

func (m *MockVault) Encrypt(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockVault) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetDomainStatus(ctx context.Context, domainID uuid.UUID) (*caching.DomainStatus, error) {
	args := m.Called(ctx, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*caching.DomainStatus), args.Error(1)
}

func (m *MockCacheService) SetDomainStatus(ctx context.Context, status *caching.DomainStatus, ttl time.Duration) error {
	args := m.Called(ctx, status, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteDomainStatus(ctx context.Context, domainID uuid.UUID) error {
	args := m.Called(ctx, domainID)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int) (bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	args := m.Called(ctx, key, window)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}


type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(domainID uuid.UUID) bool {
	args := m.Called(domainID)
	return args.Bool(0)
}
