package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"graphgate/internal/graph"
	"graphgate/internal/models"
	"graphgate/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ProvisionerTestSuite struct {
	suite.Suite
	domainRepo *MockDomainRepository
	graphRepo  *MockDomainGraphRepository
	admin      *MockAdminClient
	credVault  *MockVault
	auditRepo  *MockProvisionAuditRepository
	cache      *MockCacheService
	engine     *Provisioner
	domainID   uuid.UUID
	ctx        context.Context
}

func (suite *ProvisionerTestSuite) SetupTest() {
	suite.domainRepo = &MockDomainRepository{}
	suite.graphRepo = &MockDomainGraphRepository{}
	suite.admin = &MockAdminClient{}
	suite.credVault = &MockVault{}
	suite.auditRepo = &MockProvisionAuditRepository{}
	suite.cache = &MockCacheService{}
	suite.domainID = uuid.New()
	suite.ctx = context.Background()

	suite.engine = NewProvisioner(
		suite.domainRepo,
		suite.graphRepo,
		suite.admin,
		suite.credVault,
		NewAuditRecorder(suite.auditRepo),
		suite.cache,
		ProvisionerConfig{
			Deadline:        5 * time.Second,
			PublicURI:       "bolt://graph.example.com:7687",
			SharedUsername:  "neo4j",
			SharedPassword:  "s3cret",
			DefaultDatabase: "neo4j",
		},
	)
}

func (suite *ProvisionerTestSuite) TearDownTest() {
	suite.domainRepo.AssertExpectations(suite.T())
	suite.graphRepo.AssertExpectations(suite.T())
	suite.admin.AssertExpectations(suite.T())
	suite.credVault.AssertExpectations(suite.T())
	suite.cache.AssertExpectations(suite.T())
}

func TestProvisionerTestSuite(t *testing.T) {
	suite.Run(t, new(ProvisionerTestSuite))
}

func (suite *ProvisionerTestSuite) provisioningGraph() *models.DomainGraph {
	return &models.DomainGraph{
		DomainID:        suite.domainID,
		ProvisionStatus: models.ProvisionStatusProvisioning,
		SeedStatus:      models.SeedStatusNotStarted,
		IdempotencyKey:  "idem_test",
		CredVersion:     1,
	}
}

func (suite *ProvisionerTestSuite) domain() *models.Domain {
	return &models.Domain{
		ID:       suite.domainID,
		TenantID: uuid.New(),
		Name:     "shop.example.com",
	}
}

func (suite *ProvisionerTestSuite) expectAudits() {
	suite.auditRepo.On("Append", mock.Anything, mock.AnythingOfType("*models.ProvisionAudit")).Return(nil).Maybe()
}

func (suite *ProvisionerTestSuite) TestRun_SuccessMultiDatabase() {
	suite.expectAudits()
	expectedDB := graph.DeriveDatabaseName(suite.domainID, "shop.example.com")

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(true)
	suite.admin.On("CreateDatabase", mock.Anything, expectedDB).Return(graph.CreateAcknowledged, nil)
	suite.admin.On("WaitUntilOnline", mock.Anything, expectedDB, 5*time.Second).Return(graph.WaitOnline, nil)
	suite.credVault.On("Encrypt", "s3cret").Return("ciphertext", nil)
	suite.graphRepo.On("MarkOnline", mock.Anything, suite.domainID, models.ConnDescriptor{
		URI:          "bolt://graph.example.com:7687",
		DatabaseName: expectedDB,
		Username:     "neo4j",
	}, "ciphertext", 2).Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestRun_DatabaseAlreadyExists() {
	// Re-run after a crash: CREATE DATABASE reports the earlier attempt's
	// database, and the run still converges to online.
	suite.expectAudits()
	expectedDB := graph.DeriveDatabaseName(suite.domainID, "shop.example.com")

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(true)
	suite.admin.On("CreateDatabase", mock.Anything, expectedDB).Return(graph.CreateAlreadyExists, nil)
	suite.admin.On("WaitUntilOnline", mock.Anything, expectedDB, 5*time.Second).Return(graph.WaitOnline, nil)
	suite.credVault.On("Encrypt", "s3cret").Return("ciphertext", nil)
	suite.graphRepo.On("MarkOnline", mock.Anything, suite.domainID, mock.AnythingOfType("models.ConnDescriptor"), "ciphertext", 2).Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestRun_SharedDatabaseFallback() {
	suite.expectAudits()

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(false)
	suite.credVault.On("Encrypt", "s3cret").Return("ciphertext", nil)
	suite.graphRepo.On("MarkOnline", mock.Anything, suite.domainID, models.ConnDescriptor{
		URI:          "bolt://graph.example.com:7687",
		DatabaseName: "neo4j",
		Username:     "neo4j",
	}, "ciphertext", 2).Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
	suite.admin.AssertNotCalled(suite.T(), "CreateDatabase", mock.Anything, mock.Anything)
	suite.admin.AssertNotCalled(suite.T(), "WaitUntilOnline", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ProvisionerTestSuite) TestRun_SkipsWhenNotProvisioning() {
	dg := suite.provisioningGraph()
	dg.ProvisionStatus = models.ProvisionStatusOnline

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(dg, nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
	suite.admin.AssertNotCalled(suite.T(), "SupportsMultiDatabase", mock.Anything)
	suite.graphRepo.AssertNotCalled(suite.T(), "MarkOnline", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ProvisionerTestSuite) TestRun_WaitTimeoutMarksFailed() {
	suite.expectAudits()
	expectedDB := graph.DeriveDatabaseName(suite.domainID, "shop.example.com")

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(true)
	suite.admin.On("CreateDatabase", mock.Anything, expectedDB).Return(graph.CreateAcknowledged, nil)
	suite.admin.On("WaitUntilOnline", mock.Anything, expectedDB, 5*time.Second).Return(graph.WaitTimedOut, nil)
	suite.graphRepo.On("MarkFailed", mock.Anything, suite.domainID, "wait_timeout").Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
	suite.graphRepo.AssertNotCalled(suite.T(), "MarkOnline", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ProvisionerTestSuite) TestRun_CreateDatabaseErrorMarksFailed() {
	suite.expectAudits()
	expectedDB := graph.DeriveDatabaseName(suite.domainID, "shop.example.com")

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(true)
	suite.admin.On("CreateDatabase", mock.Anything, expectedDB).Return(graph.CreateAcknowledged, errors.New("engine unavailable"))
	suite.graphRepo.On("MarkFailed", mock.Anything, suite.domainID, mock.MatchedBy(func(reason string) bool {
		return len(reason) <= 500
	})).Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestRun_ConcurrentFinishIsBenign() {
	suite.expectAudits()

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(false)
	suite.credVault.On("Encrypt", "s3cret").Return("ciphertext", nil)
	suite.graphRepo.On("MarkOnline", mock.Anything, suite.domainID, mock.AnythingOfType("models.ConnDescriptor"), "ciphertext", 2).
		Return(repositories.ErrConcurrentTransition)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestRun_ConcurrentFailureOverwriteIsBenign() {
	suite.expectAudits()
	expectedDB := graph.DeriveDatabaseName(suite.domainID, "shop.example.com")

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(true)
	suite.admin.On("CreateDatabase", mock.Anything, expectedDB).Return(graph.CreateAcknowledged, nil)
	suite.admin.On("WaitUntilOnline", mock.Anything, expectedDB, 5*time.Second).Return(graph.WaitTimedOut, nil)
	// Another run reached a terminal state first; the failure write loses
	// the CAS and stays quiet.
	suite.graphRepo.On("MarkFailed", mock.Anything, suite.domainID, "wait_timeout").
		Return(repositories.ErrConcurrentTransition)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestRun_EncryptErrorMarksFailed() {
	suite.expectAudits()

	suite.graphRepo.On("GetByDomainID", mock.Anything, suite.domainID).Return(suite.provisioningGraph(), nil)
	suite.domainRepo.On("GetByID", mock.Anything, suite.domainID).Return(suite.domain(), nil)
	suite.admin.On("SupportsMultiDatabase", mock.Anything).Return(false)
	suite.credVault.On("Encrypt", "s3cret").Return("", errors.New("bad key"))
	suite.graphRepo.On("MarkFailed", mock.Anything, suite.domainID, "encrypt_error: bad key").Return(nil)
	suite.cache.On("DeleteDomainStatus", mock.Anything, suite.domainID).Return(nil)

	err := suite.engine.Run(suite.ctx, suite.domainID)
	assert.NoError(suite.T(), err)
	suite.graphRepo.AssertNotCalled(suite.T(), "MarkOnline", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
