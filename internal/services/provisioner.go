package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"graphgate/internal/caching"
	"graphgate/internal/graph"
	"graphgate/internal/models"
	"graphgate/internal/repositories"
	"graphgate/internal/vault"

	"github.com/google/uuid"
)

// ProvisionerConfig carries the knobs of one engine instance. The engine
// itself is stateless; all cross-call state lives in the registry.
type ProvisionerConfig struct {
	// Deadline bounds the wait for a new database to come online.
	Deadline time.Duration
	// PublicURI is the connection URI handed to provisioned domains.
	PublicURI string
	// Shared engine user stored (encrypted) as the domain's credentials.
	SharedUsername string
	SharedPassword string
	// DefaultDatabase is the shared fallback when the engine has no
	// multi-database support.
	DefaultDatabase string
}

// Provisioner drives a DomainGraph from provisioning to online or failed.
type Provisioner struct {
	domainRepo repositories.DomainRepository
	graphRepo  repositories.DomainGraphRepository
	admin      graph.AdminClient
	vault      vault.CredentialVault
	audit      *AuditRecorder
	cache      caching.CacheService
	cfg        ProvisionerConfig
}

func NewProvisioner(
	domainRepo repositories.DomainRepository,
	graphRepo repositories.DomainGraphRepository,
	admin graph.AdminClient,
	credVault vault.CredentialVault,
	audit *AuditRecorder,
	cache caching.CacheService,
	cfg ProvisionerConfig,
) *Provisioner {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 120 * time.Second
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = "neo4j"
	}
	return &Provisioner{
		domainRepo: domainRepo,
		graphRepo:  graphRepo,
		admin:      admin,
		vault:      credVault,
		audit:      audit,
		cache:      cache,
		cfg:        cfg,
	}
}

// Run executes one provisioning attempt for the domain. Re-running after a
// crash converges to the same end state: the database name is
// deterministic, CREATE DATABASE tolerates "already exists", and the
// compare-and-swap terminal writes make a racing completion a benign
// no-op. Run never panics its way out and never returns an error for
// outcomes the registry already records.
func (p *Provisioner) Run(ctx context.Context, domainID uuid.UUID) error {
	log.Printf("[provision] start domain=%s", domainID.String())

	dg, err := p.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		return fmt.Errorf("failed to read domain graph %s: %w", domainID.String(), err)
	}
	// Duplicate-dispatch guard: someone else may have finished while this
	// run was queued.
	if dg.ProvisionStatus != models.ProvisionStatusProvisioning {
		log.Printf("[provision] domain=%s already %s, skipping", domainID.String(), dg.ProvisionStatus)
		return nil
	}

	p.audit.Record(ctx, domainID, models.AuditEventProvisioningStarted, models.ActorSystem, models.AuditResultPending, nil)

	domain, err := p.readDomainWithRetry(ctx, domainID)
	if err != nil {
		p.markFailed(ctx, domainID, "domain_row_not_visible")
		return nil
	}

	database := graph.DeriveDatabaseName(domainID, domain.Name)

	if p.admin.SupportsMultiDatabase(ctx) {
		status, err := p.admin.CreateDatabase(ctx, database)
		if err != nil {
			p.audit.Record(ctx, domainID, models.AuditEventDatabaseCreated, models.ActorSystem, models.AuditResultFailure, map[string]interface{}{
				"database": database,
				"error":    err.Error(),
			})
			p.markFailed(ctx, domainID, truncateReason("create_database_error: "+err.Error()))
			return nil
		}
		p.audit.Record(ctx, domainID, models.AuditEventDatabaseCreated, models.ActorSystem, models.AuditResultSuccess, map[string]interface{}{
			"database":       database,
			"already_exists": status == graph.CreateAlreadyExists,
		})

		waitStatus, err := p.admin.WaitUntilOnline(ctx, database, p.cfg.Deadline)
		if err != nil {
			p.markFailed(ctx, domainID, truncateReason("wait_error: "+err.Error()))
			return nil
		}
		if waitStatus == graph.WaitTimedOut {
			p.audit.Record(ctx, domainID, models.AuditEventWaitTimeout, models.ActorSystem, models.AuditResultFailure, map[string]interface{}{
				"database":         database,
				"deadline_seconds": p.cfg.Deadline.Seconds(),
			})
			p.markFailed(ctx, domainID, "wait_timeout")
			return nil
		}
	} else {
		// Community-tier fallback: the shared default database. No
		// isolation, but provisioning still succeeds.
		log.Printf("[provision] domain=%s multi-database unsupported, using shared database %q", domainID.String(), p.cfg.DefaultDatabase)
		database = p.cfg.DefaultDatabase
	}

	secretEnc, err := p.vault.Encrypt(p.cfg.SharedPassword)
	if err != nil {
		p.markFailed(ctx, domainID, truncateReason("encrypt_error: "+err.Error()))
		return nil
	}

	conn := models.ConnDescriptor{
		URI:          p.cfg.PublicURI,
		DatabaseName: database,
		Username:     p.cfg.SharedUsername,
	}
	err = p.graphRepo.MarkOnline(ctx, domainID, conn, secretEnc, dg.CredVersion+1)
	if err != nil {
		if errors.Is(err, repositories.ErrConcurrentTransition) {
			log.Printf("[provision] domain=%s already terminal, concurrent run finished first", domainID.String())
			return nil
		}
		return fmt.Errorf("failed to mark domain %s online: %w", domainID.String(), err)
	}

	p.audit.Record(ctx, domainID, models.AuditEventCredentialsSaved, models.ActorSystem, models.AuditResultSuccess, map[string]interface{}{
		"database":     database,
		"username":     conn.Username,
		"cred_version": dg.CredVersion + 1,
	})
	p.audit.Record(ctx, domainID, models.AuditEventMarkedOnline, models.ActorSystem, models.AuditResultSuccess, map[string]interface{}{
		"database": database,
	})
	p.invalidateStatus(ctx, domainID)

	log.Printf("[provision] success domain=%s database=%s", domainID.String(), database)
	return nil
}

// readDomainWithRetry tolerates a small replica-lag gap between the
// creating transaction's commit and the worker's first read.
func (p *Provisioner) readDomainWithRetry(ctx context.Context, domainID uuid.UUID) (*models.Domain, error) {
	domain, err := p.domainRepo.GetByID(ctx, domainID)
	if err == nil {
		return domain, nil
	}
	for i := 0; i < 5; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
		domain, err = p.domainRepo.GetByID(ctx, domainID)
		if err == nil {
			return domain, nil
		}
	}
	log.Printf("[provision] domain=%s row not visible after retries: %v", domainID.String(), err)
	return nil, err
}

func (p *Provisioner) markFailed(ctx context.Context, domainID uuid.UUID, reason string) {
	err := p.graphRepo.MarkFailed(ctx, domainID, reason)
	if err != nil {
		if errors.Is(err, repositories.ErrConcurrentTransition) {
			log.Printf("[provision] domain=%s already terminal, not overwriting with failure %q", domainID.String(), reason)
			return
		}
		log.Printf("ERROR: failed to mark domain %s failed (%s): %v", domainID.String(), reason, err)
		return
	}
	p.audit.Record(ctx, domainID, models.AuditEventMarkedFailed, models.ActorSystem, models.AuditResultFailure, map[string]interface{}{
		"reason": reason,
	})
	p.invalidateStatus(ctx, domainID)
	log.Printf("[provision] failed domain=%s reason=%s", domainID.String(), reason)
}

func (p *Provisioner) invalidateStatus(ctx context.Context, domainID uuid.UUID) {
	if p.cache == nil {
		return
	}
	if err := p.cache.DeleteDomainStatus(ctx, domainID); err != nil {
		log.Printf("WARN: failed to invalidate status cache for domain %s: %v", domainID.String(), err)
	}
}

func truncateReason(reason string) string {
	if len(reason) > 500 {
		return reason[:500]
	}
	return reason
}
