package repositories

import (
	"context"
	"time"

	"graphgate/internal/models"

	"github.com/google/uuid"
)

type DomainGraphRepository interface {
	GetByDomainID(ctx context.Context, domainID uuid.UUID) (*models.DomainGraph, error)
	// MarkProvisioning re-enters the provisioning state. Guarded so an
	// online graph is never dragged back.
	MarkProvisioning(ctx context.Context, domainID uuid.UUID) error
	// MarkOnline writes the connection descriptor, ciphertext and new
	// credential version. Only a row still in provisioning is updated;
	// anything else reports ErrConcurrentTransition.
	MarkOnline(ctx context.Context, domainID uuid.UUID, conn models.ConnDescriptor, secretEnc string, credVersion int) error
	// MarkFailed records the terminal failure reason with the same
	// compare-and-swap guard as MarkOnline.
	MarkFailed(ctx context.Context, domainID uuid.UUID, reason string) error
	UpdateSeedStatus(ctx context.Context, domainID uuid.UUID, seedStatus string) error
	// ListStuckProvisioning returns graphs sitting in provisioning whose
	// last update is older than the cutoff. Input for the supervisory
	// sweep.
	ListStuckProvisioning(ctx context.Context, updatedBefore time.Time) ([]*models.DomainGraph, error)
}

type domainGraphRepo struct {
	db Database
}

func NewDomainGraphRepo(db Database) DomainGraphRepository {
	return &domainGraphRepo{db: db}
}

const domainGraphColumns = `domain_id, provision_status, seed_status, idempotency_key, cred_version, graph_uri, database_name, username, secret_enc, fail_reason, created_at, updated_at`

func scanDomainGraph(row interface {
	Scan(dest ...interface{}) error
}) (*models.DomainGraph, error) {
	dg := &models.DomainGraph{}
	err := row.Scan(&dg.DomainID, &dg.ProvisionStatus, &dg.SeedStatus, &dg.IdempotencyKey, &dg.CredVersion, &dg.GraphURI, &dg.DatabaseName, &dg.Username, &dg.SecretEnc, &dg.FailReason, &dg.CreatedAt, &dg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return dg, nil
}

func (r *domainGraphRepo) GetByDomainID(ctx context.Context, domainID uuid.UUID) (*models.DomainGraph, error) {
	query := `
		SELECT ` + domainGraphColumns + `
		FROM domain_graphs
		WHERE domain_id = $1
	`
	return scanDomainGraph(r.db.QueryRow(ctx, query, domainID))
}

func (r *domainGraphRepo) MarkProvisioning(ctx context.Context, domainID uuid.UUID) error {
	query := `
		UPDATE domain_graphs
		SET provision_status = $1, fail_reason = NULL, updated_at = NOW()
		WHERE domain_id = $2 AND provision_status <> $3
	`
	tag, err := r.db.Exec(ctx, query, models.ProvisionStatusProvisioning, domainID, models.ProvisionStatusOnline)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentTransition
	}
	return nil
}

func (r *domainGraphRepo) MarkOnline(ctx context.Context, domainID uuid.UUID, conn models.ConnDescriptor, secretEnc string, credVersion int) error {
	query := `
		UPDATE domain_graphs
		SET provision_status = $1,
		    graph_uri = $2,
		    database_name = $3,
		    username = $4,
		    secret_enc = $5,
		    cred_version = $6,
		    fail_reason = NULL,
		    updated_at = NOW()
		WHERE domain_id = $7 AND provision_status = $8
	`
	tag, err := r.db.Exec(ctx, query,
		models.ProvisionStatusOnline,
		conn.URI,
		conn.DatabaseName,
		conn.Username,
		secretEnc,
		credVersion,
		domainID,
		models.ProvisionStatusProvisioning,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentTransition
	}
	return nil
}

func (r *domainGraphRepo) MarkFailed(ctx context.Context, domainID uuid.UUID, reason string) error {
	query := `
		UPDATE domain_graphs
		SET provision_status = $1, fail_reason = $2, updated_at = NOW()
		WHERE domain_id = $3 AND provision_status = $4
	`
	tag, err := r.db.Exec(ctx, query, models.ProvisionStatusFailed, reason, domainID, models.ProvisionStatusProvisioning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentTransition
	}
	return nil
}

func (r *domainGraphRepo) UpdateSeedStatus(ctx context.Context, domainID uuid.UUID, seedStatus string) error {
	query := `
		UPDATE domain_graphs
		SET seed_status = $1, updated_at = NOW()
		WHERE domain_id = $2
	`
	_, err := r.db.Exec(ctx, query, seedStatus, domainID)
	return err
}

func (r *domainGraphRepo) ListStuckProvisioning(ctx context.Context, updatedBefore time.Time) ([]*models.DomainGraph, error) {
	query := `
		SELECT ` + domainGraphColumns + `
		FROM domain_graphs
		WHERE provision_status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`
	rows, err := r.db.Query(ctx, query, models.ProvisionStatusProvisioning, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var graphs []*models.DomainGraph
	for rows.Next() {
		dg, err := scanDomainGraph(rows)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, dg)
	}
	return graphs, rows.Err()
}
