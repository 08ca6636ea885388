package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"graphgate/internal/models"

	"github.com/google/uuid"
)

type ProvisionAuditRepository interface {
	// Append inserts one audit row. The table is append-only; there is no
	// update or delete here on purpose.
	Append(ctx context.Context, entry *models.ProvisionAudit) error
	ListByDomain(ctx context.Context, domainID uuid.UUID, limit, offset int) ([]*models.ProvisionAudit, error)
}

type provisionAuditRepo struct {
	db Database
}

func NewProvisionAuditRepo(db Database) ProvisionAuditRepository {
	return &provisionAuditRepo{db: db}
}

func (r *provisionAuditRepo) Append(ctx context.Context, entry *models.ProvisionAudit) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var payloadBytes []byte
	var err error
	if entry.Payload != nil {
		payloadBytes, err = json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
	}

	query := `
		INSERT INTO domain_provision_audit (id, domain_id, event, actor, result, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.DomainID,
		entry.Event,
		entry.Actor,
		entry.Result,
		payloadBytes,
		entry.CreatedAt,
	)
	return err
}

func (r *provisionAuditRepo) ListByDomain(ctx context.Context, domainID uuid.UUID, limit, offset int) ([]*models.ProvisionAudit, error) {
	query := `
		SELECT id, domain_id, event, actor, result, payload, created_at
		FROM domain_provision_audit
		WHERE domain_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, domainID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ProvisionAudit
	for rows.Next() {
		entry := &models.ProvisionAudit{}
		var payloadBytes []byte
		if err := rows.Scan(&entry.ID, &entry.DomainID, &entry.Event, &entry.Actor, &entry.Result, &payloadBytes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(payloadBytes) > 0 {
			if err := json.Unmarshal(payloadBytes, &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
