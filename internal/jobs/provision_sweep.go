package jobs

import (
	"context"
	"log"
	"time"

	"graphgate/internal/models"
	"graphgate/internal/repositories"

	"github.com/google/uuid"
)

// Auditor records sweep re-dispatches. Satisfied by services.AuditRecorder.
type Auditor interface {
	Record(ctx context.Context, domainID uuid.UUID, event, actor, result string, payload map[string]interface{})
}

// ProvisionSweeper is the operational recovery path for domains stuck in
// provisioning: a run that died without reaching a terminal state leaves
// its row untouched past the grace period, and the sweep re-dispatches it.
// Failed graphs are never touched; retry of a failure is an explicit
// operator action.
type ProvisionSweeper struct {
	graphRepo  repositories.DomainGraphRepository
	dispatcher *Dispatcher
	audit      Auditor
	grace      time.Duration
}

func NewProvisionSweeper(graphRepo repositories.DomainGraphRepository, dispatcher *Dispatcher, audit Auditor, grace time.Duration) *ProvisionSweeper {
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	return &ProvisionSweeper{
		graphRepo:  graphRepo,
		dispatcher: dispatcher,
		audit:      audit,
		grace:      grace,
	}
}

// Sweep re-schedules every stuck provisioning row, skipping domains that
// already have an active run. Returns how many runs were dispatched.
func (s *ProvisionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.grace)
	stuck, err := s.graphRepo.ListStuckProvisioning(ctx, cutoff)
	if err != nil {
		log.Printf("ERROR: provision sweep failed to list stuck domains: %v", err)
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	dispatched := 0
	for _, dg := range stuck {
		if !s.dispatcher.Schedule(dg.DomainID) {
			continue
		}
		dispatched++
		s.audit.Record(ctx, dg.DomainID, models.AuditEventRedispatched, models.ActorSystem, models.AuditResultPending, map[string]interface{}{
			"stuck_since": dg.UpdatedAt,
		})
		log.Printf("[sweep] re-dispatched stuck domain=%s (last update %s)", dg.DomainID.String(), dg.UpdatedAt.Format(time.RFC3339))
	}
	return dispatched, nil
}
