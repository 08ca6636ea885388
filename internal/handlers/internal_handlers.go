package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"graphgate/internal/caching"
	"graphgate/internal/common"
	"graphgate/internal/models"
	"graphgate/internal/repositories"
	"graphgate/internal/services"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

const (
	provisionRateLimitKey    = "internal:provision"
	provisionRateLimit       = 30
	provisionRateLimitWindow = time.Minute
)

// InternalHandlers serves the service-to-service provisioning surface.
// Routes using it sit behind the X-Internal-Token middleware.
type InternalHandlers struct {
	graphRepo repositories.DomainGraphRepository
	auditRepo repositories.ProvisionAuditRepository
	scheduler services.Scheduler
	cache     caching.CacheService
}

// NewInternalHandlers creates a new internal handlers instance
func NewInternalHandlers(graphRepo repositories.DomainGraphRepository, auditRepo repositories.ProvisionAuditRepository, scheduler services.Scheduler, cache caching.CacheService) *InternalHandlers {
	return &InternalHandlers{
		graphRepo: graphRepo,
		auditRepo: auditRepo,
		scheduler: scheduler,
		cache:     cache,
	}
}

// TriggerProvision handles POST /internal/provision
func (h *InternalHandlers) TriggerProvision(c echo.Context) error {
	ctx := c.Request().Context()

	if h.cache != nil {
		limited, err := h.cache.IsRateLimited(ctx, provisionRateLimitKey, provisionRateLimit)
		if err != nil {
			log.Printf("WARN: internal provision rate limit check failed: %v", err)
		} else if limited {
			return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse("RATE_LIMITED", "Too many provisioning requests", nil))
		}
		if err := h.cache.IncrementRateLimit(ctx, provisionRateLimitKey, provisionRateLimitWindow); err != nil {
			log.Printf("WARN: internal provision rate limit increment failed: %v", err)
		}
	}

	var req struct {
		DomainID string `json:"domain_id"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	domainID, err := common.ValidateUUID(req.DomainID, "domain_id")
	if err != nil {
		return common.SendValidationError(c, "domain_id", err.Error())
	}

	dg, err := h.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to read provision registry")
	}
	if dg.ProvisionStatus == models.ProvisionStatusOnline {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":   "Domain graph already online",
			"domain_id": domainID,
		})
	}

	// A failed row must re-enter provisioning before dispatch; the engine
	// skips anything it does not find in the provisioning state.
	if dg.ProvisionStatus == models.ProvisionStatusFailed {
		if err := h.graphRepo.MarkProvisioning(ctx, domainID); err != nil {
			if errors.Is(err, repositories.ErrConcurrentTransition) {
				return c.JSON(http.StatusOK, map[string]interface{}{
					"message":   "Domain graph already online",
					"domain_id": domainID,
				})
			}
			return common.SendServerError(c, "Failed to reset provision state")
		}
		if h.cache != nil {
			if err := h.cache.DeleteDomainStatus(ctx, domainID); err != nil {
				log.Printf("WARN: failed to invalidate status cache for domain %s: %v", domainID.String(), err)
			}
		}
	}

	dispatched := h.scheduler.Schedule(domainID)

	c.Response().Header().Set("Location", fmt.Sprintf("/internal/domains/%s/provision-status", domainID))
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"domain_id":  domainID,
		"dispatched": dispatched,
	})
}

// GetProvisionStatus handles GET /internal/domains/:id/provision-status
func (h *InternalHandlers) GetProvisionStatus(c echo.Context) error {
	ctx := c.Request().Context()

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	dg, err := h.graphRepo.GetByDomainID(ctx, domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to read provision registry")
	}

	resp := map[string]interface{}{
		"domain_id":        dg.DomainID,
		"provision_status": dg.ProvisionStatus,
		"seed_status":      dg.SeedStatus,
		"cred_version":     dg.CredVersion,
		"updated_at":       dg.UpdatedAt,
	}
	if dg.FailReason != nil {
		resp["fail_reason"] = *dg.FailReason
	}
	if dg.ProvisionStatus == models.ProvisionStatusOnline && dg.GraphURI != nil && dg.DatabaseName != nil && dg.Username != nil {
		resp["connection"] = models.ConnDescriptor{
			URI:          *dg.GraphURI,
			DatabaseName: *dg.DatabaseName,
			Username:     *dg.Username,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ListProvisionAudit handles GET /internal/domains/:id/audit
func (h *InternalHandlers) ListProvisionAudit(c echo.Context) error {
	ctx := c.Request().Context()

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	entries, err := h.auditRepo.ListByDomain(ctx, domainID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to read audit trail")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"domain_id": domainID,
		"entries":   entries,
		"limit":     limit,
		"offset":    offset,
	})
}
