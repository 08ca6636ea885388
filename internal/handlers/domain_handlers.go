package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"graphgate/internal/common"
	"graphgate/internal/services"

	"github.com/labstack/echo/v4"
)

// DomainHandlers handles HTTP requests for domain lifecycle and provisioning
type DomainHandlers struct {
	domainService  services.DomainService
	storageService services.StorageService
	iconBucket     string
}

// NewDomainHandlers creates a new domain handlers instance
func NewDomainHandlers(domainService services.DomainService, storageService services.StorageService, iconBucket string) *DomainHandlers {
	return &DomainHandlers{
		domainService:  domainService,
		storageService: storageService,
		iconBucket:     iconBucket,
	}
}

// CreateDomain handles POST /v1/domains
func (h *DomainHandlers) CreateDomain(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var email *string
	if e, ok := common.GetUserEmailFromContext(ctx); ok && e != "" {
		email = &e
	}

	var req struct {
		Name           string  `json:"name"`
		Icon           *string `json:"icon"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if key := c.Request().Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	domain, err := h.domainService.Create(ctx, userID, email, req.Name, req.Icon, req.IdempotencyKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDomainName):
			return common.SendValidationError(c, "name", "must be a valid fully qualified domain name")
		case errors.Is(err, services.ErrDomainNameTaken):
			return common.SendConflictError(c, "DOMAIN_NAME_TAKEN", "Domain name is already registered")
		case errors.Is(err, services.ErrQuotaExceeded):
			return common.SendForbiddenError(c)
		default:
			return common.SendServerError(c, "Failed to create domain")
		}
	}

	c.Response().Header().Set("Location", fmt.Sprintf("/v1/domains/%s/status", domain.DomainID))
	return c.JSON(http.StatusAccepted, domain)
}

// ListDomains handles GET /v1/domains
func (h *DomainHandlers) ListDomains(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var email *string
	if e, ok := common.GetUserEmailFromContext(ctx); ok && e != "" {
		email = &e
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	domains, err := h.domainService.List(ctx, userID, email, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list domains")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"domains": domains,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetDomainByName handles GET /v1/domains/name/:name
func (h *DomainHandlers) GetDomainByName(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetUserIDFromContext(ctx); !ok {
		return common.SendUnauthorizedError(c)
	}

	name := strings.ToLower(strings.TrimSpace(c.Param("name")))
	if name == "" {
		return common.SendValidationError(c, "name", "is required")
	}

	domain, err := h.domainService.GetDetailByName(ctx, name)
	if err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to fetch domain")
	}

	return c.JSON(http.StatusOK, domain)
}

// GetDomainStatus handles GET /v1/domains/:id/status
func (h *DomainHandlers) GetDomainStatus(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetUserIDFromContext(ctx); !ok {
		return common.SendUnauthorizedError(c)
	}

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	status, err := h.domainService.GetStatus(ctx, domainID)
	if err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to fetch provision status")
	}

	return c.JSON(http.StatusOK, status)
}

// RetryProvision handles POST /v1/domains/:id/provision/retry
func (h *DomainHandlers) RetryProvision(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.domainService.RetryProvision(ctx, userID.String(), domainID); err != nil {
		switch {
		case errors.Is(err, services.ErrDomainNotFound):
			return common.SendNotFoundError(c, "Domain")
		case errors.Is(err, services.ErrGraphAlreadyOnline):
			return common.SendConflictError(c, "GRAPH_ALREADY_ONLINE", "Domain graph is already online")
		default:
			return common.SendServerError(c, "Failed to retry provisioning")
		}
	}

	c.Response().Header().Set("Location", fmt.Sprintf("/v1/domains/%s/status", domainID))
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message":   "Provisioning re-dispatched",
		"domain_id": domainID,
	})
}

// DeleteDomain handles DELETE /v1/domains/:id
func (h *DomainHandlers) DeleteDomain(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.domainService.Delete(ctx, domainID); err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to delete domain")
	}

	// Best effort; a stale icon object is not worth failing the delete.
	objectName := fmt.Sprintf("%s/%s", userID.String(), domainID.String())
	if err := h.storageService.DeleteIcon(ctx, h.iconBucket, objectName); err != nil {
		log.Printf("WARN: failed to delete icon object %s: %v", objectName, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// UploadDomainIcon handles PUT /v1/domains/:id/icon
func (h *DomainHandlers) UploadDomainIcon(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	domainID, err := common.ValidateUUID(c.Param("id"), "domain ID")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	file, err := c.FormFile("icon")
	if err != nil {
		return common.SendValidationError(c, "icon", "file is required")
	}
	if file.Size > 2*1024*1024 {
		return common.SendValidationError(c, "icon", "must be smaller than 2MB")
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return common.SendValidationError(c, "icon", "must be an image")
	}

	src, err := file.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read icon upload")
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s", userID, domainID)
	if err := h.storageService.UploadIcon(ctx, h.iconBucket, objectName, src, file.Size, contentType); err != nil {
		return common.SendServerError(c, "Failed to store icon")
	}

	iconURL, err := h.storageService.GetPresignedURL(h.iconBucket, objectName, 7*24*time.Hour)
	if err != nil {
		return common.SendServerError(c, "Failed to generate icon URL")
	}

	if err := h.domainService.SetIcon(ctx, domainID, iconURL); err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			return common.SendNotFoundError(c, "Domain")
		}
		return common.SendServerError(c, "Failed to save icon reference")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Icon uploaded successfully",
		"icon":    iconURL,
	})
}
