package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"graphgate/internal/caching"
	"graphgate/internal/graph"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// JobStatusReporter exposes the background scheduler's job inventory.
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db    *pgxpool.Pool
	cache caching.CacheService
	admin graph.AdminClient
	jobs  JobStatusReporter
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(db *pgxpool.Pool, cache caching.CacheService, admin graph.AdminClient, jobs JobStatusReporter) *HealthHandlers {
	return &HealthHandlers{
		db:    db,
		cache: cache,
		admin: admin,
		jobs:  jobs,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// HealthCheck handles GET /health
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   "1.0.0",
	}

	if err := h.db.Ping(ctx); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	// Write-then-read roundtrip so a read-only or wedged Redis shows up.
	probe := time.Now().UTC().Format(time.RFC3339Nano)
	if err := h.cache.SetString(ctx, "health:probe", probe, 30*time.Second); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
	} else if _, err := h.cache.GetString(ctx, "health:probe"); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["redis"] = "healthy"
	}

	// The capability probe doubles as a graph control-plane liveness check.
	if h.admin.SupportsMultiDatabase(ctx) {
		health.Services["graph"] = "multi-database"
	} else {
		health.Services["graph"] = "single-database"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	detail := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"runtime": map[string]interface{}{
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  memStats.HeapAlloc / 1024 / 1024,
			"total_alloc_mb": memStats.TotalAlloc / 1024 / 1024,
			"num_gc":         memStats.NumGC,
		},
	}

	dbStats := h.db.Stat()
	detail["database"] = map[string]interface{}{
		"total_conns":    dbStats.TotalConns(),
		"idle_conns":     dbStats.IdleConns(),
		"acquired_conns": dbStats.AcquiredConns(),
		"healthy":        h.db.Ping(ctx) == nil,
	}

	if h.jobs != nil {
		detail["background_jobs"] = h.jobs.GetJobStatus()
	}

	return c.JSON(http.StatusOK, detail)
}

// ReadyCheck handles GET /ready
func (h *HealthHandlers) ReadyCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
