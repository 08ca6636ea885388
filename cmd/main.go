package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"graphgate/internal/caching"
	"graphgate/internal/config"
	"graphgate/internal/graph"
	"graphgate/internal/handlers"
	"graphgate/internal/jobs"
	"graphgate/internal/jobs/background"
	"graphgate/internal/middleware"
	"graphgate/internal/repositories"
	"graphgate/internal/services"
	"graphgate/internal/vault"
	"graphgate/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Registry database
	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Credential vault
	credVault, err := vault.NewAESVault(cfg.RegistryEncKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	// Graph engine admin client
	adminClient, err := graph.NewAdminClient(graph.AdminConfig{
		URI:             cfg.Neo4jAdminURI,
		Username:        cfg.Neo4jAdminUser,
		Password:        cfg.Neo4jAdminPass,
		PollInterval:    cfg.ProvisionPollInterval,
		MultiDBOverride: cfg.MultiDBOverride,
	})
	if err != nil {
		log.Fatalf("Failed to initialize graph admin client: %v", err)
	}
	defer adminClient.Close(context.Background())

	// Object storage for domain icons
	storageSvc, err := services.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	if err := storageSvc.EnsureBucketExists(context.Background(), cfg.MinioIconBucket); err != nil {
		log.Printf("WARN: could not ensure icon bucket %s: %v", cfg.MinioIconBucket, err)
	}

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	domainRepo := repositories.NewDomainRepo(pool)
	graphRepo := repositories.NewDomainGraphRepo(pool)
	auditRepo := repositories.NewProvisionAuditRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Create services
	auditRecorder := services.NewAuditRecorder(auditRepo)
	tenantSvc := services.NewTenantService(tenantRepo)
	provisioner := services.NewProvisioner(domainRepo, graphRepo, adminClient, credVault, auditRecorder, cacheSvc, services.ProvisionerConfig{
		Deadline:        cfg.ProvisionDeadline,
		PublicURI:       cfg.Neo4jPublicURI,
		SharedUsername:  cfg.Neo4jAdminUser,
		SharedPassword:  cfg.Neo4jAdminPass,
		DefaultDatabase: cfg.Neo4jDefaultDatabase,
	})

	dispatcher := jobs.NewDispatcher(provisioner, cfg.ProvisionAsync, cfg.ProvisionWorkers)
	domainSvc := services.NewDomainService(tenantSvc, domainRepo, graphRepo, adminClient, auditRecorder, cacheSvc, dispatcher, cfg.Neo4jDefaultDatabase)

	// Background jobs: re-dispatch provisioning runs stuck past the grace
	// period (worker crashed between marking and finishing).
	sweeper := jobs.NewProvisionSweeper(graphRepo, dispatcher, auditRecorder, cfg.SweepGracePeriod)
	jobScheduler := background.NewJobScheduler(sweeper, cfg.SweepInterval)
	if err := jobScheduler.Start(); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	// Create handlers
	domainHandlers := handlers.NewDomainHandlers(domainSvc, storageSvc, cfg.MinioIconBucket)
	internalHandlers := handlers.NewInternalHandlers(graphRepo, auditRepo, dispatcher, cacheSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, adminClient, jobScheduler)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadyCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	// Protected routes (require JWT)
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTMiddleware(cfg.JWTSecret, cfg.JWKSURL))

	v1.POST("/domains", domainHandlers.CreateDomain)
	v1.GET("/domains", domainHandlers.ListDomains)
	v1.GET("/domains/name/:name", domainHandlers.GetDomainByName)
	v1.GET("/domains/:id/status", domainHandlers.GetDomainStatus)
	v1.POST("/domains/:id/provision/retry", domainHandlers.RetryProvision)
	v1.DELETE("/domains/:id", domainHandlers.DeleteDomain)
	v1.PUT("/domains/:id/icon", domainHandlers.UploadDomainIcon)

	// Service-to-service routes (require X-Internal-Token)
	internal := e.Group("/internal")
	internal.Use(middleware.InternalTokenMiddleware(cfg.InternalProvisionToken))

	internal.POST("/provision", internalHandlers.TriggerProvision)
	internal.GET("/domains/:id/provision-status", internalHandlers.GetProvisionStatus)
	internal.GET("/domains/:id/audit", internalHandlers.ListProvisionAudit)

	// Graceful shutdown: stop accepting requests, let in-flight provisioning
	// runs finish, then stop the job scheduler.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		dispatcher.Wait()
		if err := jobScheduler.Stop(); err != nil {
			log.Printf("Job scheduler shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 graphgate server v%s starting on port %d", version, cfg.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
