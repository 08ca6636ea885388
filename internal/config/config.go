package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full environment-driven configuration surface.
type Config struct {
	// Registry
	DatabaseURL string

	// Graph engine control plane
	Neo4jAdminURI  string
	Neo4jAdminUser string
	Neo4jAdminPass string
	// Connection URI handed out to provisioned domains.
	Neo4jPublicURI string
	// Shared default database used when multi-database is unsupported.
	Neo4jDefaultDatabase string
	// Forces the multi-database capability answer when set ("true"/"false").
	MultiDBOverride *bool

	// Credential vault
	RegistryEncKey string

	// Provisioning
	ProvisionAsync        bool
	ProvisionDeadline     time.Duration
	ProvisionPollInterval time.Duration
	ProvisionWorkers      int
	SweepGracePeriod      time.Duration
	SweepInterval         time.Duration

	// HTTP / auth
	Port                   int
	JWTSecret              string
	JWKSURL                string
	InternalProvisionToken string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MinIO (domain icon assets)
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioUseSSL     bool
	MinioIconBucket string
}

// Load reads configuration from the environment, applying defaults for
// everything optional. DATABASE_URL is the only hard requirement.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		Neo4jAdminURI:          envOr("NEO4J_ADMIN_URI", "bolt://localhost:7687"),
		Neo4jAdminUser:         envOr("NEO4J_ADMIN_USER", "neo4j"),
		Neo4jAdminPass:         os.Getenv("NEO4J_ADMIN_PASS"),
		Neo4jPublicURI:         envOr("NEO4J_PUBLIC_URI", "bolt://localhost:7687"),
		Neo4jDefaultDatabase:   envOr("NEO4J_DEFAULT_DATABASE", "neo4j"),
		RegistryEncKey:         os.Getenv("REGISTRY_ENC_KEY"),
		ProvisionAsync:         envBool("PROVISION_ASYNC", true),
		ProvisionDeadline:      time.Duration(envInt("PROVISION_DEADLINE_SECONDS", 120)) * time.Second,
		ProvisionPollInterval:  time.Duration(envInt("PROVISION_POLL_INTERVAL_MS", 1500)) * time.Millisecond,
		ProvisionWorkers:       envInt("PROVISION_WORKERS", 4),
		SweepGracePeriod:       time.Duration(envInt("PROVISION_SWEEP_GRACE_MINUTES", 10)) * time.Minute,
		SweepInterval:          time.Duration(envInt("PROVISION_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		Port:                   envInt("PORT", 8080),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		JWKSURL:                os.Getenv("JWKS_URL"),
		InternalProvisionToken: os.Getenv("INTERNAL_PROVISION_TOKEN"),
		RedisAddr:              envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envInt("REDIS_DB", 0),
		MinioEndpoint:          envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:         envOr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:         envOr("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:            envBool("MINIO_USE_SSL", false),
		MinioIconBucket:        envOr("MINIO_ICON_BUCKET", "domain-icons"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if raw := os.Getenv("MULTI_DB_OVERRIDE"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MULTI_DB_OVERRIDE %q: %w", raw, err)
		}
		cfg.MultiDBOverride = &v
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
