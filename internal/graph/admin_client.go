package graph

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CreateStatus is the closed set of non-error outcomes of CreateDatabase.
type CreateStatus int

const (
	CreateAcknowledged CreateStatus = iota
	CreateAlreadyExists
)

// WaitStatus is the closed set of non-error outcomes of WaitUntilOnline.
type WaitStatus int

const (
	WaitOnline WaitStatus = iota
	WaitTimedOut
)

// AdminClient is the control-plane capability against the graph engine.
// All calls are connection-scoped; none of them hold registry transactions.
type AdminClient interface {
	// SupportsMultiDatabase reports whether the engine can host isolated
	// per-domain databases. An engine that cannot answer counts as
	// unsupported, so provisioning falls back to the shared default
	// database instead of failing.
	SupportsMultiDatabase(ctx context.Context) bool
	CreateDatabase(ctx context.Context, name string) (CreateStatus, error)
	// WaitUntilOnline polls engine status until the database is healthy or
	// the deadline elapses. It never blocks past the deadline.
	WaitUntilOnline(ctx context.Context, name string, deadline time.Duration) (WaitStatus, error)
	DropDatabase(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// AdminConfig configures the Neo4j-backed admin client.
type AdminConfig struct {
	URI      string
	Username string
	Password string
	// PollInterval between online checks; defaults to 1.5s.
	PollInterval time.Duration
	// MultiDBOverride forces the capability answer when set. Used for tests
	// and for deployments pinned to single-database engines.
	MultiDBOverride *bool
}

type neo4jAdminClient struct {
	driver          neo4j.DriverWithContext
	pollInterval    time.Duration
	multiDBOverride *bool
}

func NewAdminClient(cfg AdminConfig) (AdminClient, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create graph admin driver: %w", err)
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}

	return &neo4jAdminClient{
		driver:          driver,
		pollInterval:    interval,
		multiDBOverride: cfg.MultiDBOverride,
	}, nil
}

func (c *neo4jAdminClient) systemSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "system"})
}

func (c *neo4jAdminClient) SupportsMultiDatabase(ctx context.Context) bool {
	if c.multiDBOverride != nil {
		return *c.multiDBOverride
	}

	session := c.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "SHOW DATABASES", nil)
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		// Community tier rejects system commands; treat as single-database.
		log.Printf("WARN: multi-database capability check failed, assuming unsupported: %v", err)
		return false
	}
	return true
}

func (c *neo4jAdminClient) CreateDatabase(ctx context.Context, name string) (CreateStatus, error) {
	session := c.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "CREATE DATABASE $db IF NOT EXISTS", map[string]interface{}{"db": name})
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return CreateAlreadyExists, nil
		}
		return 0, fmt.Errorf("CREATE DATABASE %s: %w", name, err)
	}
	return CreateAcknowledged, nil
}

func (c *neo4jAdminClient) WaitUntilOnline(ctx context.Context, name string, deadline time.Duration) (WaitStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		online, err := c.isOnline(waitCtx, name)
		if err != nil && waitCtx.Err() == nil {
			return 0, fmt.Errorf("SHOW DATABASE %s: %w", name, err)
		}
		if online {
			return WaitOnline, nil
		}

		select {
		case <-waitCtx.Done():
			return WaitTimedOut, nil
		case <-ticker.C:
		}
	}
}

func (c *neo4jAdminClient) isOnline(ctx context.Context, name string) (bool, error) {
	session := c.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "SHOW DATABASE $db", map[string]interface{}{"db": name})
	if err != nil {
		return false, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		// No record yet: the database is still being materialized.
		return false, nil
	}

	status, ok := record.Get("currentStatus")
	if !ok {
		status, _ = record.Get("status")
	}
	if s, ok := status.(string); ok {
		return strings.Contains(strings.ToLower(s), "online"), nil
	}
	return false, nil
}

func (c *neo4jAdminClient) DropDatabase(ctx context.Context, name string) error {
	session := c.systemSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "DROP DATABASE $db IF EXISTS", map[string]interface{}{"db": name})
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		return fmt.Errorf("DROP DATABASE %s: %w", name, err)
	}
	return nil
}

func (c *neo4jAdminClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
