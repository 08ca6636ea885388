package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DomainStatus is the cached shape of the polling surface.
type DomainStatus struct {
	DomainID        uuid.UUID `json:"domain_id"`
	ProvisionStatus string    `json:"provision_status"`
	SeedStatus      string    `json:"seed_status"`
	FailReason      *string   `json:"fail_reason,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CacheService interface {
	// Domain status caching for the polling endpoint
	GetDomainStatus(ctx context.Context, domainID uuid.UUID) (*DomainStatus, error)
	SetDomainStatus(ctx context.Context, status *DomainStatus, ttl time.Duration) error
	DeleteDomainStatus(ctx context.Context, domainID uuid.UUID) error

	// Cache invalidation
	InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error

	// Rate limiting for the internal provisioning endpoint. The window is
	// enforced by IncrementRateLimit's key expiry; the read side only
	// compares the live counter against the limit.
	IsRateLimited(ctx context.Context, key string, limit int) (bool, error)
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) error

	// Generic string operations, used by the health probe roundtrip
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func domainStatusKey(domainID uuid.UUID) string {
	return fmt.Sprintf("graphgate:domain-status:%s", domainID.String())
}

func (r *redisCacheService) GetDomainStatus(ctx context.Context, domainID uuid.UUID) (*DomainStatus, error) {
	data, err := r.client.Get(ctx, domainStatusKey(domainID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var status DomainStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *redisCacheService) SetDomainStatus(ctx context.Context, status *DomainStatus, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, domainStatusKey(status.DomainID), data, ttl).Err()
}

func (r *redisCacheService) DeleteDomainStatus(ctx context.Context, domainID uuid.UUID) error {
	return r.client.Del(ctx, domainStatusKey(domainID)).Err()
}

func (r *redisCacheService) InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("graphgate:*:%s:*", tenantID.String())
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int) (bool, error) {
	count, err := r.client.Get(ctx, "graphgate:ratelimit:"+key).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= limit, nil
}

func (r *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	fullKey := "graphgate:ratelimit:" + key
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return value, nil
}
