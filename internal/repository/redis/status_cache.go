package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/acme/sales-dialer/internal/domain"
	"github.com/acme/sales-dialer/internal/repository"
)

// StatusCache keeps the latest snapshot of each run in redis with a TTL.
type StatusCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewStatusCache constructs the cache.
func NewStatusCache(client *goredis.Client, prefix string, ttl time.Duration) *StatusCache {
	if prefix == "" {
		prefix = "dialer"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusCache{client: client, prefix: prefix, ttl: ttl}
}

// PutStatus stores the snapshot, replacing the previous one for the run.
func (c *StatusCache) PutStatus(ctx context.Context, runID uuid.UUID, status domain.StatusSnapshot) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("status cache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(runID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("status cache: set: %w", err)
	}
	return nil
}

// GetStatus returns the cached snapshot or repository.ErrNotFound.
func (c *StatusCache) GetStatus(ctx context.Context, runID uuid.UUID) (domain.StatusSnapshot, error) {
	payload, err := c.client.Get(ctx, c.key(runID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.StatusSnapshot{}, fmt.Errorf("status cache: run %s: %w", runID, repository.ErrNotFound)
	}
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("status cache: get: %w", err)
	}

	var status domain.StatusSnapshot
	if err := json.Unmarshal(payload, &status); err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("status cache: unmarshal: %w", err)
	}
	return status, nil
}

func (c *StatusCache) key(runID uuid.UUID) string {
	return fmt.Sprintf("%s:run:%s:status", c.prefix, runID)
}
