// Package events publishes run lifecycle events to Redis and guards each
// batch date with a run lock.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/digest-service/internal/batch"
)

const (
	runChannel = "EVENT_DIGEST_RUN"

	// A lock that outlives any plausible run is a leak; expire it.
	lockTTL = 2 * time.Hour
)

// Publisher implements batch.EventPublisher on Redis.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a Publisher using the given client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish broadcasts one run lifecycle event on the EVENT_DIGEST_RUN
// channel for the external monitoring surface.
func (p *Publisher) Publish(ctx context.Context, event batch.RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := p.rdb.Publish(ctx, runChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", runChannel, err)
	}
	return nil
}

// TryLock acquires the per-date run lock. Returns false when another
// process is already driving this batch date.
func (p *Publisher) TryLock(ctx context.Context, batchDate time.Time, runID string) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, lockKey(batchDate), runID, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx run lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the per-date run lock.
func (p *Publisher) Unlock(ctx context.Context, batchDate time.Time) error {
	if err := p.rdb.Del(ctx, lockKey(batchDate)).Err(); err != nil {
		return fmt.Errorf("del run lock: %w", err)
	}
	return nil
}

func lockKey(batchDate time.Time) string {
	return "digest:lock:" + batchDate.Format("2006-01-02")
}
