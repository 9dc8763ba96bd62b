package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyNamespace = "sf:idempotency"

// IdempotencyRecord is the response captured for one Idempotency-Key.
type IdempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// IdempotencyStore persists replayable responses. Load returns (nil, nil)
// when nothing is stored under the key.
type IdempotencyStore interface {
	LoadIdempotency(ctx context.Context, scope, key string) (*IdempotencyRecord, error)
	SaveIdempotency(ctx context.Context, scope, key string, rec IdempotencyRecord, ttl time.Duration) (bool, error)
}

// IdempotencyKey builds "sf:idempotency:<scope>:<key>", skipping blank parts.
func IdempotencyKey(scope, key string) string {
	parts := []string{idempotencyNamespace}
	for _, p := range []string{scope, key} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

func (c *Client) LoadIdempotency(ctx context.Context, scope, key string) (*IdempotencyRecord, error) {
	raw, err := c.Get(ctx, IdempotencyKey(scope, key))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}

	var rec IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// SaveIdempotency keeps the first record written for a key; a concurrent
// duplicate reports false.
func (c *Client) SaveIdempotency(ctx context.Context, scope, key string, rec IdempotencyRecord, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode idempotency record: %w", err)
	}
	stored, err := c.SetNX(ctx, IdempotencyKey(scope, key), string(payload), ttl)
	if err != nil {
		return false, fmt.Errorf("save idempotency record: %w", err)
	}
	return stored, nil
}
