package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "saga:"

// RedisStore keeps saga snapshots in Redis so multiple orchestrator
// instances share one snapshot space. TTL enforcement is delegated to
// Redis key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func snapshotKey(orderID string) string {
	return snapshotKeyPrefix + orderID
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.OrderID, err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.OrderID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.OrderID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, orderID string) (Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, snapshotKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("get snapshot %s: %w", orderID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", orderID, err)
	}
	return snap, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, orderID string) error {
	if err := s.client.Del(ctx, snapshotKey(orderID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", orderID, err)
	}
	return nil
}
