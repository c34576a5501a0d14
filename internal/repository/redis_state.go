package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps the latest vault snapshot under a single key.
type RedisStateStore struct {
	client *RedisClient
	key    string
}

func NewRedisStateStore(client *RedisClient, key string) *RedisStateStore {
	if key == "" {
		key = "tradevault:state"
	}
	return &RedisStateStore{client: client, key: key}
}

func (s *RedisStateStore) Save(ctx context.Context, snap *vault.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Client.Set(ctx, s.key, payload, 0).Err()
}

// Load returns nil when no snapshot has been saved yet.
func (s *RedisStateStore) Load(ctx context.Context) (*vault.Snapshot, error) {
	raw, err := s.client.Client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap vault.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
