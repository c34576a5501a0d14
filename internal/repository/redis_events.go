package repository

import (
	"context"
	"encoding/json"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/vault"
)

// RedisEventRepo keeps the most recent events in a capped list, newest first.
type RedisEventRepo struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisEventRepo(client *RedisClient, listKey string, listMax int) *RedisEventRepo {
	if listKey == "" {
		listKey = "tradevault:events"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisEventRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisEventRepo) Insert(ctx context.Context, e *vault.Event) error {
	if e == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisEventRepo) List(ctx context.Context, filter model.EventFilter) ([]vault.Event, error) {
	filter = filter.Normalize()
	fetch := filter.Limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]vault.Event, 0, filter.Limit)
	for _, item := range items {
		var e vault.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		if !filter.Matches(e.Type, e.Seq, e.CreatedAt) {
			continue
		}
		results = append(results, e)
		if len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}
