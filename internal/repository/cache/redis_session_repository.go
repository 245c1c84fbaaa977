package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"art-curator-be/internal/model"
	"art-curator-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "curator:session:"

// RedisSessionRepository keeps QueryState documents in redis so a restarted
// instance can still answer status polls.
type RedisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.SessionStateRepository = &RedisSessionRepository{}

func NewRedisSessionRepository(rdb *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*model.QueryState, error) {
	raw, err := r.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", sessionID, err)
	}

	var state model.QueryState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, state *model.QueryState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}
	if err := r.rdb.Set(ctx, sessionKeyPrefix+state.SessionID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", state.SessionID, err)
	}
	return nil
}
