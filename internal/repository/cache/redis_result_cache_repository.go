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

const resultKeyPrefix = "curator:results:"

type RedisResultCacheRepository struct {
	rdb *redis.Client
}

var _ contract.ResultCacheRepository = &RedisResultCacheRepository{}

func NewRedisResultCacheRepository(rdb *redis.Client) *RedisResultCacheRepository {
	return &RedisResultCacheRepository{rdb: rdb}
}

func (r *RedisResultCacheRepository) Lookup(ctx context.Context, queryKey string) ([]model.AnnotatedArtwork, bool, error) {
	raw, err := r.rdb.Get(ctx, resultKeyPrefix+queryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get results: %w", err)
	}

	var artworks []model.AnnotatedArtwork
	if err := json.Unmarshal(raw, &artworks); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return artworks, true, nil
}

func (r *RedisResultCacheRepository) Store(ctx context.Context, queryKey string, artworks []model.AnnotatedArtwork, ttl time.Duration) error {
	raw, err := json.Marshal(artworks)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	// Expiry is enforced by redis itself.
	if err := r.rdb.Set(ctx, resultKeyPrefix+queryKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set results: %w", err)
	}
	return nil
}
