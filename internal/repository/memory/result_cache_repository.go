package memory

import (
	"context"
	"time"

	"art-curator-be/internal/model"
	"art-curator-be/internal/repository/contract"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cachedResult struct {
	artworks  []model.AnnotatedArtwork
	expiresAt time.Time
}

// ResultCacheRepository keeps completed result sets in a bounded LRU. The
// LRU TTL is the upper bound; per-entry ttl passed to Store may be shorter.
type ResultCacheRepository struct {
	lru *expirable.LRU[string, cachedResult]
}

var _ contract.ResultCacheRepository = &ResultCacheRepository{}

func NewResultCacheRepository(size int, ttl time.Duration) *ResultCacheRepository {
	if size <= 0 {
		size = 1024
	}
	return &ResultCacheRepository{
		lru: expirable.NewLRU[string, cachedResult](size, nil, ttl),
	}
}

func (r *ResultCacheRepository) Lookup(_ context.Context, queryKey string) ([]model.AnnotatedArtwork, bool, error) {
	entry, ok := r.lru.Get(queryKey)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		r.lru.Remove(queryKey)
		return nil, false, nil
	}
	return entry.artworks, true, nil
}

func (r *ResultCacheRepository) Store(_ context.Context, queryKey string, artworks []model.AnnotatedArtwork, ttl time.Duration) error {
	stored := make([]model.AnnotatedArtwork, len(artworks))
	copy(stored, artworks)
	r.lru.Add(queryKey, cachedResult{artworks: stored, expiresAt: time.Now().Add(ttl)})
	return nil
}
