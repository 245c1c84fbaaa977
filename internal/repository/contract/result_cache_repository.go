package contract

import (
	"context"
	"time"

	"art-curator-be/internal/model"
)

// ResultCacheRepository maps a normalized query to a completed result set.
// Entries are replaced wholesale, never patched.
type ResultCacheRepository interface {
	Lookup(ctx context.Context, queryKey string) ([]model.AnnotatedArtwork, bool, error)
	Store(ctx context.Context, queryKey string, artworks []model.AnnotatedArtwork, ttl time.Duration) error
}
