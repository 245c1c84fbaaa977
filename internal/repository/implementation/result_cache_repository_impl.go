package implementation

import (
	"context"
	"errors"
	"time"

	"art-curator-be/internal/model"
	"art-curator-be/internal/repository/contract"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultCacheRepositoryImpl struct {
	db *gorm.DB
}

var _ contract.ResultCacheRepository = &ResultCacheRepositoryImpl{}

func NewResultCacheRepository(db *gorm.DB) *ResultCacheRepositoryImpl {
	return &ResultCacheRepositoryImpl{db: db}
}

func (r *ResultCacheRepositoryImpl) Lookup(ctx context.Context, queryKey string) ([]model.AnnotatedArtwork, bool, error) {
	var entry model.ResultCacheEntry
	err := r.db.WithContext(ctx).
		Where("query_key = ? AND expires_at > ?", queryKey, time.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Artworks.Data(), true, nil
}

func (r *ResultCacheRepositoryImpl) Store(ctx context.Context, queryKey string, artworks []model.AnnotatedArtwork, ttl time.Duration) error {
	entry := model.ResultCacheEntry{
		QueryKey:  queryKey,
		Artworks:  datatypes.NewJSONType(artworks),
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	// Upsert: a newer run for the same key replaces the whole entry.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "query_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"artworks", "expires_at", "created_at"}),
		}).
		Create(&entry).Error
}

// PurgeExpired deletes rows past their expiry. Lookups already ignore them;
// this only reclaims space.
func (r *ResultCacheRepositoryImpl) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&model.ResultCacheEntry{})
	return result.RowsAffected, result.Error
}
