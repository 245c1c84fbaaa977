package model

import (
	"time"

	"gorm.io/datatypes"
)

// ResultCacheEntry is the postgres row behind the durable result cache.
type ResultCacheEntry struct {
	QueryKey  string                                 `gorm:"type:text;primaryKey" json:"queryKey"`
	Artworks  datatypes.JSONType[[]AnnotatedArtwork] `gorm:"type:jsonb;not null" json:"artworks"`
	ExpiresAt time.Time                              `gorm:"not null;index:idx_result_cache_expires" json:"expiresAt"`
	CreatedAt time.Time                              `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (ResultCacheEntry) TableName() string {
	return "result_cache_entries"
}
