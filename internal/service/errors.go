package service

import "errors"

var (
	ErrResearchFailure  = errors.New("research stage produced no artworks")
	ErrImageResolution  = errors.New("image resolution failed")
	ErrAnnotation       = errors.New("annotation failed")
	ErrCacheUnavailable = errors.New("result cache unavailable")
	ErrStaleGeneration  = errors.New("pipeline run superseded by a newer submission")
	ErrInvalidQuery     = errors.New("query is required")
)
