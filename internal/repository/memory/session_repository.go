package memory

import (
	"context"
	"time"

	"art-curator-be/internal/model"
	"art-curator-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

var _ contract.SessionStateRepository = &SessionRepository{}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	// Idle sessions fall out after ttl; expired items are purged every 10 minutes.
	return &SessionRepository{cache: cache.New(ttl, 10*time.Minute)}
}

func (r *SessionRepository) Save(_ context.Context, state *model.QueryState) error {
	stored := *state
	r.cache.Set(state.SessionID, &stored, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Get(_ context.Context, sessionID string) (*model.QueryState, error) {
	if x, found := r.cache.Get(sessionID); found {
		state := *x.(*model.QueryState)
		return &state, nil
	}
	return nil, nil
}
