package contract

import (
	"context"

	"art-curator-be/internal/model"
)

// SessionStateRepository persists one QueryState per session. It carries no
// locking of its own; the state service is the single writer.
type SessionStateRepository interface {
	Get(ctx context.Context, sessionID string) (*model.QueryState, error) // nil, nil when unknown
	Save(ctx context.Context, state *model.QueryState) error
}
