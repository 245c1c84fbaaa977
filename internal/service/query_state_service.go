package service

import (
	"context"
	"fmt"
	"sync"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/model"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/repository/contract"
	"art-curator-be/internal/websocket"
)

// Notifier is the fan-out the state service pushes every mutation through.
type Notifier interface {
	Subscribe(sessionID string, client *websocket.Client)
	Unsubscribe(sessionID string, client *websocket.Client)
	Broadcast(sessionID string, env dto.Envelope)
	SendTo(client *websocket.Client, env dto.Envelope) bool
}

type IQueryStateService interface {
	Get(ctx context.Context, sessionID string) (model.QueryState, error)
	Set(ctx context.Context, sessionID string, patch model.QueryStatePatch) (model.QueryState, error)
	// SetIfCurrent applies patch only while generation still owns the session.
	SetIfCurrent(ctx context.Context, sessionID string, generation uint64, patch model.QueryStatePatch) (model.QueryState, error)
	// Begin starts a new submission: bumps the generation, resets results and
	// moves the session to analyzing.
	Begin(ctx context.Context, sessionID, queryID, query string) (model.QueryState, error)

	Subscribe(ctx context.Context, sessionID string, client *websocket.Client) error
	Unsubscribe(sessionID string, client *websocket.Client)
}

type queryStateService struct {
	repo     contract.SessionStateRepository
	notifier Notifier
	logger   logger.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewQueryStateService(repo contract.SessionStateRepository, notifier Notifier, log logger.ILogger) IQueryStateService {
	return &queryStateService{
		repo:     repo,
		notifier: notifier,
		logger:   log,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *queryStateService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func (s *queryStateService) load(ctx context.Context, sessionID string) (model.QueryState, error) {
	state, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return model.QueryState{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if state == nil {
		return model.NewQueryState(sessionID), nil
	}
	return *state, nil
}

func (s *queryStateService) Get(ctx context.Context, sessionID string) (model.QueryState, error) {
	return s.load(ctx, sessionID)
}

func (s *queryStateService) Set(ctx context.Context, sessionID string, patch model.QueryStatePatch) (model.QueryState, error) {
	return s.mutate(ctx, sessionID, func(cur model.QueryState) (model.QueryState, error) {
		return patch.Apply(cur), nil
	})
}

func (s *queryStateService) SetIfCurrent(ctx context.Context, sessionID string, generation uint64, patch model.QueryStatePatch) (model.QueryState, error) {
	return s.mutate(ctx, sessionID, func(cur model.QueryState) (model.QueryState, error) {
		if cur.Generation != generation {
			return cur, fmt.Errorf("%w: run %d, session at %d", ErrStaleGeneration, generation, cur.Generation)
		}
		return patch.Apply(cur), nil
	})
}

func (s *queryStateService) Begin(ctx context.Context, sessionID, queryID, query string) (model.QueryState, error) {
	stage := model.StageAnalyzing
	patch := model.QueryStatePatch{
		QueryID:         &queryID,
		CurrentQuery:    &query,
		ProcessingStage: &stage,
		ClearResults:    true,
		ClearError:      true,
	}
	return s.mutate(ctx, sessionID, func(cur model.QueryState) (model.QueryState, error) {
		next := patch.Apply(cur)
		next.Generation = cur.Generation + 1
		return next, nil
	})
}

// mutate is the only write path: load, change, persist and notify, all under
// the session's lock so observers see mutations in the order they happened.
func (s *queryStateService) mutate(ctx context.Context, sessionID string, fn func(model.QueryState) (model.QueryState, error)) (model.QueryState, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.load(ctx, sessionID)
	if err != nil {
		return model.QueryState{}, err
	}

	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.SessionID = sessionID

	if err := s.repo.Save(ctx, &next); err != nil {
		return cur, fmt.Errorf("save session %s: %w", sessionID, err)
	}

	for _, env := range broadcastEnvelopes(cur, next) {
		s.notifier.Broadcast(sessionID, env)
	}

	s.logger.Debug("QueryState", "Session updated", map[string]interface{}{
		"session_id": sessionID,
		"stage":      next.ProcessingStage,
		"generation": next.Generation,
	})
	return next, nil
}

// broadcastEnvelopes sends results only on the transition into complete.
func broadcastEnvelopes(prev, next model.QueryState) []dto.Envelope {
	envs := []dto.Envelope{dto.StateEnvelope(next)}
	if next.ProcessingStage == model.StageComplete &&
		(prev.ProcessingStage != model.StageComplete || prev.Generation != next.Generation) {
		envs = append(envs, dto.ResultsEnvelope(next))
	}
	return envs
}

func (s *queryStateService) Subscribe(ctx context.Context, sessionID string, client *websocket.Client) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	s.notifier.Subscribe(sessionID, client)
	for _, env := range dto.SnapshotEnvelopes(cur) {
		if !s.notifier.SendTo(client, env) {
			break
		}
	}
	return nil
}

func (s *queryStateService) Unsubscribe(sessionID string, client *websocket.Client) {
	s.notifier.Unsubscribe(sessionID, client)
}
