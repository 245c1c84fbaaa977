package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/model"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/repository/contract"

	"github.com/google/uuid"
)

type ISessionService interface {
	Submit(ctx context.Context, sessionID, query string) (*dto.SubmitQueryResponse, error)
	Status(ctx context.Context, sessionID string) (*dto.StatusResponse, error)
	// Results returns a not-ready body, never an error, until the session is complete.
	Results(ctx context.Context, sessionID string) (res *dto.ResultsResponse, notReady *dto.ResultsNotReadyResponse, err error)
	// HandleInbound serves {type:"query"} messages from the push channel.
	HandleInbound(ctx context.Context, sessionID string, msg dto.InboundMessage) error
}

type sessionService struct {
	state       IQueryStateService
	resultCache contract.ResultCacheRepository
	publisher   IPublisherService
	logger      logger.ILogger
}

func NewSessionService(
	state IQueryStateService,
	resultCache contract.ResultCacheRepository,
	publisher IPublisherService,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		state:       state,
		resultCache: resultCache,
		publisher:   publisher,
		logger:      log,
	}
}

// NormalizeQuery is the result cache key: lowercased, trimmed, inner
// whitespace collapsed to single spaces.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func (s *sessionService) Submit(ctx context.Context, sessionID, query string) (*dto.SubmitQueryResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	queryID := uuid.NewString()
	state, err := s.state.Begin(ctx, sessionID, queryID, query)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.lookup(ctx, sessionID, query); ok {
		stage := model.StageComplete
		_, err := s.state.SetIfCurrent(ctx, sessionID, state.Generation, model.QueryStatePatch{
			ProcessingStage: &stage,
			SelectedWorks:   cached,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info("Session", "Served query from result cache", map[string]interface{}{
			"session_id": sessionID,
			"artworks":   len(cached),
		})
		return &dto.SubmitQueryResponse{Message: "Query processed from cache", QueryId: queryID}, nil
	}

	payload, err := json.Marshal(dto.PipelineRunMessage{
		SessionID:  sessionID,
		Query:      query,
		Generation: state.Generation,
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, payload); err != nil {
		stage := model.StageError
		msg := "Failed to start processing. Please try again."
		_, _ = s.state.SetIfCurrent(ctx, sessionID, state.Generation, model.QueryStatePatch{
			ProcessingStage: &stage,
			Error:           &msg,
		})
		return nil, fmt.Errorf("enqueue pipeline run: %w", err)
	}

	return &dto.SubmitQueryResponse{Message: "Query accepted for processing", QueryId: queryID}, nil
}

// lookup treats every cache failure as a miss.
func (s *sessionService) lookup(ctx context.Context, sessionID, query string) ([]model.AnnotatedArtwork, bool) {
	artworks, ok, err := s.resultCache.Lookup(ctx, NormalizeQuery(query))
	if err != nil {
		s.logger.Warn("Session", "Result cache lookup failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      fmt.Errorf("%w: %v", ErrCacheUnavailable, err).Error(),
		})
		return nil, false
	}
	if !ok || len(artworks) == 0 {
		return nil, false
	}
	return artworks, true
}

func (s *sessionService) Status(ctx context.Context, sessionID string) (*dto.StatusResponse, error) {
	state, err := s.state.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.StatusResponse{
		State:       state.ProcessingStage,
		LastUpdated: state.LastUpdated,
		Query:       state.CurrentQuery,
		Error:       state.Error,
	}, nil
}

func (s *sessionService) Results(ctx context.Context, sessionID string) (*dto.ResultsResponse, *dto.ResultsNotReadyResponse, error) {
	state, err := s.state.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if state.ProcessingStage != model.StageComplete {
		return nil, &dto.ResultsNotReadyResponse{
			Message: "Results not ready yet",
			State:   state.ProcessingStage,
			Error:   state.Error,
		}, nil
	}

	return &dto.ResultsResponse{
		Query:    state.CurrentQuery,
		Artworks: state.SelectedWorks,
	}, nil, nil
}

func (s *sessionService) HandleInbound(ctx context.Context, sessionID string, msg dto.InboundMessage) error {
	_, err := s.Submit(ctx, sessionID, msg.Query)
	return err
}
