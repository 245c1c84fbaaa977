package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"art-curator-be/internal/constant"
	"art-curator-be/internal/model"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/repository/contract"
	"art-curator-be/pkg/events"
	"art-curator-be/pkg/extract"
	"art-curator-be/pkg/imagesearch"
	"art-curator-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// EventPublisher is satisfied by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type PipelineOptions struct {
	CandidateCount        int
	AnnotationConcurrency int
	LLMTimeout            time.Duration
	ImageTimeout          time.Duration
	ResultCacheTTL        time.Duration
}

type IPipelineService interface {
	// Run drives one submission from researching to complete or error. It
	// returns ErrStaleGeneration when a newer submission took the session.
	Run(ctx context.Context, sessionID, query string, generation uint64) error
}

type pipelineService struct {
	state       IQueryStateService
	llm         llm.LLMProvider
	resolver    imagesearch.Resolver
	resultCache contract.ResultCacheRepository
	events      EventPublisher
	opts        PipelineOptions
	logger      logger.ILogger
	tracer      trace.Tracer
}

func NewPipelineService(
	state IQueryStateService,
	llmProvider llm.LLMProvider,
	resolver imagesearch.Resolver,
	resultCache contract.ResultCacheRepository,
	eventPublisher EventPublisher,
	opts PipelineOptions,
	log logger.ILogger,
) IPipelineService {
	if opts.CandidateCount <= 0 {
		opts.CandidateCount = 5
	}
	if opts.AnnotationConcurrency <= 0 {
		opts.AnnotationConcurrency = 1
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 90 * time.Second
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 20 * time.Second
	}
	if opts.ResultCacheTTL <= 0 {
		opts.ResultCacheTTL = 30 * 24 * time.Hour
	}
	return &pipelineService{
		state:       state,
		llm:         llmProvider,
		resolver:    resolver,
		resultCache: resultCache,
		events:      eventPublisher,
		opts:        opts,
		logger:      log,
		tracer:      otel.Tracer("pipeline"),
	}
}

func (s *pipelineService) Run(ctx context.Context, sessionID, query string, generation uint64) error {
	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int64("pipeline.generation", int64(generation)),
	))
	defer span.End()

	err := s.run(ctx, sessionID, query, generation)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleGeneration):
		s.logger.Info("Pipeline", "Run superseded, stopping", map[string]interface{}{
			"session_id": sessionID,
			"generation": generation,
		})
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *pipelineService) run(ctx context.Context, sessionID, query string, generation uint64) error {
	err := s.stages(ctx, sessionID, query, generation)
	if err != nil && !errors.Is(err, ErrStaleGeneration) {
		s.fail(ctx, sessionID, generation, err)
	}
	return err
}

func (s *pipelineService) stages(ctx context.Context, sessionID, query string, generation uint64) error {
	candidates, err := s.research(ctx, sessionID, query, generation)
	if err != nil {
		return err
	}

	withImages, err := s.resolveImages(ctx, sessionID, generation, candidates)
	if err != nil {
		return err
	}

	annotated, err := s.annotate(ctx, sessionID, query, generation, withImages)
	if err != nil {
		return err
	}

	return s.complete(ctx, sessionID, query, generation, annotated)
}

func (s *pipelineService) fail(ctx context.Context, sessionID string, generation uint64, cause error) {
	s.logger.Error("Pipeline", "Run failed", map[string]interface{}{
		"session_id": sessionID,
		"error":      cause.Error(),
	})

	stage := model.StageError
	msg := constant.PipelineFailedMessage
	if errors.Is(cause, ErrResearchFailure) {
		msg = constant.ResearchFailedMessage
	}
	_, err := s.state.SetIfCurrent(ctx, sessionID, generation, model.QueryStatePatch{
		ProcessingStage: &stage,
		Error:           &msg,
	})
	if err != nil && !errors.Is(err, ErrStaleGeneration) {
		s.logger.Error("Pipeline", "Failed to record error state", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

// superseded reports whether a newer run has taken over the session. A read
// error is not treated as supersession; the next SetIfCurrent decides.
func (s *pipelineService) superseded(ctx context.Context, sessionID string, generation uint64) bool {
	state, err := s.state.Get(ctx, sessionID)
	return err == nil && state.Generation != generation
}

// 1. Research

func (s *pipelineService) research(ctx context.Context, sessionID, query string, generation uint64) ([]model.ArtworkCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.research")
	defer span.End()

	if _, err := s.state.SetIfCurrent(ctx, sessionID, generation, model.StagePatch(model.StageResearching)); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()

	prompt := fmt.Sprintf(constant.ResearchPrompt, query, s.opts.CandidateCount)
	text, err := s.llm.Generate(callCtx, prompt, llm.WithPersona(constant.CuratorPersona))
	if err != nil {
		return nil, fmt.Errorf("%w: completion: %v", ErrResearchFailure, err)
	}

	items, err := extract.Into[[]json.RawMessage](text, extract.ShapeArray)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResearchFailure, err)
	}

	candidates := make([]model.ArtworkCandidate, 0, len(items))
	stamp := time.Now().UnixMilli()
	for _, item := range items {
		var fields map[string]interface{}
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		candidates = append(candidates, toCandidate(fields, fmt.Sprintf("artwork-%d-%d", stamp, len(candidates))))
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: model returned no artworks", ErrResearchFailure)
	}

	span.SetAttributes(attribute.Int("pipeline.candidates", len(candidates)))
	s.logger.Info("Pipeline", "Research complete", map[string]interface{}{
		"session_id": sessionID,
		"candidates": len(candidates),
	})
	return candidates, nil
}

func toCandidate(fields map[string]interface{}, id string) model.ArtworkCandidate {
	c := model.ArtworkCandidate{
		ID:       id,
		Title:    stringField(fields, "title", "Untitled"),
		Artist:   stringField(fields, "artist", "Unknown artist"),
		Year:     yearField(fields["year"]),
		Period:   stringField(fields, "period", "Unknown"),
		Location: stringField(fields, "location", "Unknown"),
	}
	if score, ok := fields["relevanceScore"].(float64); ok {
		c.RelevanceScore = &score
	}
	return c
}

func stringField(fields map[string]interface{}, key, fallback string) string {
	if v, ok := fields[key].(string); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

// yearField accepts a number or the first run of digits in a string ("c. 1495").
func yearField(v interface{}) int {
	switch y := v.(type) {
	case float64:
		return int(y)
	case string:
		start := strings.IndexAny(y, "0123456789")
		if start < 0 {
			return 0
		}
		end := start
		for end < len(y) && y[end] >= '0' && y[end] <= '9' {
			end++
		}
		n, err := strconv.Atoi(y[start:end])
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// 2. Image resolution. Serial: the resolver drives one shared browser page.

func (s *pipelineService) resolveImages(ctx context.Context, sessionID string, generation uint64, candidates []model.ArtworkCandidate) ([]model.ArtworkWithImage, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.fetch_images")
	defer span.End()

	stage := model.StageFetching
	if _, err := s.state.SetIfCurrent(ctx, sessionID, generation, model.QueryStatePatch{
		ProcessingStage: &stage,
		SearchResults:   candidates,
	}); err != nil {
		return nil, err
	}

	out := make([]model.ArtworkWithImage, len(candidates))
	placeholders := 0
	for i, c := range candidates {
		if s.superseded(ctx, sessionID, generation) {
			return nil, ErrStaleGeneration
		}
		imageURL, err := s.resolveOne(ctx, c)
		if err != nil {
			placeholders++
			s.logger.Warn("Pipeline", "Using placeholder image", map[string]interface{}{
				"session_id": sessionID,
				"title":      c.Title,
				"error":      err.Error(),
			})
			imageURL = imagesearch.Placeholder(c.Title)
		}
		out[i] = model.ArtworkWithImage{ArtworkCandidate: c, ImageURL: imageURL}
	}

	span.SetAttributes(attribute.Int("pipeline.image_placeholders", placeholders))
	return out, nil
}

func (s *pipelineService) resolveOne(ctx context.Context, c model.ArtworkCandidate) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.ImageTimeout)
	defer cancel()

	imageURL, err := s.resolver.Resolve(callCtx, imagesearch.SearchPhrase(c.Artist, c.Title))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageResolution, err)
	}
	if strings.TrimSpace(imageURL) == "" {
		return "", fmt.Errorf("%w: %v", ErrImageResolution, imagesearch.ErrNoImage)
	}
	return imageURL, nil
}

// 3. Annotation

type annotationFields struct {
	HistoricalContext    interface{} `json:"historicalContext"`
	ArtisticStyle        interface{} `json:"artisticStyle"`
	BiblicalNarrative    interface{} `json:"biblicalNarrative"`
	InterestingDetails   interface{} `json:"interestingDetails"`
	UniqueInterpretation interface{} `json:"uniqueInterpretation"`
}

func (s *pipelineService) annotate(ctx context.Context, sessionID, query string, generation uint64, works []model.ArtworkWithImage) ([]model.AnnotatedArtwork, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.annotate")
	defer span.End()

	if _, err := s.state.SetIfCurrent(ctx, sessionID, generation, model.StagePatch(model.StageAnnotating)); err != nil {
		return nil, err
	}

	out := make([]model.AnnotatedArtwork, len(works))

	var g errgroup.Group
	g.SetLimit(s.opts.AnnotationConcurrency)
	for i, w := range works {
		g.Go(func() error {
			if s.superseded(ctx, sessionID, generation) {
				return ErrStaleGeneration
			}
			annotations, err := s.annotateOne(ctx, query, w)
			if err != nil {
				s.logger.Warn("Pipeline", "Using placeholder annotations", map[string]interface{}{
					"session_id": sessionID,
					"title":      w.Title,
					"error":      err.Error(),
				})
			}
			out[i] = model.AnnotatedArtwork{ArtworkWithImage: w, Annotations: annotations}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// annotateOne always returns usable annotations; err reports that some or all
// of them are placeholders.
func (s *pipelineService) annotateOne(ctx context.Context, query string, w model.ArtworkWithImage) (model.Annotations, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()

	prompt := fmt.Sprintf(constant.AnnotationPrompt, w.Title, w.Artist, w.Year, w.Period, query)
	text, err := s.llm.Generate(callCtx, prompt, llm.WithPersona(constant.CuratorPersona))
	if err != nil {
		return placeholderAnnotations(), fmt.Errorf("%w: completion: %v", ErrAnnotation, err)
	}

	fields, err := extract.Into[annotationFields](text, extract.ShapeObject)
	if err != nil {
		return placeholderAnnotations(), fmt.Errorf("%w: %v", ErrAnnotation, err)
	}

	return model.Annotations{
		HistoricalContext:    textOrPlaceholder(fields.HistoricalContext),
		ArtisticStyle:        textOrPlaceholder(fields.ArtisticStyle),
		BiblicalNarrative:    textOrPlaceholder(fields.BiblicalNarrative),
		InterestingDetails:   detailsOrPlaceholder(fields.InterestingDetails),
		UniqueInterpretation: textOrPlaceholder(fields.UniqueInterpretation),
	}, nil
}

func placeholderAnnotations() model.Annotations {
	return model.Annotations{
		HistoricalContext:    constant.AnnotationUnavailable,
		ArtisticStyle:        constant.AnnotationUnavailable,
		BiblicalNarrative:    constant.AnnotationUnavailable,
		InterestingDetails:   []string{constant.AnnotationUnavailable},
		UniqueInterpretation: constant.AnnotationUnavailable,
	}
}

func textOrPlaceholder(v interface{}) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return constant.AnnotationUnavailable
}

func detailsOrPlaceholder(v interface{}) []string {
	var details []string
	switch d := v.(type) {
	case []interface{}:
		for _, item := range d {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				details = append(details, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(d); s != "" {
			details = []string{s}
		}
	}
	if len(details) == 0 {
		return []string{constant.AnnotationUnavailable}
	}
	return details
}

// 4. Completion

func (s *pipelineService) complete(ctx context.Context, sessionID, query string, generation uint64, works []model.AnnotatedArtwork) error {
	stage := model.StageComplete
	final, err := s.state.SetIfCurrent(ctx, sessionID, generation, model.QueryStatePatch{
		ProcessingStage: &stage,
		SelectedWorks:   works,
	})
	if err != nil {
		return err
	}

	if err := s.resultCache.Store(ctx, NormalizeQuery(query), works, s.opts.ResultCacheTTL); err != nil {
		s.logger.Warn("Pipeline", "Result cache write failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      fmt.Errorf("%w: %v", ErrCacheUnavailable, err).Error(),
		})
	}

	placeholders := 0
	for _, w := range works {
		if imagesearch.IsPlaceholder(w.ImageURL) {
			placeholders++
		}
	}

	if s.events != nil {
		evt := events.NewArtworksCurated(sessionID, final.QueryID, query, len(works), placeholders)
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Warn("Pipeline", "Failed to publish ARTWORKS_CURATED event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	s.logger.Info("Pipeline", "Run complete", map[string]interface{}{
		"session_id":   sessionID,
		"artworks":     len(works),
		"placeholders": placeholders,
	})
	return nil
}
