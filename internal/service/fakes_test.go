package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/model"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/repository/contract"
	"art-curator-be/internal/repository/memory"
	"art-curator-be/internal/websocket"
	"art-curator-be/pkg/llm"

	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	calls    atomic.Int32
	generate func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.calls.Add(1)
	return f.generate(ctx, prompt)
}

type fakeResolver struct {
	calls   atomic.Int32
	resolve func(ctx context.Context, phrase string) (string, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, phrase string) (string, error) {
	f.calls.Add(1)
	return f.resolve(ctx, phrase)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []dto.PipelineRunMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	var msg dto.PipelineRunMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakePublisher) last(t *testing.T) dto.PipelineRunMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

type fixture struct {
	hub       *websocket.Hub
	state     IQueryStateService
	cache     contract.ResultCacheRepository
	llm       *fakeLLM
	resolver  *fakeResolver
	publisher *fakePublisher
	pipeline  IPipelineService
	sessions  ISessionService
}

func isResearchPrompt(prompt string) bool {
	return strings.Contains(prompt, "Find exactly")
}

type testArtwork struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     int    `json:"year"`
	Period   string `json:"period"`
	Location string `json:"location"`
}

var lastSupperWorks = []testArtwork{
	{"The Last Supper", "Leonardo da Vinci", 1498, "High Renaissance", "Santa Maria delle Grazie, Milan"},
	{"The Last Supper", "Tintoretto", 1594, "Mannerism", "San Giorgio Maggiore, Venice"},
	{"Last Supper", "Domenico Ghirlandaio", 1480, "Early Renaissance", "Ognissanti, Florence"},
	{"The Sacrament of the Last Supper", "Salvador Dali", 1955, "Surrealism", "National Gallery of Art, Washington"},
	{"The Last Supper", "Dieric Bouts", 1468, "Early Netherlandish", "St. Peter's Church, Leuven"},
}

func researchReply(works []testArtwork) string {
	data, _ := json.MarshalIndent(works, "", "  ")
	return "Here are some well-known works:\n```json\n" + string(data) + "\n```\nLet me know if you need more."
}

const annotationReply = `Sure! {"historicalContext":"Painted for a refectory.","artisticStyle":"Linear perspective.","biblicalNarrative":"The moment after the announcement of betrayal.","interestingDetails":["one","two","three","four","five"],"uniqueInterpretation":"Groups apostles in threes."}`

// brokenCache fails every call, as an unreachable redis or postgres would.
type brokenCache struct {
	lookups atomic.Int32
	stores  atomic.Int32
}

func (c *brokenCache) Lookup(context.Context, string) ([]model.AnnotatedArtwork, bool, error) {
	c.lookups.Add(1)
	return nil, false, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func (c *brokenCache) Store(context.Context, string, []model.AnnotatedArtwork, time.Duration) error {
	c.stores.Add(1)
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

// faultySessionRepo rejects saves that move a session into failOn.
type faultySessionRepo struct {
	contract.SessionStateRepository
	failOn model.ProcessingStage
}

func (r *faultySessionRepo) Save(ctx context.Context, state *model.QueryState) error {
	if state.ProcessingStage == r.failOn {
		return errors.New("write session state: i/o timeout")
	}
	return r.SessionStateRepository.Save(ctx, state)
}

type fixtureOption func(*fixtureDeps)

type fixtureDeps struct {
	cache    contract.ResultCacheRepository
	sessions contract.SessionStateRepository
}

func withCache(c contract.ResultCacheRepository) fixtureOption {
	return func(d *fixtureDeps) { d.cache = c }
}

func withSessionRepo(r contract.SessionStateRepository) fixtureOption {
	return func(d *fixtureDeps) { d.sessions = r }
}

// newFixture wires real state, hub and cache around fake external collaborators.
// The default LLM answers with lastSupperWorks and a full annotation; the
// default resolver returns a URL derived from the phrase.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logger.NewNopLogger()

	deps := fixtureDeps{
		cache:    memory.NewResultCacheRepository(16, time.Hour),
		sessions: memory.NewSessionRepository(time.Hour),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	f := &fixture{
		hub:       websocket.NewHub(nil, log),
		cache:     deps.cache,
		publisher: &fakePublisher{},
		llm: &fakeLLM{generate: func(_ context.Context, prompt string) (string, error) {
			if isResearchPrompt(prompt) {
				return researchReply(lastSupperWorks), nil
			}
			return annotationReply, nil
		}},
		resolver: &fakeResolver{resolve: func(_ context.Context, phrase string) (string, error) {
			return fmt.Sprintf("https://images.example/%d.jpg", len(phrase)), nil
		}},
	}

	f.state = NewQueryStateService(deps.sessions, f.hub, log)
	f.pipeline = NewPipelineService(f.state, f.llm, f.resolver, f.cache, nil, PipelineOptions{
		CandidateCount:        5,
		AnnotationConcurrency: 3,
		LLMTimeout:            time.Second,
		ImageTimeout:          time.Second,
		ResultCacheTTL:        time.Hour,
	}, log)
	f.sessions = NewSessionService(f.state, f.cache, f.publisher, log)
	return f
}

// submitAndRun performs what the HTTP handler and the consumer do together.
func (f *fixture) submitAndRun(t *testing.T, sessionID, query string) model.QueryState {
	t.Helper()
	ctx := context.Background()

	before := len(f.publisher.messages)
	_, err := f.sessions.Submit(ctx, sessionID, query)
	require.NoError(t, err)

	if len(f.publisher.messages) > before {
		msg := f.publisher.last(t)
		require.NoError(t, f.pipeline.Run(ctx, msg.SessionID, msg.Query, msg.Generation))
	}

	state, err := f.state.Get(ctx, sessionID)
	require.NoError(t, err)
	return state
}

func drainEnvelopes(t *testing.T, c *websocket.Client) []dto.Envelope {
	t.Helper()
	var out []dto.Envelope
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var env dto.Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func stageOf(t *testing.T, env dto.Envelope) model.ProcessingStage {
	t.Helper()
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "state envelope data should be an object")
	stage, _ := data["processingStage"].(string)
	return model.ProcessingStage(stage)
}
