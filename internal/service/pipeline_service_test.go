package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"art-curator-be/internal/constant"
	"art-curator-be/internal/model"
	"art-curator-be/internal/repository/memory"
	"art-curator-be/pkg/imagesearch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_LastSupper(t *testing.T) {
	f := newFixture(t)

	state := f.submitAndRun(t, "session-1", "The Last Supper")

	assert.Equal(t, model.StageComplete, state.ProcessingStage)
	assert.Empty(t, state.Error)
	require.Len(t, state.SelectedWorks, 5)

	for i, w := range state.SelectedWorks {
		assert.Equal(t, lastSupperWorks[i].Artist, w.Artist, "order must follow research output")
		assert.NotEmpty(t, w.ID)
		assert.False(t, imagesearch.IsPlaceholder(w.ImageURL))
		assert.NotEqual(t, constant.AnnotationUnavailable, w.Annotations.HistoricalContext)
		assert.NotEqual(t, constant.AnnotationUnavailable, w.Annotations.UniqueInterpretation)
		assert.Len(t, w.Annotations.InterestingDetails, 5)
	}
	assert.Len(t, state.SearchResults, 5)

	cached, ok, err := f.cache.Lookup(context.Background(), "the last supper")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, state.SelectedWorks, cached)
}

func TestPipeline_ResearchWithoutJSONEndsInError(t *testing.T) {
	f := newFixture(t)
	f.llm.generate = func(context.Context, string) (string, error) {
		return "I'm sorry, I could not think of any artworks for that story.", nil
	}

	ctx := context.Background()
	_, err := f.sessions.Submit(ctx, "s", "An obscure parable")
	require.NoError(t, err)
	msg := f.publisher.last(t)

	err = f.pipeline.Run(ctx, msg.SessionID, msg.Query, msg.Generation)
	assert.ErrorIs(t, err, ErrResearchFailure)

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageError, state.ProcessingStage)
	assert.Equal(t, constant.ResearchFailedMessage, state.Error)
	assert.Empty(t, state.SelectedWorks)
	assert.Zero(t, f.resolver.calls.Load())

	res, notReady, err := f.sessions.Results(ctx, "s")
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NotNil(t, notReady)
	assert.Equal(t, model.StageError, notReady.State)
}

func TestPipeline_ResearchFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "completion error", err: errors.New("connection refused")},
		{name: "empty array", reply: "[]"},
		{name: "truncated json", reply: `[{"title": "The Last Supper", "artist": "Leon`},
		{name: "scalar array", reply: `["The Last Supper", "Supper at Emmaus"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.llm.generate = func(context.Context, string) (string, error) {
				return tt.reply, tt.err
			}

			ctx := context.Background()
			state, err := f.state.Begin(ctx, "s", "q", "query")
			require.NoError(t, err)

			err = f.pipeline.Run(ctx, "s", "query", state.Generation)
			assert.ErrorIs(t, err, ErrResearchFailure)

			state, err = f.state.Get(ctx, "s")
			require.NoError(t, err)
			assert.Equal(t, model.StageError, state.ProcessingStage)
			assert.NotEmpty(t, state.Error)
		})
	}
}

func TestPipeline_ImageFailureOnOneItem(t *testing.T) {
	f := newFixture(t)
	works := lastSupperWorks[:3]
	f.llm.generate = func(_ context.Context, prompt string) (string, error) {
		if isResearchPrompt(prompt) {
			return researchReply(works), nil
		}
		return annotationReply, nil
	}
	f.resolver.resolve = func(_ context.Context, phrase string) (string, error) {
		if strings.HasPrefix(phrase, "Tintoretto") {
			return "", errors.New("navigation timeout")
		}
		return "https://images.example/" + strings.ReplaceAll(phrase, " ", "_") + ".jpg", nil
	}

	state := f.submitAndRun(t, "s", "The Last Supper")

	require.Equal(t, model.StageComplete, state.ProcessingStage)
	require.Len(t, state.SelectedWorks, 3)
	assert.False(t, imagesearch.IsPlaceholder(state.SelectedWorks[0].ImageURL))
	assert.Equal(t, imagesearch.Placeholder("The Last Supper"), state.SelectedWorks[1].ImageURL)
	assert.False(t, imagesearch.IsPlaceholder(state.SelectedWorks[2].ImageURL))
	assert.EqualValues(t, 3, f.resolver.calls.Load())
}

func TestPipeline_EmptyImageResultUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.resolver.resolve = func(context.Context, string) (string, error) {
		return "", nil
	}

	state := f.submitAndRun(t, "s", "The Last Supper")

	require.Len(t, state.SelectedWorks, 5)
	for _, w := range state.SelectedWorks {
		assert.NotEmpty(t, w.ImageURL)
		assert.True(t, imagesearch.IsPlaceholder(w.ImageURL))
	}
}

func TestPipeline_ImageResolutionIsSerial(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	f.resolver.resolve = func(context.Context, string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "https://images.example/x.jpg", nil
	}

	f.submitAndRun(t, "s", "The Last Supper")
	assert.Equal(t, 1, maxInFlight)
}

func TestPipeline_AnnotationFailureKeepsItem(t *testing.T) {
	f := newFixture(t)
	f.llm.generate = func(_ context.Context, prompt string) (string, error) {
		if isResearchPrompt(prompt) {
			return researchReply(lastSupperWorks), nil
		}
		if strings.Contains(prompt, "Dali") {
			return "", errors.New("rate limited")
		}
		if strings.Contains(prompt, "Tintoretto") {
			return "This painting is lovely, but I cannot produce JSON today.", nil
		}
		return annotationReply, nil
	}

	state := f.submitAndRun(t, "s", "The Last Supper")

	require.Equal(t, model.StageComplete, state.ProcessingStage)
	require.Len(t, state.SelectedWorks, 5)

	for _, i := range []int{1, 3} {
		a := state.SelectedWorks[i].Annotations
		assert.Equal(t, constant.AnnotationUnavailable, a.HistoricalContext)
		assert.Equal(t, constant.AnnotationUnavailable, a.ArtisticStyle)
		assert.Equal(t, constant.AnnotationUnavailable, a.BiblicalNarrative)
		assert.Equal(t, []string{constant.AnnotationUnavailable}, a.InterestingDetails)
		assert.Equal(t, constant.AnnotationUnavailable, a.UniqueInterpretation)
	}
	assert.Equal(t, "Linear perspective.", state.SelectedWorks[0].Annotations.ArtisticStyle)
}

func TestPipeline_PartialAnnotationFallsBackPerField(t *testing.T) {
	f := newFixture(t)
	f.llm.generate = func(_ context.Context, prompt string) (string, error) {
		if isResearchPrompt(prompt) {
			return researchReply(lastSupperWorks[:1]), nil
		}
		return `{"historicalContext": "Commissioned by Ludovico Sforza.", "artisticStyle": "", "interestingDetails": "Judas clutches a purse."}`, nil
	}

	state := f.submitAndRun(t, "s", "The Last Supper")

	require.Len(t, state.SelectedWorks, 1)
	a := state.SelectedWorks[0].Annotations
	assert.Equal(t, "Commissioned by Ludovico Sforza.", a.HistoricalContext)
	assert.Equal(t, constant.AnnotationUnavailable, a.ArtisticStyle)
	assert.Equal(t, constant.AnnotationUnavailable, a.BiblicalNarrative)
	assert.Equal(t, []string{"Judas clutches a purse."}, a.InterestingDetails)
	assert.Equal(t, constant.AnnotationUnavailable, a.UniqueInterpretation)
}

func TestPipeline_StaleGenerationDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.llm.generate = func(_ context.Context, prompt string) (string, error) {
		if isResearchPrompt(prompt) && strings.Contains(prompt, "Jonah") {
			once.Do(func() { close(started) })
			<-release
		}
		if isResearchPrompt(prompt) {
			return researchReply(lastSupperWorks), nil
		}
		return annotationReply, nil
	}

	ctx := context.Background()
	old, err := f.state.Begin(ctx, "s", "q1", "Jonah and the whale")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- f.pipeline.Run(ctx, "s", "Jonah and the whale", old.Generation)
	}()
	<-started

	newer, err := f.state.Begin(ctx, "s", "q2", "The Last Supper")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleGeneration)

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, newer.Generation, state.Generation)
	assert.Equal(t, "The Last Supper", state.CurrentQuery)
	assert.Equal(t, model.StageAnalyzing, state.ProcessingStage)
	assert.Empty(t, state.Error)

	_, ok, err := f.cache.Lookup(ctx, "jonah and the whale")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.pipeline.Run(ctx, "s", "The Last Supper", newer.Generation))
	state, err = f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, state.ProcessingStage)
}

func TestToCandidate(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]interface{}
		want   model.ArtworkCandidate
	}{
		{
			name: "all fields",
			fields: map[string]interface{}{
				"title": "The Last Supper", "artist": "Leonardo da Vinci",
				"year": float64(1498), "period": "High Renaissance", "location": "Milan",
			},
			want: model.ArtworkCandidate{ID: "a", Title: "The Last Supper", Artist: "Leonardo da Vinci",
				Year: 1498, Period: "High Renaissance", Location: "Milan"},
		},
		{
			name:   "missing fields default",
			fields: map[string]interface{}{"title": "Supper at Emmaus"},
			want: model.ArtworkCandidate{ID: "a", Title: "Supper at Emmaus", Artist: "Unknown artist",
				Year: 0, Period: "Unknown", Location: "Unknown"},
		},
		{
			name:   "year as approximate string",
			fields: map[string]interface{}{"title": "T", "artist": "A", "year": "c. 1495-1498"},
			want: model.ArtworkCandidate{ID: "a", Title: "T", Artist: "A",
				Year: 1495, Period: "Unknown", Location: "Unknown"},
		},
		{
			name:   "wrong types",
			fields: map[string]interface{}{"title": 12, "year": true, "period": "  "},
			want: model.ArtworkCandidate{ID: "a", Title: "Untitled", Artist: "Unknown artist",
				Year: 0, Period: "Unknown", Location: "Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toCandidate(tt.fields, "a"))
		})
	}
}

func TestPipeline_SupersededRunStopsResolvingImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.state.Begin(ctx, "s", "q1", "Jonah and the whale")
	require.NoError(t, err)

	var once sync.Once
	f.resolver.resolve = func(context.Context, string) (string, error) {
		once.Do(func() {
			_, err := f.state.Begin(ctx, "s", "q2", "The Last Supper")
			assert.NoError(t, err)
		})
		return "https://images.example/x.jpg", nil
	}

	err = f.pipeline.Run(ctx, "s", "Jonah and the whale", old.Generation)

	assert.ErrorIs(t, err, ErrStaleGeneration)
	assert.Equal(t, int32(1), f.resolver.calls.Load())
}

func TestPipeline_SupersededRunStopsAnnotating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.state.Begin(ctx, "s", "q1", "Jonah and the whale")
	require.NoError(t, err)

	var annotations atomic.Int32
	var once sync.Once
	f.llm.generate = func(_ context.Context, prompt string) (string, error) {
		if isResearchPrompt(prompt) {
			return researchReply(lastSupperWorks), nil
		}
		annotations.Add(1)
		once.Do(func() {
			_, err := f.state.Begin(ctx, "s", "q2", "The Last Supper")
			assert.NoError(t, err)
		})
		return annotationReply, nil
	}

	err = f.pipeline.Run(ctx, "s", "Jonah and the whale", old.Generation)

	assert.ErrorIs(t, err, ErrStaleGeneration)
	// Only items already admitted by the concurrency limit may still call out.
	assert.LessOrEqual(t, annotations.Load(), int32(3))

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "The Last Supper", state.CurrentQuery)
	assert.Equal(t, model.StageAnalyzing, state.ProcessingStage)
}

func TestPipeline_ErrorMessageFollowsFailingStage(t *testing.T) {
	tests := []struct {
		name    string
		failOn  model.ProcessingStage
		llmErr  bool
		wantMsg string
	}{
		{name: "research failure", llmErr: true, wantMsg: constant.ResearchFailedMessage},
		{name: "state write fails entering fetching", failOn: model.StageFetching, wantMsg: constant.PipelineFailedMessage},
		{name: "state write fails entering annotating", failOn: model.StageAnnotating, wantMsg: constant.PipelineFailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &faultySessionRepo{
				SessionStateRepository: memory.NewSessionRepository(time.Hour),
				failOn:                 tt.failOn,
			}
			f := newFixture(t, withSessionRepo(repo))
			if tt.llmErr {
				f.llm.generate = func(context.Context, string) (string, error) {
					return "", errors.New("model overloaded")
				}
			}
			ctx := context.Background()

			begun, err := f.state.Begin(ctx, "s", "q1", "The Last Supper")
			require.NoError(t, err)

			assert.Error(t, f.pipeline.Run(ctx, "s", "The Last Supper", begun.Generation))

			state, err := f.state.Get(ctx, "s")
			require.NoError(t, err)
			assert.Equal(t, model.StageError, state.ProcessingStage)
			assert.Equal(t, tt.wantMsg, state.Error)
		})
	}
}
