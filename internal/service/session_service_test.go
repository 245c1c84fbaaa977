package service

import (
	"context"
	"errors"
	"testing"

	"art-curator-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Last Supper", "the last supper"},
		{"  the   LAST\tsupper \n", "the last supper"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in))
	}
}

func TestSession_SubmitRejectsEmptyQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := f.sessions.Submit(ctx, "s", q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageIdle, state.ProcessingStage)
	assert.Empty(t, f.publisher.messages)
}

func TestSession_SubmitResetsAndEnqueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.sessions.Submit(ctx, "s", "  The Last Supper ")
	require.NoError(t, err)
	assert.NotEmpty(t, res.QueryId)

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageAnalyzing, state.ProcessingStage)
	assert.Equal(t, "The Last Supper", state.CurrentQuery)
	assert.Equal(t, res.QueryId, state.QueryID)

	msg := f.publisher.last(t)
	assert.Equal(t, "s", msg.SessionID)
	assert.Equal(t, "The Last Supper", msg.Query)
	assert.Equal(t, state.Generation, msg.Generation)
}

func TestSession_CacheHitSkipsPipeline(t *testing.T) {
	f := newFixture(t)

	first := f.submitAndRun(t, "s", "The Last Supper")
	require.Equal(t, model.StageComplete, first.ProcessingStage)

	llmCalls, resolverCalls := f.llm.calls.Load(), f.resolver.calls.Load()
	published := len(f.publisher.messages)

	second := f.submitAndRun(t, "other-session", "  the last   SUPPER")

	assert.Equal(t, model.StageComplete, second.ProcessingStage)
	assert.Equal(t, first.SelectedWorks, second.SelectedWorks)
	assert.Equal(t, llmCalls, f.llm.calls.Load())
	assert.Equal(t, resolverCalls, f.resolver.calls.Load())
	assert.Len(t, f.publisher.messages, published)
}

func TestSession_ResubmitOverwritesCompletedResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submitAndRun(t, "s", "The Last Supper")

	_, err := f.sessions.Submit(ctx, "s", "David and Goliath")
	require.NoError(t, err)

	state, err := f.state.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageAnalyzing, state.ProcessingStage)
	assert.Equal(t, "David and Goliath", state.CurrentQuery)
	assert.Empty(t, state.SelectedWorks)
	assert.Empty(t, state.SearchResults)
}

func TestSession_PublishFailureMarksError(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("topic closed")

	_, err := f.sessions.Submit(context.Background(), "s", "The Last Supper")
	require.Error(t, err)

	state, err := f.state.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageError, state.ProcessingStage)
	assert.NotEmpty(t, state.Error)
}

func TestSession_ResultsNotReadyUntilComplete(t *testing.T) {
	stages := []model.ProcessingStage{
		model.StageIdle,
		model.StageAnalyzing,
		model.StageResearching,
		model.StageFetching,
		model.StageAnnotating,
		model.StageError,
	}

	for _, stage := range stages {
		t.Run(string(stage), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.state.Set(ctx, "s", model.StagePatch(stage))
			require.NoError(t, err)

			res, notReady, err := f.sessions.Results(ctx, "s")
			require.NoError(t, err)
			assert.Nil(t, res)
			require.NotNil(t, notReady)
			assert.Equal(t, stage, notReady.State)
		})
	}

	t.Run("complete", func(t *testing.T) {
		f := newFixture(t)
		f.submitAndRun(t, "s", "The Last Supper")

		res, notReady, err := f.sessions.Results(context.Background(), "s")
		require.NoError(t, err)
		assert.Nil(t, notReady)
		require.NotNil(t, res)
		assert.Equal(t, "The Last Supper", res.Query)
		assert.NotEmpty(t, res.Artworks)
	})
}

func TestSession_Status(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.sessions.Status(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, model.StageIdle, status.State)

	f.submitAndRun(t, "s", "The Last Supper")
	status, err = f.sessions.Status(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, status.State)
	assert.Equal(t, "The Last Supper", status.Query)
	assert.False(t, status.LastUpdated.IsZero())
}

func TestSession_UnavailableCacheDoesNotBlockCuration(t *testing.T) {
	cache := &brokenCache{}
	f := newFixture(t, withCache(cache))

	state := f.submitAndRun(t, "s", "The Last Supper")

	assert.Equal(t, model.StageComplete, state.ProcessingStage)
	assert.Empty(t, state.Error)
	assert.Len(t, state.SelectedWorks, 5)

	assert.Len(t, f.publisher.messages, 1, "a failed lookup counts as a miss and enqueues a run")
	assert.Equal(t, int32(1), cache.lookups.Load())
	assert.Equal(t, int32(1), cache.stores.Load())
}
