package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pipekit/pkg/pipeline"
	"github.com/dmitrymomot/pipekit/pkg/retry"
)

func noopStage(name string) pipeline.Stage {
	return &pipeline.FuncStage{
		StageName: name,
		ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
			return pctx, nil
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("accumulates definitions with options", func(t *testing.T) {
		t.Parallel()

		policy := retry.ExponentialBackoff(3, time.Second, time.Minute)
		defs, err := pipeline.NewBuilder().
			Add("convert", noopStage("convert")).
			Add("calibrate", noopStage("calibrate"),
				pipeline.DependsOn("convert"),
				pipeline.WithRetry(policy),
				pipeline.WithTimeout(time.Minute)).
			Build()
		require.NoError(t, err)
		require.Len(t, defs, 2)

		assert.Equal(t, "convert", defs[0].Name)
		assert.Empty(t, defs[0].DependsOn)
		assert.Nil(t, defs[0].Retry)

		assert.Equal(t, []string{"convert"}, defs[1].DependsOn)
		require.NotNil(t, defs[1].Retry)
		assert.Equal(t, 3, defs[1].Retry.MaxAttempts)
		assert.Equal(t, time.Minute, defs[1].Timeout)
	})

	t.Run("name defaults to the stage's own name", func(t *testing.T) {
		t.Parallel()

		defs, err := pipeline.NewBuilder().Add("", noopStage("auto")).Build()
		require.NoError(t, err)
		assert.Equal(t, "auto", defs[0].Name)
	})

	t.Run("empty builder", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewBuilder().Build()
		assert.ErrorIs(t, err, pipeline.ErrNoStages)
	})

	t.Run("nil stage rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewBuilder().Add("broken", nil).Build()
		assert.ErrorIs(t, err, pipeline.ErrNilStage)
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewBuilder().
			Add("convert", noopStage("convert")).
			Add("convert", noopStage("convert")).
			Build()
		assert.ErrorIs(t, err, pipeline.ErrDuplicateStage)
	})

	t.Run("unknown dependency rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewBuilder().
			Add("calibrate", noopStage("calibrate"), pipeline.DependsOn("missing")).
			Build()
		assert.ErrorIs(t, err, pipeline.ErrUnknownDependency)
	})

	t.Run("invalid retry policy rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.NewBuilder().
			Add("convert", noopStage("convert"), pipeline.WithRetry(retry.Policy{})).
			Build()
		assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)
	})
}

func TestBuilder_AddIf(t *testing.T) {
	t.Parallel()

	t.Run("omitted stage is absent from the graph", func(t *testing.T) {
		t.Parallel()

		defs, err := pipeline.NewBuilder().
			Add("convert", noopStage("convert")).
			AddIf(false, "thumbnail", noopStage("thumbnail"), pipeline.DependsOn("convert")).
			Build()
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "convert", defs[0].Name)
	})

	t.Run("included stage participates fully", func(t *testing.T) {
		t.Parallel()

		defs, err := pipeline.NewBuilder().
			Add("convert", noopStage("convert")).
			AddIf(true, "thumbnail", noopStage("thumbnail"), pipeline.DependsOn("convert")).
			Build()
		require.NoError(t, err)
		assert.Len(t, defs, 2)
	})
}
