package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pipekit/pkg/jobstore"
	"github.com/dmitrymomot/pipekit/pkg/pipeline"
)

func TestContext_Immutability(t *testing.T) {
	t.Parallel()

	t.Run("with output leaves the receiver unchanged", func(t *testing.T) {
		t.Parallel()

		ctx1 := pipeline.NewContext()
		ctx2 := ctx1.WithOutput("converted", "file.fits")

		_, ok := ctx1.Output("converted")
		assert.False(t, ok, "original context must not gain the output")

		v, ok := ctx2.Output("converted")
		require.True(t, ok)
		assert.Equal(t, "file.fits", v)
	})

	t.Run("chained transformations never alter earlier contexts", func(t *testing.T) {
		t.Parallel()

		ctx1 := pipeline.NewContext(pipeline.WithInputs(map[string]any{"raw": "a.raw"}))
		ctx2 := ctx1.WithOutput("step1", 1)
		ctx3 := ctx2.WithOutput("step2", 2).WithMetadata("trace", "xyz")

		assert.Empty(t, ctx1.Outputs())
		assert.Len(t, ctx2.Outputs(), 1)
		assert.Len(t, ctx3.Outputs(), 2)

		_, ok := ctx2.Metadata("trace")
		assert.False(t, ok)
	})

	t.Run("accessor maps are copies", func(t *testing.T) {
		t.Parallel()

		ctx := pipeline.NewContext(pipeline.WithInputs(map[string]any{"k": "v"}))
		ctx.Inputs()["k"] = "mutated"
		ctx.Outputs()["new"] = "value"

		v, _ := ctx.Input("k")
		assert.Equal(t, "v", v)
		_, ok := ctx.Output("new")
		assert.False(t, ok)
	})

	t.Run("seed maps are cloned on construction", func(t *testing.T) {
		t.Parallel()

		seed := map[string]any{"k": "v"}
		ctx := pipeline.NewContext(pipeline.WithInputs(seed))
		seed["k"] = "mutated"

		v, _ := ctx.Input("k")
		assert.Equal(t, "v", v)
	})
}

func TestContext_Accessors(t *testing.T) {
	t.Parallel()

	store := jobstore.NewMemoryStore()
	cfg := struct{ Name string }{Name: "test"}

	ctx := pipeline.NewContext(
		pipeline.WithConfig(cfg),
		pipeline.WithStore(store),
		pipeline.WithMetadataMap(map[string]string{"env": "test"}),
	)

	assert.Equal(t, cfg, ctx.Config())
	assert.Equal(t, store, ctx.Store())

	_, ok := ctx.JobID()
	assert.False(t, ok)

	ctx = ctx.WithJobID(42)
	id, ok := ctx.JobID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	env, ok := ctx.Metadata("env")
	require.True(t, ok)
	assert.Equal(t, "test", env)
}

func TestContext_WithOutputs(t *testing.T) {
	t.Parallel()

	ctx1 := pipeline.NewContext().WithOutput("a", 1)
	ctx2 := ctx1.WithOutputs(map[string]any{"b": 2, "c": 3})

	assert.Len(t, ctx1.Outputs(), 1)
	assert.Len(t, ctx2.Outputs(), 3)

	t.Run("empty merge returns equivalent context", func(t *testing.T) {
		t.Parallel()

		ctx3 := ctx2.WithOutputs(nil)
		assert.Equal(t, ctx2.Outputs(), ctx3.Outputs())
	})
}
