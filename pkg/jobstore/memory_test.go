package jobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pipekit/pkg/jobstore"
)

func TestMemoryStore_CreateJob(t *testing.T) {
	t.Parallel()

	t.Run("assigns strictly increasing ids", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()

		var prev int64
		for i := 0; i < 5; i++ {
			id, err := store.CreateJob(context.Background(), "conversion", nil)
			require.NoError(t, err)
			assert.Greater(t, id, prev)
			prev = id
		}
	})

	t.Run("rejects empty type", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		_, err := store.CreateJob(context.Background(), "", nil)
		assert.ErrorIs(t, err, jobstore.ErrJobTypeRequired)
	})

	t.Run("stores initial context", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		id, err := store.CreateJob(context.Background(), "calibration", map[string]any{"input": "file.raw"})
		require.NoError(t, err)

		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "calibration", job.Type)
		assert.Equal(t, "created", job.Status)
		assert.Equal(t, "file.raw", job.Context["input"])
		assert.False(t, job.CreatedAt.IsZero())
	})
}

func TestMemoryStore_GetJob(t *testing.T) {
	t.Parallel()

	store := jobstore.NewMemoryStore()

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		_, err := store.GetJob(context.Background(), 42)
		assert.ErrorIs(t, err, jobstore.ErrJobNotFound)
	})

	t.Run("returned job is a copy", func(t *testing.T) {
		t.Parallel()

		id, err := store.CreateJob(context.Background(), "conversion", map[string]any{"a": 1})
		require.NoError(t, err)

		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		job.Context["a"] = "mutated"
		job.Status = "mutated"

		fresh, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, fresh.Context["a"])
		assert.Equal(t, "created", fresh.Status)
	})
}

func TestMemoryStore_UpdateJob(t *testing.T) {
	t.Parallel()

	t.Run("merges context keys across updates", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		id, err := store.CreateJob(context.Background(), "conversion", nil)
		require.NoError(t, err)

		require.NoError(t, store.UpdateJob(context.Background(), id, jobstore.Update{Context: map[string]any{"a": 1}}))
		require.NoError(t, store.UpdateJob(context.Background(), id, jobstore.Update{Context: map[string]any{"b": 2}}))

		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, job.Context["a"])
		assert.Equal(t, 2, job.Context["b"])
	})

	t.Run("status update leaves other fields untouched", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		id, err := store.CreateJob(context.Background(), "imaging", map[string]any{"frame": 7})
		require.NoError(t, err)

		status := "running"
		require.NoError(t, store.UpdateJob(context.Background(), id, jobstore.Update{Status: &status}))

		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "running", job.Status)
		assert.Equal(t, "imaging", job.Type)
		assert.Equal(t, 7, job.Context["frame"])
	})

	t.Run("empty update rejected", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		id, err := store.CreateJob(context.Background(), "conversion", nil)
		require.NoError(t, err)

		assert.ErrorIs(t, store.UpdateJob(context.Background(), id, jobstore.Update{}), jobstore.ErrEmptyUpdate)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		store := jobstore.NewMemoryStore()
		status := "running"
		err := store.UpdateJob(context.Background(), 99, jobstore.Update{Status: &status})
		assert.ErrorIs(t, err, jobstore.ErrJobNotFound)
	})
}

func TestMemoryStore_ListJobs(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *jobstore.MemoryStore {
		t.Helper()
		store := jobstore.NewMemoryStore()
		for _, jobType := range []string{"conversion", "calibration", "conversion", "imaging"} {
			_, err := store.CreateJob(context.Background(), jobType, nil)
			require.NoError(t, err)
		}
		return store
	}

	t.Run("ordered by id ascending", func(t *testing.T) {
		t.Parallel()

		store := seed(t)
		jobs, err := store.ListJobs(context.Background(), jobstore.Filter{})
		require.NoError(t, err)
		require.Len(t, jobs, 4)
		for i := 1; i < len(jobs); i++ {
			assert.Greater(t, jobs[i].ID, jobs[i-1].ID)
		}
	})

	t.Run("filter by type", func(t *testing.T) {
		t.Parallel()

		store := seed(t)
		jobs, err := store.ListJobs(context.Background(), jobstore.Filter{Type: "conversion"})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		for _, job := range jobs {
			assert.Equal(t, "conversion", job.Type)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		t.Parallel()

		store := seed(t)
		jobs, err := store.ListJobs(context.Background(), jobstore.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, int64(2), jobs[0].ID)
		assert.Equal(t, int64(3), jobs[1].ID)
	})

	t.Run("offset beyond range", func(t *testing.T) {
		t.Parallel()

		store := seed(t)
		jobs, err := store.ListJobs(context.Background(), jobstore.Filter{Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}
