package tasks_test

import (
	"sync"
	"testing"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/tasks"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeClaimContentionHandsEachJobToExactlyOneWorker(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	runtime := tasks.New(client.DB(), tasks.DefaultConfig())

	priorities := []int{10, 10, 10, 5, 5, 5, 1, 1, 1, 1}
	for _, p := range priorities {
		_, err := runtime.Enqueue(ctx, "curiosity_eval", "X", "content", p, nil, nil)
		require.NoError(t, err)
	}

	const workers = 4
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := runtime.Claim(ctx, "X", time.Now().UTC())
			errs[i] = err
			if entry != nil {
				ids[i] = entry.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotEmpty(t, ids[i])
		assert.False(t, seen[ids[i]], "no job claimed by two workers")
		seen[ids[i]] = true
	}
	assert.Len(t, seen, workers)

	stats, err := runtime.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, stats.ByStatus[store.QueueStatusProcessing])
	assert.Equal(t, len(priorities)-workers, stats.ByStatus[store.QueueStatusPending])
}

func TestRuntimeRetryExhaustsIntoFailed(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	runtime := tasks.New(client.DB(), tasks.Config{MaxRetries: 2, LeaseTimeout: time.Minute})

	id, err := runtime.Enqueue(ctx, "summary_gen", "X", "content", 50, nil, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = runtime.Claim(ctx, "X", now)
	require.NoError(t, err)
	require.NoError(t, runtime.Retry(ctx, id, "transient timeout", now))

	task, err := runtime.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)

	_, err = runtime.Claim(ctx, "X", now)
	require.NoError(t, err)
	require.NoError(t, runtime.Retry(ctx, id, "transient timeout again", now))

	task, err = runtime.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusFailed, task.Status)
	assert.Equal(t, 2, task.RetryCount)
}

func TestRuntimeCompleteThenDeleteCompletedRemovesOldRows(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	runtime := tasks.New(client.DB(), tasks.DefaultConfig())

	id, err := runtime.Enqueue(ctx, "summary_gen", "X", "content", 50, nil, nil)
	require.NoError(t, err)
	_, err = runtime.Claim(ctx, "X", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, runtime.Complete(ctx, id, time.Now().UTC().Add(-48*time.Hour)))

	n, err := runtime.DeleteCompleted(ctx, 24*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = runtime.GetTask(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
