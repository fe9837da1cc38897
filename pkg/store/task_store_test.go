package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectTaskStoreUpsertBumpsPriorityOnRepeat(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	tasks := store.NewProjectTaskStore(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	task := &store.ProjectTask{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    "Investigate flaky auth test",
		TaskType: "investigation",
		Priority: 10,
	}

	created, err := tasks.Upsert(ctx, task, now)
	require.NoError(t, err)
	assert.True(t, created)

	repeat := &store.ProjectTask{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    "investigate flaky auth test", // same title, different case
		TaskType: "investigation",
		Priority: 10,
	}
	created, err = tasks.Upsert(ctx, repeat, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Priority)
}

func TestProjectTaskStoreClaimNextSkipsLockedRows(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	tasks := store.NewProjectTaskStore(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	task := &store.ProjectTask{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    "Refactor the session cache",
		TaskType: "refactor",
		Priority: 20,
	}
	_, err := tasks.Upsert(ctx, task, now)
	require.NoError(t, err)
	_, err = client.DB().ExecContext(ctx, `UPDATE project_tasks SET status = 'ready' WHERE id = $1`, task.ID)
	require.NoError(t, err)

	const claimants = 8
	var wg sync.WaitGroup
	results := make([]*store.ProjectTask, claimants)
	errs := make([]error, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tasks.ClaimNext(ctx, client.DB(), userID, uuid.NewString(), "agent", time.Now().UTC())
		}(i)
	}
	wg.Wait()

	var wins, misses int
	for i := 0; i < claimants; i++ {
		switch {
		case errs[i] == nil && results[i] != nil:
			wins++
		case errs[i] == store.ErrNotClaimed:
			misses++
		default:
			t.Fatalf("unexpected claim error: %v", errs[i])
		}
	}

	assert.Equal(t, 1, wins, "exactly one claimant should win the only ready task")
	assert.Equal(t, claimants-1, misses)
}

func TestProjectTaskStorePruneRecordsFixedReasonAndDetail(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := t.Context()
	tasks := store.NewProjectTaskStore(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	task := &store.ProjectTask{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    "Low priority backlog task",
		TaskType: "investigation",
		Priority: 5,
	}
	_, err := tasks.Upsert(ctx, task, now)
	require.NoError(t, err)

	require.NoError(t, tasks.Prune(ctx, task.ID, "priority below floor", now))

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "priority below floor", *got.LastError)
	assert.Equal(t, "backlog_limits", got.Extra["pruned_reason"])
}
