package schedule

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/socialia/errors"
	socialtest "github.com/teranos/socialia/internal/testing"
	"github.com/teranos/socialia/internal/util"
	"github.com/teranos/socialia/post"
)

func TestCreateAndListExecutions(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	execStore := NewExecutionStore(db)

	job := testJob("job-exec", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	exec := &Execution{
		ID:        "exec-1",
		JobID:     job.ID,
		Status:    ExecutionStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, execStore.CreateExecution(exec))

	execs, err := execStore.ListExecutions(job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, ExecutionStatusRunning, execs[0].Status)
	assert.Nil(t, execs[0].CompletedAt)
}

func TestUpdateExecution(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	execStore := NewExecutionStore(db)

	job := testJob("job-exec2", post.PlatformSlack, time.Now())
	require.NoError(t, store.CreateJob(job))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	exec := &Execution{
		ID:        "exec-2",
		JobID:     job.ID,
		Status:    ExecutionStatusRunning,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, execStore.CreateExecution(exec))

	exec.Status = ExecutionStatusCompleted
	exec.CompletedAt = util.Ptr(time.Now().UTC().Format(time.RFC3339Nano))
	exec.DurationMs = util.Ptr(42)
	exec.ExternalID = util.Ptr("ext-9")
	require.NoError(t, execStore.UpdateExecution(exec))

	execs, err := execStore.ListExecutions(job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, ExecutionStatusCompleted, execs[0].Status)
	require.NotNil(t, execs[0].DurationMs)
	assert.Equal(t, 42, *execs[0].DurationMs)
	require.NotNil(t, execs[0].ExternalID)
	assert.Equal(t, "ext-9", *execs[0].ExternalID)
}

func TestUpdateExecutionNotFound(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	execStore := NewExecutionStore(db)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := execStore.UpdateExecution(&Execution{
		ID:        "ghost",
		Status:    ExecutionStatusFailed,
		UpdatedAt: now,
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}
