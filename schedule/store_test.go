package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/socialia/errors"
	socialtest "github.com/teranos/socialia/internal/testing"
	"github.com/teranos/socialia/post"
)

func testJob(id string, platform post.Platform, dueAt time.Time) *Job {
	return &Job{
		ID:       id,
		Platform: platform,
		Payload:  post.Payload{Text: "hello from " + id},
		DueAt:    dueAt,
		State:    StatePending,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	due := time.Now().Add(1 * time.Hour)
	job := testJob("job-1", post.PlatformTwitter, due)

	err := store.CreateJob(job)
	require.NoError(t, err)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retrieved.ID)
	assert.Equal(t, post.PlatformTwitter, retrieved.Platform)
	assert.Equal(t, "hello from job-1", retrieved.Payload.Text)
	assert.Equal(t, StatePending, retrieved.State)
	assert.WithinDuration(t, due, retrieved.DueAt, time.Millisecond)
	assert.Nil(t, retrieved.OriginalDueAt)
}

func TestGetJobNotFound(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.GetJob("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCreateJobPreservesOriginalDueAt(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	orig := time.Now().Add(2 * time.Hour)
	job := testJob("job-jitter", post.PlatformSlack, orig.Add(3*time.Minute))
	job.OriginalDueAt = &orig

	require.NoError(t, store.CreateJob(job))

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.OriginalDueAt)
	assert.WithinDuration(t, orig, *retrieved.OriginalDueAt, time.Millisecond)
}

func TestListJobsDue(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	require.NoError(t, store.CreateJob(testJob("job-past", post.PlatformTwitter, now.Add(-10*time.Minute))))
	require.NoError(t, store.CreateJob(testJob("job-now", post.PlatformSlack, now)))
	require.NoError(t, store.CreateJob(testJob("job-future", post.PlatformReddit, now.Add(10*time.Minute))))

	cancelled := testJob("job-cancelled", post.PlatformTwitter, now.Add(-5*time.Minute))
	require.NoError(t, store.CreateJob(cancelled))
	ok, err := store.CancelJob(cancelled.ID)
	require.NoError(t, err)
	require.True(t, ok)

	due, err := store.ListJobsDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "job-past", due[0].ID)
	assert.Equal(t, "job-now", due[1].ID)
}

func TestListJobsDueExcludesBoundaryFuture(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	// due_at exactly now is due; one nanosecond later is not
	require.NoError(t, store.CreateJob(testJob("job-exact", post.PlatformTwitter, now)))
	require.NoError(t, store.CreateJob(testJob("job-after", post.PlatformTwitter, now.Add(time.Nanosecond))))

	due, err := store.ListJobsDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "job-exact", due[0].ID)
}

func TestListJobsDueOrdering(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	sharedDue := now.Add(-1 * time.Minute)

	// Create out of order so insertion order can't mask the sort
	require.NoError(t, store.CreateJob(testJob("job-c", post.PlatformTwitter, sharedDue)))
	require.NoError(t, store.CreateJob(testJob("job-a", post.PlatformSlack, now.Add(-2*time.Minute))))
	require.NoError(t, store.CreateJob(testJob("job-b", post.PlatformReddit, sharedDue)))

	due, err := store.ListJobsDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, "job-a", due[0].ID)
	// Equal due times fall back to creation order
	assert.Equal(t, "job-c", due[1].ID)
	assert.Equal(t, "job-b", due[2].ID)
}

func TestListJobs(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	require.NoError(t, store.CreateJob(testJob("job-1", post.PlatformTwitter, now.Add(time.Hour))))

	done := testJob("job-2", post.PlatformSlack, now.Add(-time.Hour))
	require.NoError(t, store.CreateJob(done))
	ok, err := store.ClaimJob(done.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.MarkPosted(done.ID, post.Result{ExternalID: "ext-2"}))

	active, err := store.ListJobs(false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "job-1", active[0].ID)

	all, err := store.ListJobs(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNextPending(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	next, err := store.NextPending()
	require.NoError(t, err)
	assert.Nil(t, next)

	require.NoError(t, store.CreateJob(testJob("job-late", post.PlatformTwitter, now.Add(2*time.Hour))))
	require.NoError(t, store.CreateJob(testJob("job-soon", post.PlatformSlack, now.Add(time.Hour))))

	next, err = store.NextPending()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "job-soon", next.ID)
}

func TestClaimJob(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-claim", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	claimed, err := store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim loses
	claimed, err = store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, retrieved.State)
}

func TestCancelAfterClaimLoses(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-race", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	claimed, err := store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	cancelled, err := store.CancelJob(job.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, retrieved.State)
}

func TestClaimAfterCancelLoses(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-race2", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	cancelled, err := store.CancelJob(job.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	claimed, err := store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, retrieved.State)
}

func TestClaimAfterRescheduleLoses(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	job := testJob("job-moved", post.PlatformTwitter, now.Add(-time.Minute))
	require.NoError(t, store.CreateJob(job))

	due, err := store.ListJobsDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Moved into the future between listing and claiming
	ok, err := store.RescheduleJob(job.ID, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	claimed, err := store.ClaimJob(job.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, retrieved.State)
}

func TestConcurrentClaimAndCancel(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-contended", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	var claimed, cancelled bool
	var claimErr, cancelErr error
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		claimed, claimErr = store.ClaimJob(job.ID, time.Now())
	}()
	go func() {
		defer wg.Done()
		<-start
		cancelled, cancelErr = store.CancelJob(job.ID)
	}()
	close(start)
	wg.Wait()

	require.NoError(t, claimErr)
	require.NoError(t, cancelErr)

	// Exactly one side wins
	assert.NotEqual(t, claimed, cancelled)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	if claimed {
		assert.Equal(t, StateRunning, retrieved.State)
	} else {
		assert.Equal(t, StateCancelled, retrieved.State)
	}
}

func TestMarkPosted(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-ok", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	claimed, err := store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	err = store.MarkPosted(job.ID, post.Result{
		ExternalID: "1234567890",
		URL:        "https://x.com/i/web/status/1234567890",
	})
	require.NoError(t, err)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, retrieved.State)
	assert.Equal(t, "1234567890", retrieved.ResultID)
	assert.Equal(t, "https://x.com/i/web/status/1234567890", retrieved.ResultURL)
	assert.Empty(t, retrieved.Error)
}

func TestMarkFailed(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-fail", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	claimed, err := store.ClaimJob(job.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.MarkFailed(job.ID, "ConnectionError: api.x.com unreachable"))

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, retrieved.State)
	assert.Equal(t, "ConnectionError: api.x.com unreachable", retrieved.Error)
	assert.Empty(t, retrieved.ResultID)
}

func TestMarkPostedRequiresRunning(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-still-pending", post.PlatformTwitter, time.Now())
	require.NoError(t, store.CreateJob(job))

	err := store.MarkPosted(job.ID, post.Result{ExternalID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestRescheduleJob(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)

	job := testJob("job-move", post.PlatformTwitter, time.Now().Add(time.Hour))
	require.NoError(t, store.CreateJob(job))

	newDue := time.Now().Add(3 * time.Hour)
	ok, err := store.RescheduleJob(job.ID, newDue)
	require.NoError(t, err)
	assert.True(t, ok)

	retrieved, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, newDue, retrieved.DueAt, time.Millisecond)

	// Cancelled jobs can't move
	cancelled, err := store.CancelJob(job.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	ok, err = store.RescheduleJob(job.ID, newDue.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimJobDatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("UPDATE scheduled_posts").
		WillReturnError(errors.New("database is locked"))

	store := NewStore(mockDB)
	_, err = store.ClaimJob("job-x", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to transition post")
	assert.NoError(t, mock.ExpectationsWereMet())
}
