package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/socialia/errors"
	socialtest "github.com/teranos/socialia/internal/testing"
	"github.com/teranos/socialia/post"
)

// stubPoster records calls and serves canned results per platform.
type stubPoster struct {
	platform post.Platform
	result   post.Result
	err      error
	delay    time.Duration
	onPost   func()

	mu    sync.Mutex
	calls []post.Payload
}

func (s *stubPoster) Platform() post.Platform { return s.platform }

func (s *stubPoster) Post(ctx context.Context, payload post.Payload) (post.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, payload)
	s.mu.Unlock()

	if s.onPost != nil {
		s.onPost()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return post.Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return post.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubPoster) Delete(ctx context.Context, externalID string) error { return nil }

func (s *stubPoster) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestDispatcher(t *testing.T, posters ...post.Poster) (*Dispatcher, *Store) {
	t.Helper()
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	execs := NewExecutionStore(db)

	cfg := DefaultDispatcherConfig()
	cfg.PostTimeout = 200 * time.Millisecond
	cfg.PostsPerMinute = 0      // no throttling in tests
	cfg.Grace = 5 * time.Minute // tests schedule a few minutes in the past

	return NewDispatcher(store, execs, post.NewRegistry(posters...), cfg, zap.NewNop().Sugar()), store
}

func TestScheduleCreatesPendingJob(t *testing.T) {
	d, store := newTestDispatcher(t)

	due := time.Now().Add(time.Hour)
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "hello"},
		DueAt:    due,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatePending, job.State)

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, stored.State)
	assert.WithinDuration(t, due, stored.DueAt, time.Millisecond)
}

func TestScheduleRejectsUnknownPlatform(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Schedule(ScheduleRequest{
		Platform: "myspace",
		Payload:  post.Payload{Text: "hi"},
		DueAt:    time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestScheduleRejectsEmptyPayload(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		DueAt:    time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestScheduleRejectsPastDueTime(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "too late"},
		DueAt:    time.Now().Add(-time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidScheduleError(err))
}

func TestScheduleAcceptsDueTimeWithinGrace(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// "post now" lands a few milliseconds in the past by the time it
	// is validated; the grace window must absorb that
	_, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "now"},
		DueAt:    time.Now().Add(-5 * time.Second),
	})
	require.NoError(t, err)
}

func TestScheduleWithFluctuation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	due := time.Now().Add(time.Hour)
	job, err := d.Schedule(ScheduleRequest{
		Platform:           post.PlatformTwitter,
		Payload:            post.Payload{Text: "jittered"},
		DueAt:              due,
		FluctuationMinutes: 10,
	})
	require.NoError(t, err)
	require.NotNil(t, job.OriginalDueAt)
	assert.WithinDuration(t, due, *job.OriginalDueAt, time.Millisecond)
	assert.WithinDuration(t, due, job.DueAt, 10*time.Minute)
}

func TestRunDueExecutesDueJob(t *testing.T) {
	poster := &stubPoster{
		platform: post.PlatformTwitter,
		result:   post.Result{ExternalID: "123", URL: "https://x.com/i/web/status/123"},
	}
	d, store := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "due"},
		DueAt:    now,
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, job.ID, outcomes[0].JobID)
	assert.Equal(t, StatePosted, outcomes[0].State)
	assert.Equal(t, "123", outcomes[0].Result.ExternalID)
	assert.Equal(t, 1, poster.callCount())

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, stored.State)
	assert.Equal(t, "123", stored.ResultID)
}

func TestRunDueSkipsFutureJobs(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "x"}}
	d, store := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "later"},
		DueAt:    now.Add(time.Minute),
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, poster.callCount())

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, stored.State)
}

func TestRunDueIsIdempotent(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "once"}}
	d, _ := newTestDispatcher(t, poster)

	now := time.Now()
	_, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "once"},
		DueAt:    now,
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)

	outcomes, err = d.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 1, poster.callCount())
}

func TestRunDueOrdering(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "x"}}
	d, _ := newTestDispatcher(t, poster)

	now := time.Now()
	late, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "second"},
		DueAt:    now.Add(-time.Minute),
	})
	require.NoError(t, err)
	early, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "first"},
		DueAt:    now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, early.ID, outcomes[0].JobID)
	assert.Equal(t, late.ID, outcomes[1].JobID)
}

func TestRunDueSkipsJobRescheduledMidBatch(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "x"}}
	d, store := newTestDispatcher(t, poster)

	now := time.Now()
	require.NoError(t, store.CreateJob(testJob("job-first", post.PlatformTwitter, now.Add(-2*time.Minute))))
	require.NoError(t, store.CreateJob(testJob("job-second", post.PlatformTwitter, now.Add(-time.Minute))))

	// While the first job posts, the second is pushed an hour out; the
	// claim must then refuse it
	poster.onPost = func() {
		require.NoError(t, d.Reschedule("job-second", now.Add(time.Hour)))
	}

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "job-first", outcomes[0].JobID)
	assert.Equal(t, 1, poster.callCount())

	moved, err := store.GetJob("job-second")
	require.NoError(t, err)
	assert.Equal(t, StatePending, moved.State)
	assert.WithinDuration(t, now.Add(time.Hour), moved.DueAt, time.Millisecond)
}

func TestRunDueFailureIsolation(t *testing.T) {
	failing := &stubPoster{
		platform: post.PlatformTwitter,
		err:      errors.New("ConnectionError: api.x.com unreachable"),
	}
	healthy := &stubPoster{
		platform: post.PlatformSlack,
		result:   post.Result{ExternalID: "ts-1"},
	}
	d, store := newTestDispatcher(t, failing, healthy)

	now := time.Now()
	bad, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "will fail"},
		DueAt:    now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)
	good, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformSlack,
		Payload:  post.Payload{Text: "will post", Channel: "#general"},
		DueAt:    now.Add(-time.Minute),
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StateFailed, outcomes[0].State)
	assert.Equal(t, StatePosted, outcomes[1].State)

	failed, err := store.GetJob(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, "ConnectionError: api.x.com unreachable", failed.Error)

	posted, err := store.GetJob(good.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, posted.State)
}

func TestRunDueNeverRetriesFailedJob(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, err: errors.New("boom")}
	d, _ := newTestDispatcher(t, poster)

	now := time.Now()
	_, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "no retry"},
		DueAt:    now,
	})
	require.NoError(t, err)

	_, err = d.RunDue(context.Background(), now)
	require.NoError(t, err)
	_, err = d.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, poster.callCount())
}

func TestRunDueTimeout(t *testing.T) {
	poster := &stubPoster{
		platform: post.PlatformTwitter,
		result:   post.Result{ExternalID: "slow"},
		delay:    time.Second,
	}
	d, store := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "slow"},
		DueAt:    now,
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StateFailed, outcomes[0].State)

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
	assert.Contains(t, stored.Error, "exceeded")
}

func TestRunDueUnregisteredPlatformFails(t *testing.T) {
	d, store := newTestDispatcher(t) // empty registry

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "orphan"},
		DueAt:    now,
	})
	require.NoError(t, err)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StateFailed, outcomes[0].State)

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
}

func TestRunDueRecordsExecutions(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "e-1"}}
	d, _ := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "audited"},
		DueAt:    now,
	})
	require.NoError(t, err)

	_, err = d.RunDue(context.Background(), now)
	require.NoError(t, err)

	execs, err := d.Executions(job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, ExecutionStatusCompleted, execs[0].Status)
	require.NotNil(t, execs[0].ExternalID)
	assert.Equal(t, "e-1", *execs[0].ExternalID)
	require.NotNil(t, execs[0].DurationMs)
}

func TestCancelPendingJob(t *testing.T) {
	d, store := newTestDispatcher(t)

	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "never mind"},
		DueAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	cancelled, err := d.Cancel(job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, stored.State)
}

func TestCancelUnknownJob(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Cancel("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCancelledJobIsNeverExecuted(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "x"}}
	d, _ := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "cancel me"},
		DueAt:    now,
	})
	require.NoError(t, err)

	cancelled, err := d.Cancel(job.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	outcomes, err := d.RunDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, poster.callCount())
}

func TestCancelAfterTerminalStateIsNoop(t *testing.T) {
	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "x"}}
	d, store := newTestDispatcher(t, poster)

	now := time.Now()
	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "already done"},
		DueAt:    now,
	})
	require.NoError(t, err)

	_, err = d.RunDue(context.Background(), now)
	require.NoError(t, err)

	cancelled, err := d.Cancel(job.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, stored.State)
}

func TestRescheduleJobDispatcher(t *testing.T) {
	d, store := newTestDispatcher(t)

	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "move me"},
		DueAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	newDue := time.Now().Add(4 * time.Hour)
	require.NoError(t, d.Reschedule(job.ID, newDue))

	stored, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, newDue, stored.DueAt, time.Millisecond)

	cancelled, err := d.Cancel(job.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	err = d.Reschedule(job.ID, newDue.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestListOrdersByDueTime(t *testing.T) {
	d, _ := newTestDispatcher(t)

	now := time.Now()
	second, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "b"},
		DueAt:    now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	first, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformSlack,
		Payload:  post.Payload{Text: "a"},
		DueAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)

	jobs, err := d.List(true)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
}
