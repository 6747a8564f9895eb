package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/post"
)

// DispatcherConfig bounds the dispatcher's external calls.
type DispatcherConfig struct {
	// PostTimeout bounds each poster call. On expiry the job fails
	// with a timeout error.
	PostTimeout time.Duration

	// Grace is how far in the past a requested due time may lie and
	// still be accepted (covers clock skew and "post now" requests).
	Grace time.Duration

	// PostsPerMinute rate-limits outbound poster calls across the
	// whole batch. 0 disables limiting.
	PostsPerMinute int
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PostTimeout:    30 * time.Second,
		Grace:          time.Minute,
		PostsPerMinute: 10,
	}
}

// Dispatcher owns the scheduled-post lifecycle: it creates jobs,
// cancels them, and executes due ones exactly once through the poster
// registry, recording every attempt.
type Dispatcher struct {
	store   *Store
	execs   *ExecutionStore
	cfg     DispatcherConfig
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	regMu    sync.RWMutex
	registry *post.Registry
}

// NewDispatcher creates a dispatcher over the given store and posters.
func NewDispatcher(store *Store, execs *ExecutionStore, registry *post.Registry, cfg DispatcherConfig, log *zap.SugaredLogger) *Dispatcher {
	var limiter *rate.Limiter
	if cfg.PostsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PostsPerMinute)), 1)
	}

	return &Dispatcher{
		store:    store,
		execs:    execs,
		registry: registry,
		cfg:      cfg,
		limiter:  limiter,
		log:      log,
	}
}

// SetRegistry swaps the poster registry. Used by config reload so new
// credentials take effect without restarting the daemon.
func (d *Dispatcher) SetRegistry(registry *post.Registry) {
	d.regMu.Lock()
	d.registry = registry
	d.regMu.Unlock()
}

func (d *Dispatcher) posterFor(platform post.Platform) (post.Poster, error) {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	return d.registry.Get(platform)
}

// ScheduleRequest describes a post to schedule.
type ScheduleRequest struct {
	Platform post.Platform
	Payload  post.Payload
	DueAt    time.Time

	// FluctuationMinutes, when > 0, randomly offsets DueAt by up to
	// that many minutes so posting times look human. The pre-jitter
	// time is preserved on the job.
	FluctuationMinutes int
	FluctuationBias    string
}

// Schedule validates the request and creates a pending job.
// Returns ErrInvalidRequest for an unsupported platform or empty
// payload, ErrInvalidSchedule for a due time in the past beyond the
// grace window.
func (d *Dispatcher) Schedule(req ScheduleRequest) (*Job, error) {
	if !req.Platform.Valid() {
		return nil, errors.NewInvalidRequestError("unsupported platform %q", req.Platform)
	}
	if err := req.Payload.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	if req.DueAt.Before(now.Add(-d.cfg.Grace)) {
		return nil, errors.Wrapf(errors.ErrInvalidSchedule,
			"due time %s is in the past", req.DueAt.Format(time.RFC3339))
	}

	dueAt := req.DueAt
	var originalDue *time.Time
	if req.FluctuationMinutes > 0 {
		orig := req.DueAt
		dueAt = AddHumanFluctuation(req.DueAt, req.FluctuationMinutes, req.FluctuationBias)
		originalDue = &orig
	}

	job := &Job{
		ID:            uuid.NewString(),
		Platform:      req.Platform,
		Payload:       req.Payload,
		DueAt:         dueAt,
		OriginalDueAt: originalDue,
		State:         StatePending,
	}

	if err := d.store.CreateJob(job); err != nil {
		return nil, err
	}

	d.log.Infow("Post scheduled",
		"job_id", job.ID,
		"platform", job.Platform,
		"due_at", job.DueAt.Format(time.RFC3339))

	return job, nil
}

// Cancel moves a pending job to cancelled. Returns ErrNotFound for an
// unknown id. Returns false without error when the job was not pending
// anymore — including when it lost the race against a concurrent
// RunDue claiming the same job.
func (d *Dispatcher) Cancel(jobID string) (bool, error) {
	if _, err := d.store.GetJob(jobID); err != nil {
		return false, err
	}

	cancelled, err := d.store.CancelJob(jobID)
	if err != nil {
		return false, err
	}

	if cancelled {
		d.log.Infow("Post cancelled", "job_id", jobID)
	}
	return cancelled, nil
}

// Reschedule moves a pending job's due time. Only pending jobs may be
// rescheduled; anything else returns ErrInvalidRequest.
func (d *Dispatcher) Reschedule(jobID string, dueAt time.Time) error {
	if _, err := d.store.GetJob(jobID); err != nil {
		return err
	}
	if dueAt.Before(time.Now().Add(-d.cfg.Grace)) {
		return errors.Wrapf(errors.ErrInvalidSchedule,
			"due time %s is in the past", dueAt.Format(time.RFC3339))
	}

	ok, err := d.store.RescheduleJob(jobID, dueAt)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidRequestError("post %s is not pending", jobID)
	}
	return nil
}

// List returns jobs ordered by due time ascending. Read-only.
func (d *Dispatcher) List(includeTerminal bool) ([]*Job, error) {
	return d.store.ListJobs(includeTerminal)
}

// Executions returns the attempt history for a job.
func (d *Dispatcher) Executions(jobID string) ([]*Execution, error) {
	return d.execs.ListExecutions(jobID)
}

// Outcome reports what happened to one due job during a RunDue batch.
type Outcome struct {
	JobID    string        `json:"job_id"`
	Platform post.Platform `json:"platform"`
	State    string        `json:"state"`
	Result   post.Result   `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// RunDue executes every pending job with due_at <= now, in
// deterministic order, each claimed exactly once. A poster failure is
// recorded on its job and never aborts the rest of the batch.
func (d *Dispatcher) RunDue(ctx context.Context, now time.Time) ([]Outcome, error) {
	jobs, err := d.store.ListJobsDue(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due posts")
	}

	var outcomes []Outcome
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		// Claim is the exactly-once gate: a job cancelled, already
		// claimed, or rescheduled past now since the listing is
		// skipped, never re-executed.
		claimed, err := d.store.ClaimJob(job.ID, now)
		if err != nil {
			d.log.Errorw("Failed to claim due post", "job_id", job.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		outcomes = append(outcomes, d.execute(ctx, job))
	}

	return outcomes, nil
}

// execute runs one claimed job through its poster and moves it to a
// terminal state. Called with the job already in running state.
func (d *Dispatcher) execute(ctx context.Context, job *Job) Outcome {
	startTime := time.Now()

	exec := &Execution{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Status:    ExecutionStatusRunning,
		StartedAt: startTime.UTC().Format(time.RFC3339Nano),
		CreatedAt: startTime.UTC().Format(time.RFC3339Nano),
		UpdatedAt: startTime.UTC().Format(time.RFC3339Nano),
	}
	if err := d.execs.CreateExecution(exec); err != nil {
		// Attempt history is best-effort; the job outcome still lands
		d.log.Errorw("Failed to create execution record", "job_id", job.ID, "error", err)
	}

	result, postErr := d.post(ctx, job)

	completedAt := time.Now()
	durationMs := int(completedAt.Sub(startTime).Milliseconds())
	completed := completedAt.UTC().Format(time.RFC3339Nano)
	exec.CompletedAt = &completed
	exec.DurationMs = &durationMs
	exec.UpdatedAt = completed

	outcome := Outcome{JobID: job.ID, Platform: job.Platform}

	if postErr != nil {
		errMsg := postErr.Error()
		exec.Status = ExecutionStatusFailed
		exec.ErrorMessage = &errMsg

		if err := d.store.MarkFailed(job.ID, errMsg); err != nil {
			d.log.Errorw("Failed to record post failure", "job_id", job.ID, "error", err)
		}

		d.log.Errorw("Post FAILED",
			"job_id", job.ID,
			"platform", job.Platform,
			"duration_ms", durationMs,
			"error", postErr)

		outcome.State = StateFailed
		outcome.Error = errMsg
	} else {
		exec.Status = ExecutionStatusCompleted
		exec.ExternalID = &result.ExternalID

		if err := d.store.MarkPosted(job.ID, result); err != nil {
			d.log.Errorw("Failed to record post success", "job_id", job.ID, "error", err)
		}

		d.log.Infow("Post OK",
			"job_id", job.ID,
			"platform", job.Platform,
			"external_id", result.ExternalID,
			"duration_ms", durationMs)

		outcome.State = StatePosted
		outcome.Result = result
	}

	if err := d.execs.UpdateExecution(exec); err != nil {
		d.log.Errorw("Failed to update execution record", "execution_id", exec.ID, "error", err)
	}

	return outcome
}

// post performs the bounded external call for one job.
func (d *Dispatcher) post(ctx context.Context, job *Job) (post.Result, error) {
	poster, err := d.posterFor(job.Platform)
	if err != nil {
		return post.Result{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.PostTimeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(callCtx); err != nil {
			return post.Result{}, errors.Wrap(errors.ErrTimeout, "rate limit wait")
		}
	}

	result, err := poster.Post(callCtx, job.Payload)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return post.Result{}, errors.Wrapf(errors.ErrTimeout,
				"post to %s exceeded %s", job.Platform, d.cfg.PostTimeout)
		}
		return post.Result{}, err
	}

	return result, nil
}
