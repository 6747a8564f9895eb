package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/post"
)

// Store handles persistence of scheduled post jobs.
//
// State transitions are performed with conditional updates so that a
// concurrent cancel and claim on the same job resolve to exactly one
// winner inside SQLite, regardless of caller locking.
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `id, platform, payload, due_at, original_due_at, state,
       result_id, result_url, error, created_at, updated_at`

// timeFormat is RFC3339 with a fixed-width nanosecond fraction, always
// UTC. Fixed width keeps SQLite's string comparison on due_at in
// chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// CreateJob inserts a new job. The job's CreatedAt/UpdatedAt are set here.
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO scheduled_posts (
			id, platform, payload, due_at, original_due_at, state,
			result_id, result_url, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	var originalDue interface{}
	if job.OriginalDueAt != nil {
		originalDue = job.OriginalDueAt.UTC().Format(timeFormat)
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = s.db.Exec(query,
		job.ID,
		string(job.Platform),
		string(payload),
		job.DueAt.UTC().Format(timeFormat),
		originalDue,
		job.State,
		nullIfEmpty(job.ResultID),
		nullIfEmpty(job.ResultURL),
		nullIfEmpty(job.Error),
		now.Format(timeFormat),
		now.Format(timeFormat),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create scheduled post")
	}

	return nil
}

// GetJob retrieves a job by ID. Returns ErrNotFound for unknown ids.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM scheduled_posts WHERE id = ?`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("scheduled post %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get scheduled post %s", id)
	}
	return job, nil
}

// ListJobs returns jobs ordered by due time ascending, then creation
// order. Terminal jobs are included only when includeTerminal is set.
func (s *Store) ListJobs(includeTerminal bool) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_posts`
	if !includeTerminal {
		query += ` WHERE state IN (?, ?)`
	}
	query += ` ORDER BY due_at ASC, created_at ASC, id ASC`

	var rows *sql.Rows
	var err error
	if includeTerminal {
		rows, err = s.db.Query(query)
	} else {
		rows, err = s.db.Query(query, StatePending, StateRunning)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled posts")
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsDue returns pending jobs with due_at <= now, in deterministic
// execution order: due_at ascending, created_at ascending, id as the
// final tie-break. Limited to 100 jobs per batch.
func (s *Store) ListJobsDue(ctx context.Context, now time.Time) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scheduled_posts
		WHERE state = ? AND due_at <= ?
		ORDER BY due_at ASC, created_at ASC, id ASC
		LIMIT 100
	`

	rows, err := s.db.QueryContext(ctx, query, StatePending, now.UTC().Format(timeFormat))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due posts")
	}
	defer rows.Close()

	return collectJobs(rows)
}

// NextPending returns the pending job with the earliest due time, or
// nil when nothing is scheduled.
func (s *Store) NextPending() (*Job, error) {
	row := s.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM scheduled_posts
		WHERE state = ?
		ORDER BY due_at ASC, created_at ASC, id ASC
		LIMIT 1
	`, StatePending)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next pending post")
	}
	return job, nil
}

// ClaimJob transitions a job from pending to running, provided it is
// still due at now. Returns false when the job was not pending (already
// claimed, cancelled, terminal) or was rescheduled past now after being
// listed. The caller must then skip it.
func (s *Store) ClaimJob(id string, now time.Time) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE scheduled_posts
		SET state = ?, updated_at = ?
		WHERE id = ? AND state = ? AND due_at <= ?
	`, StateRunning, time.Now().UTC().Format(timeFormat),
		id, StatePending, now.UTC().Format(timeFormat))
	if err != nil {
		return false, errors.Wrapf(err, "failed to transition post %s to %s", id, StateRunning)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

// CancelJob transitions a job from pending to cancelled. Returns false
// when the job was not pending, e.g. it lost the race against ClaimJob.
func (s *Store) CancelJob(id string) (bool, error) {
	return s.conditionalTransition(id, StateCancelled, StatePending)
}

// conditionalTransition updates state only when the job is currently in
// fromState. The single UPDATE is the serialization point against a
// racing claim.
func (s *Store) conditionalTransition(id, toState, fromState string) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE scheduled_posts
		SET state = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, toState, time.Now().UTC().Format(timeFormat), id, fromState)
	if err != nil {
		return false, errors.Wrapf(err, "failed to transition post %s to %s", id, toState)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

// MarkPosted transitions a running job to posted and records the
// platform-assigned identifier.
func (s *Store) MarkPosted(id string, result post.Result) error {
	return s.finish(id, StatePosted, nullIfEmpty(result.ExternalID), nullIfEmpty(result.URL), nil)
}

// MarkFailed transitions a running job to failed, recording the error
// message verbatim.
func (s *Store) MarkFailed(id string, errMsg string) error {
	return s.finish(id, StateFailed, nil, nil, nullIfEmpty(errMsg))
}

func (s *Store) finish(id, toState string, resultID, resultURL, errMsg interface{}) error {
	result, err := s.db.Exec(`
		UPDATE scheduled_posts
		SET state = ?, result_id = ?, result_url = ?, error = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, toState, resultID, resultURL, errMsg,
		time.Now().UTC().Format(timeFormat), id, StateRunning)
	if err != nil {
		return errors.Wrapf(err, "failed to finish post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Newf("post %s is not running, refusing %s transition", id, toState)
	}
	return nil
}

// RescheduleJob moves a pending job to a new due time. Returns false
// when the job is no longer pending.
func (s *Store) RescheduleJob(id string, dueAt time.Time) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE scheduled_posts
		SET due_at = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, dueAt.UTC().Format(timeFormat),
		time.Now().UTC().Format(timeFormat), id, StatePending)
	if err != nil {
		return false, errors.Wrapf(err, "failed to reschedule post %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var platform, payload, dueAt, createdAt, updatedAt string
	var originalDue, resultID, resultURL, errMsg sql.NullString

	err := row.Scan(
		&job.ID,
		&platform,
		&payload,
		&dueAt,
		&originalDue,
		&job.State,
		&resultID,
		&resultURL,
		&errMsg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Platform = post.Platform(platform)

	if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
		return nil, errors.Wrapf(err, "failed to parse payload for post %s", job.ID)
	}

	// Timestamp parse failures indicate data corruption or schema mismatch
	job.DueAt, err = time.Parse(time.RFC3339Nano, dueAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse due_at for post %s", job.ID)
	}
	job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for post %s", job.ID)
	}
	job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for post %s", job.ID)
	}

	if originalDue.Valid {
		t, err := time.Parse(time.RFC3339Nano, originalDue.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse original_due_at for post %s", job.ID)
		}
		job.OriginalDueAt = &t
	}
	if resultID.Valid {
		job.ResultID = resultID.String
	}
	if resultURL.Valid {
		job.ResultURL = resultURL.String
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}

	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
