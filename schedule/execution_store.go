package schedule

import (
	"database/sql"

	"github.com/teranos/socialia/errors"
)

// ExecutionStore handles persistence of execution attempt records.
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore creates a new execution store.
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

// CreateExecution inserts a new execution record.
func (s *ExecutionStore) CreateExecution(exec *Execution) error {
	_, err := s.db.Exec(`
		INSERT INTO post_executions (
			id, job_id, status, started_at, completed_at,
			duration_ms, external_id, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exec.ID,
		exec.JobID,
		exec.Status,
		exec.StartedAt,
		exec.CompletedAt,
		exec.DurationMs,
		exec.ExternalID,
		exec.ErrorMessage,
		exec.CreatedAt,
		exec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create execution record")
	}
	return nil
}

// UpdateExecution updates an execution record with its final status.
func (s *ExecutionStore) UpdateExecution(exec *Execution) error {
	result, err := s.db.Exec(`
		UPDATE post_executions
		SET status = ?, completed_at = ?, duration_ms = ?,
		    external_id = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`,
		exec.Status,
		exec.CompletedAt,
		exec.DurationMs,
		exec.ExternalID,
		exec.ErrorMessage,
		exec.UpdatedAt,
		exec.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update execution record")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("execution %s", exec.ID)
	}
	return nil
}

// ListExecutions returns all execution records for a job, newest first.
func (s *ExecutionStore) ListExecutions(jobID string) ([]*Execution, error) {
	rows, err := s.db.Query(`
		SELECT id, job_id, status, started_at, completed_at,
		       duration_ms, external_id, error_message, created_at, updated_at
		FROM post_executions
		WHERE job_id = ?
		ORDER BY started_at DESC
	`, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list executions")
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		var e Execution
		err := rows.Scan(
			&e.ID,
			&e.JobID,
			&e.Status,
			&e.StartedAt,
			&e.CompletedAt,
			&e.DurationMs,
			&e.ExternalID,
			&e.ErrorMessage,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		execs = append(execs, &e)
	}
	return execs, rows.Err()
}
