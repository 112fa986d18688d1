package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, source, destination, filter, volume, status, progress, error,
	created_at, started_at, finished_at`

// CreateJob inserts a new queued job. CreatedAt is set when zero.
func (d *Database) CreateJob(ctx context.Context, job *Job) (err error) {
	start := time.Now()
	defer func() { recordQuery("create_job", start, err) }()

	if job.ID == "" {
		return fmt.Errorf("create job: empty id")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = StatusQueued

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source, destination, filter, volume, status, progress, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)`,
		job.ID, job.Source, job.Destination, job.Filter, job.Volume, string(job.Status),
		job.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// MarkStarted moves a queued job to running.
func (d *Database) MarkStarted(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { recordQuery("mark_started", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), time.Now().UnixMilli(), id, string(StatusQueued))
	if err != nil {
		return fmt.Errorf("mark job %s started: %w", id, err)
	}
	return d.checkTransition(ctx, res, id)
}

// UpdateProgress stores the progress of a running job. Progress never moves
// backwards; a smaller value is ignored.
func (d *Database) UpdateProgress(ctx context.Context, id string, progress float64) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_progress", start, err) }()

	progress = clampProgress(progress)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx,
		`UPDATE jobs SET progress = MAX(progress, ?) WHERE id = ? AND status = ?`,
		progress, id, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("update job %s progress: %w", id, err)
	}
	return d.checkTransition(ctx, res, id)
}

// FinishJob records the terminal status of a queued or running job. A
// succeeded job gets progress 1; errMsg is stored for the other outcomes.
func (d *Database) FinishJob(ctx context.Context, id string, status JobStatus, errMsg string) (err error) {
	start := time.Now()
	defer func() { recordQuery("finish_job", start, err) }()

	if !status.Terminal() {
		return fmt.Errorf("finish job %s with %q: %w", id, status, ErrInvalidTransition)
	}
	if status == StatusSucceeded {
		errMsg = ""
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, error = ?, finished_at = ?,
			progress = CASE WHEN ? THEN 1 ELSE progress END
		WHERE id = ? AND status IN (?, ?)`,
		string(status), errMsg, time.Now().UnixMilli(), status == StatusSucceeded,
		id, string(StatusQueued), string(StatusRunning))
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return d.checkTransition(ctx, res, id)
}

// FailInterrupted marks every job still queued or running as failed. It is
// called once at startup: those jobs belonged to a process that is gone.
func (d *Database) FailInterrupted(ctx context.Context, reason string) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("fail_interrupted", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE status IN (?, ?)`,
		string(StatusFailed), reason, time.Now().UnixMilli(),
		string(StatusQueued), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetJob returns the job with the given ID or ErrNotFound.
func (d *Database) GetJob(ctx context.Context, id string) (job *Job, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			recordQuery("get_job", start, nil)
			return
		}
		recordQuery("get_job", start, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err = scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (d *Database) ListJobs(ctx context.Context, opts ListOptions) (jobs []Job, err error) {
	start := time.Now()
	defer func() { recordQuery("list_jobs", start, err) }()

	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs = []Job{}
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			err = fmt.Errorf("list jobs: %w", scanErr)
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs per status. Every known status
// is present in the result.
func (d *Database) CountByStatus(ctx context.Context) (counts map[JobStatus]int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_by_status", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts = make(map[JobStatus]int, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count jobs: %w", err)
		}
		counts[JobStatus(status)] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

// checkTransition turns a zero-row update into ErrNotFound or
// ErrInvalidTransition.
func (d *Database) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = d.db.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job               Job
		status            string
		created           int64
		started, finished sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.Source, &job.Destination, &job.Filter, &job.Volume,
		&status, &job.Progress, &job.Error, &created, &started, &finished)
	if err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.CreatedAt = time.UnixMilli(created)
	job.StartedAt = fromMillis(started)
	job.FinishedAt = fromMillis(finished)
	return &job, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func clampProgress(p float64) float64 {
	if p != p || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
