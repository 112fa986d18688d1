package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"video-rewrite/internal/metrics"
)

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestJob(t *testing.T, db *Database, id string, created time.Time) *Job {
	t.Helper()

	job := &Job{
		ID:          id,
		Source:      "/input/" + id + ".mov",
		Destination: "/output/" + id + ".mov",
		Filter:      "normal",
		Volume:      1,
		CreatedAt:   created,
	}
	if err := db.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob(%s) failed: %v", id, err)
	}
	return job
}

func TestNewCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("Database file was not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Expected Path() %q, got %q", dbPath, db.Path())
	}
}

func TestNewReopensExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	createTestJob(t, db, "kept", time.Now())
	db.Close()

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	if _, err := db.GetJob(ctx, "kept"); err != nil {
		t.Errorf("Expected job to survive reopen, got %v", err)
	}
}

func TestNewMissingDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "jobs.db")

	db, err := New(context.Background(), dbPath)
	if err == nil {
		db.Close()
		t.Fatal("Expected error for missing parent directory")
	}
}

func TestJobLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := createTestJob(t, db, "job-1", time.Now())
	if job.Status != StatusQueued {
		t.Errorf("Expected CreateJob to set status queued, got %s", job.Status)
	}

	got, err := db.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != StatusQueued || got.StartedAt != nil || got.FinishedAt != nil {
		t.Errorf("Unexpected queued job: %+v", got)
	}
	if got.Source != job.Source || got.Destination != job.Destination || got.Filter != "normal" {
		t.Errorf("Fields not stored: %+v", got)
	}

	if err := db.MarkStarted(ctx, "job-1"); err != nil {
		t.Fatalf("MarkStarted failed: %v", err)
	}
	if err := db.UpdateProgress(ctx, "job-1", 0.5); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	got, _ = db.GetJob(ctx, "job-1")
	if got.Status != StatusRunning {
		t.Errorf("Expected running, got %s", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("Expected StartedAt to be set")
	}
	if got.Progress != 0.5 {
		t.Errorf("Expected progress 0.5, got %v", got.Progress)
	}

	if err := db.FinishJob(ctx, "job-1", StatusSucceeded, "ignored"); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}

	got, _ = db.GetJob(ctx, "job-1")
	if got.Status != StatusSucceeded {
		t.Errorf("Expected succeeded, got %s", got.Status)
	}
	if got.Progress != 1 {
		t.Errorf("Expected progress 1 after success, got %v", got.Progress)
	}
	if got.Error != "" {
		t.Errorf("Expected no error message on success, got %q", got.Error)
	}
	if got.FinishedAt == nil {
		t.Error("Expected FinishedAt to be set")
	}
}

func TestUpdateProgressNeverDecreases(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestJob(t, db, "job", time.Now())
	if err := db.MarkStarted(ctx, "job"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value float64
		want  float64
	}{
		{0.4, 0.4},
		{0.2, 0.4},
		{-1, 0.4},
		{0.9, 0.9},
		{7, 1},
	}
	for _, tt := range tests {
		if err := db.UpdateProgress(ctx, "job", tt.value); err != nil {
			t.Fatalf("UpdateProgress(%v) failed: %v", tt.value, err)
		}
		got, _ := db.GetJob(ctx, "job")
		if got.Progress != tt.want {
			t.Errorf("After UpdateProgress(%v): expected %v, got %v", tt.value, tt.want, got.Progress)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestJob(t, db, "queued", time.Now())
	createTestJob(t, db, "done", time.Now())
	if err := db.FinishJob(ctx, "done", StatusFailed, "decode error"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"progress on queued job", func() error { return db.UpdateProgress(ctx, "queued", 0.1) }, ErrInvalidTransition},
		{"start finished job", func() error { return db.MarkStarted(ctx, "done") }, ErrInvalidTransition},
		{"finish finished job", func() error { return db.FinishJob(ctx, "done", StatusSucceeded, "") }, ErrInvalidTransition},
		{"finish with non-terminal status", func() error { return db.FinishJob(ctx, "queued", StatusRunning, "") }, ErrInvalidTransition},
		{"start missing job", func() error { return db.MarkStarted(ctx, "nope") }, ErrNotFound},
		{"finish missing job", func() error { return db.FinishJob(ctx, "nope", StatusCancelled, "") }, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	got, _ := db.GetJob(ctx, "done")
	if got.Status != StatusFailed || got.Error != "decode error" {
		t.Errorf("Terminal job was modified: %+v", got)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestJob(t, db, "job", time.Now())
	if err := db.FinishJob(ctx, "job", StatusCancelled, "cancelled by user"); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}
	got, _ := db.GetJob(ctx, "job")
	if got.Status != StatusCancelled {
		t.Errorf("Expected cancelled, got %s", got.Status)
	}
	if got.StartedAt != nil {
		t.Error("Cancelled queued job should have no StartedAt")
	}
}

func TestGetJobNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetJob(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreateJobDuplicateID(t *testing.T) {
	db := setupTestDB(t)

	createTestJob(t, db, "dup", time.Now())
	err := db.CreateJob(context.Background(), &Job{ID: "dup", Source: "a", Destination: "b", Filter: "normal"})
	if err == nil {
		t.Error("Expected error for duplicate ID")
	}
}

func TestCreateJobEmptyID(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateJob(context.Background(), &Job{}); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestListJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c", "d"} {
		createTestJob(t, db, id, base.Add(time.Duration(i)*time.Minute))
	}
	if err := db.FinishJob(ctx, "b", StatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"newest first", ListOptions{}, []string{"d", "c", "b", "a"}},
		{"limit", ListOptions{Limit: 2}, []string{"d", "c"}},
		{"offset", ListOptions{Limit: 2, Offset: 2}, []string{"b", "a"}},
		{"by status", ListOptions{Status: StatusFailed}, []string{"b"}},
		{"no match", ListOptions{Status: StatusRunning}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := db.ListJobs(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if len(jobs) != len(tt.want) {
				t.Fatalf("Expected %d jobs, got %d", len(tt.want), len(jobs))
			}
			for i, id := range tt.want {
				if jobs[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, jobs[i].ID)
				}
			}
		})
	}
}

func TestCountByStatusAndStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestJob(t, db, "q1", time.Now())
	createTestJob(t, db, "q2", time.Now())
	createTestJob(t, db, "r", time.Now())
	if err := db.MarkStarted(ctx, "r"); err != nil {
		t.Fatal(err)
	}

	counts, err := db.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[StatusQueued] != 2 || counts[StatusRunning] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
	if n, ok := counts[StatusSucceeded]; !ok || n != 0 {
		t.Errorf("Expected succeeded to be present with 0, got %d (present=%v)", n, ok)
	}

	stats := db.GetStats()
	if stats.JobsByStatus["queued"] != 2 || stats.JobsByStatus["running"] != 1 {
		t.Errorf("Unexpected stats: %v", stats.JobsByStatus)
	}
	if len(stats.JobsByStatus) != len(AllStatuses) {
		t.Errorf("Expected %d statuses, got %d", len(AllStatuses), len(stats.JobsByStatus))
	}
}

func TestFailInterrupted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestJob(t, db, "queued", time.Now())
	createTestJob(t, db, "running", time.Now())
	createTestJob(t, db, "done", time.Now())
	if err := db.MarkStarted(ctx, "running"); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishJob(ctx, "done", StatusSucceeded, ""); err != nil {
		t.Fatal(err)
	}

	n, err := db.FailInterrupted(ctx, "interrupted by restart")
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 jobs failed, got %d", n)
	}

	for _, id := range []string{"queued", "running"} {
		got, _ := db.GetJob(ctx, id)
		if got.Status != StatusFailed || got.Error != "interrupted by restart" {
			t.Errorf("Job %s: unexpected state %+v", id, got)
		}
	}
	got, _ := db.GetJob(ctx, "done")
	if got.Status != StatusSucceeded {
		t.Errorf("Finished job was changed to %s", got.Status)
	}
}

func TestFailInterruptedQueryLabel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestJob(t, db, "queued", time.Now())

	interrupted := metrics.DBQueryTotal.WithLabelValues("fail_interrupted", "success")
	finished := metrics.DBQueryTotal.WithLabelValues("finish_job", "success")
	beforeInterrupted := counterValue(t, interrupted)
	beforeFinished := counterValue(t, finished)

	if _, err := db.FailInterrupted(ctx, "interrupted by restart"); err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}

	if got := counterValue(t, interrupted) - beforeInterrupted; got != 1 {
		t.Errorf("Expected one fail_interrupted query, got %v", got)
	}
	if got := counterValue(t, finished) - beforeFinished; got != 0 {
		t.Errorf("Expected finish_job to be untouched, got %v", got)
	}
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestConcurrentProgressUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ids := []string{"j1", "j2", "j3", "j4"}
	for _, id := range ids {
		createTestJob(t, db, id, time.Now())
		if err := db.MarkStarted(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 1; i <= 10; i++ {
				if err := db.UpdateProgress(ctx, id, float64(i)/10); err != nil {
					t.Errorf("UpdateProgress(%s) failed: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, _ := db.GetJob(ctx, id)
		if got.Progress != 1 {
			t.Errorf("Job %s: expected progress 1, got %v", id, got.Progress)
		}
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"successful query", nil},
		{"failed query", errors.New("test error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// must not panic for either status label
			recordQuery("get_job", time.Now(), tt.err)
		})
	}
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
		valid    bool
	}{
		{StatusQueued, false, true},
		{StatusRunning, false, true},
		{StatusSucceeded, true, true},
		{StatusFailed, true, true},
		{StatusCancelled, true, true},
		{JobStatus("paused"), false, false},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, expected %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, expected %v", tt.status, got, tt.valid)
		}
	}
}
