package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-rewrite/internal/database"
	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/mediatypes"
	"video-rewrite/internal/memory"
	"video-rewrite/internal/metrics"
	"video-rewrite/internal/transcode"
)

var (
	// ErrInvalidRequest wraps every validation failure of Submit.
	ErrInvalidRequest = errors.New("invalid job request")
	// ErrShuttingDown is returned by Submit after Shutdown began.
	ErrShuttingDown = errors.New("job manager is shutting down")
	// ErrNotActive is returned by Cancel for a job that already finished.
	ErrNotActive = errors.New("job is not active")

	// ErrTimeout is the cancellation cause of a run that exceeded Config.Timeout.
	ErrTimeout = errors.New("job timed out")

	errCancelledByUser = errors.New("cancelled by user")
)

const maxVolume = 4.0

// Store is the job history the manager writes to. *database.Database
// implements it.
type Store interface {
	CreateJob(ctx context.Context, job *database.Job) error
	MarkStarted(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, progress float64) error
	FinishJob(ctx context.Context, id string, status database.JobStatus, errMsg string) error
	GetJob(ctx context.Context, id string) (*database.Job, error)
	ListJobs(ctx context.Context, opts database.ListOptions) ([]database.Job, error)
}

// Backend opens sources and creates destinations. *ffmpeg.Backend
// implements it.
type Backend interface {
	transcode.Opener
	transcode.Creator
}

// Config controls scheduling.
type Config struct {
	// OutputDir confines destinations. Relative destinations are resolved
	// against it.
	OutputDir string
	// SourceDir confines sources the same way. Empty means any readable
	// path is accepted, which only suits trusted callers.
	SourceDir string
	// Workers is the number of concurrent runs. Values below 1 mean 1.
	Workers int
	// Timeout bounds one run, zero means no limit.
	Timeout time.Duration
	// DefaultFilter is used when a request names none.
	DefaultFilter string
	// ProgressInterval is the minimum time between progress writes.
	ProgressInterval time.Duration

	Observer transcode.Observer
	Monitor  *memory.Monitor
}

// Request describes one transcode job.
type Request struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Filter      string   `json:"filter,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
}

// Manager schedules and tracks transcode jobs.
type Manager struct {
	store   Store
	backend Backend
	catalog *filters.Catalog
	config  Config

	slots    chan struct{}
	base     context.Context
	shutdown context.CancelCauseFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
	closed bool
}

// NewManager returns a manager ready to accept jobs.
func NewManager(store Store, backend Backend, catalog *filters.Catalog, config Config) *Manager {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = time.Second
	}
	if config.DefaultFilter == "" {
		config.DefaultFilter = filters.Normal
	}

	base, cancel := context.WithCancelCause(context.Background())
	return &Manager{
		store:    store,
		backend:  backend,
		catalog:  catalog,
		config:   config,
		slots:    make(chan struct{}, config.Workers),
		base:     base,
		shutdown: cancel,
		active:   make(map[string]context.CancelCauseFunc),
	}
}

// Submit validates req, records it as a queued job and schedules it.
func (m *Manager) Submit(ctx context.Context, req Request) (*database.Job, error) {
	job, err := m.newJob(req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShuttingDown
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancelCause(m.base)
	m.active[job.ID] = cancel
	m.wg.Add(1)

	metrics.JobsSubmitted.Inc()
	metrics.JobsQueued.Inc()
	logging.Info("Job %s queued: %s (%s) -> %s (filter=%s)", job.ID, job.Source, mediatypes.GetFileType(job.Source), job.Destination, job.Filter)

	queued := *job
	go m.execute(jobCtx, queued)
	return job, nil
}

func (m *Manager) newJob(req Request) (*database.Job, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	source, err := m.resolveSource(source)
	if err != nil {
		return nil, err
	}

	dest, err := m.resolveDestination(req.Destination)
	if err != nil {
		return nil, err
	}
	if err := mediatypes.CheckOutput(dest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if abs, err := filepath.Abs(source); err == nil && abs == dest {
		return nil, fmt.Errorf("%w: destination must differ from source", ErrInvalidRequest)
	}

	filter := req.Filter
	if filter == "" {
		filter = m.config.DefaultFilter
	}
	if _, ok := m.catalog.Lookup(filter); !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidRequest, filters.ErrUnknownFilter, filter)
	}

	volume := 1.0
	if req.Volume != nil {
		volume = *req.Volume
		if volume != volume || volume < 0 || volume > maxVolume {
			return nil, fmt.Errorf("%w: volume must be between 0 and %g", ErrInvalidRequest, maxVolume)
		}
	}

	return &database.Job{
		ID:          uuid.NewString(),
		Source:      source,
		Destination: dest,
		Filter:      filter,
		Volume:      volume,
	}, nil
}

func (m *Manager) resolveSource(source string) (string, error) {
	if m.config.SourceDir == "" {
		return filepath.Clean(source), nil
	}
	resolved, err := filesystem.ResolveWithin(m.config.SourceDir, source)
	if err != nil {
		return "", fmt.Errorf("%w: source: %w", ErrInvalidRequest, err)
	}
	return resolved, nil
}

// resolveDestination makes dest absolute and keeps it inside OutputDir.
func (m *Manager) resolveDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if m.config.OutputDir == "" {
		abs, err := filepath.Abs(dest)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return abs, nil
	}
	resolved, err := filesystem.ResolveWithin(m.config.OutputDir, dest)
	if err != nil {
		return "", fmt.Errorf("%w: destination: %w", ErrInvalidRequest, err)
	}
	return resolved, nil
}

// Get returns one job.
func (m *Manager) Get(ctx context.Context, id string) (*database.Job, error) {
	return m.store.GetJob(ctx, id)
}

// List returns jobs newest first.
func (m *Manager) List(ctx context.Context, opts database.ListOptions) ([]database.Job, error) {
	return m.store.ListJobs(ctx, opts)
}

// Cancel stops a queued or running job. The job finishes as cancelled
// asynchronously.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		logging.Info("Cancelling job %s", id)
		cancel(errCancelledByUser)
		return nil
	}

	if _, err := m.store.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrNotActive
}

// Active returns the number of jobs queued or running in this process.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown stops accepting jobs, cancels the active ones and waits for them
// to record their outcome or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	n := len(m.active)
	m.mu.Unlock()

	if n > 0 {
		logging.Info("Cancelling %d active job(s)", n)
	}
	m.shutdown(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}
