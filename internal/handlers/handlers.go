package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"video-rewrite/internal/container"
	"video-rewrite/internal/database"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/jobs"
	"video-rewrite/internal/memory"
	"video-rewrite/internal/startup"
	"video-rewrite/internal/streaming"
)

// JobService is the part of *jobs.Manager the API uses.
type JobService interface {
	Submit(ctx context.Context, req jobs.Request) (*database.Job, error)
	Get(ctx context.Context, id string) (*database.Job, error)
	List(ctx context.Context, opts database.ListOptions) ([]database.Job, error)
	Cancel(ctx context.Context, id string) error
	Active() int
}

type Handlers struct {
	jobs      JobService
	catalog   *filters.Catalog
	monitor   *memory.Monitor
	outputDir string
	inspect   func(path string) (*container.Summary, error)
	stream    streaming.Config

	// passwordHash guards /api; nil disables authentication.
	passwordHash []byte

	startTime time.Time
	ready     atomic.Bool
}

// New returns handlers that are not ready yet; call SetReady once the
// service can take jobs.
func New(svc JobService, catalog *filters.Catalog, monitor *memory.Monitor, config *startup.Config) *Handlers {
	return &Handlers{
		jobs:         svc,
		catalog:      catalog,
		monitor:      monitor,
		outputDir:    config.OutputDir,
		inspect:      container.Inspect,
		stream:       streaming.DefaultConfig(),
		passwordHash: config.APIPasswordHash,
		startTime:    time.Now(),
	}
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
