package ffmpeg

import (
	"fmt"
	"os/exec"
	"sync"

	"video-rewrite/internal/transcode"
)

// Backend opens sources and creates destinations with ffmpeg.
type Backend struct {
	config Config

	processMu sync.Mutex
	processes map[*process]struct{}
}

var (
	_ transcode.Opener  = (*Backend)(nil)
	_ transcode.Creator = (*Backend)(nil)
)

// New creates a Backend. Zero fields in config take their defaults.
func New(config Config) *Backend {
	return &Backend{
		config:    config.withDefaults(),
		processes: make(map[*process]struct{}),
	}
}

// Config returns the effective configuration.
func (b *Backend) Config() Config {
	return b.config
}

// Available checks that both binaries can be found.
func (b *Backend) Available() error {
	for _, bin := range []string{b.config.FFmpegPath, b.config.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}
