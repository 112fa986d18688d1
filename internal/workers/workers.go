package workers

import (
	"os"
	"runtime"
	"strconv"

	"video-rewrite/internal/logging"
)

// EnvTranscodeWorkers overrides the computed transcode concurrency.
const EnvTranscodeWorkers = "TRANSCODE_WORKERS"

// Count returns the number of workers for a task whose cost per worker is
// the given fraction of a CPU. It respects container CPU limits via
// GOMAXPROCS (Go 1.19+). The result is at least 1 and at most limit when
// limit is positive.
func Count(cpusPerWorker float64, limit int) int {
	if cpusPerWorker <= 0 {
		cpusPerWorker = 1
	}
	workers := int(float64(runtime.GOMAXPROCS(0)) / cpusPerWorker)
	return clamp(workers, limit)
}

// ForTranscode returns how many pipeline runs may execute at once. Each run
// drives an ffmpeg decoder and a libx264 encoder that both use several
// threads, so the default is one run per two CPUs. TRANSCODE_WORKERS
// overrides it.
func ForTranscode(limit int) int {
	if override := os.Getenv(EnvTranscodeWorkers); override != "" {
		count, err := strconv.Atoi(override)
		if err == nil && count > 0 {
			return clamp(count, limit)
		}
		logging.Warn("Ignoring invalid %s=%q", EnvTranscodeWorkers, override)
	}
	return Count(2.0, limit)
}

func clamp(workers, limit int) int {
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}
