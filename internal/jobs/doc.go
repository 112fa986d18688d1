// Package jobs runs transcode requests in the background and records them
// in the job history.
//
// A Manager validates each request, stores it as a queued job and starts a
// goroutine for it. At most Config.Workers pipelines run at once; the rest
// wait for a slot and then for the memory monitor to allow new work. Each
// run is bounded by Config.Timeout and can be cancelled by ID. The manager
// is the single consumer of every run's event channel and persists progress
// at most once per Config.ProgressInterval.
package jobs
