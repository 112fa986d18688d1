/*
Package workers sizes concurrency for containerized deployments.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU still
reports the host. Worker counts are derived from GOMAXPROCS so that a pod
limited to 2 CPUs on a 64-core node does not start 64 transcodes.

	// One transcode per two CPUs, at most 4, unless TRANSCODE_WORKERS is set.
	slots := workers.ForTranscode(4)

A transcode is heavier than its goroutines suggest: the Go side only moves
frames between pipes, while the ffmpeg decoder and the libx264 encoder each
use several threads. Count therefore takes the CPU cost of one worker rather
than a per-CPU multiplier.
*/
package workers
