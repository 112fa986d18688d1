// Package main provides the video-rewrite command.
//
// video-rewrite re-encodes a video through a per-frame filter while keeping
// its audio, timing and orientation. It runs either once from the command
// line or as an HTTP job service.
//
// # Commands
//
//	video-rewrite run SOURCE DEST   transcode one file with a progress bar
//	video-rewrite serve             run the HTTP job API
//	video-rewrite filters           list filter variants
//	video-rewrite inspect FILE      summarize a QuickTime/MP4 file
//	video-rewrite version           print build information
//
// # Service Lifecycle
//
// serve initializes in this order:
//
//  1. Configuration: environment variables, output and database directories
//  2. Memory: GOMEMLIMIT from MEMORY_LIMIT or the cgroup limit, plus the
//     memory monitor that holds back new runs under pressure
//  3. Database: the SQLite job history; jobs left queued or running by a
//     previous process are marked failed
//  4. Transcoder: ffmpeg/ffprobe checks, libvips, the filter catalog
//  5. HTTP: job API on PORT, Prometheus metrics on METRICS_PORT
//
// SIGINT or SIGTERM stops the API, cancels active jobs (their partial
// outputs are removed) and waits up to 30 seconds for them to be recorded.
//
// # Environment Variables
//
//   - SOURCE_DIR: directory service sources must live in (default /input)
//   - OUTPUT_DIR: directory all service outputs are written to (default /output)
//   - DATABASE_DIR: directory for jobs.db (default /database)
//   - PORT: API port (default 8080)
//   - METRICS_PORT: metrics port (default 9090)
//   - METRICS_ENABLED: serve metrics (default true)
//   - LOG_LEVEL: debug, info, warn or error
//   - FFMPEG_PATH, FFPROBE_PATH: binaries (default from PATH)
//   - VIDEO_PRESET, VIDEO_CRF, AUDIO_BITRATE: encoder settings
//   - VERIFY_OUTPUT: inspect every output before committing it (default true)
//   - USE_VIPS: enable libvips filters (default true)
//   - JOB_TIMEOUT: limit per service job (default 2h, 0 disables)
//   - TRANSCODE_WORKERS: concurrent service jobs
//   - DEFAULT_FILTER: filter used when a job names none
//   - API_PASSWORD or API_PASSWORD_HASH: bcrypt-checked password for /api,
//     sent as a bearer token or basic auth password (unset leaves /api open)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: memory limits
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. ffmpeg must be built with libx264.
package main
