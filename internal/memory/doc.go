// Package memory configures the Go memory limit for containers and gates
// job admission on heap usage.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API) or
//     with a unit suffix such as "512Mi" or "2g".
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT given to the Go heap. The
//     default of 0.75 leaves room for the ffmpeg decoder and encoder
//     processes and libvips, none of which count against the Go heap.
//
// Kubernetes example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Admission control
//
// A [Monitor] samples heap allocation every CheckInterval. When usage crosses
// CriticalWaterMark it pauses and [Monitor.Wait] blocks new jobs until usage
// falls below HighWaterMark. Running pipelines are not interrupted; each one
// holds a bounded number of frames through its muxer's frame pool.
package memory
