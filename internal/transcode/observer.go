package transcode

import "time"

// Observer receives pipeline measurements. The metrics package provides the
// Prometheus implementation; it lives there so this package stays free of
// metric registration.
type Observer interface {
	RunStarted()
	RunFinished(outcome string, elapsed time.Duration)
	SampleAppended(kind TrackKind)
	FilterApplied(elapsed time.Duration, passThrough bool)
	BackpressureWait(kind TrackKind, elapsed time.Duration)
	PoolUsage(checkouts, exhausted uint64)
}

type nopObserver struct{}

func (nopObserver) RunStarted() {}
func (nopObserver) RunFinished(string, time.Duration) {}
func (nopObserver) SampleAppended(TrackKind) {}
func (nopObserver) FilterApplied(time.Duration, bool) {}
func (nopObserver) BackpressureWait(TrackKind, time.Duration) {}
func (nopObserver) PoolUsage(uint64, uint64) {}
