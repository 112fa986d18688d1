package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"video-rewrite/internal/transcode"
)

func readMetric(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Failed to read metric: %v", err)
	}
	return &out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	return readMetric(t, c).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	return readMetric(t, g).GetGauge().GetValue()
}

func sampleCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	return readMetric(t, o.(prometheus.Metric)).GetHistogram().GetSampleCount()
}

func TestPipelineObserverRunLifecycle(t *testing.T) {
	o := NewPipelineObserver()

	started := counterValue(t, PipelineRunsStarted)
	finished := counterValue(t, PipelineRunsFinished.WithLabelValues("read_error"))
	durations := sampleCount(t, PipelineRunDuration.WithLabelValues("read_error"))
	active := gaugeValue(t, PipelineRunsActive)

	o.RunStarted()
	if got := gaugeValue(t, PipelineRunsActive); got != active+1 {
		t.Errorf("Expected %v active runs, got %v", active+1, got)
	}
	o.RunFinished("read_error", 2*time.Second)

	if got := counterValue(t, PipelineRunsStarted); got != started+1 {
		t.Errorf("Expected runs started %v, got %v", started+1, got)
	}
	if got := counterValue(t, PipelineRunsFinished.WithLabelValues("read_error")); got != finished+1 {
		t.Errorf("Expected runs finished %v, got %v", finished+1, got)
	}
	if got := sampleCount(t, PipelineRunDuration.WithLabelValues("read_error")); got != durations+1 {
		t.Errorf("Expected %d duration samples, got %d", durations+1, got)
	}
	if got := gaugeValue(t, PipelineRunsActive); got != active {
		t.Errorf("Expected active runs back to %v, got %v", active, got)
	}
}

func TestPipelineObserverSamplesAndFilters(t *testing.T) {
	o := NewPipelineObserver()

	video := counterValue(t, PipelineSamplesAppended.WithLabelValues("video"))
	audio := counterValue(t, PipelineSamplesAppended.WithLabelValues("audio"))
	passThrough := sampleCount(t, PipelineFilterDuration.WithLabelValues("pass_through"))
	filtered := sampleCount(t, PipelineFilterDuration.WithLabelValues("filtered"))
	waits := sampleCount(t, PipelineBackpressureWait.WithLabelValues("audio"))

	o.SampleAppended(transcode.TrackVideo)
	o.SampleAppended(transcode.TrackVideo)
	o.SampleAppended(transcode.TrackAudio)
	o.FilterApplied(time.Millisecond, true)
	o.FilterApplied(time.Millisecond, false)
	o.BackpressureWait(transcode.TrackAudio, 5*time.Millisecond)

	if got := counterValue(t, PipelineSamplesAppended.WithLabelValues("video")); got != video+2 {
		t.Errorf("Expected %v video samples, got %v", video+2, got)
	}
	if got := counterValue(t, PipelineSamplesAppended.WithLabelValues("audio")); got != audio+1 {
		t.Errorf("Expected %v audio samples, got %v", audio+1, got)
	}
	if got := sampleCount(t, PipelineFilterDuration.WithLabelValues("pass_through")); got != passThrough+1 {
		t.Errorf("Expected %d pass-through observations, got %d", passThrough+1, got)
	}
	if got := sampleCount(t, PipelineFilterDuration.WithLabelValues("filtered")); got != filtered+1 {
		t.Errorf("Expected %d filtered observations, got %d", filtered+1, got)
	}
	if got := sampleCount(t, PipelineBackpressureWait.WithLabelValues("audio")); got != waits+1 {
		t.Errorf("Expected %d backpressure observations, got %d", waits+1, got)
	}
}

func TestPipelineObserverPoolUsage(t *testing.T) {
	o := NewPipelineObserver()
	checkouts := counterValue(t, PipelinePoolCheckouts)
	exhausted := counterValue(t, PipelinePoolExhausted)

	o.PoolUsage(10, 3)

	if got := counterValue(t, PipelinePoolCheckouts); got != checkouts+10 {
		t.Errorf("Expected %v checkouts, got %v", checkouts+10, got)
	}
	if got := counterValue(t, PipelinePoolExhausted); got != exhausted+3 {
		t.Errorf("Expected %v exhausted, got %v", exhausted+3, got)
	}
}

func TestFilesystemObserver(t *testing.T) {
	o := NewFilesystemObserver()

	tests := []struct {
		name    string
		record  func()
		counter prometheus.Counter
	}{
		{"attempt", func() { o.ObserveRetryAttempt("stat", "output") }, FilesystemRetryAttempts.WithLabelValues("stat", "output")},
		{"success", func() { o.ObserveRetrySuccess("open", "output") }, FilesystemRetrySuccess.WithLabelValues("open", "output")},
		{"failure", func() { o.ObserveRetryFailure("rename", "database") }, FilesystemRetryFailures.WithLabelValues("rename", "database")},
		{"stale", func() { o.ObserveStaleError("remove", "unknown") }, FilesystemStaleErrors.WithLabelValues("remove", "unknown")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := counterValue(t, tt.counter)
			tt.record()
			if got := counterValue(t, tt.counter); got != before+1 {
				t.Errorf("Expected %v, got %v", before+1, got)
			}
		})
	}

	before := sampleCount(t, FilesystemRetryDuration.WithLabelValues("stat", "output"))
	o.ObserveRetryDuration("stat", "output", 0.2)
	if got := sampleCount(t, FilesystemRetryDuration.WithLabelValues("stat", "output")); got != before+1 {
		t.Errorf("Expected %d duration samples, got %d", before+1, got)
	}
}

func TestObserverConcurrentAccess(t *testing.T) {
	o := NewPipelineObserver()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.SampleAppended(transcode.TrackVideo)
				o.FilterApplied(time.Microsecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()
}

func TestInitializeMetricsIdempotent(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics() panicked: %v", r)
		}
	}()

	InitializeMetrics()
	InitializeMetrics()
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")
	if got := gaugeValue(t, AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); got != 1 {
		t.Errorf("Expected app info gauge 1, got %v", got)
	}
}

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

func TestCollectUpdatesJobHistory(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{JobsByStatus: map[string]int{"succeeded": 7, "failed": 2}}}
	c := NewCollector(provider, "", time.Hour)
	c.collect()

	if got := gaugeValue(t, JobHistoryTotal.WithLabelValues("succeeded")); got != 7 {
		t.Errorf("Expected 7 succeeded jobs, got %v", got)
	}
	if got := gaugeValue(t, JobHistoryTotal.WithLabelValues("failed")); got != 2 {
		t.Errorf("Expected 2 failed jobs, got %v", got)
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	c := NewCollector(nil, "", time.Hour)
	c.collect()
	if got := gaugeValue(t, GoMemSysBytes); got <= 0 {
		t.Errorf("Expected memory metrics to be collected, got %v", got)
	}
}

func TestCollectDBSize(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	if err := os.WriteFile(dbPath, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("Failed to write db file: %v", err)
	}
	if err := os.WriteFile(dbPath+"-wal", make([]byte, 100), 0o644); err != nil {
		t.Fatalf("Failed to write wal file: %v", err)
	}

	collectDBSize(dbPath)

	if got := gaugeValue(t, DBSizeBytes.WithLabelValues("main")); got != 4096 {
		t.Errorf("Expected main size 4096, got %v", got)
	}
	if got := gaugeValue(t, DBSizeBytes.WithLabelValues("wal")); got != 100 {
		t.Errorf("Expected wal size 100, got %v", got)
	}
	if got := gaugeValue(t, DBSizeBytes.WithLabelValues("shm")); got != 0 {
		t.Errorf("Expected missing shm to report 0, got %v", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(&mockStatsProvider{}, "", 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
}
