package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"video-rewrite/internal/logging"
)

var (
	// ErrClientGone indicates that the request context ended before the
	// stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrMaxDuration indicates that the stream hit Config.MaxDuration.
	ErrMaxDuration = errors.New("stream duration limit reached")
)

// Config controls a polling stream.
type Config struct {
	// Interval is the time between polls.
	Interval time.Duration
	// WriteTimeout bounds each write (0 = no deadline).
	WriteTimeout time.Duration
	// MaxDuration bounds the whole stream (0 = unlimited).
	MaxDuration time.Duration
}

// DefaultConfig returns the settings used by the job watch endpoint.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		WriteTimeout: 15 * time.Second,
		MaxDuration:  6 * time.Hour,
	}
}

// Writer flushes every write to the client under a per-write deadline.
type Writer struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
	deadlines    bool

	start        time.Time
	bytesWritten int64
}

// NewWriter wraps w. Deadlines are skipped silently when the underlying
// writer does not support them (httptest.ResponseRecorder, for one).
func NewWriter(w http.ResponseWriter, writeTimeout time.Duration) *Writer {
	return &Writer{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		deadlines:    writeTimeout > 0,
		start:        time.Now(),
	}
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	if sw.deadlines {
		if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.writeTimeout)); err != nil {
			if !errors.Is(err, http.ErrNotSupported) {
				return 0, err
			}
			sw.deadlines = false
		}
	}

	n, err := sw.w.Write(p)
	sw.bytesWritten += int64(n)
	if err != nil {
		return n, err
	}
	if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// Close clears the write deadline so the connection can be reused.
func (sw *Writer) Close() error {
	if !sw.deadlines {
		return nil
	}
	err := sw.rc.SetWriteDeadline(time.Time{})
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// Stats returns the bytes written and the time since the writer was created.
func (sw *Writer) Stats() (bytesWritten int64, duration time.Duration) {
	return sw.bytesWritten, time.Since(sw.start)
}

// StreamJSON calls next once per Interval and writes each non-nil value as a
// line of JSON. It returns nil after writing the value for which next reports
// done.
func StreamJSON(ctx context.Context, w http.ResponseWriter, config Config, next func(context.Context) (any, bool, error)) error {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, config.MaxDuration, ErrMaxDuration)
		defer cancel()
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	sw := NewWriter(w, config.WriteTimeout)
	defer func() {
		if err := sw.Close(); err != nil {
			logging.Debug("Failed to clear stream write deadline: %v", err)
		}
		n, d := sw.Stats()
		logging.Debug("Stream closed: %d bytes in %v", n, d.Round(time.Millisecond))
	}()

	enc := json.NewEncoder(sw)
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		v, done, err := next(ctx)
		if err != nil {
			return err
		}
		if v != nil {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), ErrMaxDuration) {
				return ErrMaxDuration
			}
			return ErrClientGone
		case <-ticker.C:
		}
	}
}
