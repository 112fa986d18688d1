package ffmpeg

import (
	"strings"
	"testing"
)

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := newTailBuffer(8)
	tb.Write([]byte("0123456789"))
	tb.Write([]byte("ab"))
	if got := tb.String(); got != "456789ab" {
		t.Errorf("Expected last 8 bytes, got %q", got)
	}
	if got := tb.suffix(); got != " - 456789ab" {
		t.Errorf("Unexpected suffix %q", got)
	}
}

func TestTailBufferEmptySuffix(t *testing.T) {
	tb := newTailBuffer(16)
	tb.Write([]byte("  \n"))
	if got := tb.suffix(); got != "" {
		t.Errorf("Expected empty suffix for whitespace, got %q", got)
	}
}

func TestBackendAvailableMissingBinary(t *testing.T) {
	b := New(Config{FFmpegPath: "/nonexistent/ffmpeg-missing"})
	err := b.Available()
	if err == nil {
		t.Fatal("Expected error for a missing binary")
	}
	if !strings.Contains(err.Error(), "ffmpeg-missing") {
		t.Errorf("Expected error to name the binary, got %v", err)
	}
	if b.Active() != 0 {
		t.Errorf("Expected no active processes, got %d", b.Active())
	}
}
