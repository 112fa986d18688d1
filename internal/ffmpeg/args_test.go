package ffmpeg

import (
	"strings"
	"testing"

	"video-rewrite/internal/transcode"
)

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}

func valueAfter(args []string, flag string) string {
	i := indexOf(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestEncoderArgsVideoAndAudio(t *testing.T) {
	info := transcode.SourceInfo{
		Video: &transcode.VideoInfo{
			Geometry:  transcode.Geometry{Width: 1280, Height: 720, Transform: transcode.RotationTransform(90)},
			FrameRate: 29.97,
		},
		Audio: &transcode.AudioInfo{SampleRate: 48000, Channels: 2},
	}
	args := encoderArgs(DefaultConfig(), info, "/out/.clip.mov.1.partial")

	if got := valueAfter(args, "-display_rotation"); got != "90" {
		t.Errorf("Expected -display_rotation 90, got %q", got)
	}
	if indexOf(args, "-display_rotation") > indexOf(args, "pipe:0") {
		t.Error("Expected -display_rotation before the video input")
	}
	if got := valueAfter(args, "-video_size"); got != "1280x720" {
		t.Errorf("Expected video size 1280x720, got %q", got)
	}
	if got := valueAfter(args, "-framerate"); got != "29.97" {
		t.Errorf("Expected framerate 29.97, got %q", got)
	}
	if indexOf(args, "pipe:3") < 0 {
		t.Error("Expected audio to be read from pipe:3")
	}
	if got := valueAfter(args, "-c:v"); got != "libx264" {
		t.Errorf("Expected libx264, got %q", got)
	}
	if got := valueAfter(args, "-crf"); got != "20" {
		t.Errorf("Expected crf 20, got %q", got)
	}
	if got := args[len(args)-1]; got != "/out/.clip.mov.1.partial" {
		t.Errorf("Expected output path last, got %q", got)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-map 0:v:0", "-map 1:a:0", "-movflags +faststart", "-f mov"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in %s", want, joined)
		}
	}
}

func TestEncoderArgsAudioOnly(t *testing.T) {
	info := transcode.SourceInfo{Audio: &transcode.AudioInfo{SampleRate: 44100, Channels: 1}}
	args := encoderArgs(DefaultConfig(), info, "out.mov")

	if indexOf(args, "pipe:3") >= 0 {
		t.Error("Audio-only encoder should not use pipe:3")
	}
	if indexOf(args, "-c:v") >= 0 {
		t.Error("Audio-only encoder should not configure a video codec")
	}
	if !strings.Contains(strings.Join(args, " "), "-map 0:a:0") {
		t.Errorf("Expected audio mapped from input 0, got %v", args)
	}
	if got := valueAfter(args, "-ar"); got != "44100" {
		t.Errorf("Expected sample rate 44100, got %q", got)
	}
}

func TestEncoderArgsNoRotation(t *testing.T) {
	info := transcode.SourceInfo{Video: &transcode.VideoInfo{
		Geometry:  transcode.Geometry{Width: 64, Height: 48},
		FrameRate: 25,
	}}
	args := encoderArgs(DefaultConfig(), info, "out.mov")
	if indexOf(args, "-display_rotation") >= 0 {
		t.Error("Expected no -display_rotation for an upright source")
	}
}

func TestDecoderArgs(t *testing.T) {
	video := videoDecoderArgs("in.mp4")
	if indexOf(video, "-noautorotate") < 0 {
		t.Error("Video decoder must not apply rotation")
	}
	if got := valueAfter(video, "-pix_fmt"); got != "rgba" {
		t.Errorf("Expected rgba output, got %q", got)
	}

	audio := audioDecoderArgs("in.mp4", transcode.AudioInfo{SampleRate: 48000, Channels: 2})
	if got := valueAfter(audio, "-f"); got != "s16le" {
		t.Errorf("Expected s16le output, got %q", got)
	}
	if got := valueAfter(audio, "-ac"); got != "2" {
		t.Errorf("Expected 2 channels, got %q", got)
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{30, "30"},
		{23.976, "23.976"},
		{0, "30"},
		{-5, "30"},
	}
	for _, tt := range tests {
		if got := formatRate(tt.rate); got != tt.want {
			t.Errorf("formatRate(%v) = %q, expected %q", tt.rate, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{CRF: 99, Preset: "fast"}.withDefaults()
	if cfg.CRF != 20 {
		t.Errorf("Expected out-of-range CRF to fall back to 20, got %d", cfg.CRF)
	}
	if cfg.Preset != "fast" {
		t.Errorf("Expected preset to be kept, got %q", cfg.Preset)
	}
	if cfg.QueueDepth != 8 || cfg.PoolSize != 4 || cfg.AudioChunkFrames != 1024 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}
