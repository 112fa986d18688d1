package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 300,
      "height": 300,
      "disposition": {"attached_pic": 1}
    },
    {
      "index": 1,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001",
      "nb_frames": "300",
      "duration": "10.010000",
      "disposition": {"attached_pic": 0},
      "side_data_list": [
        {"side_data_type": "Display Matrix", "rotation": -90}
      ]
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "sample_rate": "48000",
      "channels": 2
    }
  ],
  "format": {
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.010000"
  }
}`

func TestParseProbe(t *testing.T) {
	pr, err := ParseProbe([]byte(probeJSON))
	require.NoError(t, err)

	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", pr.FormatName)
	assert.Equal(t, 10010*time.Millisecond, pr.Duration)

	require.NotNil(t, pr.Video)
	assert.Equal(t, 1, pr.Video.Index, "cover art must be skipped")
	assert.Equal(t, 1920, pr.Video.Width)
	assert.InDelta(t, 29.97, pr.Video.FrameRate, 0.01)
	assert.Equal(t, -90, pr.Video.Rotation)
	assert.Equal(t, int64(300), pr.Video.Frames)

	require.NotNil(t, pr.Audio)
	assert.Equal(t, 48000, pr.Audio.SampleRate)
	assert.Equal(t, 2, pr.Audio.Channels)

	info := pr.SourceInfo()
	require.NotNil(t, info.Video)
	assert.Equal(t, -90, info.Video.Geometry.Transform.Rotation())
	require.NotNil(t, info.Audio)
}

func TestParseProbeRotateTag(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","width":640,"height":480,
		"avg_frame_rate":"0/0","r_frame_rate":"25/1","tags":{"rotate":"90"}}],
		"format":{"duration":"2.0"}}`
	pr, err := ParseProbe([]byte(data))
	require.NoError(t, err)
	require.NotNil(t, pr.Video)
	assert.Equal(t, -90, pr.Video.Rotation, "rotate tag is clockwise")
	assert.Equal(t, 25.0, pr.Video.FrameRate)
	assert.Nil(t, pr.Audio)
}

func TestParseProbeDurationFallback(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","width":8,"height":8,"duration":"4.5"}],"format":{}}`
	pr, err := ParseProbe([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 4500*time.Millisecond, pr.Duration)
	assert.Equal(t, float64(defaultFrameRate), pr.Video.FrameRate)
}

func TestParseProbeNoStreams(t *testing.T) {
	pr, err := ParseProbe([]byte(`{"streams":[],"format":{"format_name":"data"}}`))
	require.NoError(t, err)
	assert.Empty(t, pr.SourceInfo().Tracks())
}

func TestParseProbeInvalid(t *testing.T) {
	_, err := ParseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestNormalizeDegrees(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, 180: 180, 270: -90, -180: 180, -270: 90, 450: 90}
	for in, want := range tests {
		if got := normalizeDegrees(in); got != want {
			t.Errorf("normalizeDegrees(%d) = %d, expected %d", in, got, want)
		}
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"24000/1001", 24000.0 / 1001},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}
