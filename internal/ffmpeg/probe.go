package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"video-rewrite/internal/transcode"
)

// ProbeResult is the subset of ffprobe output the backend relies on.
type ProbeResult struct {
	FormatName string        `json:"formatName"`
	Duration   time.Duration `json:"duration"`
	Video      *VideoStream  `json:"video,omitempty"`
	Audio      *AudioStream  `json:"audio,omitempty"`
}

// VideoStream describes the first non-cover-art video stream.
type VideoStream struct {
	Index     int     `json:"index"`
	Codec     string  `json:"codec"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frameRate"`
	// Rotation is the counter-clockwise display rotation in degrees.
	Rotation int   `json:"rotation"`
	Frames   int64 `json:"frames,omitempty"`
}

// AudioStream describes the first audio stream.
type AudioStream struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Probe runs a single ffprobe JSON call against path.
func (b *Backend) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, b.config.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	stderr := newTailBuffer(2048)
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w%s", path, err, stderr.suffix())
	}
	return ParseProbe(out)
}

// ParseProbe converts raw ffprobe JSON output into a ProbeResult.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{
		FormatName: raw.Format.FormatName,
		Duration:   seconds(raw.Format.Duration),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if pr.Video == nil && s.Disposition["attached_pic"] == 0 {
				pr.Video = convertVideo(s)
			}
		case "audio":
			if pr.Audio == nil {
				pr.Audio = convertAudio(s)
			}
		}
	}
	if pr.Duration == 0 && pr.Video != nil {
		pr.Duration = seconds(raw.videoDuration())
	}
	return pr, nil
}

// SourceInfo maps the probe result onto the pipeline's view of a source.
func (p *ProbeResult) SourceInfo() transcode.SourceInfo {
	info := transcode.SourceInfo{Duration: p.Duration}
	if v := p.Video; v != nil && v.Width > 0 && v.Height > 0 {
		info.Video = &transcode.VideoInfo{
			Geometry: transcode.Geometry{
				Width:     v.Width,
				Height:    v.Height,
				Transform: transcode.RotationTransform(v.Rotation),
			},
			FrameRate: v.FrameRate,
			Codec:     v.Codec,
		}
	}
	if a := p.Audio; a != nil && a.SampleRate > 0 && a.Channels > 0 {
		info.Audio = &transcode.AudioInfo{
			SampleRate: a.SampleRate,
			Channels:   a.Channels,
			Codec:      a.Codec,
		}
	}
	return info
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

func (o *ffprobeOutput) videoDuration() string {
	for _, s := range o.Streams {
		if s.CodecType == "video" && s.Duration != "" {
			return s.Duration
		}
	}
	return ""
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

const defaultFrameRate = 30

func convertVideo(s *ffprobeStream) *VideoStream {
	rate := parseRate(s.AvgFrameRate)
	if rate <= 0 {
		rate = parseRate(s.RFrameRate)
	}
	if rate <= 0 {
		rate = defaultFrameRate
	}
	frames, _ := strconv.ParseInt(s.NbFrames, 10, 64)
	return &VideoStream{
		Index:     s.Index,
		Codec:     s.CodecName,
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: rate,
		Rotation:  streamRotation(s),
		Frames:    frames,
	}
}

func convertAudio(s *ffprobeStream) *AudioStream {
	rate, _ := strconv.Atoi(s.SampleRate)
	return &AudioStream{
		Index:      s.Index,
		Codec:      s.CodecName,
		SampleRate: rate,
		Channels:   s.Channels,
	}
}

// streamRotation prefers the display matrix side data, which is already
// counter-clockwise, over the legacy clockwise "rotate" tag.
func streamRotation(s *ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return normalizeDegrees(int(math.Round(sd.Rotation)))
		}
	}
	if v, ok := s.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return normalizeDegrees(-deg)
		}
	}
	return 0
}

// normalizeDegrees maps any angle into (-180, 180].
func normalizeDegrees(deg int) int {
	deg %= 360
	switch {
	case deg > 180:
		deg -= 360
	case deg <= -180:
		deg += 360
	}
	return deg
}

// parseRate parses "30000/1001" or "25".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
