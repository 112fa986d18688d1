// Package container reads the structure of ISO-BMFF / QuickTime files: brand,
// duration and per-track codec, sample count, geometry and H.264 profile.
// The ffmpeg muxer uses it to check an encoded file before committing it.
package container

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// Track kinds as reported in TrackSummary.Kind.
const (
	KindVideo = "video"
	KindAudio = "audio"
	KindOther = "other"
)

// TrackSummary describes one track.
type TrackSummary struct {
	ID        uint32        `json:"id"`
	Kind      string        `json:"kind"`
	Codec     string        `json:"codec"`
	Samples   int           `json:"samples"`
	Timescale uint32        `json:"timescale"`
	Duration  time.Duration `json:"duration"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	// Rotation is the counter-clockwise display rotation from the track matrix.
	Rotation int    `json:"rotation,omitempty"`
	Profile  string `json:"profile,omitempty"`
	Level    string `json:"level,omitempty"`
}

// Summary describes a whole file.
type Summary struct {
	MajorBrand string         `json:"majorBrand"`
	Duration   time.Duration  `json:"duration"`
	FastStart  bool           `json:"fastStart"`
	Tracks     []TrackSummary `json:"tracks"`
}

// Video returns the first video track.
func (s *Summary) Video() (TrackSummary, bool) {
	return s.first(KindVideo)
}

// Audio returns the first audio track.
func (s *Summary) Audio() (TrackSummary, bool) {
	return s.first(KindAudio)
}

func (s *Summary) first(kind string) (TrackSummary, bool) {
	for _, t := range s.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return TrackSummary{}, false
}

// Inspect opens path and summarizes it.
func Inspect(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	summary, err := InspectReader(f)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	return summary, nil
}

// InspectReader summarizes the container read from r.
func InspectReader(r io.ReadSeeker) (*Summary, error) {
	info, err := mp4.Probe(r)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	summary := &Summary{
		MajorBrand: strings.TrimSpace(string(info.MajorBrand[:])),
		Duration:   scaled(info.Duration, info.Timescale),
		FastStart:  info.FastStart,
	}

	details, err := trackDetails(r)
	if err != nil {
		return nil, err
	}

	for i, t := range info.Tracks {
		ts := TrackSummary{
			ID:        t.TrackID,
			Kind:      KindOther,
			Codec:     codecName(t.Codec),
			Samples:   len(t.Samples),
			Timescale: t.Timescale,
			Duration:  scaled(t.Duration, t.Timescale),
		}
		if i < len(details) {
			d := details[i]
			ts.Kind = d.kind
			ts.Width, ts.Height = d.width, d.height
			ts.Rotation = d.rotation
			if d.sps != nil {
				ts.Width, ts.Height = d.sps.Width(), d.sps.Height()
				ts.Profile = profileName(d.sps.ProfileIdc)
				ts.Level = fmt.Sprintf("%d.%d", d.sps.LevelIdc/10, d.sps.LevelIdc%10)
			}
		}
		if t.AVC != nil && ts.Width == 0 {
			ts.Width, ts.Height = int(t.AVC.Width), int(t.AVC.Height)
		}
		summary.Tracks = append(summary.Tracks, ts)
	}
	return summary, nil
}

type trackDetail struct {
	kind     string
	width    int
	height   int
	rotation int
	sps      *h264.SPS
}

// trackDetails reads handler, header and AVC configuration of every trak in
// file order.
func trackDetails(r io.ReadSeeker) ([]trackDetail, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	traks, err := mp4.ExtractBox(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()})
	if err != nil {
		return nil, fmt.Errorf("read tracks: %w", err)
	}

	details := make([]trackDetail, 0, len(traks))
	for _, trak := range traks {
		d := trackDetail{kind: KindOther}

		hdlrs, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()})
		if err != nil {
			return nil, fmt.Errorf("read handler: %w", err)
		}
		if len(hdlrs) > 0 {
			if hdlr, ok := hdlrs[0].Payload.(*mp4.Hdlr); ok {
				d.kind = handlerKind(hdlr.HandlerType)
			}
		}

		tkhds, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeTkhd()})
		if err != nil {
			return nil, fmt.Errorf("read track header: %w", err)
		}
		if len(tkhds) > 0 {
			if tkhd, ok := tkhds[0].Payload.(*mp4.Tkhd); ok {
				d.width = int(tkhd.Width >> 16)
				d.height = int(tkhd.Height >> 16)
				d.rotation = matrixRotation(tkhd.Matrix)
			}
		}

		if d.kind == KindVideo {
			d.sps, err = readSPS(r, trak)
			if err != nil {
				return nil, err
			}
		}
		details = append(details, d)
	}
	return details, nil
}

func readSPS(r io.ReadSeeker, trak *mp4.BoxInfo) (*h264.SPS, error) {
	path := mp4.BoxPath{
		mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl(),
		mp4.BoxTypeStsd(), mp4.BoxTypeAvc1(), mp4.BoxTypeAvcC(),
	}
	boxes, err := mp4.ExtractBoxWithPayload(r, trak, path)
	if err != nil {
		return nil, fmt.Errorf("read avcC: %w", err)
	}
	for _, box := range boxes {
		avcc, ok := box.Payload.(*mp4.AVCDecoderConfiguration)
		if !ok {
			continue
		}
		for _, ps := range avcc.SequenceParameterSets {
			var sps h264.SPS
			if err := sps.Unmarshal(ps.NALUnit); err != nil {
				return nil, fmt.Errorf("parse SPS: %w", err)
			}
			return &sps, nil
		}
	}
	return nil, nil
}

func handlerKind(handler [4]byte) string {
	switch string(handler[:]) {
	case "vide":
		return KindVideo
	case "soun":
		return KindAudio
	default:
		return KindOther
	}
}

// matrixRotation converts a track matrix into a counter-clockwise display
// rotation. The a and b entries are 16.16 fixed point.
func matrixRotation(m [9]int32) int {
	a, b := float64(m[0])/65536, float64(m[1])/65536
	if a == 0 && b == 0 {
		return 0
	}
	deg := -int(math.Round(math.Atan2(b, a) * 180 / math.Pi))
	if deg == -180 {
		deg = 180
	}
	return deg
}

func codecName(c mp4.Codec) string {
	switch c {
	case mp4.CodecAVC1:
		return "avc1"
	case mp4.CodecMP4A:
		return "mp4a"
	default:
		return "unknown"
	}
}

func profileName(idc uint8) string {
	switch idc {
	case 66:
		return "Baseline"
	case 77:
		return "Main"
	case 88:
		return "Extended"
	case 100:
		return "High"
	case 110:
		return "High 10"
	case 122:
		return "High 4:2:2"
	case 244:
		return "High 4:4:4"
	default:
		return fmt.Sprintf("profile %d", idc)
	}
}

func scaled(value uint64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(float64(value) / float64(timescale) * float64(time.Second))
}

// ErrSampleCount is returned by VerifyVideo when the encoded track does not
// hold the expected number of frames.
var ErrSampleCount = errors.New("video sample count mismatch")

// VerifyVideo checks that path contains a video track with exactly frames samples.
func VerifyVideo(path string, frames int64) (*Summary, error) {
	summary, err := Inspect(path)
	if err != nil {
		return nil, err
	}
	video, ok := summary.Video()
	if !ok {
		if frames == 0 {
			return summary, nil
		}
		return summary, fmt.Errorf("%w: no video track, expected %d frames", ErrSampleCount, frames)
	}
	if int64(video.Samples) != frames {
		return summary, fmt.Errorf("%w: %d samples, expected %d", ErrSampleCount, video.Samples, frames)
	}
	return summary, nil
}
