package ffmpeg

import (
	"strconv"

	"video-rewrite/internal/transcode"
)

var commonArgs = []string{"-hide_banner", "-nostdin", "-v", "error"}

// videoDecoderArgs decodes the first video stream to packed RGBA on stdout,
// without applying the display rotation.
func videoDecoderArgs(source string) []string {
	args := append([]string(nil), commonArgs...)
	return append(args,
		"-noautorotate",
		"-i", source,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

// audioDecoderArgs decodes the first audio stream to s16le PCM on stdout.
func audioDecoderArgs(source string, audio transcode.AudioInfo) []string {
	args := append([]string(nil), commonArgs...)
	return append(args,
		"-i", source,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)
}

// encoderArgs reads raw video on pipe:0 and PCM on pipe:3 (or pipe:0 when
// there is no video) and writes a QuickTime file to output.
func encoderArgs(cfg Config, info transcode.SourceInfo, output string) []string {
	args := append([]string(nil), commonArgs...)
	args = append(args, "-y")

	audioPipe := "pipe:0"
	if v := info.Video; v != nil {
		g := v.Geometry
		if rot := g.Transform.Rotation(); rot != 0 {
			args = append(args, "-display_rotation", strconv.Itoa(rot))
		}
		args = append(args,
			"-f", "rawvideo",
			"-pix_fmt", "rgba",
			"-video_size", strconv.Itoa(g.Width)+"x"+strconv.Itoa(g.Height),
			"-framerate", formatRate(v.FrameRate),
			"-i", "pipe:0",
		)
		audioPipe = "pipe:3"
	}
	if a := info.Audio; a != nil {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(a.SampleRate),
			"-ac", strconv.Itoa(a.Channels),
			"-i", audioPipe,
		)
	}

	input := 0
	if info.Video != nil {
		args = append(args,
			"-map", strconv.Itoa(input)+":v:0",
			"-c:v", "libx264",
			"-preset", cfg.Preset,
			"-crf", strconv.Itoa(cfg.CRF),
			"-pix_fmt", "yuv420p",
		)
		input++
	}
	if info.Audio != nil {
		args = append(args,
			"-map", strconv.Itoa(input)+":a:0",
			"-c:a", "aac",
			"-b:a", cfg.AudioBitrate,
		)
	}
	return append(args, "-movflags", "+faststart", "-f", "mov", output)
}

func formatRate(rate float64) string {
	if rate <= 0 {
		rate = defaultFrameRate
	}
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
