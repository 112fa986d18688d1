package filters

import (
	"encoding/binary"
	"math"

	"video-rewrite/internal/transcode"
)

// Volume scales s16le PCM by gain, saturating at the sample limits. A gain
// of 1, a negative gain or NaN leaves audio unchanged.
func Volume(gain float64) transcode.AudioTransform {
	if gain == 1 || gain < 0 || math.IsNaN(gain) {
		return transcode.IdentityAudio
	}
	return transcode.AudioFunc(func(s *transcode.Sample) *transcode.Sample {
		out := make([]byte, len(s.Data))
		for i := 0; i+1 < len(s.Data); i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(s.Data[i:])))
			scaled := math.Round(v * gain)
			scaled = min(max(scaled, math.MinInt16), math.MaxInt16)
			binary.LittleEndian.PutUint16(out[i:], uint16(int16(scaled)))
		}
		return transcode.NewAudioSample(out, s.PTS, s.Duration, nil)
	})
}
