package ffmpeg

// Config controls the ffmpeg backend.
type Config struct {
	FFmpegPath  string
	FFprobePath string

	// Preset and CRF are passed to libx264. A CRF outside 1..51 selects the default.
	Preset string
	CRF    int
	// AudioBitrate is passed to the AAC encoder, e.g. "128k".
	AudioBitrate string

	// QueueDepth is the number of samples each muxer input buffers before it
	// reports not ready.
	QueueDepth int
	// PoolSize is the capacity of the video input's frame pool.
	PoolSize int
	// AudioChunkFrames is the number of PCM frames per audio sample.
	AudioChunkFrames int

	// Verify inspects the encoded file before committing it.
	Verify bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Preset:           "medium",
		CRF:              20,
		AudioBitrate:     "128k",
		QueueDepth:       8,
		PoolSize:         4,
		AudioChunkFrames: 1024,
		Verify:           true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FFmpegPath == "" {
		c.FFmpegPath = d.FFmpegPath
	}
	if c.FFprobePath == "" {
		c.FFprobePath = d.FFprobePath
	}
	if c.Preset == "" {
		c.Preset = d.Preset
	}
	if c.CRF <= 0 || c.CRF > 51 {
		c.CRF = d.CRF
	}
	if c.AudioBitrate == "" {
		c.AudioBitrate = d.AudioBitrate
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.AudioChunkFrames <= 0 {
		c.AudioChunkFrames = d.AudioChunkFrames
	}
	return c
}
