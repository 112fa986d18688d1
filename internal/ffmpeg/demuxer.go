package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/transcode"
)

// Open probes source and starts a decoder per track.
func (b *Backend) Open(ctx context.Context, source string) (transcode.Demuxer, error) {
	if _, err := filesystem.StatWithRetry(source, filesystem.DefaultRetryConfig()); err != nil {
		return nil, transcode.NewError(transcode.ErrUnreadableSource, "open", source, err)
	}
	probe, err := b.Probe(ctx, source)
	if err != nil {
		return nil, transcode.NewError(transcode.ErrUnreadableSource, "probe", source, err)
	}
	info := probe.SourceInfo()
	if len(info.Tracks()) == 0 {
		return nil, transcode.NewError(transcode.ErrUnreadableSource, "probe", source,
			errors.New("no decodable audio or video stream"))
	}

	d := &demuxer{source: source, info: info}
	if info.Video != nil {
		d.video, err = b.startVideoReader(d, *info.Video)
		if err != nil {
			d.Close()
			return nil, transcode.NewError(transcode.ErrUnreadableSource, "decode", source, err)
		}
	}
	if info.Audio != nil {
		d.audio, err = b.startAudioReader(d, *info.Audio)
		if err != nil {
			d.Close()
			return nil, transcode.NewError(transcode.ErrUnreadableSource, "decode", source, err)
		}
	}
	logging.Debug("Opened %s: %s, duration %v, video=%v audio=%v",
		source, probe.FormatName, info.Duration, info.Video != nil, info.Audio != nil)
	return d, nil
}

type demuxer struct {
	source string
	info   transcode.SourceInfo
	video  *videoReader
	audio  *audioReader

	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

func (d *demuxer) Info() transcode.SourceInfo { return d.info }

func (d *demuxer) Reader(kind transcode.TrackKind) (transcode.TrackReader, bool) {
	switch {
	case kind == transcode.TrackVideo && d.video != nil:
		return d.video, true
	case kind == transcode.TrackAudio && d.audio != nil:
		return d.audio, true
	}
	return nil, false
}

func (d *demuxer) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *demuxer) fail(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

func (d *demuxer) Close() error {
	d.closeOnce.Do(func() {
		if d.video != nil {
			d.video.stream.close()
		}
		if d.audio != nil {
			d.audio.stream.close()
		}
	})
	return nil
}

// decodeStream is a decoder process and the read end of its stdout.
type decodeStream struct {
	proc *process
	pipe *os.File
	r    *bufio.Reader
	eof  bool
}

func (b *Backend) startDecoder(name string, args []string) (*decodeStream, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	proc, err := b.start(processSpec{name: name, args: args, stdout: pw})
	pw.Close()
	if err != nil {
		pr.Close()
		return nil, err
	}
	return &decodeStream{proc: proc, pipe: pr, r: bufio.NewReaderSize(pr, 1<<20)}, nil
}

// readFull fills buf. It returns io.EOF at a clean end of stream, and the
// decoder's exit error or io.ErrUnexpectedEOF on a truncated read.
func (s *decodeStream) readFull(buf []byte) (int, error) {
	n, err := io.ReadFull(s.r, buf)
	if err == nil {
		return n, nil
	}
	s.eof = true
	if waitErr := s.proc.wait(context.Background()); waitErr != nil {
		return n, waitErr
	}
	return n, err
}

func (s *decodeStream) close() {
	s.proc.kill()
	s.pipe.Close()
}

type videoReader struct {
	d        *demuxer
	stream   *decodeStream
	width    int
	height   int
	frameDur time.Duration
	free     chan *image.RGBA
	index    int64
}

func (b *Backend) startVideoReader(d *demuxer, v transcode.VideoInfo) (*videoReader, error) {
	stream, err := b.startDecoder("video decoder", videoDecoderArgs(d.source))
	if err != nil {
		return nil, err
	}
	return &videoReader{
		d:        d,
		stream:   stream,
		width:    v.Geometry.Width,
		height:   v.Geometry.Height,
		frameDur: v.FrameDuration(),
		free:     make(chan *image.RGBA, 4),
	}, nil
}

func (r *videoReader) frame() *image.RGBA {
	select {
	case f := <-r.free:
		return f
	default:
		return image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	}
}

func (r *videoReader) recycle(f *image.RGBA) {
	select {
	case r.free <- f:
	default:
	}
}

func (r *videoReader) NextSample() (*transcode.Sample, bool) {
	if r.stream.eof {
		return nil, false
	}
	f := r.frame()
	if _, err := r.stream.readFull(f.Pix); err != nil {
		if !errors.Is(err, io.EOF) {
			r.d.fail(fmt.Errorf("video frame %d: %w", r.index, err))
		}
		return nil, false
	}
	pts := time.Duration(r.index) * r.frameDur
	r.index++
	return transcode.NewVideoSample(f, pts, r.frameDur, func() { r.recycle(f) }), true
}

type audioReader struct {
	d          *demuxer
	stream     *decodeStream
	sampleRate int
	frameSize  int
	chunk      int
	consumed   int64
}

func (b *Backend) startAudioReader(d *demuxer, a transcode.AudioInfo) (*audioReader, error) {
	stream, err := b.startDecoder("audio decoder", audioDecoderArgs(d.source, a))
	if err != nil {
		return nil, err
	}
	return &audioReader{
		d:          d,
		stream:     stream,
		sampleRate: a.SampleRate,
		frameSize:  a.FrameSize(),
		chunk:      b.config.AudioChunkFrames * a.FrameSize(),
	}, nil
}

func (r *audioReader) NextSample() (*transcode.Sample, bool) {
	if r.stream.eof {
		return nil, false
	}
	buf := make([]byte, r.chunk)
	n, err := r.stream.readFull(buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF) && n > 0 && n%r.frameSize == 0:
		// The last chunk of a stream is usually short.
		buf = buf[:n]
	case errors.Is(err, io.EOF):
		return nil, false
	default:
		r.d.fail(fmt.Errorf("audio at %d frames: %w", r.consumed, err))
		return nil, false
	}

	frames := int64(len(buf) / r.frameSize)
	pts := r.duration(r.consumed)
	r.consumed += frames
	return transcode.NewAudioSample(buf, pts, r.duration(r.consumed)-pts, nil), true
}

func (r *audioReader) duration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(r.sampleRate)
}
