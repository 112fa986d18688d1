// Package ffmpeg implements transcode.Opener and transcode.Creator on top of
// the ffprobe and ffmpeg binaries.
//
// Opening a source runs ffprobe once, then starts one decoder process per
// track: video is decoded to packed RGBA frames, audio to interleaved s16le
// PCM, both read from the process's stdout. Orientation is not applied while
// decoding; the source rotation is carried through SourceInfo and written
// back as display-rotation metadata by the encoder.
//
// Creating a destination starts a single encoder process that reads raw video
// on stdin and PCM on file descriptor 3, and writes H.264/AAC into a hidden
// temporary file next to the destination. Each track input owns a bounded
// queue drained by its own goroutine; the input is ready while the queue has
// room. Finalize waits for the encoder, optionally verifies the encoded
// sample count, and renames the temporary file over the destination.
package ffmpeg
