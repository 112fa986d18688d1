// Package transcode implements the read → filter → write pipeline that
// re-encodes a media container while passing every video frame through a
// pluggable FrameFilter.
//
// A Pipeline drives one run at a time through the states
//
//	Idle → Prepared → Running → Succeeded | Failed
//
// Prepare opens a Demuxer for the source and a Muxer for the destination.
// Start spawns one goroutine per track kind present in the source (video,
// audio). Each goroutine pulls samples from its TrackReader only while its own
// muxer input reports IsReadyForMoreData, and parks on that input's WhenReady
// channel otherwise, so a stalled track never blocks the other one.
//
// When the last track goroutine marks its input finished, it performs the
// completion step exactly once: a read error wins over a write error, a
// cancelled run is discarded, and only a clean run reaches Muxer.Finalize,
// which is the single commit point for the destination file. Every failure
// path calls Muxer.Abort so no half-written container is left behind.
//
// Progress and the terminal outcome are delivered as Events on one ordered
// channel. Progress is monotonically non-decreasing, no progress follows the
// terminal event, and the channel is closed right after the terminal event.
//
// Backends are plugged in through the Opener and Creator interfaces; the
// ffmpeg package provides the production implementation.
package transcode
