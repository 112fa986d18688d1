// Package mediatypes classifies files by extension for the transcoder.
//
// This package has no dependencies beyond the standard library so that jobs,
// handlers and the CLI can share it without import cycles.
//
// # File Types
//
//	mediatypes.FileTypeVideo // inputs with a picture track (mov, mp4, mkv, ...)
//	mediatypes.FileTypeAudio // audio-only inputs (m4a, wav, mp3, ...)
//	mediatypes.FileTypeOther // anything else
//
// Sources are not rejected by extension; ffprobe decides what can be read.
// GetFileType is used for logging and for labelling.
//
// # Outputs
//
// Every output is written as a QuickTime movie with MP4-compatible codecs, so
// destinations must carry one of OutputExtensions:
//
//	if err := mediatypes.CheckOutput("clip.mov"); err != nil {
//	    // reject
//	}
//
// GetMimeType gives the Content-Type used when serving an output.
package mediatypes
