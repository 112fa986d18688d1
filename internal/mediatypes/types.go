package mediatypes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FileType represents the kind of a media file.
type FileType string

const (
	// FileTypeVideo is a file expected to carry a picture track.
	FileTypeVideo FileType = "video"
	// FileTypeAudio is an audio-only file.
	FileTypeAudio FileType = "audio"
	// FileTypeOther is an unknown extension.
	FileTypeOther FileType = "other"
)

// ErrUnsupportedOutput is returned by CheckOutput.
var ErrUnsupportedOutput = errors.New("unsupported output extension")

// VideoExtensions maps video extensions ffmpeg commonly demuxes.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".qt":   true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".mts":  true,
}

// AudioExtensions maps audio-only extensions.
var AudioExtensions = map[string]bool{
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// OutputExtensions are the extensions a QuickTime output may be written under.
var OutputExtensions = map[string]bool{
	".mov": true,
	".qt":  true,
	".mp4": true,
	".m4v": true,
}

// MimeTypes maps extensions to MIME types.
var MimeTypes = map[string]string{
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".mts":  "video/mp2t",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
}

// GetFileType returns the FileType for a path or extension. Matching is
// case-insensitive.
func GetFileType(name string) FileType {
	ext := extension(name)
	switch {
	case VideoExtensions[ext]:
		return FileTypeVideo
	case AudioExtensions[ext]:
		return FileTypeAudio
	default:
		return FileTypeOther
	}
}

// GetMimeType returns the MIME type for a path or extension, or
// application/octet-stream if unknown.
func GetMimeType(name string) string {
	if mt, ok := MimeTypes[extension(name)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// CheckOutput reports whether name can hold a QuickTime output.
func CheckOutput(name string) error {
	ext := extension(name)
	if OutputExtensions[ext] {
		return nil
	}
	if ext == "" {
		return fmt.Errorf("%w: %q has no extension", ErrUnsupportedOutput, filepath.Base(name))
	}
	return fmt.Errorf("%w: %s (use .mov, .qt, .mp4 or .m4v)", ErrUnsupportedOutput, ext)
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
