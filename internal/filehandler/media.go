// Package filehandler owns everything that touches media files on disk:
// the supported video container table, human-readable sizes, timestamp
// parsing, and ffmpeg/ffprobe based frame extraction.
package filehandler

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SupportedVideoExtensions maps the video containers we expect from the
// newsroom to their MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mpeg": "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// safeExtRegex accepts short alphanumeric extensions only.
var safeExtRegex = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// IsVideoMIME reports whether a declared content type is a video type.
func IsVideoMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/")
}

// ExtensionFor picks the extension for a stored upload: the original
// filename's extension when it is safe, otherwise one derived from the
// MIME type, otherwise ".bin".
func ExtensionFor(originalName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if safeExtRegex.MatchString(ext) {
		return ext
	}
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	for e, m := range SupportedVideoExtensions {
		if m == base {
			return e
		}
	}
	return ".bin"
}

// FormatFileSize renders a byte count the way the UI shows it: "0 Bytes",
// "512 Bytes", "1.5 KB", "12.34 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	const k = 1024.0
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(k, float64(i))
	// Two decimals, trailing zeros trimmed.
	return fmt.Sprintf("%s %s", strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64), sizes[i])
}
