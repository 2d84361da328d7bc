package filehandler

// frame.go extracts a single still frame from a video at a given offset.
// The JPEG is written to a ".partial" sibling first and only renamed to its
// final name once it decodes, so a half-written thumbnail is never served.

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/metrics"
)

// Frame extraction constants.
const (
	// FrameJPEGQuality is the ffmpeg -q:v value for extracted thumbnails.
	// 2 is near-lossless JPEG.
	FrameJPEGQuality = 2

	// FrameScaleFilter caps thumbnails at 1920x1080 while keeping the aspect ratio.
	FrameScaleFilter = "scale=1920:1080:force_original_aspect_ratio=decrease"

	// DefaultExtractTimeout bounds a single ffmpeg run when the caller sets none.
	DefaultExtractTimeout = 60 * time.Second

	partialSuffix = ".partial"

	// stderrLimit caps how much ffmpeg output is carried into an error.
	stderrLimit = 500
)

// ExtractionError reports a failed frame extraction. Timeout is set when the
// per-call deadline expired before ffmpeg finished.
type ExtractionError struct {
	Message string
	Timeout bool
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame extraction failed: %s: %v", e.Message, e.Err)
	}
	return "frame extraction failed: " + e.Message
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// CommandRunner runs an external command and returns its combined output.
// Tests swap it out to avoid depending on a real ffmpeg binary.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with exec.CommandContext so a cancelled context
// kills the child process.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FrameExtractor turns a video plus a timestamp into a JPEG still.
type FrameExtractor struct {
	FFmpegPath  string
	FFprobePath string // empty disables the duration pre-flight
	Timeout     time.Duration
	Run         CommandRunner
}

// NewFrameExtractor returns an extractor using the given binaries.
func NewFrameExtractor(ffmpegPath, ffprobePath string, timeout time.Duration) *FrameExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &FrameExtractor{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Timeout:     timeout,
		Run:         ExecRunner,
	}
}

// NewOutputPath returns a fresh thumbnail path inside dir. The uuid suffix
// keeps concurrent extractions in the same millisecond apart.
func NewOutputPath(dir string) string {
	name := fmt.Sprintf("thumbnail-%d-%s.jpg", time.Now().UnixMilli(), uuid.NewString())
	return filepath.Join(dir, name)
}

// ExtractFrame seeks to timestampText in videoPath and writes one frame to
// outputPath as JPEG. It returns outputPath on success. The output directory
// is created if needed; the input video is never touched.
func (fe *FrameExtractor) ExtractFrame(ctx context.Context, videoPath, timestampText, outputPath string) (string, error) {
	offset, err := ParseTimestamp(timestampText)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, fe.timeout())
	defer cancel()

	if fe.FFprobePath != "" {
		duration, perr := ProbeDuration(ctx, fe.runner(), fe.FFprobePath, videoPath)
		switch {
		case perr != nil:
			// The pre-flight is advisory; ffmpeg gets the final word.
			log.Warn().Err(perr).Str("video", filepath.Base(videoPath)).Msg("ffprobe pre-flight failed, extracting anyway")
		case duration > 0 && offset > duration:
			return "", &ExtractionError{
				Message: fmt.Sprintf("timestamp %s is beyond the video duration (%.3fs)", FormatTimestamp(offset), duration),
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", &ExtractionError{Message: "cannot create thumbnail directory", Err: err}
	}

	tmpPath := partialPath(outputPath)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", offset),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", fmt.Sprintf("%d", FrameJPEGQuality),
		"-vf", FrameScaleFilter,
		"-f", "image2",
		"-y", tmpPath,
	}

	log.Debug().
		Str("video", filepath.Base(videoPath)).
		Float64("offset", offset).
		Str("output", filepath.Base(outputPath)).
		Msg("Extracting frame with ffmpeg")

	start := time.Now()
	output, runErr := fe.runner()(ctx, fe.FFmpegPath, args...)
	elapsed := time.Since(start)

	metrics.New(metrics.Namespace).
		Dimension("Operation", "extractFrame").
		Duration("FFmpegMs", elapsed).
		Flush()

	if runErr != nil {
		os.Remove(tmpPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &ExtractionError{Message: fmt.Sprintf("ffmpeg timed out after %v", fe.timeout()), Timeout: true, Err: runErr}
		}
		if ctx.Err() != nil {
			return "", &ExtractionError{Message: "extraction cancelled", Err: ctx.Err()}
		}
		return "", &ExtractionError{Message: "ffmpeg failed: " + truncate(string(output), stderrLimit), Err: runErr}
	}

	if err := verifyJPEG(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", &ExtractionError{Message: "ffmpeg produced no usable image", Err: err}
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", &ExtractionError{Message: "cannot move thumbnail into place", Err: err}
	}

	log.Info().
		Str("video", filepath.Base(videoPath)).
		Str("timestamp", timestampText).
		Str("thumbnail", filepath.Base(outputPath)).
		Dur("duration", elapsed).
		Msg("Frame extracted")
	return outputPath, nil
}

func (fe *FrameExtractor) timeout() time.Duration {
	if fe.Timeout <= 0 {
		return DefaultExtractTimeout
	}
	return fe.Timeout
}

func (fe *FrameExtractor) runner() CommandRunner {
	if fe.Run == nil {
		return ExecRunner
	}
	return fe.Run
}

// partialPath keeps the .jpg extension last so image2 still picks JPEG.
func partialPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + partialSuffix + ext
}

func verifyJPEG(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("empty output file")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := jpeg.DecodeConfig(f); err != nil {
		return fmt.Errorf("not a JPEG: %w", err)
	}
	return nil
}

// CheckFFmpegAvailable checks that ffmpeg can be found. Call it at startup so
// a missing binary shows up in the boot log rather than on the first request.
func CheckFFmpegAvailable(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found (%s): thumbnail extraction will fail. Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", ffmpegPath)
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
