package filehandler

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ffprobeOutput is the subset of `ffprobe -print_format json` we read.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// ProbeDuration returns the video duration in seconds as reported by
// ffprobe. A zero result with a nil error means ffprobe had no duration.
func ProbeDuration(ctx context.Context, run CommandRunner, ffprobePath, videoPath string) (float64, error) {
	if run == nil {
		run = ExecRunner
	}
	output, err := run(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeDuration(output)
}

func parseProbeDuration(output []byte) (float64, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d > 0 {
		return d, nil
	}
	// Some containers only carry the duration on the video stream.
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > 0 {
			return d, nil
		}
	}
	log.Debug().Str("format", probe.Format.FormatName).Msg("ffprobe reported no duration")
	return 0, nil
}

// CheckFFprobeAvailable checks if ffprobe can be found. The duration
// pre-flight is skipped when it cannot.
func CheckFFprobeAvailable(ffprobePath string) error {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	path, err := exec.LookPath(ffprobePath)
	if err != nil {
		return fmt.Errorf("ffprobe not found (%s): duration pre-flight disabled", ffprobePath)
	}
	log.Debug().Str("path", path).Msg("ffprobe found")
	return nil
}
