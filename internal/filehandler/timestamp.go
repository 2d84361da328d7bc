package filehandler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimestampError reports a timestamp that cannot be turned into a seek offset.
type TimestampError struct {
	Input  string
	Reason string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %s", e.Input, e.Reason)
}

// ParseTimestamp converts a timestamp into seconds.
//
// A value with exactly one colon is read as MM:SS[.fraction]
// ("02:15.750" -> 135.75). Anything else must be a plain decimal number of
// seconds ("90" -> 90). Non-numeric, negative, NaN and infinite values are
// rejected so they never reach ffmpeg.
func ParseTimestamp(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &TimestampError{Input: text, Reason: "empty"}
	}

	if strings.Count(s, ":") == 1 {
		minPart, secPart, _ := strings.Cut(s, ":")
		minutes, err := parseNonNegative(minPart)
		if err != nil {
			return 0, &TimestampError{Input: text, Reason: "minutes " + err.Error()}
		}
		seconds, err := parseNonNegative(secPart)
		if err != nil {
			return 0, &TimestampError{Input: text, Reason: "seconds " + err.Error()}
		}
		if seconds >= 60 {
			return 0, &TimestampError{Input: text, Reason: "seconds must be below 60"}
		}
		return minutes*60 + seconds, nil
	}

	seconds, err := parseNonNegative(s)
	if err != nil {
		return 0, &TimestampError{Input: text, Reason: err.Error()}
	}
	return seconds, nil
}

// FormatTimestamp renders seconds as MM:SS.mmm, the format the model is
// asked to produce.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	minutes := totalMillis / 60000
	rest := totalMillis % 60000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, rest/1000, rest%1000)
}

func parseNonNegative(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	if v < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return v, nil
}
