// Package config loads the process-wide configuration once at startup.
//
// Values come from the environment, optionally seeded from a .env file in
// the working directory. The result is a plain value: components receive
// the fields they need through their constructors and never read the
// environment themselves.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Defaults.
const (
	DefaultPort              = 3001
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	DefaultModelName         = "gemini-2.5-pro"
	DefaultScratchDir        = "uploads"
	DefaultThumbnailDir      = "thumbnails"
	DefaultMaxUploadMB       = 100
	DefaultMaxConcurrentJobs = 4
	DefaultQueueWait         = 30 * time.Second
	DefaultModelTimeout      = 5 * time.Minute
	DefaultExtractTimeout    = 60 * time.Second
	DefaultFeedbackTimeout   = 5 * time.Second
	DefaultPresignExpiry     = 24 * time.Hour
)

// Environment variable names.
const (
	EnvPort              = "PORT"
	EnvLogLevel          = "IDGIMOT_LOG_LEVEL"
	EnvLogFormat         = "IDGIMOT_LOG_FORMAT"
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvGoogleAPIKey      = "GOOGLE_API_KEY"
	EnvSSMAPIKeyParam    = "SSM_API_KEY_PARAM"
	EnvModel             = "GEMINI_MODEL"
	EnvScratchDir        = "SCRATCH_DIR"
	EnvThumbnailDir      = "THUMBNAIL_DIR"
	EnvMaxUploadMB       = "MAX_UPLOAD_MB"
	EnvMaxConcurrentJobs = "MAX_CONCURRENT_JOBS"
	EnvQueueWait         = "QUEUE_WAIT"
	EnvModelTimeout      = "MODEL_TIMEOUT"
	EnvExtractTimeout    = "EXTRACT_TIMEOUT"
	EnvFeedbackTimeout   = "FEEDBACK_TIMEOUT"
	EnvFeedbackTable     = "FEEDBACK_TABLE_NAME"
	EnvFeedbackEventBus  = "FEEDBACK_EVENT_BUS"
	EnvFeedbackJournal   = "FEEDBACK_JOURNAL_PATH"
	EnvThumbnailBucket   = "THUMBNAIL_BUCKET_NAME"
	EnvPresignExpiry     = "THUMBNAIL_URL_EXPIRY"
	EnvAllowedOrigins    = "CORS_ALLOWED_ORIGINS"
	EnvFFmpegPath        = "FFMPEG_PATH"
	EnvFFprobePath       = "FFPROBE_PATH"
)

// Config is the immutable process configuration.
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	GeminiAPIKey   string
	SSMAPIKeyParam string
	ModelName      string

	ScratchDir     string
	ThumbnailDir   string
	MaxUploadBytes int64

	MaxConcurrentJobs int
	QueueWait         time.Duration
	ModelTimeout      time.Duration
	ExtractTimeout    time.Duration
	FeedbackTimeout   time.Duration

	FeedbackTable    string
	FeedbackEventBus string
	FeedbackJournal  string

	ThumbnailBucket string
	PresignExpiry   time.Duration

	AllowedOrigins []string

	FFmpegPath  string
	FFprobePath string
}

// NeedsAWS reports whether any AWS-backed collaborator is configured.
func (c Config) NeedsAWS() bool {
	return c.FeedbackTable != "" || c.FeedbackEventBus != "" || c.ThumbnailBucket != "" ||
		(c.GeminiAPIKey == "" && c.SSMAPIKeyParam != "")
}

// Load reads .env (when present) and the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file, continuing with process environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using lookup for every variable. Exposed so tests
// can feed a map instead of mutating the process environment.
func FromEnv(lookup func(string) string) (Config, error) {
	cfg := Config{
		Port:              DefaultPort,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		ModelName:         DefaultModelName,
		ScratchDir:        DefaultScratchDir,
		ThumbnailDir:      DefaultThumbnailDir,
		MaxUploadBytes:    DefaultMaxUploadMB * 1024 * 1024,
		MaxConcurrentJobs: DefaultMaxConcurrentJobs,
		QueueWait:         DefaultQueueWait,
		ModelTimeout:      DefaultModelTimeout,
		ExtractTimeout:    DefaultExtractTimeout,
		FeedbackTimeout:   DefaultFeedbackTimeout,
		PresignExpiry:     DefaultPresignExpiry,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
	}

	var err error
	if v := lookup(EnvPort); v != "" {
		port, perr := strconv.Atoi(v)
		if perr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvPort, perr)
		}
		if port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.Port = port
	}

	setString(&cfg.LogLevel, lookup(EnvLogLevel))
	setString(&cfg.LogFormat, lookup(EnvLogFormat))
	setString(&cfg.ModelName, lookup(EnvModel))
	setString(&cfg.ScratchDir, lookup(EnvScratchDir))
	setString(&cfg.ThumbnailDir, lookup(EnvThumbnailDir))
	setString(&cfg.FFmpegPath, lookup(EnvFFmpegPath))
	setString(&cfg.FFprobePath, lookup(EnvFFprobePath))

	cfg.GeminiAPIKey = lookup(EnvGeminiAPIKey)
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = lookup(EnvGoogleAPIKey)
	}
	cfg.SSMAPIKeyParam = lookup(EnvSSMAPIKeyParam)
	cfg.FeedbackTable = lookup(EnvFeedbackTable)
	cfg.FeedbackEventBus = lookup(EnvFeedbackEventBus)
	cfg.FeedbackJournal = lookup(EnvFeedbackJournal)
	cfg.ThumbnailBucket = lookup(EnvThumbnailBucket)

	if v := lookup(EnvMaxUploadMB); v != "" {
		mb, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || mb <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be a positive integer", EnvMaxUploadMB)
		}
		cfg.MaxUploadBytes = mb * 1024 * 1024
	}
	if v := lookup(EnvMaxConcurrentJobs); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid %s: must be a non-negative integer", EnvMaxConcurrentJobs)
		}
		cfg.MaxConcurrentJobs = n
	}

	if cfg.QueueWait, err = durationOr(lookup, EnvQueueWait, cfg.QueueWait); err != nil {
		return Config{}, err
	}
	if cfg.ModelTimeout, err = durationOr(lookup, EnvModelTimeout, cfg.ModelTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ExtractTimeout, err = durationOr(lookup, EnvExtractTimeout, cfg.ExtractTimeout); err != nil {
		return Config{}, err
	}
	if cfg.FeedbackTimeout, err = durationOr(lookup, EnvFeedbackTimeout, cfg.FeedbackTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PresignExpiry, err = durationOr(lookup, EnvPresignExpiry, cfg.PresignExpiry); err != nil {
		return Config{}, err
	}

	if v := lookup(EnvAllowedOrigins); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg, nil
}

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// WithSSMAPIKey returns a copy of cfg whose Gemini key is read from SSM
// Parameter Store when the environment did not provide one.
func WithSSMAPIKey(ctx context.Context, cfg Config, client ParameterGetter) (Config, error) {
	if cfg.GeminiAPIKey != "" || cfg.SSMAPIKeyParam == "" {
		return cfg, nil
	}
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.SSMAPIKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return cfg, fmt.Errorf("read Gemini API key from SSM %s: %w", cfg.SSMAPIKeyParam, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return cfg, fmt.Errorf("SSM parameter %s is empty", cfg.SSMAPIKeyParam)
	}
	cfg.GeminiAPIKey = aws.ToString(out.Parameter.Value)
	log.Debug().Str("param", cfg.SSMAPIKeyParam).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
	return cfg, nil
}

// Validate checks the fields every entry point needs.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key not found: set %s (or %s / %s)", EnvGeminiAPIKey, EnvGoogleAPIKey, EnvSSMAPIKeyParam)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func durationOr(lookup func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := lookup(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
