// Package boot wires configuration into running components. Both the HTTP
// server and the Lambda entry point compose the same App, so they share one
// set of collaborators and one startup log line.
package boot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/api"
	"github.com/benzco89/iDgimot/internal/chat"
	"github.com/benzco89/iDgimot/internal/config"
	"github.com/benzco89/iDgimot/internal/feedback"
	"github.com/benzco89/iDgimot/internal/filehandler"
	"github.com/benzco89/iDgimot/internal/ingest"
	"github.com/benzco89/iDgimot/internal/limiter"
	"github.com/benzco89/iDgimot/internal/logging"
	"github.com/benzco89/iDgimot/internal/s3util"
	"github.com/benzco89/iDgimot/internal/store"
)

// BuildInfo identifies the binary in the startup log.
type BuildInfo struct {
	Name       string
	CommitHash string
	BuildTime  string
}

// App is the assembled service.
type App struct {
	Config   config.Config
	Deps     api.Deps
	Recorder *feedback.Recorder
	Models   chat.ContentModel

	journal *store.Journal
}

// Close releases resources held by the App.
func (a *App) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

// LoadAWS loads the default AWS config when cfg references any AWS
// resource, and resolves the Gemini key from SSM if needed. The returned
// aws.Config is the zero value when AWS is not in play.
func LoadAWS(ctx context.Context, cfg config.Config) (config.Config, aws.Config, error) {
	if !cfg.NeedsAWS() {
		return cfg, aws.Config{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", awsCfg.Region).Msg("AWS config loaded")

	cfg, err = config.WithSSMAPIKey(ctx, cfg, ssm.NewFromConfig(awsCfg))
	if err != nil {
		return cfg, awsCfg, err
	}
	return cfg, awsCfg, nil
}

// NewFeedbackRecorder builds the recorder from whichever of the DynamoDB
// table, SQLite journal and event bus are configured. The returned journal
// is nil when none is configured; the caller closes it.
func NewFeedbackRecorder(cfg config.Config, awsCfg aws.Config) (*feedback.Recorder, *store.Journal, error) {
	var remote store.FeedbackStore
	if cfg.FeedbackTable != "" {
		remote = store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.FeedbackTable)
	}

	opts := []feedback.Option{feedback.WithRemoteTimeout(cfg.FeedbackTimeout)}

	var journal *store.Journal
	if cfg.FeedbackJournal != "" {
		j, err := store.OpenJournal(cfg.FeedbackJournal)
		if err != nil {
			return nil, nil, fmt.Errorf("open feedback journal: %w", err)
		}
		journal = j
		opts = append(opts, feedback.WithJournal(j))
	}

	if cfg.FeedbackEventBus != "" {
		opts = append(opts, feedback.WithPublisher(
			feedback.NewEventBridgePublisher(eventbridge.NewFromConfig(awsCfg), cfg.FeedbackEventBus)))
	}

	return feedback.NewRecorder(remote, opts...), journal, nil
}

// Build assembles every component the HTTP surface needs.
func Build(ctx context.Context, cfg config.Config, info BuildInfo) (*App, error) {
	start := time.Now()

	cfg, awsCfg, err := LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	generator := chat.NewGenerator(client.Models, cfg.ModelName, cfg.ModelTimeout)

	if err := filehandler.CheckFFmpegAvailable(cfg.FFmpegPath); err != nil {
		log.Warn().Err(err).Msg("FFmpeg check failed")
	}
	ffprobe := cfg.FFprobePath
	if err := filehandler.CheckFFprobeAvailable(ffprobe); err != nil {
		log.Warn().Err(err).Msg("FFprobe check failed")
		ffprobe = ""
	}

	recorder, journal, err := NewFeedbackRecorder(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	deps := api.Deps{
		Ingestor:       ingest.New(cfg.ScratchDir, cfg.MaxUploadBytes),
		Generator:      generator,
		Extractor:      filehandler.NewFrameExtractor(cfg.FFmpegPath, ffprobe, cfg.ExtractTimeout),
		Feedback:       recorder,
		Limiter:        limiter.New(cfg.MaxConcurrentJobs, cfg.QueueWait),
		ThumbnailDir:   cfg.ThumbnailDir,
		AllowedOrigins: cfg.AllowedOrigins,
		StartTime:      start,
	}
	if cfg.ThumbnailBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg)
		deps.Mirror = s3util.NewThumbnailMirror(s3Client, s3.NewPresignClient(s3Client), cfg.ThumbnailBucket, cfg.PresignExpiry)
	}

	report := logging.NewStartupReport(info.Name).
		Resource(logging.KindDynamoTable, "feedback", cfg.FeedbackTable).
		Resource(logging.KindEventBus, "feedback", cfg.FeedbackEventBus).
		Resource(logging.KindS3Bucket, "thumbnails", cfg.ThumbnailBucket).
		Resource(logging.KindSSMParam, "geminiApiKey", cfg.SSMAPIKeyParam).
		Resource(logging.KindDirectory, "scratch", cfg.ScratchDir).
		Resource(logging.KindDirectory, "thumbnails", cfg.ThumbnailDir).
		Resource(logging.KindDirectory, "journal", cfg.FeedbackJournal).
		Feature("feedbackRemote", cfg.FeedbackTable != "").
		Feature("feedbackJournal", journal != nil).
		Feature("thumbnailMirror", deps.Mirror != nil).
		Feature("ffprobePreflight", ffprobe != "").
		Setting("model", cfg.ModelName).
		Setting("maxUpload", filehandler.FormatFileSize(deps.Ingestor.MaxSize)).
		Setting("maxConcurrentJobs", fmt.Sprint(cfg.MaxConcurrentJobs)).
		Setting("modelTimeout", cfg.ModelTimeout.String()).
		Setting("extractTimeout", cfg.ExtractTimeout.String())
	report.CommitHash = info.CommitHash
	report.BuildTime = info.BuildTime
	report.Took = time.Since(start)
	report.Log()

	return &App{Config: cfg, Deps: deps, Recorder: recorder, Models: client.Models, journal: journal}, nil
}

// ErrNoReconcileTarget is returned when reconcile has nothing to replay
// into or out of.
var ErrNoReconcileTarget = errors.New("reconcile needs both " + config.EnvFeedbackJournal + " and " + config.EnvFeedbackTable)

// BuildReconciler assembles only the feedback path, for the reconcile
// command. No Gemini key is needed.
func BuildReconciler(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.FeedbackJournal == "" || cfg.FeedbackTable == "" {
		return nil, ErrNoReconcileTarget
	}
	cfg.SSMAPIKeyParam = ""
	cfg, awsCfg, err := LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	recorder, journal, err := NewFeedbackRecorder(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Recorder: recorder, journal: journal}, nil
}
