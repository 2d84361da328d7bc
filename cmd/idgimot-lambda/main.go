// Command idgimot-lambda serves the same HTTP API behind API Gateway (HTTP
// API, payload v2) on AWS Lambda.
//
// The Lambda filesystem is read-only outside /tmp, so SCRATCH_DIR,
// THUMBNAIL_DIR and FEEDBACK_JOURNAL_PATH should point there. Thumbnails
// only outlive the invocation when THUMBNAIL_BUCKET_NAME is set.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/api"
	"github.com/benzco89/iDgimot/internal/boot"
	"github.com/benzco89/iDgimot/internal/config"
	"github.com/benzco89/iDgimot/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(config.DefaultLogLevel, logging.FormatJSON)
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	// CloudWatch wants one JSON object per line.
	logging.Init(cfg.LogLevel, logging.FormatJSON)

	app, err := boot.Build(context.Background(), cfg, boot.BuildInfo{
		Name:       "idgimot-lambda",
		CommitHash: commitHash,
		BuildTime:  buildTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Cold start failed")
	}

	adapter = httpadapter.NewV2(api.NewRouter(app.Deps))
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
