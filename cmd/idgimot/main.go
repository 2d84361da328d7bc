// Command idgimot runs the newsroom editorial assistant: an HTTP service
// that turns an uploaded news video into Hebrew titles, descriptions and
// thumbnail suggestions, plus the maintenance commands around it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/benzco89/iDgimot/internal/api"
	"github.com/benzco89/iDgimot/internal/boot"
	"github.com/benzco89/iDgimot/internal/chat"
	"github.com/benzco89/iDgimot/internal/config"
	"github.com/benzco89/iDgimot/internal/logging"
)

// shutdownGrace bounds how long in-flight requests get after a signal.
const shutdownGrace = 30 * time.Second

// CLI flags
var (
	portFlag      int
	modelFlag     string
	checkKeyFlag  bool
	reconcileFlag int
)

var rootCmd = &cobra.Command{
	Use:   "idgimot",
	Short: "Editorial assistant for newsroom video",
	Long: `idgimot analyzes a news video with Gemini and suggests a summary,
titles, descriptions and thumbnail moments in Hebrew, extracts still frames
at chosen timestamps, and records editor feedback on the suggestions.

Configuration comes from the environment (and an optional .env file).

Examples:
  idgimot serve
  idgimot serve --port 8080 --model gemini-2.5-flash --check-key
  idgimot reconcile --limit 500
  idgimot version`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay journaled feedback that never reached the remote store",
	RunE:  runReconcile,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "idgimot %s (built %s)\n", commitHash, buildTime)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (overrides GEMINI_MODEL, default "+chat.DefaultModelName+")")
	serveCmd.Flags().BoolVar(&checkKeyFlag, "check-key", false, "Validate the Gemini API key before serving")
	reconcileCmd.Flags().IntVar(&reconcileFlag, "limit", 100, "Maximum records to replay")

	rootCmd.AddCommand(serveCmd, reconcileCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies flag overrides and sets up
// logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("model") && modelFlag != "" {
		cfg.ModelName = modelFlag
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := boot.Build(ctx, cfg, boot.BuildInfo{Name: "idgimot-server", CommitHash: commitHash, BuildTime: buildTime})
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	defer app.Close()

	if checkKeyFlag {
		if err := chat.ValidateAPIKey(ctx, app.Models, app.Config.ModelName); err != nil {
			return err
		}
	}

	server := api.NewServer(app.Config.Port, app.Deps)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown incomplete")
		return err
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := boot.BuildReconciler(ctx, cfg)
	if err != nil {
		if errors.Is(err, boot.ErrNoReconcileTarget) {
			log.Error().Msg("Set " + config.EnvFeedbackJournal + " and " + config.EnvFeedbackTable + " to reconcile")
		}
		return err
	}
	defer app.Close()

	res, err := app.Recorder.Reconcile(ctx, reconcileFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, synced %d, failed %d\n", res.Attempted, res.Synced, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d feedback records still pending", res.Failed)
	}
	return nil
}
