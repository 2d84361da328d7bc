// Package api is the HTTP surface of the editorial assistant.
//
// Endpoints:
//
//	POST /api/generate           video + reporter details -> editorial suggestions
//	POST /api/extract-thumbnail  video + timestamp -> JPEG still
//	POST /api/feedback           approve/reject verdict on a suggestion
//	GET  /api/health             liveness and active model
//	GET  /api/thumbnails/{name}  extracted stills
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/chat"
	"github.com/benzco89/iDgimot/internal/feedback"
	"github.com/benzco89/iDgimot/internal/ingest"
	"github.com/benzco89/iDgimot/internal/limiter"
	"github.com/benzco89/iDgimot/internal/suggestion"
)

// Generator produces editorial suggestions for an accepted video.
type Generator interface {
	Generate(ctx context.Context, req chat.GenerationRequest) (suggestion.Suggestion, error)
	ModelName() string
}

// FrameExtractor writes one still from a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath, timestampText, outputPath string) (string, error)
}

// FeedbackRecorder accepts verdicts on suggestions.
type FeedbackRecorder interface {
	Record(ctx context.Context, in feedback.Input) (feedback.Acknowledgment, error)
}

// ThumbnailPublisher makes an extracted still reachable at a public URL.
type ThumbnailPublisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Deps wires the handlers to their collaborators. Mirror and Limiter are
// optional.
type Deps struct {
	Ingestor       *ingest.Ingestor
	Generator      Generator
	Extractor      FrameExtractor
	Feedback       FeedbackRecorder
	Mirror         ThumbnailPublisher
	Limiter        *limiter.Limiter
	ThumbnailDir   string
	AllowedOrigins []string
	StartTime      time.Time
}

// Server owns the HTTP listener.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a server listening on port.
func NewServer(port int, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 15 * time.Second,
			// Uploads and model calls take minutes; per-call timeouts bound them.
			ReadTimeout:  0,
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
