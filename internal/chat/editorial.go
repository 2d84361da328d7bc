package chat

// editorial.go asks Gemini for editorial suggestions on a news video: a
// summary, three titles, two descriptions and candidate thumbnail moments.

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/benzco89/iDgimot/internal/assets"
	"github.com/benzco89/iDgimot/internal/ingest"
	"github.com/benzco89/iDgimot/internal/metrics"
	"github.com/benzco89/iDgimot/internal/suggestion"
)

// DefaultModelTimeout bounds a single model call when none is configured.
const DefaultModelTimeout = 5 * time.Minute

// GenerationRequest is one request for editorial suggestions.
type GenerationRequest struct {
	ReporterName string
	VideoDate    string
	Asset        *ingest.VideoAsset
}

// Generator sends a video and the editorial prompt to Gemini and parses
// the answer. It never deletes the asset; the caller owns cleanup.
type Generator struct {
	models    ContentModel
	modelName string
	timeout   time.Duration
}

// NewGenerator returns a Generator calling modelName through models.
func NewGenerator(models ContentModel, modelName string, timeout time.Duration) *Generator {
	if modelName == "" {
		modelName = DefaultModelName
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &Generator{models: models, modelName: modelName, timeout: timeout}
}

// ModelName reports the model the Generator calls.
func (g *Generator) ModelName() string { return g.modelName }

// Generate makes one synchronous model call with the prompt and the inline
// video, then hands the response text to suggestion.Parse. Failures are
// returned as *ModelInvocationError.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (suggestion.Suggestion, error) {
	if req.Asset == nil {
		return nil, &ModelInvocationError{Message: "no video to analyze", Kind: ErrKindUnknown}
	}

	videoBytes, err := os.ReadFile(req.Asset.Path)
	if err != nil {
		return nil, &ModelInvocationError{Message: "cannot read uploaded video", Err: err}
	}

	prompt := assets.RenderEditorialPrompt(req.ReporterName, req.VideoDate)
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: req.Asset.MIMEType, Data: videoBytes}},
		},
	}}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	log.Info().
		Str("model", g.modelName).
		Str("reporter", req.ReporterName).
		Str("videoDate", req.VideoDate).
		Int("videoBytes", len(videoBytes)).
		Int("promptLength", len(prompt)).
		Msg("Sending video to Gemini for editorial suggestions")

	callStart := time.Now()
	resp, err := g.models.GenerateContent(callCtx, g.modelName, contents, nil)
	duration := time.Since(callStart)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "generate").
		Duration("GeminiCallMs", duration).
		Bytes("VideoBytes", int64(len(videoBytes))).
		Property("model", g.modelName)

	if err != nil {
		mErr := classifyError(err, callCtx.Err())
		m.Dimension("Result", mErr.Kind.String()).Count("GeminiErrors").Flush()
		log.Error().Err(err).Str("kind", mErr.Kind.String()).Dur("duration", duration).Msg("Gemini call failed")
		return nil, mErr
	}
	if resp == nil || len(resp.Candidates) == 0 {
		m.Dimension("Result", ErrKindEmptyResponse.String()).Count("GeminiErrors").Flush()
		log.Warn().Dur("duration", duration).Msg("Received empty response from Gemini")
		return nil, &ModelInvocationError{Message: "received empty response from Gemini API", Kind: ErrKindEmptyResponse}
	}

	text := resp.Text()
	if resp.UsageMetadata != nil {
		m.Metric("InputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount).
			Metric("OutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Dimension("Result", "success").Flush()

	log.Debug().
		Int("responseLength", len(text)).
		Dur("duration", duration).
		Msg("Gemini response received")

	result := suggestion.Parse(text)
	if _, raw := result.(suggestion.Raw); raw {
		log.Warn().Int("responseLength", len(text)).Msg("Gemini response had no JSON object, returning raw text")
	}
	return result, nil
}

