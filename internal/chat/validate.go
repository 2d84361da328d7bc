package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/benzco89/iDgimot/internal/metrics"
)

// ValidateAPIKey makes a minimal text-only call to confirm the key works
// before the server starts taking uploads. It returns nil on success or a
// *ModelInvocationError whose Kind says what went wrong.
func ValidateAPIKey(ctx context.Context, models ContentModel, modelName string) error {
	if modelName == "" {
		modelName = DefaultModelName
	}
	log.Debug().Str("model", modelName).Msg("Validating Gemini API key")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := models.GenerateContent(ctx, modelName, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	var failure *ModelInvocationError
	switch {
	case err != nil:
		failure = classifyError(err, ctx.Err())
		result = failure.Kind.String()
	case resp == nil || len(resp.Candidates) == 0:
		failure = &ModelInvocationError{Message: "API returned empty response", Kind: ErrKindEmptyResponse}
		result = failure.Kind.String()
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	if failure != nil {
		log.Error().Err(failure).Str("result", result).Dur("duration", elapsed).Msg("Gemini API key validation failed")
		return failure
	}
	log.Info().Dur("duration", elapsed).Msg("Gemini API key validated")
	return nil
}
