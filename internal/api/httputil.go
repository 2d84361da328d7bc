package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/chat"
	"github.com/benzco89/iDgimot/internal/feedback"
	"github.com/benzco89/iDgimot/internal/filehandler"
	"github.com/benzco89/iDgimot/internal/ingest"
	"github.com/benzco89/iDgimot/internal/limiter"
)

// Client-facing error prefixes.
const (
	msgServerError     = "שגיאה בשרת: "
	msgExtractionError = "שגיאה בחילוץ ת'מבנייל: "
	msgBusy            = "השרת עמוס כרגע, נסו שוב בעוד מספר דקות"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

// httpError sends {"error": clientMsg}. Optional internalDetails are logged
// server-side and never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// writeError maps a pipeline error to its HTTP status and client message.
func writeError(w http.ResponseWriter, err error) {
	var (
		ingestErr   *ingest.ValidationError
		feedbackErr *feedback.ValidationError
		tsErr       *filehandler.TimestampError
		modelErr    *chat.ModelInvocationError
		extractErr  *filehandler.ExtractionError
	)

	switch {
	case errors.As(err, &ingestErr):
		status := http.StatusBadRequest
		if ingestErr.TooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		httpError(w, status, ingestErr.Message)
	case errors.As(err, &feedbackErr):
		httpError(w, http.StatusBadRequest, feedbackErr.Error())
	case errors.As(err, &tsErr):
		httpError(w, http.StatusBadRequest, tsErr.Error())
	case errors.Is(err, limiter.ErrOverloaded):
		httpError(w, http.StatusServiceUnavailable, msgBusy, err.Error())
	case errors.As(err, &modelErr):
		status := http.StatusInternalServerError
		if modelErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		httpError(w, status, msgServerError+modelErr.Message, err.Error(), modelErr.Kind.String())
	case errors.As(err, &extractErr):
		status := http.StatusInternalServerError
		if extractErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		httpError(w, status, msgExtractionError+extractErr.Message, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, msgServerError+"internal error", err.Error())
	}
}
