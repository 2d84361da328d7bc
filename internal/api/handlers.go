package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/chat"
	"github.com/benzco89/iDgimot/internal/feedback"
	"github.com/benzco89/iDgimot/internal/filehandler"
	"github.com/benzco89/iDgimot/internal/ingest"
	"github.com/benzco89/iDgimot/internal/suggestion"
)

const (
	// multipartMemory is how much of a form is held in memory before parts
	// spill to temp files.
	multipartMemory = 8 << 20
	// formOverhead leaves room for boundaries and text fields on top of the
	// video size cap.
	formOverhead    = 1 << 20
	maxFeedbackBody = 1 << 20

	healthStatus = "השרת פועל תקין"

	msgMissingGenerateFields  = "חסרים שדות נדרשים: video file, reporterName, videoDate"
	msgMissingThumbnailFields = "חסרים שדות נדרשים: video file, timestamp"
)

// thumbnailNameRegex matches names produced by filehandler.NewOutputPath.
var thumbnailNameRegex = regexp.MustCompile(`^thumbnail-\d+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.jpg$`)

type processingInfo struct {
	VideoSize      string `json:"videoSize"`
	ProcessingTime int64  `json:"processingTime"`
	ModelUsed      string `json:"modelUsed"`
}

type generateResponse struct {
	Success      bool                  `json:"success"`
	Content      suggestion.Suggestion `json:"content"`
	ReporterName string                `json:"reporterName"`
	VideoDate    string                `json:"videoDate"`
	Processing   processingInfo        `json:"processing"`
}

type thumbnailResponse struct {
	Success      bool   `json:"success"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Timestamp    string `json:"timestamp"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Model         string `json:"model"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	JobsInFlight  int64  `json:"jobsInFlight"`
	JobCapacity   int64  `json:"jobCapacity,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:        healthStatus,
		Model:         h.deps.Generator.ModelName(),
		UptimeSeconds: int64(time.Since(h.deps.StartTime).Seconds()),
		JobsInFlight:  h.deps.Limiter.InFlight(),
		JobCapacity:   h.deps.Limiter.Capacity(),
	})
}

// generate runs Flow 1: accept the video, ask the model, return suggestions.
// The scratch copy is released on every path out of the handler.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	reporter := formValue(r, "reporterName")
	videoDate := formValue(r, "videoDate")
	fh := formFile(r, "video")
	if fh == nil || reporter == "" || videoDate == "" {
		httpError(w, http.StatusBadRequest, msgMissingGenerateFields)
		return
	}

	asset, err := h.deps.Ingestor.AcceptMultipart(fh)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := ingest.Supervise(asset, func(a *ingest.VideoAsset) (suggestion.Suggestion, error) {
		release, err := h.deps.Limiter.Acquire(r.Context(), "generate")
		if err != nil {
			return nil, err
		}
		defer release()

		log.Info().
			Str("reporter", reporter).
			Str("videoDate", videoDate).
			Str("video", a.OriginalName).
			Int64("size", a.Size).
			Msg("Generating editorial suggestions")

		return h.deps.Generator.Generate(r.Context(), chat.GenerationRequest{
			ReporterName: reporter,
			VideoDate:    videoDate,
			Asset:        a,
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		Success:      true,
		Content:      content,
		ReporterName: reporter,
		VideoDate:    videoDate,
		Processing: processingInfo{
			VideoSize:      filehandler.FormatFileSize(asset.Size),
			ProcessingTime: time.Since(start).Milliseconds(),
			ModelUsed:      h.deps.Generator.ModelName(),
		},
	})
}

// extractThumbnail runs Flow 2: accept the video, pull one frame, return
// its URL. Only the input video is released; the frame stays.
func (h *handlers) extractThumbnail(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	timestamp := formValue(r, "timestamp")
	fh := formFile(r, "video")
	if fh == nil || timestamp == "" {
		httpError(w, http.StatusBadRequest, msgMissingThumbnailFields)
		return
	}
	if _, err := filehandler.ParseTimestamp(timestamp); err != nil {
		writeError(w, err)
		return
	}

	asset, err := h.deps.Ingestor.AcceptMultipart(fh)
	if err != nil {
		writeError(w, err)
		return
	}

	outputPath, err := ingest.Supervise(asset, func(a *ingest.VideoAsset) (string, error) {
		release, err := h.deps.Limiter.Acquire(r.Context(), "extract-thumbnail")
		if err != nil {
			return "", err
		}
		defer release()
		return h.deps.Extractor.ExtractFrame(r.Context(), a.Path, timestamp, filehandler.NewOutputPath(h.deps.ThumbnailDir))
	})
	if err != nil {
		writeError(w, err)
		return
	}

	url := "/api/thumbnails/" + filepath.Base(outputPath)
	if h.deps.Mirror != nil {
		if mirrored, mErr := h.deps.Mirror.Publish(r.Context(), outputPath); mErr != nil {
			log.Warn().Err(mErr).Str("thumbnail", filepath.Base(outputPath)).Msg("Thumbnail mirror failed, serving locally")
		} else {
			url = mirrored
		}
	}

	log.Info().Str("timestamp", timestamp).Str("thumbnail", filepath.Base(outputPath)).Msg("Thumbnail extracted")
	respondJSON(w, http.StatusOK, thumbnailResponse{
		Success:      true,
		ThumbnailURL: url,
		Timestamp:    timestamp,
	})
}

func (h *handlers) recordFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFeedbackBody)
	var in feedback.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var mbErr *http.MaxBytesError
		if errors.As(err, &mbErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "feedback body too large")
			return
		}
		httpError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	ack, err := h.deps.Feedback.Record(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ack)
}

func (h *handlers) serveThumbnail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !thumbnailNameRegex.MatchString(name) {
		httpError(w, http.StatusNotFound, "thumbnail not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, filepath.Join(h.deps.ThumbnailDir, name))
}

// parseUpload caps the body and parses the multipart form. It writes the
// error response itself and reports whether the handler should continue.
func (h *handlers) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.Ingestor.MaxSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbErr *http.MaxBytesError
		if errors.As(err, &mbErr) {
			writeError(w, h.deps.Ingestor.TooLargeError())
			return false
		}
		httpError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return false
	}
	return true
}

func formValue(r *http.Request, key string) string {
	if vs := r.MultipartForm.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func formFile(r *http.Request, key string) *multipart.FileHeader {
	if fs := r.MultipartForm.File[key]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}
