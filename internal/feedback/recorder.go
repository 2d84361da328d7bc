// Package feedback records approve/reject verdicts on generated suggestions.
//
// Recording is best-effort by contract: once the input is valid the caller
// always gets a success acknowledgment, even when the remote store is down
// or not configured. A local journal, when present, keeps unsynced records
// for Reconcile.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/metrics"
	"github.com/benzco89/iDgimot/internal/store"
)

// DefaultRemoteTimeout bounds the remote write on the request path.
const DefaultRemoteTimeout = 5 * time.Second

// Field limits.
const (
	maxContentTypeLen = 64
	maxContentTextLen = 20000
	maxExplanationLen = 5000
)

// Acknowledgment messages shown to the newsroom UI.
const (
	messageSaved      = "הפידבק נשמר בהצלחה"
	messageSavedLocal = "הפידבק התקבל ונשמר מקומית"
)

// Input is the client payload.
type Input struct {
	ContentType string `json:"contentType"`
	ContentText string `json:"contentText"`
	Feedback    string `json:"feedback"`
	Explanation string `json:"explanation,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
	VideoDate   string `json:"videoDate,omitempty"`
}

// Acknowledgment is returned for every valid submission.
type Acknowledgment struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FeedbackID string `json:"feedbackId"`
	RemoteID   string `json:"remoteId,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ValidationError rejects a malformed submission. It is the only error
// Record returns.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Journal is the local record of submissions.
type Journal interface {
	Append(ctx context.Context, fb *store.Feedback) error
	MarkSynced(ctx context.Context, id, remoteID string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	Pending(ctx context.Context, limit int) ([]store.PendingFeedback, error)
}

// Publisher announces stored feedback to downstream consumers.
type Publisher interface {
	PublishFeedback(ctx context.Context, fb *store.Feedback, remoteID string) error
}

// Recorder forwards feedback to the remote store. Any of its collaborators
// may be nil.
type Recorder struct {
	remote    store.FeedbackStore
	journal   Journal
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithJournal keeps a local copy of every submission.
func WithJournal(j Journal) Option {
	return func(r *Recorder) { r.journal = j }
}

// WithPublisher emits an event after each successful remote write.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithRemoteTimeout overrides DefaultRemoteTimeout.
func WithRemoteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder returns a Recorder writing to remote, which may be nil.
func NewRecorder(remote store.FeedbackStore, opts ...Option) *Recorder {
	r := &Recorder{remote: remote, timeout: DefaultRemoteTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks a submission without recording it.
func Validate(in Input) error {
	switch {
	case strings.TrimSpace(in.ContentType) == "":
		return &ValidationError{Field: "contentType", Message: "is required"}
	case utf8.RuneCountInString(in.ContentType) > maxContentTypeLen:
		return &ValidationError{Field: "contentType", Message: fmt.Sprintf("must be at most %d characters", maxContentTypeLen)}
	case strings.TrimSpace(in.ContentText) == "":
		return &ValidationError{Field: "contentText", Message: "is required"}
	case utf8.RuneCountInString(in.ContentText) > maxContentTextLen:
		return &ValidationError{Field: "contentText", Message: fmt.Sprintf("must be at most %d characters", maxContentTextLen)}
	case in.Feedback != store.VerdictLike && in.Feedback != store.VerdictDislike:
		return &ValidationError{Field: "feedback", Message: `must be "like" or "dislike"`}
	case utf8.RuneCountInString(in.Explanation) > maxExplanationLen:
		return &ValidationError{Field: "explanation", Message: fmt.Sprintf("must be at most %d characters", maxExplanationLen)}
	}
	return nil
}

// Record validates in, builds the local record and forwards it. Only a
// *ValidationError is ever returned; remote trouble becomes a Note.
func (r *Recorder) Record(ctx context.Context, in Input) (Acknowledgment, error) {
	if err := Validate(in); err != nil {
		return Acknowledgment{}, err
	}

	fb := &store.Feedback{
		ID:          uuid.NewString(),
		ContentType: strings.TrimSpace(in.ContentType),
		ContentText: in.ContentText,
		Verdict:     in.Feedback,
		Explanation: strings.TrimSpace(in.Explanation),
		Reporter:    strings.TrimSpace(in.Reporter),
		VideoDate:   strings.TrimSpace(in.VideoDate),
		CreatedAt:   r.now().UTC(),
	}

	// The remote write should finish even if the client hangs up.
	ctx = context.WithoutCancel(ctx)

	if r.journal != nil {
		if err := r.journal.Append(ctx, fb); err != nil {
			log.Warn().Err(err).Str("feedbackId", fb.ID).Msg("Failed to journal feedback locally")
		}
	}

	ack := Acknowledgment{Success: true, Message: messageSaved, FeedbackID: fb.ID}
	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "feedback").
		Property("verdict", fb.Verdict).
		Property("contentType", fb.ContentType)

	if r.remote == nil {
		ack.Message = messageSavedLocal
		ack.Note = "remote feedback store is not configured"
		m.Dimension("Result", "local_only").Count("FeedbackRecorded").Flush()
		log.Info().Str("feedbackId", fb.ID).Str("verdict", fb.Verdict).Msg("Feedback accepted without remote store")
		return ack, nil
	}

	remoteID, err := r.writeRemote(ctx, fb)
	if err != nil {
		ack.Message = messageSavedLocal
		ack.Note = "remote feedback store unavailable, saved locally"
		m.Dimension("Result", "remote_failed").Count("FeedbackRecorded").Flush()
		log.Warn().Err(err).Str("feedbackId", fb.ID).Msg("Remote feedback write failed, acknowledging locally")
		return ack, nil
	}

	ack.RemoteID = remoteID
	m.Dimension("Result", "stored").Count("FeedbackRecorded").Flush()
	log.Info().
		Str("feedbackId", fb.ID).
		Str("remoteId", remoteID).
		Str("verdict", fb.Verdict).
		Str("contentType", fb.ContentType).
		Msg("Feedback recorded")
	return ack, nil
}

// writeRemote stores fb remotely, updates the journal and fires the event.
func (r *Recorder) writeRemote(ctx context.Context, fb *store.Feedback) (string, error) {
	remoteCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	remoteID, err := r.remote.CreateFeedback(remoteCtx, fb)
	if err != nil {
		if r.journal != nil {
			if jErr := r.journal.MarkFailed(ctx, fb.ID, err); jErr != nil {
				log.Warn().Err(jErr).Str("feedbackId", fb.ID).Msg("Failed to update feedback journal")
			}
		}
		return "", err
	}

	if r.journal != nil {
		if jErr := r.journal.MarkSynced(ctx, fb.ID, remoteID); jErr != nil {
			log.Warn().Err(jErr).Str("feedbackId", fb.ID).Msg("Failed to update feedback journal")
		}
	}

	if r.publisher != nil {
		pubCtx, pubCancel := context.WithTimeout(ctx, r.timeout)
		defer pubCancel()
		if pErr := r.publisher.PublishFeedback(pubCtx, fb, remoteID); pErr != nil {
			log.Warn().Err(pErr).Str("feedbackId", fb.ID).Msg("Failed to publish feedback event")
		}
	}
	return remoteID, nil
}

// ReconcileResult summarizes a Reconcile pass.
type ReconcileResult struct {
	Attempted int
	Synced    int
	Failed    int
}

// Reconcile replays up to limit journaled records that never reached the
// remote store. It needs both a journal and a remote store.
func (r *Recorder) Reconcile(ctx context.Context, limit int) (ReconcileResult, error) {
	var res ReconcileResult
	if r.journal == nil {
		return res, fmt.Errorf("no feedback journal configured")
	}
	if r.remote == nil {
		return res, fmt.Errorf("no remote feedback store configured")
	}

	pending, err := r.journal.Pending(ctx, limit)
	if err != nil {
		return res, err
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fb := &pending[i].Feedback
		res.Attempted++
		if _, err := r.writeRemote(ctx, fb); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("feedbackId", fb.ID).Int("attempts", pending[i].Attempts+1).Msg("Feedback replay failed")
			continue
		}
		res.Synced++
	}

	log.Info().
		Int("attempted", res.Attempted).
		Int("synced", res.Synced).
		Int("failed", res.Failed).
		Msg("Feedback reconcile complete")
	return res, nil
}
