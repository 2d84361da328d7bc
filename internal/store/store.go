// Package store persists feedback records.
//
// The remote store is DynamoDB, using a single-table layout where each
// record is keyed PK=FEEDBACK#{id}, SK=META. An optional local SQLite
// journal keeps every record with a synced flag so writes that failed
// remotely can be replayed later.
package store

import (
	"context"
	"time"
)

// Verdict values accepted for a feedback record.
const (
	VerdictLike    = "like"
	VerdictDislike = "dislike"
)

// Feedback is a reviewer's verdict on one generated suggestion. It is
// immutable once created.
type Feedback struct {
	ID          string    `json:"id" dynamodbav:"id"`
	ContentType string    `json:"contentType" dynamodbav:"contentType"`
	ContentText string    `json:"contentText" dynamodbav:"contentText"`
	Verdict     string    `json:"feedback" dynamodbav:"verdict"`
	Explanation string    `json:"explanation,omitempty" dynamodbav:"explanation,omitempty"`
	Reporter    string    `json:"reporter,omitempty" dynamodbav:"reporter,omitempty"`
	VideoDate   string    `json:"videoDate,omitempty" dynamodbav:"videoDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// FeedbackStore is the remote record store.
//
// CreateFeedback is idempotent per ID: writing a record that already exists
// returns the same remote ID and no error, so replays are safe.
// GetFeedback returns (nil, nil) when the record does not exist.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *Feedback) (remoteID string, err error)
	GetFeedback(ctx context.Context, id string) (*Feedback, error)
}

// PendingFeedback is a journaled record that has not reached the remote store.
type PendingFeedback struct {
	Feedback  Feedback
	Attempts  int
	LastError string
}
