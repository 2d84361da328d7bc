package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/store"
)

// Event envelope values.
const (
	EventSource     = "idgimot"
	EventDetailType = "ContentFeedback"
)

// ContentFeedbackEvent is the EventBridge detail for a stored verdict.
type ContentFeedbackEvent struct {
	FeedbackID  string    `json:"feedbackId"`
	RemoteID    string    `json:"remoteId"`
	ContentType string    `json:"contentType"`
	Verdict     string    `json:"verdict"`
	Reporter    string    `json:"reporter,omitempty"`
	VideoDate   string    `json:"videoDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EventsAPI is the subset of *eventbridge.Client the publisher calls.
type EventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher publishes ContentFeedback events to a bus.
type EventBridgePublisher struct {
	client  EventsAPI
	busName string
}

var _ Publisher = (*EventBridgePublisher)(nil)

// NewEventBridgePublisher returns a publisher for busName.
func NewEventBridgePublisher(client EventsAPI, busName string) *EventBridgePublisher {
	return &EventBridgePublisher{client: client, busName: busName}
}

// PublishFeedback sends one ContentFeedback event. The explanation and text
// stay out of the event; consumers read them from the store by remoteID.
func (p *EventBridgePublisher) PublishFeedback(ctx context.Context, fb *store.Feedback, remoteID string) error {
	detail, err := json.Marshal(ContentFeedbackEvent{
		FeedbackID:  fb.ID,
		RemoteID:    remoteID,
		ContentType: fb.ContentType,
		Verdict:     fb.Verdict,
		Reporter:    fb.Reporter,
		VideoDate:   fb.VideoDate,
		CreatedAt:   fb.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal ContentFeedback: %w", err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(EventDetailType),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("feedbackId", fb.ID).Str("bus", p.busName).Msg("ContentFeedback emitted to EventBridge")
	return nil
}
