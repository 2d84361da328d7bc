package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "FEEDBACK#"
	skMeta   = "META"
)

// DynamoAPI is the subset of *dynamodb.Client the store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements FeedbackStore on DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface checks.
var (
	_ FeedbackStore = (*DynamoStore)(nil)
	_ DynamoAPI     = (*dynamodb.Client)(nil)
)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// FeedbackPK returns the partition key for a feedback ID. It is also the
// remote identifier reported back to the client.
func FeedbackPK(id string) string {
	return pkPrefix + id
}

// CreateFeedback writes fb with a conditional put so an existing record is
// never overwritten.
func (s *DynamoStore) CreateFeedback(ctx context.Context, fb *Feedback) (string, error) {
	if fb == nil || fb.ID == "" {
		return "", fmt.Errorf("feedback record has no ID")
	}
	pk := FeedbackPK(fb.ID)

	item, err := attributevalue.MarshalMap(fb)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			log.Debug().Str("pk", pk).Msg("Feedback already stored, treating as success")
			return pk, nil
		}
		return "", fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}

	log.Debug().Str("pk", pk).Str("table", s.tableName).Msg("Feedback stored")
	return pk, nil
}

// GetFeedback reads a feedback record by ID.
func (s *DynamoStore) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	pk := FeedbackPK(id)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var fb Feedback
	if err := attributevalue.UnmarshalMap(result.Item, &fb); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	return &fb, nil
}
