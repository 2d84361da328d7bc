package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo keeps items in memory and honors attribute_not_exists(PK).
type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	putErr error
	puts   []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	k := keyOf(in.Item)
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(PK)" {
		if _, exists := f.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func sampleFeedback(id string) *Feedback {
	return &Feedback{
		ID:          id,
		ContentType: "title",
		ContentText: "כותרת חדשותית",
		Verdict:     VerdictLike,
		Explanation: "ברורה",
		Reporter:    "דנה",
		VideoDate:   "15.10.2025",
		CreatedAt:   time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestDynamoStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "feedback-table")

	remoteID, err := s.CreateFeedback(ctx, sampleFeedback("abc"))
	if err != nil {
		t.Fatalf("CreateFeedback returned error: %v", err)
	}
	if remoteID != "FEEDBACK#abc" {
		t.Errorf("remoteID = %q, want FEEDBACK#abc", remoteID)
	}

	put := fake.puts[0]
	if aws.ToString(put.TableName) != "feedback-table" {
		t.Errorf("table = %q", aws.ToString(put.TableName))
	}
	if sk := put.Item["SK"].(*types.AttributeValueMemberS).Value; sk != "META" {
		t.Errorf("SK = %q, want META", sk)
	}
	var stored Feedback
	if err := attributevalue.UnmarshalMap(put.Item, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.Verdict != VerdictLike || stored.ContentText != "כותרת חדשותית" {
		t.Errorf("stored item = %+v", stored)
	}

	got, err := s.GetFeedback(ctx, "abc")
	if err != nil || got == nil {
		t.Fatalf("GetFeedback = %v, %v", got, err)
	}
	if !got.CreatedAt.Equal(sampleFeedback("abc").CreatedAt) || got.Reporter != "דנה" {
		t.Errorf("round trip = %+v", got)
	}

	missing, err := s.GetFeedback(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetFeedback(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestDynamoStoreCreateIsIdempotent(t *testing.T) {
	s := NewDynamoStore(newFakeDynamo(), "t")
	ctx := context.Background()
	first, err := s.CreateFeedback(ctx, sampleFeedback("dup"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateFeedback(ctx, sampleFeedback("dup"))
	if err != nil {
		t.Fatalf("second CreateFeedback returned error: %v", err)
	}
	if first != second {
		t.Errorf("remote IDs differ: %q vs %q", first, second)
	}
}

func TestDynamoStoreErrors(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("throttled")
	s := NewDynamoStore(fake, "t")

	if _, err := s.CreateFeedback(context.Background(), sampleFeedback("x")); err == nil {
		t.Error("expected error from failing PutItem")
	}
	if _, err := s.CreateFeedback(context.Background(), &Feedback{}); err == nil {
		t.Error("expected error for record without ID")
	}
}

func TestJournalLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "feedback.db")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal returned error: %v", err)
	}
	defer j.Close()

	for _, id := range []string{"a", "b", "c"} {
		fb := sampleFeedback(id)
		fb.CreatedAt = fb.CreatedAt.Add(time.Duration(len(id)) * time.Minute)
		if err := j.Append(ctx, fb); err != nil {
			t.Fatalf("Append(%s) returned error: %v", id, err)
		}
	}
	if err := j.Append(ctx, sampleFeedback("a")); err == nil {
		t.Error("appending a duplicate ID should fail")
	}

	if err := j.MarkSynced(ctx, "a", "FEEDBACK#a"); err != nil {
		t.Fatal(err)
	}
	if err := j.MarkFailed(ctx, "b", errors.New("timeout")); err != nil {
		t.Fatal(err)
	}

	pending, err := j.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	byID := map[string]PendingFeedback{}
	for _, p := range pending {
		byID[p.Feedback.ID] = p
	}
	if p := byID["b"]; p.Attempts != 1 || p.LastError != "timeout" || p.Feedback.Reporter != "דנה" {
		t.Errorf("pending b = %+v", p)
	}
	if p := byID["c"]; p.Attempts != 0 || p.Feedback.CreatedAt.IsZero() {
		t.Errorf("pending c = %+v", p)
	}

	synced, unsynced, err := j.Counts(ctx)
	if err != nil || synced != 1 || unsynced != 2 {
		t.Errorf("Counts = %d, %d, %v; want 1, 2", synced, unsynced, err)
	}
}

func TestJournalReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feedback.db")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Append(ctx, sampleFeedback("persist")); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer j.Close()
	pending, err := j.Pending(ctx, 0)
	if err != nil || len(pending) != 1 || pending[0].Feedback.ID != "persist" {
		t.Errorf("Pending after reopen = %+v, %v", pending, err)
	}
}
