package s3util

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeObjects struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc",
		Method: "GET",
	}, nil
}

func writeFrame(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "thumbnail-1-abc.jpg")
	if err := os.WriteFile(p, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPublish(t *testing.T) {
	objects := &fakeObjects{}
	presign := &fakePresigner{}
	m := NewThumbnailMirror(objects, presign, "newsroom-thumbs", 2*time.Hour)

	url, err := m.Publish(context.Background(), writeFrame(t))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	want := "https://newsroom-thumbs.s3.amazonaws.com/thumbnails/thumbnail-1-abc.jpg?X-Amz-Signature=abc"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
	if aws.ToString(objects.input.Key) != "thumbnails/thumbnail-1-abc.jpg" {
		t.Errorf("key = %q", aws.ToString(objects.input.Key))
	}
	if aws.ToString(objects.input.ContentType) != "image/jpeg" {
		t.Errorf("content type = %q", aws.ToString(objects.input.ContentType))
	}
	if len(objects.body) != 4 {
		t.Errorf("uploaded %d bytes, want 4", len(objects.body))
	}
	if presign.expires != 2*time.Hour {
		t.Errorf("expiry = %v, want 2h", presign.expires)
	}
}

func TestPublishErrors(t *testing.T) {
	tests := []struct {
		name    string
		objects *fakeObjects
		presign *fakePresigner
		path    func(t *testing.T) string
	}{
		{"missing file", &fakeObjects{}, &fakePresigner{}, func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.jpg") }},
		{"upload fails", &fakeObjects{err: errors.New("AccessDenied")}, &fakePresigner{}, writeFrame},
		{"presign fails", &fakeObjects{}, &fakePresigner{err: errors.New("no credentials")}, writeFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewThumbnailMirror(tt.objects, tt.presign, "b", time.Hour)
			url, err := m.Publish(context.Background(), tt.path(t))
			if err == nil || url != "" {
				t.Errorf("Publish = %q, %v; want error", url, err)
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	if got := KeyFor("/var/data/thumbnails/thumbnail-9-x.jpg"); got != "thumbnails/thumbnail-9-x.jpg" {
		t.Errorf("KeyFor = %q", got)
	}
}
