// Package s3util mirrors extracted thumbnails to S3 so the UI can load them
// from a presigned URL instead of the local server.
package s3util

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// KeyPrefix is where mirrored thumbnails live in the bucket.
const KeyPrefix = "thumbnails/"

// projectTag is the URL-encoded object tagging string for cost allocation.
const projectTag = "Project=idgimot"

// ObjectAPI is the subset of *s3.Client the mirror calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient the mirror calls.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ ObjectAPI = (*s3.Client)(nil)
	_ Presigner = (*s3.PresignClient)(nil)
)

// ThumbnailMirror uploads frames to a bucket and hands back presigned URLs.
type ThumbnailMirror struct {
	client  ObjectAPI
	presign Presigner
	bucket  string
	expiry  time.Duration
}

// NewThumbnailMirror returns a mirror for bucket. URLs expire after expiry.
func NewThumbnailMirror(client ObjectAPI, presign Presigner, bucket string, expiry time.Duration) *ThumbnailMirror {
	return &ThumbnailMirror{client: client, presign: presign, bucket: bucket, expiry: expiry}
}

// KeyFor returns the object key for a local frame file.
func KeyFor(localPath string) string {
	return path.Join(KeyPrefix, filepath.Base(localPath))
}

// Publish uploads the JPEG at localPath and returns a presigned GET URL.
func (m *ThumbnailMirror) Publish(ctx context.Context, localPath string) (string, error) {
	key := KeyFor(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("private, max-age=86400"),
		Tagging:      aws.String(projectTag),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	result, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = m.expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}

	log.Debug().Str("bucket", m.bucket).Str("key", key).Dur("expiry", m.expiry).Msg("Thumbnail mirrored to S3")
	return result.URL, nil
}
