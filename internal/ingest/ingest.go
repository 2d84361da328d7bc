// Package ingest accepts uploaded videos into a scratch directory and makes
// sure each one is deleted once its request is done with it.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/benzco89/iDgimot/internal/filehandler"
)

// DefaultMaxSize is the upload cap when none is configured (100 MB).
const DefaultMaxSize int64 = 100 * 1024 * 1024

// ValidationError rejects an upload. Declared-metadata checks fail before
// anything is written; streaming checks remove the partial scratch file.
// TooLarge distinguishes the size cap from other rejections.
type ValidationError struct {
	Message  string
	TooLarge bool
	Err      error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrNoFile is wrapped by the ValidationError returned when no file was sent.
var ErrNoFile = errors.New("no video file uploaded")

// VideoAsset is an accepted upload sitting in the scratch directory.
// The request that created it owns it and must call Release.
type VideoAsset struct {
	Path         string
	MIMEType     string
	Size         int64
	OriginalName string

	releaseOnce sync.Once
}

// Release deletes the scratch file. Only the first call does anything and a
// file that is already gone is not an error.
func (a *VideoAsset) Release() {
	if a == nil {
		return
	}
	a.releaseOnce.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", a.Path).Msg("Failed to remove scratch video")
			return
		}
		log.Debug().Str("path", a.Path).Msg("Scratch video removed")
	})
}

// Ingestor writes validated uploads to ScratchDir.
type Ingestor struct {
	ScratchDir string
	MaxSize    int64
}

// New returns an Ingestor. maxSize <= 0 selects DefaultMaxSize.
func New(scratchDir string, maxSize int64) *Ingestor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Ingestor{ScratchDir: scratchDir, MaxSize: maxSize}
}

// Accept validates the declared metadata, then streams r into a new file in
// the scratch directory. The copy is capped at MaxSize regardless of
// declaredSize, so a client that under-reports is still stopped.
func (in *Ingestor) Accept(r io.Reader, declaredMIME string, declaredSize int64, originalName string) (*VideoAsset, error) {
	if r == nil {
		return nil, &ValidationError{Message: ErrNoFile.Error(), Err: ErrNoFile}
	}
	if !filehandler.IsVideoMIME(declaredMIME) {
		return nil, &ValidationError{Message: fmt.Sprintf("only video files are allowed (got %q)", declaredMIME)}
	}
	if declaredSize > in.MaxSize {
		return nil, in.TooLargeError()
	}

	if err := os.MkdirAll(in.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	name := fmt.Sprintf("video-%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), filehandler.ExtensionFor(originalName, declaredMIME))
	path := filepath.Join(in.ScratchDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	written, copyErr := io.Copy(f, io.LimitReader(r, in.MaxSize+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("write scratch file: %w", copyErr)
	case closeErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("close scratch file: %w", closeErr)
	case written > in.MaxSize:
		os.Remove(path)
		log.Warn().
			Str("original", originalName).
			Int64("declaredSize", declaredSize).
			Int64("maxSize", in.MaxSize).
			Msg("Upload exceeded size cap while streaming")
		return nil, in.TooLargeError()
	case written == 0:
		os.Remove(path)
		return nil, &ValidationError{Message: "uploaded video is empty"}
	}

	log.Info().
		Str("path", path).
		Str("original", originalName).
		Str("mimeType", declaredMIME).
		Int64("size", written).
		Msg("Video accepted")

	return &VideoAsset{
		Path:         path,
		MIMEType:     declaredMIME,
		Size:         written,
		OriginalName: originalName,
	}, nil
}

// AcceptMultipart accepts a file part from a parsed multipart form.
func (in *Ingestor) AcceptMultipart(fh *multipart.FileHeader) (*VideoAsset, error) {
	if fh == nil {
		return nil, &ValidationError{Message: ErrNoFile.Error(), Err: ErrNoFile}
	}
	mimeType := fh.Header.Get("Content-Type")
	// Check the declared metadata before opening, which may touch disk.
	if !filehandler.IsVideoMIME(mimeType) {
		return nil, &ValidationError{Message: fmt.Sprintf("only video files are allowed (got %q)", mimeType)}
	}
	if fh.Size > in.MaxSize {
		return nil, in.TooLargeError()
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()
	return in.Accept(f, mimeType, fh.Size, fh.Filename)
}

// TooLargeError is the rejection for an upload over MaxSize.
func (in *Ingestor) TooLargeError() *ValidationError {
	return &ValidationError{
		Message:  fmt.Sprintf("video exceeds the %s upload limit", filehandler.FormatFileSize(in.MaxSize)),
		TooLarge: true,
	}
}
