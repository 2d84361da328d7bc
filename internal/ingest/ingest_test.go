package ingest

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAcceptWritesScratchFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	in := New(dir, 1024)

	asset, err := in.Accept(strings.NewReader("fake video bytes"), "video/mp4", 16, "clip.MP4")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	defer asset.Release()

	if filepath.Dir(asset.Path) != dir {
		t.Errorf("asset written to %s, want under %s", asset.Path, dir)
	}
	base := filepath.Base(asset.Path)
	if !strings.HasPrefix(base, "video-") || filepath.Ext(base) != ".mp4" {
		t.Errorf("unexpected scratch name %q", base)
	}
	if asset.Size != 16 || asset.MIMEType != "video/mp4" || asset.OriginalName != "clip.MP4" {
		t.Errorf("unexpected asset %+v", asset)
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil || string(data) != "fake video bytes" {
		t.Errorf("scratch content = %q, %v", data, err)
	}
}

func TestAcceptRejects(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		mime         string
		declared     int64
		wantTooLarge bool
	}{
		{name: "not a video", body: "x", mime: "image/jpeg", declared: 1},
		{name: "missing content type", body: "x", mime: "", declared: 1},
		{name: "declared too large", body: "x", mime: "video/mp4", declared: 11, wantTooLarge: true},
		{name: "lying declared size", body: strings.Repeat("x", 11), mime: "video/mp4", declared: 5, wantTooLarge: true},
		{name: "empty body", body: "", mime: "video/mp4", declared: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "uploads")
			in := New(dir, 10)

			asset, err := in.Accept(strings.NewReader(tt.body), tt.mime, tt.declared, "clip.mp4")
			if err == nil {
				asset.Release()
				t.Fatal("expected rejection")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if vErr.TooLarge != tt.wantTooLarge {
				t.Errorf("TooLarge = %v, want %v", vErr.TooLarge, tt.wantTooLarge)
			}
			if names := scratchEntries(t, dir); len(names) != 0 {
				t.Errorf("rejected upload left files behind: %v", names)
			}
		})
	}
}

func TestAcceptNilReader(t *testing.T) {
	var vErr *ValidationError
	_, err := New(t.TempDir(), 0).Accept(nil, "video/mp4", 0, "")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrNoFile) {
		t.Errorf("errors.Is(%v, ErrNoFile) = false", err)
	}
}

func TestAcceptNamesNeverCollide(t *testing.T) {
	dir := t.TempDir()
	in := New(dir, 0)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		asset, err := in.Accept(strings.NewReader("v"), "video/webm", 1, "")
		if err != nil {
			t.Fatalf("Accept returned error: %v", err)
		}
		if seen[asset.Path] {
			t.Fatalf("duplicate scratch path %s", asset.Path)
		}
		seen[asset.Path] = true
		if filepath.Ext(asset.Path) != ".webm" {
			t.Errorf("extension from MIME fallback = %q, want .webm", filepath.Ext(asset.Path))
		}
	}
}

func TestAcceptMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="video"; filename="report.mov"`},
		"Content-Type":        {"video/quicktime"},
	})
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("quicktime bytes"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	defer req.MultipartForm.RemoveAll()

	dir := t.TempDir()
	asset, err := New(dir, 0).AcceptMultipart(req.MultipartForm.File["video"][0])
	if err != nil {
		t.Fatalf("AcceptMultipart returned error: %v", err)
	}
	defer asset.Release()
	if asset.MIMEType != "video/quicktime" || filepath.Ext(asset.Path) != ".mov" || asset.Size != 15 {
		t.Errorf("unexpected asset %+v", asset)
	}

	var vErr *ValidationError
	if _, err := New(dir, 0).AcceptMultipart(nil); !errors.As(err, &vErr) || !errors.Is(err, ErrNoFile) {
		t.Errorf("AcceptMultipart(nil) = %v, want *ValidationError wrapping ErrNoFile", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	dir := t.TempDir()
	asset, err := New(dir, 0).Accept(strings.NewReader("v"), "video/mp4", 1, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	asset.Release()
	asset.Release()
	if names := scratchEntries(t, dir); len(names) != 0 {
		t.Errorf("scratch dir not empty after Release: %v", names)
	}

	// A file removed by someone else is not an error either.
	other, _ := New(dir, 0).Accept(strings.NewReader("v"), "video/mp4", 1, "b.mp4")
	os.Remove(other.Path)
	other.Release()

	var nilAsset *VideoAsset
	nilAsset.Release()
}

func TestSuperviseReleasesOnEveryPath(t *testing.T) {
	dir := t.TempDir()
	in := New(dir, 0)

	t.Run("success", func(t *testing.T) {
		asset, _ := in.Accept(strings.NewReader("v"), "video/mp4", 1, "a.mp4")
		got, err := Supervise(asset, func(a *VideoAsset) (string, error) { return "ok", nil })
		if err != nil || got != "ok" {
			t.Errorf("Supervise = %q, %v", got, err)
		}
		if names := scratchEntries(t, dir); len(names) != 0 {
			t.Errorf("leftover files: %v", names)
		}
	})

	t.Run("error", func(t *testing.T) {
		asset, _ := in.Accept(strings.NewReader("v"), "video/mp4", 1, "a.mp4")
		wantErr := errors.New("model failed")
		if _, err := Supervise(asset, func(a *VideoAsset) (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
			t.Errorf("Supervise error = %v, want %v", err, wantErr)
		}
		if names := scratchEntries(t, dir); len(names) != 0 {
			t.Errorf("leftover files: %v", names)
		}
	})

	t.Run("panic", func(t *testing.T) {
		asset, _ := in.Accept(strings.NewReader("v"), "video/mp4", 1, "a.mp4")
		func() {
			defer func() {
				if recover() == nil {
					t.Error("panic was swallowed")
				}
			}()
			Supervise(asset, func(a *VideoAsset) (int, error) { panic("boom") })
		}()
		if names := scratchEntries(t, dir); len(names) != 0 {
			t.Errorf("leftover files after panic: %v", names)
		}
	})
}
