package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestConstraintsCheck(t *testing.T) {
	c := Constraints{MaxBytes: 1 << 20, MaxDimension: 1000}

	ext, err := c.Check(Upload{Filename: "a.bin", Data: pngBytes(t, 10, 10)})
	if err != nil {
		t.Fatalf("Check png: %v", err)
	}
	if ext != ".png" {
		t.Fatalf("unexpected ext %q", ext)
	}

	if _, err := c.Check(Upload{Filename: "evil.png", Data: []byte("#!/bin/sh\necho hi\n")}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := c.Check(Upload{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	small := Constraints{MaxBytes: 16}
	if _, err := small.Check(Upload{Data: pngBytes(t, 10, 10)}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestLocalStoreResizesIntoBox(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads", Constraints{MaxBytes: 10 << 20, MaxDimension: 1000})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ref, err := l.Store(context.Background(), Upload{Filename: "wide.png", Data: pngBytes(t, 2000, 500)})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref.URL != "/uploads/"+ref.ID {
		t.Fatalf("unexpected url %q for id %q", ref.URL, ref.ID)
	}
	f, err := os.Open(filepath.Join(dir, ref.ID))
	if err != nil {
		t.Fatalf("open stored file: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode stored file: %v", err)
	}
	if cfg.Width != 1000 || cfg.Height != 250 {
		t.Fatalf("expected 1000x250, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestLocalStoreKeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/", DefaultConstraints())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	data := pngBytes(t, 40, 30)
	ref, err := l.Store(context.Background(), Upload{Data: data})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	stored, err := os.ReadFile(filepath.Join(dir, ref.ID))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored, data) {
		t.Fatalf("expected small image stored verbatim")
	}

	if err := l.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ref.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := l.Delete(context.Background(), ref); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalDeleteStaysInsideDir(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "uploads")
	l, err := NewLocal(dir, "/uploads/", DefaultConstraints())
	if err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(parent, "keep.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(context.Background(), Ref{ID: "../keep.txt"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside upload dir was touched: %v", err)
	}
}

type fakeUploadAPI struct {
	uploadParams uploader.UploadParams
	uploadResp   *uploader.UploadResult
	uploadErr    error
	destroyed    []string
	destroyResp  *uploader.DestroyResult
}

func (f *fakeUploadAPI) Upload(_ context.Context, _ interface{}, p uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = p
	return f.uploadResp, f.uploadErr
}

func (f *fakeUploadAPI) Destroy(_ context.Context, p uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyed = append(f.destroyed, p.PublicID)
	return f.destroyResp, nil
}

func TestCloudinaryStoreAndDelete(t *testing.T) {
	fake := &fakeUploadAPI{
		uploadResp:  &uploader.UploadResult{SecureURL: "https://res.example/blog-app/x.png", PublicID: "blog-app/x"},
		destroyResp: &uploader.DestroyResult{Result: "ok"},
	}
	c := newCloudinary(fake, "/blog-app/", DefaultConstraints())

	ref, err := c.Store(context.Background(), Upload{Data: pngBytes(t, 5, 5)})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref.ID != "blog-app/x" || ref.URL == "" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if fake.uploadParams.Folder != "blog-app" {
		t.Fatalf("unexpected folder %q", fake.uploadParams.Folder)
	}
	if fake.uploadParams.Transformation != "c_limit,w_1000,h_1000" {
		t.Fatalf("unexpected transformation %q", fake.uploadParams.Transformation)
	}

	if err := c.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fake.destroyed) != 1 || fake.destroyed[0] != "blog-app/x" {
		t.Fatalf("unexpected destroy calls %v", fake.destroyed)
	}
}

func TestCloudinaryReportsProviderErrors(t *testing.T) {
	fake := &fakeUploadAPI{
		uploadResp:  &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}},
		destroyResp: &uploader.DestroyResult{Result: "error"},
	}
	c := newCloudinary(fake, "blog-app", DefaultConstraints())
	if _, err := c.Store(context.Background(), Upload{Data: pngBytes(t, 5, 5)}); err == nil {
		t.Fatal("expected upload error")
	}
	if err := c.Delete(context.Background(), Ref{ID: "blog-app/x"}); err == nil {
		t.Fatal("expected destroy error")
	}
	if _, err := c.Store(context.Background(), Upload{Data: []byte("plain text")}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat before contacting provider, got %v", err)
	}
}

func TestDisabledIsDistinguishable(t *testing.T) {
	var g Gateway = Disabled{}
	if _, err := g.Store(context.Background(), Upload{Data: []byte{1}}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := g.Delete(context.Background(), Ref{ID: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type slowGateway struct{ Disabled }

func (slowGateway) Store(ctx context.Context, _ Upload) (Ref, error) {
	<-ctx.Done()
	return Ref{}, ctx.Err()
}

func TestBoundedAppliesTimeout(t *testing.T) {
	g := Bounded(slowGateway{}, 20*time.Millisecond)
	start := time.Now()
	_, err := g.Store(context.Background(), Upload{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not applied")
	}
}
