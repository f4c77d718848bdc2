package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"inkwell.blog/internal/ids"
)

// Local keeps uploads on disk and serves them under a URL prefix.
type Local struct {
	dir         string
	prefix      string
	constraints Constraints
}

// NewLocal creates dir if needed. prefix is the public path the files are
// served from, for example "/uploads/".
func NewLocal(dir, prefix string, c Constraints) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("media: upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Local{dir: dir, prefix: prefix, constraints: c}, nil
}

func (l *Local) Name() string { return "local" }

// Dir returns the directory files are written to.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Store(ctx context.Context, u Upload) (Ref, error) {
	ext, err := l.constraints.Check(u)
	if err != nil {
		return Ref{}, err
	}
	data, err := l.normalize(u.Data, ext)
	if err != nil {
		return Ref{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	name := ids.New() + ext
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("media: write %s: %w", name, err)
	}
	return Ref{URL: path.Join(l.prefix, name), ID: name}, nil
}

// normalize shrinks images that exceed the bounding box. Images already
// inside it are stored byte-for-byte so animated GIFs survive.
func (l *Local) normalize(data []byte, ext string) ([]byte, error) {
	max := l.constraints.MaxDimension
	if max <= 0 {
		return data, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= max && cfg.Height <= max {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	fitted := imaging.Fit(img, max, max, imaging.Lanczos)
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format); err != nil {
		return nil, fmt.Errorf("media: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (l *Local) Delete(ctx context.Context, ref Ref) error {
	name := ref.ID
	if name == "" {
		name = strings.TrimPrefix(ref.URL, l.prefix)
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media: remove %s: %w", name, err)
	}
	return nil
}
