// Package media stores post images and avatars on an asset host.
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnavailable means no gateway is configured. Callers must tell it
	// apart from a failed upload or delete.
	ErrUnavailable       = errors.New("media: gateway not configured")
	ErrUnsupportedFormat = errors.New("media: unsupported image format")
	ErrTooLarge          = errors.New("media: file too large")
	ErrEmpty             = errors.New("media: empty upload")
)

// Upload is a binary attachment received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Ref points at a stored asset. URL is publicly dereferenceable; ID is the
// provider handle used for deletion and is never shown to clients.
type Ref struct {
	URL string
	ID  string
}

// IsZero reports whether r refers to nothing.
func (r Ref) IsZero() bool { return r.URL == "" && r.ID == "" }

// Gateway uploads and removes assets.
type Gateway interface {
	Store(ctx context.Context, u Upload) (Ref, error)
	Delete(ctx context.Context, ref Ref) error
	Name() string
}

var allowedMIME = []string{"image/jpeg", "image/png", "image/gif"}

// Constraints bound every upload.
type Constraints struct {
	MaxBytes     int64
	MaxDimension int
}

// DefaultConstraints is a 1000x1000 box and 5 MiB.
func DefaultConstraints() Constraints {
	return Constraints{MaxBytes: 5 << 20, MaxDimension: 1000}
}

// Check validates size and sniffs the content type. It returns the canonical
// file extension (".jpg", ".png", ".gif").
func (c Constraints) Check(u Upload) (string, error) {
	if len(u.Data) == 0 {
		return "", ErrEmpty
	}
	if c.MaxBytes > 0 && int64(len(u.Data)) > c.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(u.Data), c.MaxBytes)
	}
	mt := mimetype.Detect(u.Data)
	if !mimetype.EqualsAny(mt.String(), allowedMIME...) {
		return "", fmt.Errorf("%w: %s (allowed: jpg, jpeg, png, gif)", ErrUnsupportedFormat, mt.String())
	}
	if mt.Is("image/jpeg") {
		return ".jpg", nil
	}
	return mt.Extension(), nil
}

// Disabled is the gateway used when no media host is configured.
type Disabled struct{}

func (Disabled) Store(context.Context, Upload) (Ref, error) { return Ref{}, ErrUnavailable }
func (Disabled) Delete(context.Context, Ref) error          { return ErrUnavailable }
func (Disabled) Name() string                               { return "none" }
