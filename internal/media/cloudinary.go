package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// uploadAPI is the part of the Cloudinary SDK the gateway depends on.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores assets on Cloudinary. Resizing happens server side via
// an incoming transformation.
type Cloudinary struct {
	api         uploadAPI
	folder      string
	constraints Constraints
}

// NewCloudinary builds a gateway from account credentials.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string, c Constraints) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("media: cloudinary client: %w", err)
	}
	return newCloudinary(&cld.Upload, folder, c), nil
}

func newCloudinary(a uploadAPI, folder string, c Constraints) *Cloudinary {
	return &Cloudinary{api: a, folder: strings.Trim(folder, "/"), constraints: c}
}

func (c *Cloudinary) Name() string { return "cloudinary" }

func (c *Cloudinary) transformation() string {
	max := c.constraints.MaxDimension
	if max <= 0 {
		return ""
	}
	return fmt.Sprintf("c_limit,w_%d,h_%d", max, max)
}

func (c *Cloudinary) Store(ctx context.Context, u Upload) (Ref, error) {
	if _, err := c.constraints.Check(u); err != nil {
		return Ref{}, err
	}
	params := uploader.UploadParams{
		Folder:         c.folder,
		AllowedFormats: api.CldAPIArray{"jpg", "jpeg", "png", "gif"},
		Transformation: c.transformation(),
	}
	resp, err := c.api.Upload(ctx, bytes.NewReader(u.Data), params)
	if err != nil {
		return Ref{}, fmt.Errorf("media: cloudinary upload: %w", err)
	}
	if resp == nil {
		return Ref{}, errors.New("media: cloudinary upload: empty response")
	}
	if msg := resp.Error.Message; msg != "" {
		return Ref{}, fmt.Errorf("media: cloudinary upload: %s", msg)
	}
	if resp.SecureURL == "" || resp.PublicID == "" {
		return Ref{}, errors.New("media: cloudinary upload: missing url or public id")
	}
	return Ref{URL: resp.SecureURL, ID: resp.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, ref Ref) error {
	if ref.ID == "" {
		// Legacy rows may only carry a URL; nothing to address on the host.
		return nil
	}
	resp, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: ref.ID})
	if err != nil {
		return fmt.Errorf("media: cloudinary destroy: %w", err)
	}
	if resp == nil {
		return errors.New("media: cloudinary destroy: empty response")
	}
	if msg := resp.Error.Message; msg != "" {
		return fmt.Errorf("media: cloudinary destroy: %s", msg)
	}
	switch resp.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("media: cloudinary destroy: unexpected result %q", resp.Result)
	}
}
