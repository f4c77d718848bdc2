package media

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"inkwell.blog/internal/obs"
)

const defaultTimeout = 15 * time.Second

type bounded struct {
	next    Gateway
	timeout time.Duration
}

// Bounded wraps g so every call runs under timeout and is counted in
// media_operations_total.
func Bounded(g Gateway, timeout time.Duration) Gateway {
	if g == nil {
		g = Disabled{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &bounded{next: g, timeout: timeout}
}

func (b *bounded) Name() string { return b.next.Name() }

func (b *bounded) Store(ctx context.Context, u Upload) (Ref, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	ref, err := b.next.Store(ctx, u)
	obs.MediaOperation("store", result(err))
	return ref, err
}

func (b *bounded) Delete(ctx context.Context, ref Ref) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	err := b.next.Delete(ctx, ref)
	obs.MediaOperation("delete", result(err))
	return err
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "skipped"
	default:
		return "error"
	}
}

// Discard deletes ref without letting a failure reach the caller. It keeps
// running if the request context is cancelled after the primary write.
func Discard(ctx context.Context, g Gateway, ref Ref, fields logrus.Fields) {
	if g == nil || ref.IsZero() {
		return
	}
	entry := obs.Logger().WithFields(fields).WithFields(logrus.Fields{
		"media_url": ref.URL,
		"media_id":  ref.ID,
		"gateway":   g.Name(),
	})
	err := g.Delete(context.WithoutCancel(ctx), ref)
	switch {
	case err == nil:
		entry.Debug("media deleted")
	case errors.Is(err, ErrUnavailable):
		entry.Info("media delete skipped: gateway not configured")
	default:
		entry.WithError(err).Warn("media delete failed")
	}
}
