package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/obs"
)

const (
	EventRegister      = "auth.register"
	EventLogin         = "auth.login"
	EventLoginFailed   = "auth.login_failed"
	EventProfileUpdate = "user.profile_update"
	EventPostCreate    = "blog.create"
	EventPostUpdate    = "blog.update"
	EventPostDelete    = "blog.delete"
	EventPostLike      = "blog.like_toggle"
	EventPostSave      = "blog.save_toggle"
)

type requestIDKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request identifier stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := logrus.Fields{
		"type":  "audit",
		"event": event,
	}
	if rid := RequestID(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry["fields"] = copyFields
	obs.Logger().WithFields(entry).Info("audit")
	return nil
}
