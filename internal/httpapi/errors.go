package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"inkwell.blog/internal/audit"
	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/blog"
	"inkwell.blog/internal/media"
	"inkwell.blog/internal/obs"
)

const serverErrorMessage = "Server error"

var errMalformedBody = errors.New("malformed request body")

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, errorResponse{Message: message, RequestID: audit.RequestID(r.Context())})
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="inkwell"`)
	writeError(w, r, http.StatusUnauthorized, message)
}

// handleError maps service errors onto HTTP responses. Anything unknown is
// logged and reported as a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, errMalformedBody):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, blog.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusBadRequest, "User already exists")
	case errors.Is(err, media.ErrUnsupportedFormat):
		writeError(w, r, http.StatusBadRequest, "Only image files (jpg, jpeg, png, gif) are allowed")
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, r, http.StatusBadRequest, "image is too large")
	case errors.Is(err, media.ErrEmpty):
		writeError(w, r, http.StatusBadRequest, "image is empty")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrTokenExpired):
		unauthorized(w, r, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken):
		unauthorized(w, r, "Token is not valid")
	case errors.Is(err, blog.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Not authorized")
	case errors.Is(err, blog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Blog not found")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, media.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "image uploads are not configured")
	default:
		obs.Logger().WithError(err).WithFields(map[string]any{
			"request_id": audit.RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, r, http.StatusInternalServerError, serverErrorMessage)
	}
}
