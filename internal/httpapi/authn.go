package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"inkwell.blog/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var (
	errMissingToken  = errors.New("no token, authorization denied")
	errInvalidScheme = errors.New("invalid authorization scheme")
)

// requireAuth rejects the request unless it carries a valid bearer token for
// an existing user.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}
		user, err := a.accounts.Authenticate(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next(w, r.WithContext(ctx))
	}
}

// optionalAuth attaches the user when the token is valid and otherwise
// serves the request anonymously.
func (a *API) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			next(w, r)
			return
		}
		user, err := a.accounts.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			ctx := auth.ContextWithUser(r.Context(), user)
			next(w, r.WithContext(auth.ContextWithToken(ctx, token)))
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
			next(w, r)
		default:
			handleError(w, r, err)
		}
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errInvalidScheme
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// viewerID returns the authenticated user id or "" for anonymous requests.
func viewerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
