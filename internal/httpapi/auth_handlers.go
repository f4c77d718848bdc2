package httpapi

import (
	"errors"
	"net/http"

	"inkwell.blog/internal/audit"
	"inkwell.blog/internal/auth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	session, err := a.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	ctx := auth.ContextWithUser(r.Context(), session.User)
	_ = audit.LogEvent(ctx, audit.EventRegister, map[string]any{"email": session.User.Email})
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	session, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{"remote_ip": clientIP(r)})
		}
		handleError(w, r, err)
		return
	}
	ctx := auth.ContextWithUser(r.Context(), session.User)
	_ = audit.LogEvent(ctx, audit.EventLogin, nil)
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.accounts.Me(r.Context(), viewerID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	f, err := a.parseForm(r, []string{"name", "email", "bio"}, nil, []string{"avatar"})
	if err != nil {
		handleError(w, r, err)
		return
	}
	change := auth.ProfileChange{
		Name:   f.value("name"),
		Email:  f.value("email"),
		Bio:    f.value("bio"),
		Avatar: f.file("avatar"),
	}
	user, err := a.accounts.UpdateProfile(r.Context(), viewerID(r), change)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventProfileUpdate, map[string]any{
		"name_changed":   change.Name != nil,
		"email_changed":  change.Email != nil,
		"avatar_changed": change.Avatar != nil,
	})
	writeJSON(w, http.StatusOK, user)
}
