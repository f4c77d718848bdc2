package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"inkwell.blog/internal/media"
)

const (
	MinNameLength = 2
	MaxNameLength = 100
	MaxBioLength  = 1000
)

// Service handles registration, login and profile management.
type Service struct {
	users  UserStore
	tokens *Tokens
	media  media.Gateway
}

// NewService wires the account service. A nil gateway disables avatar uploads.
func NewService(users UserStore, tokens *Tokens, gateway media.Gateway) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if gateway == nil {
		gateway = media.Disabled{}
	}
	return &Service{users: users, tokens: tokens, media: gateway}, nil
}

// Register creates a user and returns a session for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateName(name); err != nil {
		return Session{}, err
	}
	if err := validateEmail(email); err != nil {
		return Session{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Session{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, &u); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// Login checks credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = VerifyPassword(string(dummyHash), password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to its user. A valid token whose user
// no longer exists is reported as ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.Find(ctx, claims.UserID())
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Me returns the current state of the acting user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.users.Find(ctx, userID)
}

// UpdateProfile applies a partial change to the acting user's profile. A new
// avatar replaces the previous one, which is then removed best-effort.
func (s *Service) UpdateProfile(ctx context.Context, userID string, change ProfileChange) (User, error) {
	current, err := s.users.Find(ctx, userID)
	if err != nil {
		return User{}, err
	}

	var upd UserUpdate
	if change.Name != nil {
		name := strings.TrimSpace(*change.Name)
		if err := validateName(name); err != nil {
			return User{}, err
		}
		upd.Name = &name
	}
	if change.Email != nil {
		email := normalizeEmail(*change.Email)
		if err := validateEmail(email); err != nil {
			return User{}, err
		}
		upd.Email = &email
	}
	if change.Bio != nil {
		bio := strings.TrimSpace(*change.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return User{}, fmt.Errorf("%w: bio must be at most %d characters", ErrInvalidInput, MaxBioLength)
		}
		upd.Bio = &bio
	}

	var fresh media.Ref
	if change.Avatar != nil {
		fresh, err = s.media.Store(ctx, *change.Avatar)
		if err != nil {
			return User{}, err
		}
		upd.Avatar = &fresh
	}

	updated, err := s.users.Update(ctx, userID, upd)
	if err != nil {
		if !fresh.IsZero() {
			media.Discard(ctx, s.media, fresh, logrus.Fields{"user_id": userID, "reason": "profile update failed"})
		}
		return User{}, err
	}
	if !fresh.IsZero() {
		media.Discard(ctx, s.media, current.AvatarRef(), logrus.Fields{"user_id": userID, "reason": "avatar replaced"})
	}
	return updated, nil
}

// Names resolves display names for author ids.
func (s *Service) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	return s.users.Names(ctx, userIDs)
}

func (s *Service) session(u User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength {
		return fmt.Errorf("%w: name must be at least %d characters", ErrInvalidInput, MinNameLength)
	}
	if n > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, MaxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if email == "" || at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	return nil
}
