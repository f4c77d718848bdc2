package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell.blog/internal/media"
)

type fakeGateway struct {
	mu      sync.Mutex
	stored  []media.Ref
	deleted []media.Ref
	failOn  string
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) Store(_ context.Context, u media.Upload) (media.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "store" {
		return media.Ref{}, errors.New("store failed")
	}
	ref := media.Ref{URL: "https://cdn.test/" + u.Filename, ID: u.Filename}
	f.stored = append(f.stored, ref)
	return ref, nil
}

func (f *fakeGateway) Delete(_ context.Context, ref media.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	if f.failOn == "delete" {
		return errors.New("delete failed")
	}
	return nil
}

func newTestService(t *testing.T, gw media.Gateway) (*Service, *InMemoryUsers) {
	t.Helper()
	tokens, err := NewTokens("test-secret", WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	users := NewInMemoryUsers()
	svc, err := NewService(users, tokens, gw)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, users
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "  Ada  ", "Ada@Example.COM", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Name != "Ada" || reg.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", reg.User)
	}
	if reg.User.PasswordHash == "secret1" || reg.User.PasswordHash == "" {
		t.Fatal("password should be stored hashed")
	}

	login, err := svc.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := svc.tokens.Verify(login.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != reg.User.ID {
		t.Fatalf("token bound to %s, want %s", claims.UserID(), reg.User.ID)
	}

	u, err := svc.Authenticate(ctx, login.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != reg.User.ID {
		t.Fatalf("authenticated %s, want %s", u.ID, reg.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	cases := []struct{ name, email, password string }{
		{"A", "a@example.com", "secret1"},
		{"Alice", "not-an-email", "secret1"},
		{"Alice", "@example.com", "secret1"},
		{"Alice", "alice@example.com", "12345"},
		{"Alice", "alice@example.com", strings.Repeat("x", MaxPasswordBytes+1)},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.name, tc.email, tc.password); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Register(%q, %q) = %v, want ErrInvalidInput", tc.name, tc.email, err)
		}
	}
}

func TestPasswordAtBcryptLimit(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	password := strings.Repeat("p", MaxPasswordBytes)
	if _, err := svc.Register(ctx, "Alice", "alice@example.com", password); err != nil {
		t.Fatalf("Register at limit: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", password); err != nil {
		t.Fatalf("Login at limit: %v", err)
	}
	if _, err := HashPassword(password + "p"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("HashPassword over limit = %v, want ErrInvalidInput", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "Alice Two", "ALICE@example.com", "secret2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
	if _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty body: got %v", err)
	}
}

func TestAuthenticateMissingUser(t *testing.T) {
	svc, _ := newTestService(t, nil)
	token, _, err := svc.tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUpdateProfileReplacesAvatar(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	id := reg.User.ID

	first, err := svc.UpdateProfile(ctx, id, ProfileChange{Avatar: &media.Upload{Filename: "one.png"}})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if first.Avatar != "https://cdn.test/one.png" {
		t.Fatalf("unexpected avatar: %s", first.Avatar)
	}
	if len(gw.deleted) != 0 {
		t.Fatalf("nothing to delete yet, got %v", gw.deleted)
	}

	bio := "  writes about Go  "
	second, err := svc.UpdateProfile(ctx, id, ProfileChange{Bio: &bio, Avatar: &media.Upload{Filename: "two.png"}})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if second.Bio != "writes about Go" || second.Name != "Alice" {
		t.Fatalf("unexpected profile: %+v", second)
	}
	if len(gw.deleted) != 1 || gw.deleted[0].ID != "one.png" {
		t.Fatalf("expected old avatar deleted, got %v", gw.deleted)
	}
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	bob, err := svc.Register(ctx, "Bob", "bob@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	taken := "alice@example.com"
	if _, err := svc.UpdateProfile(ctx, bob.User.ID, ProfileChange{Email: &taken}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	own := "BOB@example.com"
	u, err := svc.UpdateProfile(ctx, bob.User.ID, ProfileChange{Email: &own})
	if err != nil {
		t.Fatalf("re-saving own email: %v", err)
	}
	if u.Email != "bob@example.com" {
		t.Fatalf("unexpected email: %s", u.Email)
	}
	if u.PasswordHash != bob.User.PasswordHash {
		t.Fatal("profile update must not touch the password hash")
	}
	if _, err := svc.Login(ctx, "bob@example.com", "secret1"); err != nil {
		t.Fatalf("Login after profile update: %v", err)
	}
}

func TestUpdateProfileWithoutMedia(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = svc.UpdateProfile(ctx, reg.User.ID, ProfileChange{Avatar: &media.Upload{Filename: "a.png"}})
	if !errors.Is(err, media.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNamesSkipsUnknown(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	names, err := svc.Names(ctx, []string{reg.User.ID, "missing"})
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 1 || names[reg.User.ID] != "Alice" {
		t.Fatalf("unexpected names: %v", names)
	}
}
