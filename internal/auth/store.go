package auth

import "context"

// UserStore persists users. Implementations return ErrNotFound for unknown
// ids or emails and ErrConflict when an email is already taken.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (User, error)
	// Names resolves display names for the given ids. Unknown ids are omitted.
	Names(ctx context.Context, ids []string) (map[string]string, error)
}
