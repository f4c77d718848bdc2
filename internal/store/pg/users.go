package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/ids"
)

// Users is the PostgreSQL auth.UserStore.
type Users struct {
	db  *sql.DB
	now func() time.Time
}

var _ auth.UserStore = (*Users)(nil)

const userColumns = `id, name, email, password_hash, bio, avatar_url, avatar_id, created_at, updated_at`

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	if u == nil {
		return fmt.Errorf("%w: user is nil", auth.ErrInvalidInput)
	}
	if u.ID == "" {
		u.ID = ids.At(s.now())
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, password_hash, bio, avatar_url, avatar_id)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Bio, u.Avatar, u.AvatarID).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Users) Find(ctx context.Context, id string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *Users) Update(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Bio != nil {
		add("bio", *upd.Bio)
	}
	if upd.Avatar != nil {
		add("avatar_url", upd.Avatar.URL)
		add("avatar_id", upd.Avatar.ID)
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update users set %s where id = $%d returning %s`, strings.Join(sets, ", "), idx, userColumns)
	args = append(args, id)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return u, nil
}

func (s *Users) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, name from users where id in (`+placeholders(1, len(userIDs))+`)`, anyArgs(userIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Bio, &u.Avatar, &u.AvatarID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}
