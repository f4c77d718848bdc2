package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell.blog/internal/blog"
	"inkwell.blog/internal/ids"
)

// Posts is the PostgreSQL blog.Store. Likes, saves and links live in join
// tables and are folded back into comma separated lists on read.
type Posts struct {
	db  *sql.DB
	now func() time.Time
}

var _ blog.Store = (*Posts)(nil)

const postSelect = `
	select p.id, p.title, p.content, p.image_url, p.image_id, p.author_id, p.created_at, p.updated_at,
		coalesce((select array_to_string(array_agg(l.user_id order by l.created_at, l.user_id), ',') from post_likes l where l.post_id = p.id), ''),
		coalesce((select array_to_string(array_agg(v.user_id order by v.created_at, v.user_id), ',') from post_saves v where v.post_id = p.id), ''),
		coalesce((select array_to_string(array_agg(k.linked_id order by k.position), ',') from post_links k where k.post_id = p.id), '')
	from posts p`

func setTable(set blog.Set) (string, error) {
	switch set {
	case blog.Likes:
		return "post_likes", nil
	case blog.Saves:
		return "post_saves", nil
	default:
		return "", fmt.Errorf("%w: unknown set %d", blog.ErrInvalidInput, set)
	}
}

func (s *Posts) Create(ctx context.Context, p *blog.Post) error {
	if p == nil {
		return fmt.Errorf("%w: post is nil", blog.ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = ids.At(s.now())
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		insert into posts (id, title, content, image_url, image_id, author_id)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, p.ID, p.Title, p.Content, p.Image.URL, p.Image.ID, p.AuthorID).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return fmt.Errorf("%w: author does not exist", blog.ErrInvalidInput)
		}
		return err
	}
	if err := insertLinks(ctx, tx, p.ID, p.Links); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.Likes, p.Saves = []string{}, []string{}
	if p.Links == nil {
		p.Links = []string{}
	}
	return nil
}

func (s *Posts) Get(ctx context.Context, id string) (blog.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, postSelect+` where p.id = $1`, id))
}

func (s *Posts) List(ctx context.Context, offset, limit int) ([]blog.Post, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if offset < 0 || offset >= total || limit < 1 {
		return []blog.Post{}, total, nil
	}
	rows, err := s.db.QueryContext(ctx, postSelect+`
		order by p.created_at desc, p.id desc
		limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Posts) ListSavedBy(ctx context.Context, userID string) ([]blog.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		where exists (select 1 from post_saves sv where sv.post_id = p.id and sv.user_id = $1)
		order by p.created_at desc, p.id desc`, userID)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

func (s *Posts) Update(ctx context.Context, id string, upd blog.Update) (blog.Post, error) {
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
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Content != nil {
		add("content", *upd.Content)
	}
	if upd.Image != nil {
		add("image_url", upd.Image.URL)
		add("image_id", upd.Image.ID)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return blog.Post{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`update posts set %s where id = $%d`, strings.Join(sets, ", "), idx), args...)
	if err != nil {
		return blog.Post{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return blog.Post{}, err
	}
	if aff == 0 {
		return blog.Post{}, blog.ErrNotFound
	}
	if upd.Links != nil {
		if _, err := tx.ExecContext(ctx, `delete from post_links where post_id = $1`, id); err != nil {
			return blog.Post{}, err
		}
		if err := insertLinks(ctx, tx, id, *upd.Links); err != nil {
			return blog.Post{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return blog.Post{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes the post. Likes, saves and links on either side go with it
// through cascading foreign keys.
func (s *Posts) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from posts where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return blog.ErrNotFound
	}
	return nil
}

// Toggle removes the membership row if present and inserts it otherwise, in
// one statement.
func (s *Posts) Toggle(ctx context.Context, id string, set blog.Set, userID string) (blog.Post, error) {
	table, err := setTable(set)
	if err != nil {
		return blog.Post{}, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, `select 1 from posts where id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, err
	}
	query := fmt.Sprintf(`
		with removed as (
			delete from %[1]s where post_id = $1 and user_id = $2 returning user_id
		)
		insert into %[1]s (post_id, user_id)
		select $1, $2 where not exists (select 1 from removed)
		on conflict do nothing`, table)
	if _, err := s.db.ExecContext(ctx, query, id, userID); err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return blog.Post{}, blog.ErrNotFound
		}
		return blog.Post{}, err
	}
	return s.Get(ctx, id)
}

func (s *Posts) Titles(ctx context.Context, postIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, title from posts where id in (`+placeholders(1, len(postIDs))+`)`, anyArgs(postIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, postID string, links []string) error {
	for i, linked := range links {
		if _, err := tx.ExecContext(ctx,
			`insert into post_links (post_id, linked_id, position) values ($1, $2, $3)`, postID, linked, i); err != nil {
			if isPgCode(err, pgErrForeignKeyViolation) {
				return fmt.Errorf("%w: linked post %s does not exist", blog.ErrInvalidInput, linked)
			}
			return err
		}
	}
	return nil
}

func scanPost(row rowScanner) (blog.Post, error) {
	var (
		p                   blog.Post
		likes, saves, links string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Image.URL, &p.Image.ID, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt,
		&likes, &saves, &links)
	if errors.Is(err, sql.ErrNoRows) {
		return blog.Post{}, blog.ErrNotFound
	}
	if err != nil {
		return blog.Post{}, err
	}
	p.Likes, p.Saves, p.Links = splitIDs(likes), splitIDs(saves), splitIDs(links)
	return p, nil
}

func scanPosts(rows *sql.Rows) ([]blog.Post, error) {
	defer rows.Close()
	posts := []blog.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
