package blog

import "context"

// Store persists posts. Toggle must flip membership atomically with respect
// to concurrent callers.
type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id string) (Post, error)
	// List returns posts newest first, with ties broken by id descending,
	// and the total number of posts.
	List(ctx context.Context, offset, limit int) ([]Post, int, error)
	ListSavedBy(ctx context.Context, userID string) ([]Post, error)
	Update(ctx context.Context, id string, upd Update) (Post, error)
	Delete(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string, set Set, userID string) (Post, error)
	// Titles returns titles for the ids that exist.
	Titles(ctx context.Context, ids []string) (map[string]string, error)
}
