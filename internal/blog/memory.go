package blog

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"inkwell.blog/internal/ids"
)

// InMemory is a Store kept in process memory. Every mutation happens under a
// single lock, which makes Toggle atomic.
type InMemory struct {
	mu    sync.RWMutex
	posts map[string]Post
	now   func() time.Time
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemory {
	return &InMemory{posts: make(map[string]Post), now: time.Now}
}

func (s *InMemory) Create(_ context.Context, p *Post) error {
	if p == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range p.Links {
		if _, ok := s.posts[id]; !ok {
			return fmt.Errorf("%w: linked post %s does not exist", ErrInvalidInput, id)
		}
	}
	now := s.now().UTC()
	if p.ID == "" {
		p.ID = ids.At(now)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.Likes, p.Saves = []string{}, []string{}
	p.Links = cloneIDs(p.Links)
	s.posts[p.ID] = clonePost(*p)
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *InMemory) List(_ context.Context, offset, limit int) ([]Post, int, error) {
	s.mu.RLock()
	all := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, p)
	}
	s.mu.RUnlock()

	sortNewestFirst(all)
	total := len(all)
	if offset < 0 || offset >= total {
		return []Post{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]Post, 0, end-offset)
	for _, p := range all[offset:end] {
		out = append(out, clonePost(p))
	}
	return out, total, nil
}

func (s *InMemory) ListSavedBy(_ context.Context, userID string) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Post{}
	for _, p := range s.posts {
		if slices.Contains(p.Saves, userID) {
			out = append(out, clonePost(p))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) Update(_ context.Context, id string, upd Update) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	if upd.Links != nil {
		for _, link := range *upd.Links {
			if _, ok := s.posts[link]; !ok {
				return Post{}, fmt.Errorf("%w: linked post %s does not exist", ErrInvalidInput, link)
			}
		}
		p.Links = cloneIDs(*upd.Links)
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Image != nil {
		p.Image = *upd.Image
	}
	p.UpdatedAt = s.now().UTC()
	s.posts[id] = p
	return clonePost(p), nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	for key, p := range s.posts {
		if i := slices.Index(p.Links, id); i >= 0 {
			p.Links = slices.Delete(slices.Clone(p.Links), i, i+1)
			s.posts[key] = p
		}
	}
	return nil
}

func (s *InMemory) Toggle(_ context.Context, id string, set Set, userID string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	switch set {
	case Likes:
		p.Likes = toggleMember(p.Likes, userID)
	case Saves:
		p.Saves = toggleMember(p.Saves, userID)
	default:
		return Post{}, fmt.Errorf("%w: unknown set %d", ErrInvalidInput, set)
	}
	s.posts[id] = p
	return clonePost(p), nil
}

func (s *InMemory) Titles(_ context.Context, postIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(postIDs))
	for _, id := range postIDs {
		if p, ok := s.posts[id]; ok {
			out[id] = p.Title
		}
	}
	return out, nil
}

// Ping reports the store as always ready.
func (s *InMemory) Ping(context.Context) error { return nil }

func toggleMember(members []string, userID string) []string {
	if i := slices.Index(members, userID); i >= 0 {
		return slices.Delete(slices.Clone(members), i, i+1)
	}
	return append(slices.Clone(members), userID)
}

func sortNewestFirst(posts []Post) {
	slices.SortFunc(posts, func(a, b Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

func cloneIDs(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

func clonePost(p Post) Post {
	p.Likes = cloneIDs(p.Likes)
	p.Saves = cloneIDs(p.Saves)
	p.Links = cloneIDs(p.Links)
	return p
}
