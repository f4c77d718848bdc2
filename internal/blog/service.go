package blog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"inkwell.blog/internal/media"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	DefaultMaxPage  = 50
)

// Service implements post authoring, reading and reactions.
type Service struct {
	store       Store
	authors     Directory
	media       media.Gateway
	maxPageSize int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithMaxPageSize caps the page size accepted by List.
func WithMaxPageSize(n int) ServiceOption {
	return func(s *Service) error {
		if n < 1 {
			return fmt.Errorf("blog: max page size must be positive, got %d", n)
		}
		s.maxPageSize = n
		return nil
	}
}

// WithMedia sets the gateway used for post images.
func WithMedia(g media.Gateway) ServiceOption {
	return func(s *Service) error {
		if g != nil {
			s.media = g
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, authors Directory, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("blog: store is required")
	}
	if authors == nil {
		return nil, errors.New("blog: author directory is required")
	}
	svc := &Service{
		store:       store,
		authors:     authors,
		media:       media.Disabled{},
		maxPageSize: DefaultMaxPage,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Create stores a new post written by authorID.
func (s *Service) Create(ctx context.Context, authorID string, d Draft) (View, error) {
	if strings.TrimSpace(authorID) == "" {
		return View{}, fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	title, err := validateTitle(d.Title)
	if err != nil {
		return View{}, err
	}
	if err := validateContent(d.Content); err != nil {
		return View{}, err
	}

	p := Post{
		Title:    title,
		Content:  d.Content,
		AuthorID: authorID,
		Links:    normalizeLinks(d.Links),
	}
	if d.Image != nil {
		ref, err := s.media.Store(ctx, *d.Image)
		if err != nil {
			return View{}, err
		}
		p.Image = ref
	}
	if err := s.store.Create(ctx, &p); err != nil {
		media.Discard(ctx, s.media, p.Image, logrus.Fields{"author_id": authorID, "reason": "post create failed"})
		return View{}, err
	}
	return s.view(ctx, p, authorID, true)
}

// List returns one page of posts, newest first. Page and size below one fall
// back to defaults and size is capped.
func (s *Service) List(ctx context.Context, viewerID string, page, size int) (Page, error) {
	page, size = s.normalizePaging(page, size)
	posts, total, err := s.store.List(ctx, (page-1)*size, size)
	if err != nil {
		return Page{}, err
	}
	views, err := s.views(ctx, posts, viewerID)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Blogs:       views,
		CurrentPage: page,
		TotalPages:  (total + size - 1) / size,
		TotalBlogs:  total,
	}, nil
}

// Get returns a single post with linked post titles resolved.
func (s *Service) Get(ctx context.Context, viewerID, id string) (View, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, p, viewerID, true)
}

// Update applies e to the post if actorID wrote it.
func (s *Service) Update(ctx context.Context, actorID, id string, e Edit) (View, error) {
	current, err := s.owned(ctx, actorID, id)
	if err != nil {
		return View{}, err
	}

	var upd Update
	if e.Title != nil {
		title, err := validateTitle(*e.Title)
		if err != nil {
			return View{}, err
		}
		upd.Title = &title
	}
	if e.Content != nil {
		if err := validateContent(*e.Content); err != nil {
			return View{}, err
		}
		upd.Content = e.Content
	}
	if e.Links != nil {
		links := normalizeLinks(*e.Links)
		if slices.Contains(links, id) {
			return View{}, fmt.Errorf("%w: a post cannot link to itself", ErrInvalidInput)
		}
		upd.Links = &links
	}

	fields := logrus.Fields{"post_id": id, "author_id": actorID}
	if e.Image != nil {
		ref, err := s.media.Store(ctx, *e.Image)
		if err != nil {
			return View{}, err
		}
		upd.Image = &ref
	}
	updated, err := s.store.Update(ctx, id, upd)
	if err != nil {
		if upd.Image != nil {
			media.Discard(ctx, s.media, *upd.Image, fields)
		}
		return View{}, err
	}
	if upd.Image != nil && current.Image != *upd.Image {
		media.Discard(ctx, s.media, current.Image, fields)
	}
	return s.view(ctx, updated, actorID, true)
}

// Delete removes the post and its image if actorID wrote it. The image is
// removed first and a failure there does not keep the post.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	current, err := s.owned(ctx, actorID, id)
	if err != nil {
		return err
	}
	media.Discard(ctx, s.media, current.Image, logrus.Fields{"post_id": id, "author_id": actorID})
	return s.store.Delete(ctx, id)
}

// ToggleLike adds actorID to the post's likes, or removes it if present.
func (s *Service) ToggleLike(ctx context.Context, actorID, id string) (View, error) {
	return s.toggle(ctx, actorID, id, Likes)
}

// ToggleSave adds actorID to the post's saves, or removes it if present.
func (s *Service) ToggleSave(ctx context.Context, actorID, id string) (View, error) {
	return s.toggle(ctx, actorID, id, Saves)
}

// ListSaved returns the posts actorID has saved, newest first.
func (s *Service) ListSaved(ctx context.Context, actorID string) ([]View, error) {
	posts, err := s.store.ListSavedBy(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, posts, actorID)
}

func (s *Service) toggle(ctx context.Context, actorID, id string, set Set) (View, error) {
	if strings.TrimSpace(actorID) == "" {
		return View{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	p, err := s.store.Toggle(ctx, id, set, actorID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, p, actorID, false)
}

func (s *Service) owned(ctx context.Context, actorID, id string) (Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if actorID == "" || p.AuthorID != actorID {
		return Post{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}
	// keeps (page-1)*size from overflowing
	if last := math.MaxInt / size; page > last {
		page = last
	}
	return page, size
}

func (s *Service) view(ctx context.Context, p Post, viewerID string, withTitles bool) (View, error) {
	names, err := s.authors.Names(ctx, []string{p.AuthorID})
	if err != nil {
		return View{}, fmt.Errorf("resolve author: %w", err)
	}
	var titles map[string]string
	if withTitles && len(p.Links) > 0 {
		titles, err = s.store.Titles(ctx, p.Links)
		if err != nil {
			return View{}, fmt.Errorf("resolve links: %w", err)
		}
	}
	return render(p, names, titles, viewerID), nil
}

func (s *Service) views(ctx context.Context, posts []Post, viewerID string) ([]View, error) {
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		if !slices.Contains(authorIDs, p.AuthorID) {
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}
	names, err := s.authors.Names(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve authors: %w", err)
	}
	out := make([]View, 0, len(posts))
	for _, p := range posts {
		out = append(out, render(p, names, nil, viewerID))
	}
	return out, nil
}

// render builds the reader view. When titles is nil links are listed by id
// only; otherwise links missing from titles are dropped.
func render(p Post, names, titles map[string]string, viewerID string) View {
	v := View{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Image:       p.Image.URL,
		Author:      Author{ID: p.AuthorID, Name: names[p.AuthorID]},
		Likes:       cloneIDs(p.Likes),
		Saves:       cloneIDs(p.Saves),
		LinkedBlogs: make([]LinkView, 0, len(p.Links)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, id := range p.Links {
		if titles == nil {
			v.LinkedBlogs = append(v.LinkedBlogs, LinkView{ID: id})
			continue
		}
		if title, ok := titles[id]; ok {
			v.LinkedBlogs = append(v.LinkedBlogs, LinkView{ID: id, Title: title})
		}
	}
	if viewerID != "" {
		liked := slices.Contains(p.Likes, viewerID)
		saved := slices.Contains(p.Saves, viewerID)
		v.Liked, v.Saved = &liked, &saved
	}
	return v
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrInvalidInput, MaxTitleLength)
	}
	return title, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: content must be at most %d characters", ErrInvalidInput, MaxContentLength)
	}
	return nil
}

func normalizeLinks(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
