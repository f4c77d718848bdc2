package blog

import (
	"context"
	"time"

	"inkwell.blog/internal/media"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 100000
)

// Post is a stored blog post. Likes, Saves and Links are sets of ids.
type Post struct {
	ID        string
	Title     string
	Content   string
	Image     media.Ref
	AuthorID  string
	Likes     []string
	Saves     []string
	Links     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Set names one of the per-post membership sets.
type Set int

const (
	Likes Set = iota + 1
	Saves
)

func (s Set) String() string {
	switch s {
	case Likes:
		return "likes"
	case Saves:
		return "saves"
	default:
		return "unknown"
	}
}

// Update carries a partial change to a post. Nil fields keep their values.
type Update struct {
	Title   *string
	Content *string
	Image   *media.Ref
	Links   *[]string
}

// Draft is what an author submits to create a post.
type Draft struct {
	Title   string
	Content string
	Image   *media.Upload
	Links   []string
}

// Edit is what an author submits to change a post.
type Edit struct {
	Title   *string
	Content *string
	Image   *media.Upload
	Links   *[]string
}

// Author is the public view of a post's author.
type Author struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// LinkView is a linked post reference.
type LinkView struct {
	ID    string `json:"_id"`
	Title string `json:"title,omitempty"`
}

// View is a post prepared for a reader. Liked and Saved are set only when
// the reader is known.
type View struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Image       string     `json:"image,omitempty"`
	Author      Author     `json:"author"`
	Likes       []string   `json:"likes"`
	Saves       []string   `json:"saves"`
	LinkedBlogs []LinkView `json:"linkedBlogs"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Liked       *bool      `json:"liked,omitempty"`
	Saved       *bool      `json:"saved,omitempty"`
}

// Page is one page of the post listing.
type Page struct {
	Blogs       []View `json:"blogs"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalBlogs  int    `json:"totalBlogs"`
}

// Directory resolves author display names.
type Directory interface {
	Names(ctx context.Context, userIDs []string) (map[string]string, error)
}
