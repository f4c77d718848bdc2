package blog

import "errors"

var (
	ErrNotFound     = errors.New("blog: not found")
	ErrInvalidInput = errors.New("blog: invalid input")
	ErrForbidden    = errors.New("blog: not the author")
)
