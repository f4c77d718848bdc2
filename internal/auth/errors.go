package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: email already registered")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
)
