package auth

import (
	"time"

	"inkwell.blog/internal/media"
)

// User is a registered author or reader.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar,omitempty"`
	AvatarID     string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AvatarRef returns the stored avatar as a media reference.
func (u User) AvatarRef() media.Ref {
	return media.Ref{URL: u.Avatar, ID: u.AvatarID}
}

// UserUpdate carries a partial profile change. Nil fields are left alone.
type UserUpdate struct {
	Name   *string
	Email  *string
	Bio    *string
	Avatar *media.Ref
}

// ProfileChange is what a user may submit for their own profile.
type ProfileChange struct {
	Name   *string
	Email  *string
	Bio    *string
	Avatar *media.Upload
}

// Session is returned by register and login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}
