package model

import (
	"context"
	"time"
)

// UserRole is a user's access level.
type UserRole string

const (
	// UserRoleEditor may manage questions and templates and run exports.
	UserRoleEditor UserRole = "editor"
	// UserRoleAdmin may additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User is an account allowed to use the API.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuthSession is an API token issued at login.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
