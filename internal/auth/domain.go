// Package auth implements the identity provider consumed by the sync
// engine. The data layer never interprets credentials beyond this package;
// sync only gates on "is a session present".
package auth

import (
	"context"
	"errors"
	"time"
)

// ErrEmailTaken indicates a sign-up against an existing account.
var ErrEmailTaken = errors.New("auth: email already registered")

// Session is the current signed-in state. A nil *Session means signed out.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider is the identity provider interface the data layer consumes.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// Current returns the session at this instant, nil when signed out.
	Current() *Session
	// Subscribe yields the current session on every auth-state change,
	// starting with the present state. The release func unregisters.
	Subscribe() (<-chan *Session, func())
}

// User is one account record.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository abstracts account persistence.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user User) error
}
