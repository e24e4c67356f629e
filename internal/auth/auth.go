// Package auth checks the dashboard login against one configured credential.
// There are no sessions or tokens here; the caller records the outcome.
package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotConfigured      = errors.New("no admin credential configured")
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) error
}

// StaticAuthenticator accepts a single username with a bcrypt password hash.
type StaticAuthenticator struct {
	username string
	hash     []byte
}

var _ Authenticator = (*StaticAuthenticator)(nil)

func NewStatic(username, passwordHash string) *StaticAuthenticator {
	return &StaticAuthenticator{username: strings.TrimSpace(username), hash: []byte(strings.TrimSpace(passwordHash))}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) error {
	if a.username == "" || len(a.hash) == 0 {
		return ErrNotConfigured
	}
	if !strings.EqualFold(strings.TrimSpace(username), a.username) {
		// same work as a bad password
		_ = bcrypt.CompareHashAndPassword(a.hash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash to put in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
