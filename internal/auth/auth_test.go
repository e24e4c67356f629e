package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestStaticAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := NewStatic("admin", string(hash))

	cases := []struct {
		name     string
		user     string
		password string
		want     error
	}{
		{"valid", "admin", "s3nha", nil},
		{"username case", "ADMIN", "s3nha", nil},
		{"wrong password", "admin", "senha", ErrInvalidCredentials},
		{"unknown user", "root", "s3nha", ErrInvalidCredentials},
		{"empty", "", "", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := a.Authenticate(context.Background(), tc.user, tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Authenticate(%q) = %v, want %v", tc.user, err, tc.want)
			}
		})
	}
}

func TestUnconfigured(t *testing.T) {
	err := NewStatic("", "").Authenticate(context.Background(), "admin", "x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("abc")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := NewStatic("u", h).Authenticate(context.Background(), "u", "abc"); err != nil {
		t.Fatalf("round trip: %v", err)
	}
}
