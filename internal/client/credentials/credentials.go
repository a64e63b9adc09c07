// Package credentials persists the access/reference token pair of the
// authenticated user.
//
// The store is the only durable state the refresh coordinator shares with
// the request pipeline. Both tokens are written together as one encrypted
// record so a reader never observes one token updated and the other stale,
// and a partially populated record is treated as absent.
//
// Failures are never fatal: Load degrades to "no credentials" (logging the
// cause), while Save and Clear return a *StoreError the caller may ignore.
package credentials

import (
	"context"
	"errors"
)

// ErrCredentialStore is matched (errors.Is) by every *StoreError.
var ErrCredentialStore = errors.New("credential store error")

// ErrIncomplete is returned by Save for a pair with a missing token.
var ErrIncomplete = errors.New("both access and refresh token are required")

// Credentials is the token pair issued by login and refresh.
type Credentials struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"referenceToken"`
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Store is the credential persistence contract.
type Store interface {
	// Save atomically replaces the stored pair.
	Save(ctx context.Context, c Credentials) error
	// Load returns the stored pair, or false when it is missing, unreadable
	// or incomplete.
	Load(ctx context.Context) (Credentials, bool)
	// Clear removes the stored pair. Clearing an empty store succeeds.
	Clear(ctx context.Context) error
}

// StoreError describes a failed persistence operation.
type StoreError struct {
	Op  string // "save", "load", "clear"
	Err error
}

func (e *StoreError) Error() string {
	return "credentials " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrCredentialStore
}
