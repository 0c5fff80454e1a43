// Package storage defines the durable client-side session store. A store
// holds exactly two keys, "token" and "user", and writes them together.
package storage

import (
	"context"
	"errors"
)

// Key names as they appear in every backend.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrNotFound is returned by Load when no session has been saved.
var ErrNotFound = errors.New("storage: no session stored")

// Record is the persisted form of a session. User is the serialized
// profile JSON.
type Record struct {
	Token string
	User  string
}

// Valid reports whether both keys are present.
func (r Record) Valid() bool {
	return r.Token != "" && r.User != ""
}

// Store persists one Record. Save replaces any previous record with both
// keys or leaves it untouched.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
	Close() error
}

// ErrIncomplete is returned by Save for records missing a key.
var ErrIncomplete = errors.New("storage: record must carry both token and user")
