// Package tokens persists the credential pair of the current session, one
// row per token kind with its own expiry.
package tokens

import (
	"context"
	"time"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Row is one stored token. Value may be sealed by the caller.
type Row struct {
	Kind      Kind
	Value     []byte
	ExpiresAt time.Time
}

type Repository interface {
	// Replace drops every stored token and writes rows in their place.
	Replace(ctx context.Context, rows []Row) error
	List(ctx context.Context) ([]Row, error)
	Clear(ctx context.Context) error
}
