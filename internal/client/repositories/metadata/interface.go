// Package metadata stores small key/value settings of the local client
// database, such as the salt used to seal credentials at rest.
package metadata

import "context"

// Repository is a byte-valued key/value store. Get returns (nil, nil) when
// the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
