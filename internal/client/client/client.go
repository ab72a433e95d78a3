package client

import (
	"context"

	"github.com/vroomly/rentclient/internal/client/models"
)

// AuthAPI is the unauthenticated part of the backend contract.
type AuthAPI interface {
	Login(ctx context.Context, email string, password []byte) (models.Credentials, error)
	Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// Doer issues authenticated requests. Gateway is the production
// implementation; services depend on this interface.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

var (
	_ AuthAPI = (*HTTPClient)(nil)
	_ Doer    = (*Gateway)(nil)
)
