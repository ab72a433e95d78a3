// Package services contains application services for the rental client.
// This file defines the authentication service: login, logout and session
// restore on startup.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vroomly/rentclient/internal/client/client"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/logging"
)

// ErrNoCredentials is returned by Login for an empty email or password.
var ErrNoCredentials = errors.New("email and password are required")

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and store the credential pair.
//   - Logout: revoke the refresh token (best effort) and forget the session.
//   - Restore: pick up a session stored by a previous run.
//   - LoggedIn: whether a live session is held.
type AuthService interface {
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (bool, error)
	LoggedIn() bool
}

// SessionStore is the credential holder behind the service.
type SessionStore interface {
	Get() (models.Credentials, bool)
	Set(ctx context.Context, creds models.Credentials) error
	Clear(ctx context.Context) error
	Load(ctx context.Context) error
}

// authService is the concrete AuthService backed by the auth endpoints and
// the local token store.
type authService struct {
	api   client.AuthAPI
	store SessionStore
	log   logging.Logger
}

// NewAuthService constructs an AuthService bound to the given API client and store.
func NewAuthService(api client.AuthAPI, store SessionStore, log logging.Logger) AuthService {
	return &authService{api: api, store: store, log: log}
}

// Login replaces any current session with a new one. The password is not
// kept.
func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	email = strings.TrimSpace(email)
	if email == "" || len(password) == 0 {
		return ErrNoCredentials
	}

	creds, err := a.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	if err := a.store.Set(ctx, creds); err != nil {
		return fmt.Errorf("credentials saving error: %w", err)
	}
	a.log.Info(ctx, "logged in", "email", email, "expires_at", creds.ExpiresAt)
	return nil
}

// Logout always forgets the local session. A failed revoke is only logged:
// the server-side token then simply runs out.
func (a *authService) Logout(ctx context.Context) error {
	if creds, ok := a.store.Get(); ok && creds.CanRefresh() {
		if err := a.api.Revoke(ctx, creds.RefreshToken); err != nil {
			a.log.Warn(ctx, "refresh token revoke failed", "err", err)
		}
	}
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("logout error: %w", err)
	}
	a.log.Info(ctx, "logged out")
	return nil
}

// Restore loads the stored session and reports whether it is still usable.
// A session with only a live refresh token counts: the gateway refreshes it
// on the first call.
func (a *authService) Restore(ctx context.Context) (bool, error) {
	if err := a.store.Load(ctx); err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	return a.LoggedIn(), nil
}

func (a *authService) LoggedIn() bool {
	_, ok := a.store.Get()
	return ok
}
