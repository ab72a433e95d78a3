// Package tokenstore holds the credential pair of the current session. Reads
// are served from memory; every write goes through to the local database in
// a single transaction so the stored pair is never half replaced.
package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/repositories/metadata"
	"github.com/vroomly/rentclient/internal/client/repositories/tokens"
	"github.com/vroomly/rentclient/internal/cryptox"
	"github.com/vroomly/rentclient/internal/dbx"
	"github.com/vroomly/rentclient/internal/logging"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	saltKey = "token_salt"
)

// Store is safe for concurrent use. Concurrent Set and Clear calls are
// serialized; the last one wins both in memory and on disk.
type Store struct {
	db  *sql.DB
	log logging.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
	secret     []byte
	now        func() time.Time

	// key is nil when tokens are stored unsealed.
	key []byte

	mu         sync.RWMutex
	access     string
	accessExp  time.Time
	refresh    string
	refreshExp time.Time
}

type Option func(*Store)

// WithTTL sets the lifetimes used when the server does not report one. The
// access TTL applies only to pairs without ExpiresAt.
func WithTTL(access, refresh time.Duration) Option {
	return func(s *Store) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithSecret enables sealing of stored token values.
func WithSecret(secret string) Option {
	return func(s *Store) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store bound to db. When a secret is configured the
// sealing key is derived here, creating the database salt on first use.
// Call Load to pick up a previously stored session.
func New(ctx context.Context, db *sql.DB, log logging.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		db:         db,
		log:        log,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.secret != nil {
		salt, err := s.salt(ctx)
		if err != nil {
			return nil, err
		}
		s.key = cryptox.DeriveKey(s.secret, salt)
	}
	return s, nil
}

func (s *Store) salt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)

		stored, err := repo.Get(ctx, saltKey)
		if err != nil {
			return err
		}
		if stored != nil {
			salt = stored
			return nil
		}

		salt = cryptox.NewSalt()
		return repo.Set(ctx, saltKey, salt)
	})
	if err != nil {
		return nil, fmt.Errorf("token salt: %w", err)
	}
	return salt, nil
}

// Get returns the live part of the stored pair: a token past its own expiry
// comes back empty. ok is false when neither token is live.
func (s *Store) Get() (models.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var creds models.Credentials
	if s.access != "" && now.Before(s.accessExp) {
		creds.AccessToken = s.access
		creds.ExpiresAt = s.accessExp
	}
	if s.refresh != "" && now.Before(s.refreshExp) {
		creds.RefreshToken = s.refresh
	}
	return creds, !creds.IsZero()
}

// Set replaces the stored pair. A new refresh token lives for the refresh
// TTL; a refresh token that did not change keeps its original expiry. A zero
// pair is the same as Clear.
func (s *Store) Set(ctx context.Context, creds models.Credentials) error {
	if creds.IsZero() {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	accessExp := creds.ExpiresAt
	if accessExp.IsZero() {
		accessExp = now.Add(s.accessTTL)
	}
	refreshExp := now.Add(s.refreshTTL)
	if creds.RefreshToken != "" && creds.RefreshToken == s.refresh && now.Before(s.refreshExp) {
		refreshExp = s.refreshExp
	}

	var rows []tokens.Row
	if creds.AccessToken != "" {
		row, err := s.row(tokens.KindAccess, creds.AccessToken, accessExp)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if creds.RefreshToken != "" {
		row, err := s.row(tokens.KindRefresh, creds.RefreshToken, refreshExp)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		return tokens.NewSQLiteRepository(tx).Replace(ctx, rows)
	})
	if err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	s.access, s.accessExp = creds.AccessToken, accessExp
	s.refresh, s.refreshExp = creds.RefreshToken, refreshExp
	if creds.RefreshToken == "" {
		s.refreshExp = time.Time{}
	}
	return nil
}

// Clear removes the pair from memory and disk.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// memory first: a failed delete must not leave the session usable
	s.reset()
	if err := tokens.NewSQLiteRepository(s.db).Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Load replaces the in-memory pair with what is on disk. Expired rows and
// rows that cannot be unsealed (the secret changed) are skipped.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := tokens.NewSQLiteRepository(s.db).List(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	s.reset()
	now := s.now()
	for _, row := range rows {
		if !now.Before(row.ExpiresAt) {
			s.log.Debug(ctx, "skipping expired token", "kind", row.Kind)
			continue
		}
		value, err := s.open(row)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable token", "kind", row.Kind, "err", err)
			continue
		}
		switch row.Kind {
		case tokens.KindAccess:
			s.access, s.accessExp = value, row.ExpiresAt
		case tokens.KindRefresh:
			s.refresh, s.refreshExp = value, row.ExpiresAt
		}
	}
	return nil
}

func (s *Store) reset() {
	s.access, s.accessExp = "", time.Time{}
	s.refresh, s.refreshExp = "", time.Time{}
}

func (s *Store) row(kind tokens.Kind, value string, expiresAt time.Time) (tokens.Row, error) {
	if s.key == nil {
		return tokens.Row{Kind: kind, Value: []byte(value), ExpiresAt: expiresAt}, nil
	}
	sealed, err := cryptox.Seal(s.key, []byte(value), []byte(kind))
	if err != nil {
		return tokens.Row{}, fmt.Errorf("seal %s token: %w", kind, err)
	}
	return tokens.Row{Kind: kind, Value: sealed, ExpiresAt: expiresAt}, nil
}

func (s *Store) open(row tokens.Row) (string, error) {
	if s.key == nil {
		return string(row.Value), nil
	}
	plain, err := cryptox.Open(s.key, row.Value, []byte(row.Kind))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
