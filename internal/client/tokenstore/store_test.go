package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vroomly/rentclient/internal/client/client"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/repositories/tokens"
	"github.com/vroomly/rentclient/internal/logging"
)

var _ client.TokenStore = (*Store)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newStore(t *testing.T, db *sql.DB, clock *fakeClock, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := New(context.Background(), db, logging.Nop(), opts...)
	require.NoError(t, err)
	return s
}

func TestStore_EmptyByDefault(t *testing.T) {
	s := newStore(t, setupDB(t), newFakeClock())

	creds, ok := s.Get()
	assert.False(t, ok)
	assert.True(t, creds.IsZero())
}

func TestStore_SetGet(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, setupDB(t), clock)
	exp := clock.Now().Add(time.Hour)

	require.NoError(t, s.Set(context.Background(), models.Credentials{
		AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp,
	}))

	creds, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, models.Credentials{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp}, creds)
}

func TestStore_IndependentExpirations(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, setupDB(t), clock, WithTTL(time.Hour, 48*time.Hour))

	require.NoError(t, s.Set(context.Background(), models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	creds, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Hour), creds.ExpiresAt, "access TTL applies when the server sent no expiry")

	clock.Advance(2 * time.Hour)
	creds, ok = s.Get()
	require.True(t, ok, "refresh token outlives the access token")
	assert.Empty(t, creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.IsZero())

	clock.Advance(47 * time.Hour)
	_, ok = s.Get()
	assert.False(t, ok)
}

func TestStore_DefaultTTLs(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, setupDB(t), clock)

	require.NoError(t, s.Set(context.Background(), models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	clock.Advance(DefaultAccessTTL - time.Second)
	creds, _ := s.Get()
	assert.Equal(t, "a1", creds.AccessToken)

	clock.Advance(time.Second)
	creds, _ = s.Get()
	assert.Empty(t, creds.AccessToken)

	clock.Advance(DefaultRefreshTTL - DefaultAccessTTL)
	_, ok := s.Get()
	assert.False(t, ok)
}

func TestStore_SetReplacesWholesale(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	s := newStore(t, db, clock)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a2"}))

	creds, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "a2", creds.AccessToken)
	assert.Empty(t, creds.RefreshToken, "nothing from the old pair survives")

	rows, err := tokens.NewSQLiteRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tokens.KindAccess, rows[0].Kind)
}

func TestStore_UnrotatedRefreshTokenKeepsExpiry(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	s := newStore(t, db, clock, WithTTL(time.Hour, 7*24*time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	// refreshed six days later without a new refresh token
	clock.Advance(6 * 24 * time.Hour)
	require.NoError(t, s.Set(ctx, models.Credentials{
		AccessToken: "a2", RefreshToken: "r1", ExpiresAt: clock.Now().Add(3 * 24 * time.Hour),
	}))

	clock.Advance(25 * time.Hour)
	creds, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "a2", creds.AccessToken)
	assert.Empty(t, creds.RefreshToken, "r1 expires seven days after it was issued")

	reloaded := newStore(t, db, clock)
	require.NoError(t, reloaded.Load(ctx))
	creds, _ = reloaded.Get()
	assert.Empty(t, creds.RefreshToken)
}

func TestStore_RotatedRefreshTokenGetsFullLifetime(t *testing.T) {
	clock := newFakeClock()
	s := newStore(t, setupDB(t), clock, WithTTL(time.Hour, 7*24*time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))
	clock.Advance(6 * 24 * time.Hour)
	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a2", RefreshToken: "r2"}))

	clock.Advance(2 * 24 * time.Hour)
	creds, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "r2", creds.RefreshToken)
}

func TestStore_Clear(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	s := newStore(t, db, clock)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.Clear(ctx))

	_, ok := s.Get()
	assert.False(t, ok)

	rows, err := tokens.NewSQLiteRepository(db).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Set with a zero pair clears too
	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1"}))
	require.NoError(t, s.Set(ctx, models.Credentials{}))
	_, ok = s.Get()
	assert.False(t, ok)
}

func TestStore_LoadRehydrates(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	ctx := context.Background()
	exp := clock.Now().Add(time.Hour)

	first := newStore(t, db, clock)
	require.NoError(t, first.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp}))

	second := newStore(t, db, clock)
	_, ok := second.Get()
	require.False(t, ok, "nothing is read before Load")

	require.NoError(t, second.Load(ctx))
	creds, ok := second.Get()
	require.True(t, ok)
	assert.Equal(t, "a1", creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.Equal(exp))
}

func TestStore_LoadSkipsExpiredRows(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	ctx := context.Background()

	first := newStore(t, db, clock, WithTTL(time.Minute, time.Hour))
	require.NoError(t, first.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	clock.Advance(10 * time.Minute)
	second := newStore(t, db, clock)
	require.NoError(t, second.Load(ctx))

	creds, ok := second.Get()
	require.True(t, ok)
	assert.Empty(t, creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)

	clock.Advance(time.Hour)
	third := newStore(t, db, clock)
	require.NoError(t, third.Load(ctx))
	_, ok = third.Get()
	assert.False(t, ok)
}

func TestStore_SealedAtRest(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	ctx := context.Background()

	s := newStore(t, db, clock, WithSecret("device-secret"))
	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "access-plain", RefreshToken: "refresh-plain"}))

	rows, err := tokens.NewSQLiteRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotContains(t, string(row.Value), "plain")
	}

	reopened := newStore(t, db, clock, WithSecret("device-secret"))
	require.NoError(t, reopened.Load(ctx))
	creds, ok := reopened.Get()
	require.True(t, ok)
	assert.Equal(t, "access-plain", creds.AccessToken)
	assert.Equal(t, "refresh-plain", creds.RefreshToken)
}

func TestStore_WrongSecretLoadsNothing(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	ctx := context.Background()

	s := newStore(t, db, clock, WithSecret("device-secret"))
	require.NoError(t, s.Set(ctx, models.Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	other := newStore(t, db, clock, WithSecret("another-secret"))
	require.NoError(t, other.Load(ctx))
	_, ok := other.Get()
	assert.False(t, ok)
}

func TestStore_ConcurrentSetsLastWriteWins(t *testing.T) {
	clock := newFakeClock()
	db := setupDB(t)
	s := newStore(t, db, clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds := models.Credentials{AccessToken: fmt.Sprintf("a%d", i), RefreshToken: fmt.Sprintf("r%d", i)}
			assert.NoError(t, s.Set(ctx, creds))
		}(i)
	}
	wg.Wait()

	mem, ok := s.Get()
	require.True(t, ok)
	// the pair in memory is one of the written pairs and matches the disk
	assert.Equal(t, mem.AccessToken[1:], mem.RefreshToken[1:])

	reloaded := newStore(t, db, clock)
	require.NoError(t, reloaded.Load(ctx))
	disk, _ := reloaded.Get()
	assert.Equal(t, mem.AccessToken, disk.AccessToken)
	assert.Equal(t, mem.RefreshToken, disk.RefreshToken)
}
