package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/logging"
)

// memStore is an in-memory TokenStore.
type memStore struct {
	mu      sync.Mutex
	creds   models.Credentials
	sets    int
	clears  int
	setErr  error
	present bool
}

func newMemStore(c models.Credentials) *memStore {
	return &memStore{creds: c, present: !c.IsZero()}
}

func (m *memStore) Get() (models.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, m.present
}

func (m *memStore) Set(_ context.Context, c models.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.creds, m.present = c, true
	m.sets++
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds, m.present = models.Credentials{}, false
	m.clears++
	return nil
}

// backend is a fake API: /auth/* plus a protected /bookings resource that
// accepts only the current access token.
type backend struct {
	t *testing.T

	mu           sync.Mutex
	access       string
	refresh      string
	refreshDelay time.Duration
	// refreshStatus, when non-zero, makes /auth/refresh fail with it.
	refreshStatus int
	// staleGate, when set, holds every 401 answer until it is released.
	staleGate *sync.WaitGroup
	// rejectAll makes /bookings answer 401 to any token.
	rejectAll bool

	refreshCalls atomic.Int32
	seenTokens   sync.Map // token -> *atomic.Int32
	lastRefresh  refreshRequest
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{t: t, access: "access-2", refresh: "refresh-2"}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) hits(token string) int {
	v, ok := b.seenTokens.Load(token)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int32).Load())
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case loginPath:
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"token": b.access, "refreshToken": b.refresh, "expires": "2030-01-02T03:04:05Z",
		})
	case refreshPath:
		b.refreshCalls.Add(1)
		var req refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		time.Sleep(b.refreshDelay)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.lastRefresh = req
		if b.refreshStatus != 0 {
			writeJSON(w, b.refreshStatus, map[string]string{"message": "refresh token revoked"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": b.access, "refreshToken": b.refresh})
	case revokePath:
		w.WriteHeader(http.StatusNoContent)
	case "/bookings":
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		counter, _ := b.seenTokens.LoadOrStore(token, new(atomic.Int32))
		counter.(*atomic.Int32).Add(1)

		b.mu.Lock()
		valid := token == b.access && !b.rejectAll
		gate := b.staleGate
		b.mu.Unlock()

		if !valid {
			if gate != nil {
				gate.Done()
				gate.Wait()
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": []string{"b1", "b2"}})
	case "/limited":
		w.Header().Set("Retry-After", "7")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down"})
	case "/broken":
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	case "/invalid":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "booking is closed"})
	case "/forbidden":
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "not yours"})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestGateway(t *testing.T, srv *httptest.Server, store TokenStore, opts ...GatewayOption) *Gateway {
	t.Helper()
	return NewGateway(NewHTTPClient(srv.URL, 5*time.Second, logging.Nop()), store, logging.Nop(), opts...)
}

func nopLog() logging.Logger {
	return logging.Nop()
}
