package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey            = "refresh"
	defaultRefreshTimeout = 10 * time.Second
)

// TokenStore is the credential holder the gateway reads on every call and
// replaces after a refresh.
type TokenStore interface {
	Get() (models.Credentials, bool)
	Set(ctx context.Context, creds models.Credentials) error
	Clear(ctx context.Context) error
}

// Refresher obtains a new credential pair from the current one.
type Refresher interface {
	Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error)
}

// Request is one API call. The attempt counter is fixed at construction;
// a retry is a new Request value.
type Request struct {
	Method  string
	Path    string
	Body    any
	attempt int
}

func NewRequest(method, path string, body any) Request {
	return Request{Method: method, Path: path, Body: body}
}

// Attempt is 0 for the original call and 1 for its single retry.
func (r Request) Attempt() int {
	return r.attempt
}

func (r Request) next() Request {
	r.attempt++
	return r
}

// Gateway wraps every authenticated API call: it attaches the bearer token,
// runs at most one refresh at a time on 401, retries the failed call once
// with the new token, and classifies every other failure without retrying.
type Gateway struct {
	http           *HTTPClient
	store          TokenStore
	refresher      Refresher
	refreshes      singleflight.Group
	refreshTimeout time.Duration
	onExpired      func(ctx context.Context)
	log            logging.Logger
}

type GatewayOption func(*Gateway)

// WithRefreshTimeout bounds a refresh call. The refresh does not inherit the
// cancellation of the request that triggered it.
func WithRefreshTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.refreshTimeout = d }
}

// WithSessionExpiredHook registers fn to run once per unrecoverable refresh,
// after credentials are cleared. Typically it routes to the login view.
func WithSessionExpiredHook(fn func(ctx context.Context)) GatewayOption {
	return func(g *Gateway) { g.onExpired = fn }
}

// WithRefresher overrides the refresh call, which defaults to the HTTP
// client's /auth/refresh.
func WithRefresher(r Refresher) GatewayOption {
	return func(g *Gateway) { g.refresher = r }
}

func NewGateway(c *HTTPClient, store TokenStore, log logging.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		http:           c,
		store:          store,
		refresher:      c,
		refreshTimeout: defaultRefreshTimeout,
		log:            log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do issues req and decodes a 2xx JSON body into out (which may be nil).
//
// Errors match ErrAuth (ErrSessionExpired when the session is gone),
// ErrNetwork, ErrServer, ErrRateLimited or ErrRequest.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	for {
		creds, _ := g.store.Get()

		resp, err := g.http.send(ctx, req.Method, req.Path, creds.AccessToken, req.Body)
		if err != nil {
			return err
		}
		if resp.status != http.StatusUnauthorized {
			if err := errorFor(resp); err != nil {
				return err
			}
			return decode(resp, out)
		}

		if req.Attempt() > 0 {
			// rejected even with a fresh token: no second refresh
			return errorFor(resp)
		}
		if err := g.refresh(ctx, creds.AccessToken); err != nil {
			return err
		}
		req = req.next()
	}
}

// refresh makes sure the store holds a token newer than stale. Concurrent
// callers share one in-flight refresh and all observe its outcome.
func (g *Gateway) refresh(ctx context.Context, stale string) error {
	if g.superseded(stale) {
		return nil
	}
	_, err, shared := g.refreshes.Do(refreshKey, func() (any, error) {
		return nil, g.runRefresh(ctx, stale)
	})
	if shared {
		g.log.Debug(ctx, "joined in-flight token refresh")
	}
	return err
}

// superseded reports whether a refresh already replaced the stale token.
func (g *Gateway) superseded(stale string) bool {
	cur, ok := g.store.Get()
	return ok && cur.AccessToken != "" && cur.AccessToken != stale
}

func (g *Gateway) runRefresh(ctx context.Context, stale string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.refreshTimeout)
	defer cancel()

	// a flight that finished just before this one started already did the work
	if g.superseded(stale) {
		return nil
	}

	cur, ok := g.store.Get()
	if !ok {
		// nothing to refresh: never logged in, or an earlier flight expired
		return ErrSessionExpired
	}
	if !cur.CanRefresh() {
		g.expire(ctx, "no refresh token")
		return ErrSessionExpired
	}

	g.log.Info(ctx, "refreshing access token")
	next, err := g.refresher.Refresh(ctx, cur)
	if err != nil {
		if recoverable(err) {
			g.log.Warn(ctx, "token refresh failed, keeping session", "err", err)
			return err
		}
		g.expire(ctx, err.Error())
		return ErrSessionExpired
	}

	if err := g.store.Set(ctx, next); err != nil {
		g.log.Error(ctx, "failed to store refreshed credentials", "err", err)
		return err
	}
	g.log.Info(ctx, "access token refreshed", "expires_at", next.ExpiresAt)
	return nil
}

// recoverable reports whether a refresh failure leaves the refresh token
// usable: the server was unreachable, overloaded or throttling us. Any
// rejection of the token itself is final.
func recoverable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer) || errors.Is(err, ErrRateLimited)
}

func (g *Gateway) expire(ctx context.Context, reason string) {
	g.log.Warn(ctx, "session expired, clearing credentials", "reason", reason)
	if err := g.store.Clear(ctx); err != nil {
		g.log.Error(ctx, "failed to clear credentials", "err", err)
	}
	if g.onExpired != nil {
		g.onExpired(ctx)
	}
}
