package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vroomly/rentclient/internal/client/callback"
	"github.com/vroomly/rentclient/internal/client/client"
	"github.com/vroomly/rentclient/internal/client/config"
	"github.com/vroomly/rentclient/internal/client/payment"
	"github.com/vroomly/rentclient/internal/client/reconcile"
	"github.com/vroomly/rentclient/internal/client/repositories/intents"
	"github.com/vroomly/rentclient/internal/client/services"
	"github.com/vroomly/rentclient/internal/client/tokenstore"
	"github.com/vroomly/rentclient/internal/filex"
	"github.com/vroomly/rentclient/internal/logging"
)

type App struct {
	config     *config.Config
	db         *sql.DB
	auth       services.AuthService
	payments   *payment.Session
	reconciler *reconcile.Reconciler
	listener   *callback.Listener
	log        logging.Logger

	reader *bufio.Reader
	out    *syncWriter
}

// NewApp opens the local database and wires the session, payment and
// callback components. Output goes to out; input is read from in.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store, err := tokenstore.New(ctx, db, log,
		tokenstore.WithTTL(c.AccessTokenTTL, c.RefreshTokenTTL),
		tokenstore.WithSecret(c.StoreSecret),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config: c,
		db:     db,
		log:    log,
		reader: bufio.NewReader(in),
		out:    &syncWriter{w: out},
	}
	nav := &navigator{out: a.out}

	api := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout, log)
	gateway := client.NewGateway(api, store, log,
		client.WithRefreshTimeout(c.RefreshTimeout),
		client.WithSessionExpiredHook(func(context.Context) { nav.ToLogin() }),
	)

	a.auth = services.NewAuthService(api, store, log)
	a.payments = payment.NewSession(gateway, intents.NewSQLiteRepository(db), log)
	a.reconciler = reconcile.New(a.payments, nav, log, reconcile.WithRedirectDelay(c.RedirectDelay))
	a.listener = callback.NewListener(c.CallbackAddr, a.reconciler, log, callback.WithResultHook(a.showResult))
	return a, nil
}

// Run restores a stored session, starts the callback listener and serves
// the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ok, err := a.auth.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "could not restore session", "err", err)
	}
	if err := a.listener.Start(); err != nil {
		return err
	}

	a.out.Println("Welcome to the rental client (type 'help' for commands)")
	if ok {
		a.out.Println("Session restored.")
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
	return nil
}

// Close stops the listener, drops a pending redirect and closes the
// database.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.listener.Stop(ctx); err != nil {
		a.log.Warn(ctx, "callback listener shutdown", "err", err)
	}
	a.reconciler.Close()
	if err := a.db.Close(); err != nil {
		a.log.Warn(ctx, "database close", "err", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.auth.LoggedIn()
}

func (a *App) getStatus() string {
	if a.isLoggedIn() {
		return "(logged in)"
	}
	return "(guest)"
}

// navigator prints view changes; the CLI has no views to switch.
type navigator struct {
	out *syncWriter
}

func (n *navigator) ToBookings() {
	n.out.Println("→ bookings")
}

func (n *navigator) ToLogin() {
	n.out.Println("→ login")
}

// syncWriter serializes output from the REPL, the callback listener and
// timers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) Println(args ...any) {
	_, _ = fmt.Fprintln(s, args...)
}

func (s *syncWriter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s, format, args...)
}
