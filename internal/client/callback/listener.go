// Package callback serves the local return URL the payment provider
// redirects to once the user leaves its payment page.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/reconcile"
	"github.com/vroomly/rentclient/internal/logging"
)

// ReturnPath is where the provider sends the user back to.
const ReturnPath = "/payment/return"

type Reconciler interface {
	Reconcile(ctx context.Context, p models.CallbackParams) (*reconcile.Result, error)
}

type Listener struct {
	addr       string
	reconciler Reconciler
	onResult   func(*reconcile.Result)
	log        logging.Logger

	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener
}

type Option func(*Listener)

// WithResultHook is called with every reconciled callback, after the
// response is decided. The CLI uses it to show the outcome.
func WithResultHook(fn func(*reconcile.Result)) Option {
	return func(l *Listener) { l.onResult = fn }
}

func NewListener(addr string, r Reconciler, log logging.Logger, opts ...Option) *Listener {
	l := &Listener{addr: addr, reconciler: r, log: log}
	for _, opt := range opts {
		opt(l)
	}

	gin.SetMode(gin.ReleaseMode)
	l.engine = gin.New()
	l.engine.Use(gin.Recovery(), requestLogger(log))
	l.engine.GET(ReturnPath, l.handleReturn)
	return l
}

// Handler exposes the routes without a network listener.
func (l *Listener) Handler() http.Handler {
	return l.engine
}

// Start binds the address and serves in the background. With port 0 the
// chosen port is reported by Addr.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	l.listener = ln
	l.srv = &http.Server{
		Handler:      l.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.log.Info(context.Background(), "payment callback listener started", "addr", ln.Addr().String())
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error(context.Background(), "payment callback listener failed", "err", err)
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (l *Listener) Addr() string {
	if l.listener == nil {
		return l.addr
	}
	return l.listener.Addr().String()
}

// ReturnURL is the URL to hand to the provider as the redirect target.
func (l *Listener) ReturnURL() string {
	return "http://" + l.Addr() + ReturnPath
}

// Stop shuts the server down, waiting for in-flight callbacks until ctx ends.
func (l *Listener) Stop(ctx context.Context) error {
	if l.srv == nil {
		return nil
	}
	return l.srv.Shutdown(ctx)
}

type returnResponse struct {
	Status            models.PaymentStatus `json:"status"`
	BookingID         string               `json:"bookingId"`
	TransactionID     string               `json:"transactionId,omitempty"`
	Message           string               `json:"message,omitempty"`
	Replayed          bool                 `json:"replayed"`
	RedirectInSeconds int64                `json:"redirectInSeconds,omitempty"`
}

func (l *Listener) handleReturn(c *gin.Context) {
	params, err := reconcile.ParseCallback(c.Request.URL.Query())
	if err != nil {
		l.log.Warn(c.Request.Context(), "malformed payment callback", "query", c.Request.URL.RawQuery, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := l.reconciler.Reconcile(c.Request.Context(), params)
	if err != nil {
		l.log.Error(c.Request.Context(), "payment callback not reconciled", "booking_id", params.BookingID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment could not be confirmed, check the booking list"})
		return
	}

	body := returnResponse{
		Status:        res.Status,
		BookingID:     res.BookingID,
		TransactionID: res.ProviderReference,
		Message:       res.Message,
		Replayed:      res.Replayed,
	}
	if res.Redirect != nil {
		body.RedirectInSeconds = int64(time.Until(res.Redirect.Deadline()).Round(time.Second) / time.Second)
	}
	c.JSON(http.StatusOK, body)

	if l.onResult != nil {
		l.onResult(res)
	}
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(c.Request.Context(), "callback request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
