// Package reconcile finalizes payment intents from the provider's return
// redirect and drives what the user sees next.
//
// Reconciliation is idempotent per booking: once the latest intent of a
// booking is settled, replaying its callback returns the settled result and
// changes nothing.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/payment"
	"github.com/vroomly/rentclient/internal/logging"
)

const (
	DefaultRedirectDelay = 5 * time.Second

	// GenericFailureMessage is shown when the provider reports a failure
	// without a message.
	GenericFailureMessage = "The payment was not completed. Please try again."
)

// Payments is the part of payment.Session the reconciler drives.
type Payments interface {
	Current(ctx context.Context, bookingID string) (*models.PaymentIntent, error)
	Apply(ctx context.Context, bookingID string, o payment.Outcome) (*models.PaymentIntent, error)
	Create(ctx context.Context, bookingID string, amount int64) (*models.PaymentIntent, error)
}

// Navigator moves the user between views.
type Navigator interface {
	ToBookings()
}

// Result is what the return view shows.
type Result struct {
	Status            models.PaymentStatus
	BookingID         string
	ProviderReference string
	Message           string
	// Replayed is set when the intent was already settled and nothing changed.
	Replayed bool
	// Redirect is the pending navigation to the booking list after a
	// success. Nil otherwise.
	Redirect *RedirectTimer
}

type Reconciler struct {
	payments Payments
	nav      Navigator
	delay    time.Duration
	log      logging.Logger

	mu       sync.Mutex
	redirect *RedirectTimer
}

type Option func(*Reconciler)

func WithRedirectDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.delay = d
		}
	}
}

func New(payments Payments, nav Navigator, log logging.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{payments: payments, nav: nav, delay: DefaultRedirectDelay, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies a return callback to the latest intent of its booking.
// A callback for a booking without a local intent is reported back as is and
// stored nowhere.
func (r *Reconciler) Reconcile(ctx context.Context, p models.CallbackParams) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := payment.Outcome{
		Status:            models.PaymentFailed,
		ProviderReference: p.TransactionID,
		Message:           p.Message,
	}
	if p.Success {
		outcome.Status = models.PaymentSucceeded
	} else if outcome.Message == "" {
		outcome.Message = GenericFailureMessage
	}

	current, err := r.payments.Current(ctx, p.BookingID)
	if errors.Is(err, payment.ErrNoIntent) {
		r.log.Warn(ctx, "payment callback for unknown intent",
			"booking_id", p.BookingID, "success", p.Success, "transaction_id", p.TransactionID)
		res := &Result{
			Status:            outcome.Status,
			BookingID:         p.BookingID,
			ProviderReference: p.TransactionID,
			Message:           outcome.Message,
		}
		if p.Success {
			res.Redirect = r.scheduleRedirect()
		}
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile booking %s: %w", p.BookingID, err)
	}

	if settled(current, outcome.Status) {
		r.log.Info(ctx, "payment callback replayed", "booking_id", p.BookingID, "status", current.Status)
		return replayed(current), nil
	}

	updated, err := r.payments.Apply(ctx, p.BookingID, outcome)
	if errors.Is(err, payment.ErrInvalidTransition) {
		// lost a race with another writer; report what won
		current, cerr := r.payments.Current(ctx, p.BookingID)
		if cerr != nil {
			return nil, fmt.Errorf("reconcile booking %s: %w", p.BookingID, cerr)
		}
		return replayed(current), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile booking %s: %w", p.BookingID, err)
	}

	res := &Result{
		Status:            updated.Status,
		BookingID:         updated.BookingID,
		ProviderReference: updated.ProviderReference,
		Message:           updated.Message,
	}
	if updated.Status == models.PaymentSucceeded {
		res.Redirect = r.scheduleRedirect()
	}
	return res, nil
}

// settled reports whether the callback must not move the intent. A success
// for a cancelled intent is still applied.
func settled(intent *models.PaymentIntent, to models.PaymentStatus) bool {
	if !intent.Status.IsTerminal() {
		return false
	}
	return !(intent.Status == models.PaymentCancelled && to == models.PaymentSucceeded)
}

func replayed(intent *models.PaymentIntent) *Result {
	msg := intent.Message
	if intent.Status == models.PaymentFailed && msg == "" {
		msg = GenericFailureMessage
	}
	return &Result{
		Status:            intent.Status,
		BookingID:         intent.BookingID,
		ProviderReference: intent.ProviderReference,
		Message:           msg,
		Replayed:          true,
	}
}

// scheduleRedirect replaces any pending redirect. Callers hold r.mu.
func (r *Reconciler) scheduleRedirect() *RedirectTimer {
	if r.redirect != nil {
		r.redirect.Cancel()
	}
	r.redirect = newRedirectTimer(r.delay, time.Now(), r.nav.ToBookings)
	return r.redirect
}

// CancelRedirect drops a pending redirect, as when the user leaves the
// return view on their own. It reports whether one was pending.
func (r *Reconciler) CancelRedirect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.redirect == nil {
		return false
	}
	stopped := r.redirect.Cancel()
	r.redirect = nil
	return stopped
}

// Retry starts a new payment attempt for a booking whose latest intent
// ended without payment, for the same amount.
func (r *Reconciler) Retry(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	current, err := r.payments.Current(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.PaymentFailed, models.PaymentExpired, models.PaymentCancelled:
	default:
		return nil, fmt.Errorf("%w: cannot retry a %s payment", payment.ErrInvalidTransition, current.Status)
	}

	r.log.Info(ctx, "retrying payment", "booking_id", bookingID, "previous_intent", current.ID)
	return r.payments.Create(ctx, bookingID, current.Amount)
}

// Close cancels a pending redirect.
func (r *Reconciler) Close() {
	r.CancelRedirect()
}
