package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vroomly/rentclient/internal/client/client"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/payment"
	"github.com/vroomly/rentclient/internal/client/reconcile"
	"github.com/vroomly/rentclient/internal/common"
)

// Interactive input, swapped in tests.
var (
	promptLine   = PromptLine
	promptSecret = PromptSecret
)

// Login prompts for email and password and replaces the current session.
// The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := promptLine(a.reader, a.out, "Email")
	if err != nil {
		a.report(err)
		return err
	}
	password, err := promptSecret(a.out, "Password")
	if err != nil {
		a.report(err)
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, email, password); err != nil {
		a.report(err)
		return err
	}
	a.out.Println("Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		a.report(err)
		return err
	}
	a.out.Println("Logged out")
	return nil
}

// Pay creates a payment for bookingID and prints where to pay. A zero
// amount accepts whatever the server quotes.
func (a *App) Pay(ctx context.Context, bookingID string, amount int64) error {
	intent, err := a.payments.Create(ctx, bookingID, amount)
	if errors.Is(err, payment.ErrInvalidTransition) {
		a.out.Printf("A payment for booking %s is already pending. Run 'cancel %s' to start over.\n", bookingID, bookingID)
		return err
	}
	if err != nil {
		a.report(err)
		return err
	}

	a.out.Printf("Payment for booking %s: %d\n", intent.BookingID, intent.Amount)
	if intent.Description != "" {
		a.out.Printf("  %s\n", intent.Description)
	}
	if intent.QRCodeURL != "" {
		a.out.Printf("  QR code:  %s\n", intent.QRCodeURL)
	}
	if intent.PaymentURL != "" {
		a.out.Printf("  Pay at:   %s\n", intent.PaymentURL)
	}
	a.out.Printf("  Return:   %s\n", a.listener.ReturnURL())
	a.out.Printf("  Expires in %s\n", formatSeconds(payment.SecondsLeft(intent.ExpiresAt, time.Now())))
	return nil
}

// Watch shows the countdown of the pending payment for at most limit, or
// until it runs out, the payment settles, or ctx is cancelled.
func (a *App) Watch(ctx context.Context, bookingID string, limit time.Duration) error {
	intent, err := a.payments.Current(ctx, bookingID)
	if err != nil {
		a.report(err)
		return err
	}
	if intent.Status != models.PaymentPending {
		a.out.Printf("Payment is %s\n", intent.Status)
		return nil
	}

	watchCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	settled := false
	countdown := payment.Countdown{ExpiresAt: intent.ExpiresAt}
	countdown.Run(watchCtx, a.config.CountdownTick, func(left int64) {
		current, err := a.payments.Current(watchCtx, bookingID)
		if err == nil && current.Status != models.PaymentPending {
			a.out.Printf("Payment is %s\n", current.Status)
			settled = true
			cancel()
			return
		}
		a.out.Printf("Expires in %s\n", formatSeconds(left))
	})
	if settled || ctx.Err() != nil {
		return nil
	}

	current, err := a.payments.Current(ctx, bookingID)
	if err != nil || current.Status != models.PaymentPending {
		return nil
	}
	if a.payments.LocallyExpired(current, time.Now()) {
		a.out.Printf("The payment window has passed. Run 'check %s' to confirm with the provider.\n", bookingID)
		return nil
	}
	if errors.Is(watchCtx.Err(), context.DeadlineExceeded) {
		a.out.Printf("Stopped watching. Run 'watch %s' to continue.\n", bookingID)
	}
	return nil
}

// Check asks the server for the outcome of a payment past its deadline.
func (a *App) Check(ctx context.Context, bookingID string) error {
	intent, err := a.payments.CheckExpiry(ctx, bookingID)
	if err != nil {
		a.report(err)
		return err
	}
	a.printIntent(intent)
	return nil
}

func (a *App) Cancel(ctx context.Context, bookingID string) error {
	intent, err := a.payments.Cancel(ctx, bookingID)
	if err != nil {
		a.report(err)
		return err
	}
	a.printIntent(intent)
	return nil
}

func (a *App) Retry(ctx context.Context, bookingID string) error {
	intent, err := a.reconciler.Retry(ctx, bookingID)
	if err != nil {
		a.report(err)
		return err
	}
	a.out.Printf("New payment for booking %s, expires in %s\n",
		intent.BookingID, formatSeconds(payment.SecondsLeft(intent.ExpiresAt, time.Now())))
	return nil
}

// Stay keeps the user on the payment result instead of the pending move to
// the booking list.
func (a *App) Stay() {
	if a.reconciler.CancelRedirect() {
		a.out.Println("Staying here.")
		return
	}
	a.out.Println("No redirect pending.")
}

// Status prints the session state, and the payment state when a booking is
// given.
func (a *App) Status(ctx context.Context, bookingID string) error {
	if a.isLoggedIn() {
		a.out.Println("Logged in")
	} else {
		a.out.Println("Not logged in")
	}
	if bookingID == "" {
		return nil
	}

	intent, err := a.payments.Current(ctx, bookingID)
	if err != nil {
		a.report(err)
		return err
	}
	a.printIntent(intent)
	return nil
}

func (a *App) printIntent(intent *models.PaymentIntent) {
	a.out.Printf("Booking %s: %s (amount %d)\n", intent.BookingID, intent.Status, intent.Amount)
	if intent.ProviderReference != "" {
		a.out.Printf("  Reference: %s\n", intent.ProviderReference)
	}
	if intent.Message != "" {
		a.out.Printf("  %s\n", intent.Message)
	}

	now := time.Now()
	switch {
	case a.payments.LocallyExpired(intent, now):
		a.out.Println("  Expired (not yet confirmed by the provider)")
	case intent.Status == models.PaymentPending:
		a.out.Printf("  Expires in %s\n", formatSeconds(payment.SecondsLeft(intent.ExpiresAt, now)))
	}
}

// showResult prints a reconciled return callback.
func (a *App) showResult(res *reconcile.Result) {
	switch res.Status {
	case models.PaymentSucceeded:
		a.out.Printf("Payment for booking %s succeeded.", res.BookingID)
		if res.Redirect != nil {
			a.out.Printf(" Opening bookings in %s.", formatSeconds(payment.SecondsLeft(res.Redirect.Deadline(), time.Now())))
		}
		a.out.Println()
	default:
		a.out.Printf("Payment for booking %s: %s. %s\n", res.BookingID, res.Status, res.Message)
		if res.Status == models.PaymentFailed {
			a.out.Printf("Run 'retry %s' to try again.\n", res.BookingID)
		}
	}
}

// report turns an error into a user-facing line. State machine misuse is a
// quiet no-op.
func (a *App) report(err error) {
	var apiErr *client.APIError

	switch {
	case errors.Is(err, client.ErrSessionExpired):
		a.out.Println("Your session has expired, please log in again.")
	case errors.Is(err, payment.ErrInvalidTransition):
		a.out.Println("Nothing to do for this payment.")
	case errors.Is(err, payment.ErrNoIntent):
		a.out.Println("No payment found for this booking.")
	case errors.Is(err, client.ErrRateLimited):
		msg := "Too many requests, please wait a moment."
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			msg = fmt.Sprintf("Too many requests, try again in %s.", apiErr.RetryAfter)
		}
		a.out.Println(msg)
	case errors.Is(err, client.ErrNetwork):
		a.out.Println("Server unreachable, check your connection.")
	case errors.Is(err, client.ErrServer):
		a.out.Println("The server had a problem, please try again later.")
	case errors.Is(err, client.ErrAuth):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			a.out.Println("Not authorized:", apiErr.Message)
			return
		}
		a.out.Println("Not authorized.")
	case errors.As(err, &apiErr) && apiErr.Message != "":
		a.out.Println(apiErr.Message)
	case errors.Is(err, payment.ErrPayment):
		a.out.Println("The payment could not be started. Please try again.")
	default:
		a.out.Println("Error:", err)
	}
}

func formatSeconds(s int64) string {
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
