// Package payment drives the lifecycle of a payment intent: creation against
// the payment endpoint, the pending countdown, and terminal resolution.
//
//	created -> pending -> succeeded | failed | expired | cancelled
//
// Terminal states are final, except that a success reported by the provider
// for a locally cancelled intent is honored: cancelling only stops the
// client from waiting, it does not stop a payment already made.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vroomly/rentclient/internal/client/client"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/repositories/intents"
	"github.com/vroomly/rentclient/internal/common"
	"github.com/vroomly/rentclient/internal/logging"
)

const (
	createPath = "/payment/create-qr-payment"
	statusPath = "/payment/status"
)

// Outcome is a requested transition of the latest intent of a booking.
type Outcome struct {
	Status            models.PaymentStatus
	ProviderReference string
	Message           string
}

// Session owns the payment intents of the local client. Transitions are
// serialized; network calls run outside the lock.
type Session struct {
	api  client.Doer
	repo intents.Repository
	now  func() time.Time
	log  logging.Logger

	mu sync.Mutex
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(api client.Doer, repo intents.Repository, log logging.Logger, opts ...Option) *Session {
	s := &Session{api: api, repo: repo, now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type createRequest struct {
	BookingID string `json:"bookingId"`
}

type createResponse struct {
	PaymentID          string    `json:"paymentId"`
	QRCodeURL          string    `json:"qrCodeUrl"`
	PaymentURL         string    `json:"paymentUrl"`
	Amount             int64     `json:"amount"`
	ExpiresAt          time.Time `json:"expiresAt"`
	PaymentDescription string    `json:"paymentDescription"`
}

// Create starts a new payment attempt for bookingID and returns it in the
// pending state. A non-zero amount is the amount the caller expects to pay;
// a different amount from the server fails the creation. The deadline always
// comes from the server.
func (s *Session) Create(ctx context.Context, bookingID string, amount int64) (*models.PaymentIntent, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, creationError("booking id is required")
	}
	if amount < 0 {
		return nil, creationError("negative amount %d", amount)
	}

	if err := s.guardPending(ctx, bookingID); err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		Amount:    amount,
		CreatedAt: s.now(),
		Status:    models.PaymentCreated,
	}

	var resp createResponse
	req := client.NewRequest(http.MethodPost, createPath, createRequest{BookingID: bookingID})
	if err := s.api.Do(ctx, req, &resp); err != nil {
		s.log.Warn(ctx, "payment creation failed", "booking_id", bookingID, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrPaymentCreation, err)
	}

	switch {
	case resp.ExpiresAt.IsZero():
		return nil, creationError("no expiry in response")
	case !resp.ExpiresAt.After(intent.CreatedAt):
		return nil, creationError("expiry %s is not after creation %s",
			resp.ExpiresAt.Format(time.RFC3339), intent.CreatedAt.Format(time.RFC3339))
	case amount != 0 && resp.Amount != amount:
		return nil, creationError("amount %d does not match expected %d", resp.Amount, amount)
	case resp.Amount <= 0:
		return nil, creationError("invalid amount %d", resp.Amount)
	}

	intent.Amount = resp.Amount
	intent.ExpiresAt = resp.ExpiresAt
	intent.ProviderReference = resp.PaymentID
	intent.QRCodeURL = resp.QRCodeURL
	intent.PaymentURL = resp.PaymentURL
	intent.Description = resp.PaymentDescription
	intent.Status = models.PaymentPending
	intent.UpdatedAt = intent.CreatedAt

	if err := s.insertLatest(ctx, intent); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "payment intent pending",
		"booking_id", bookingID, "intent_id", intent.ID, "amount", intent.Amount, "expires_at", intent.ExpiresAt)

	out := *intent
	return &out, nil
}

// guardPending fails with ErrInvalidTransition while the latest intent of
// bookingID is pending and inside its payment window. Only the latest intent
// can be settled, so a second live payment would strand the first.
func (s *Session) guardPending(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pendingToSupersede(ctx, bookingID)
	return err
}

// pendingToSupersede returns the latest intent of bookingID when it is
// pending past its deadline and would be replaced by a new one. Callers hold
// s.mu.
func (s *Session) pendingToSupersede(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	latest, err := s.Current(ctx, bookingID)
	if errors.Is(err, ErrNoIntent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if latest.Status != models.PaymentPending {
		return nil, nil
	}
	if !s.LocallyExpired(latest, s.now()) {
		return nil, fmt.Errorf("%w: booking %s already has a pending payment", ErrInvalidTransition, bookingID)
	}
	return latest, nil
}

// insertLatest saves intent as the latest of its booking. A pending intent
// past its deadline is cancelled first so no booking has two pending intents.
func (s *Session) insertLatest(ctx context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale, err := s.pendingToSupersede(ctx, intent.BookingID)
	if err != nil {
		// another payment became pending while this one was being created
		s.log.Warn(ctx, "discarding created payment", "booking_id", intent.BookingID,
			"provider_reference", intent.ProviderReference, "err", err)
		return err
	}
	if stale != nil {
		next := *stale
		next.Status = models.PaymentCancelled
		next.Message = "superseded by a new payment"
		next.UpdatedAt = s.now()
		if err := s.repo.UpdateStatus(ctx, &next, models.PaymentPending); err != nil {
			return fmt.Errorf("supersede payment intent: %w", err)
		}
		s.log.Info(ctx, "payment intent superseded", "booking_id", intent.BookingID, "intent_id", stale.ID)
	}

	if err := s.repo.Insert(ctx, intent); err != nil {
		return fmt.Errorf("save payment intent: %w", err)
	}
	return nil
}

// Current returns the latest intent of bookingID, or ErrNoIntent.
func (s *Session) Current(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	intent, err := s.repo.LatestByBooking(ctx, bookingID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNoIntent)
	}
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// LocallyExpired reports whether a pending intent is past its deadline by
// the local clock. It is a display hint: the provider may still complete the
// payment, so nothing changes state because of it.
func (s *Session) LocallyExpired(intent *models.PaymentIntent, now time.Time) bool {
	return intent.Status == models.PaymentPending && now.After(intent.ExpiresAt)
}

// Cancel stops waiting for the pending intent of bookingID. Nothing is sent
// to the provider.
func (s *Session) Cancel(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	return s.Apply(ctx, bookingID, Outcome{Status: models.PaymentCancelled, Message: "cancelled by user"})
}

// Apply moves the latest intent of bookingID to o.Status. A transition the
// state machine does not allow fails with ErrInvalidTransition and changes
// nothing. Amount and deadline are never touched.
func (s *Session) Apply(ctx context.Context, bookingID string, o Outcome) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Current(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !allowed(current.Status, o.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, o.Status)
	}

	next := *current
	next.Status = o.Status
	if o.ProviderReference != "" {
		next.ProviderReference = o.ProviderReference
	}
	next.Message = o.Message
	next.UpdatedAt = s.now()

	if err := s.repo.UpdateStatus(ctx, &next, current.Status); err != nil {
		if errors.Is(err, intents.ErrStatusConflict) {
			if winner, gerr := s.repo.GetByID(ctx, current.ID); gerr == nil {
				return nil, fmt.Errorf("%w: %s -> %s: now %s", ErrInvalidTransition, current.Status, o.Status, winner.Status)
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		return nil, err
	}
	s.log.Info(ctx, "payment intent transition",
		"booking_id", bookingID, "intent_id", next.ID, "from", current.Status, "to", next.Status)
	return &next, nil
}

func allowed(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentCreated:
		return to == models.PaymentPending
	case models.PaymentPending:
		return to.IsTerminal()
	case models.PaymentCancelled:
		return to == models.PaymentSucceeded
	}
	return false
}

type statusResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// CheckExpiry settles a pending intent whose deadline has passed by asking
// the server for the authoritative status. Before the deadline, or for an
// intent that is no longer pending, it returns the intent without a network
// call. A provider that still reports the payment as pending leaves it
// pending.
func (s *Session) CheckExpiry(ctx context.Context, bookingID string) (*models.PaymentIntent, error) {
	intent, err := s.Current(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !s.LocallyExpired(intent, s.now()) {
		return intent, nil
	}

	var resp statusResponse
	path := statusPath + "?" + url.Values{"bookingId": {bookingID}}.Encode()
	if err := s.api.Do(ctx, client.NewRequest(http.MethodGet, path, nil), &resp); err != nil {
		return nil, fmt.Errorf("query payment status: %w", err)
	}

	status, err := parseStatus(resp.Status)
	if err != nil {
		return nil, err
	}
	if status == models.PaymentPending {
		s.log.Info(ctx, "payment past local deadline is still pending", "booking_id", bookingID)
		return intent, nil
	}
	return s.Apply(ctx, bookingID, Outcome{
		Status:            status,
		ProviderReference: resp.TransactionID,
		Message:           resp.Message,
	})
}

func parseStatus(raw string) (models.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "unpaid", "created":
		return models.PaymentPending, nil
	case "succeeded", "success", "paid":
		return models.PaymentSucceeded, nil
	case "failed", "declined":
		return models.PaymentFailed, nil
	case "expired":
		return models.PaymentExpired, nil
	case "cancelled", "canceled":
		return models.PaymentCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrPayment, raw)
}
