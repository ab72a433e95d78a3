// Package intents persists payment intents so a return redirect can be
// reconciled after the client restarts.
package intents

import (
	"context"
	"errors"

	"github.com/vroomly/rentclient/internal/client/models"
)

// ErrStatusConflict is returned by UpdateStatus when the stored status is no
// longer the one the caller transitioned from.
var ErrStatusConflict = errors.New("payment intent status changed concurrently")

type Repository interface {
	Insert(ctx context.Context, intent *models.PaymentIntent) error
	// UpdateStatus writes the mutable fields of intent, but only if the stored
	// status still equals from.
	UpdateStatus(ctx context.Context, intent *models.PaymentIntent, from models.PaymentStatus) error
	GetByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	// LatestByBooking returns the most recently created intent of a booking.
	LatestByBooking(ctx context.Context, bookingID string) (*models.PaymentIntent, error)
}
