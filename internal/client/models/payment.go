package models

import "time"

// PaymentStatus is the lifecycle state of a PaymentIntent.
type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether no regular transition may leave s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentExpired, PaymentCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentCreated, PaymentPending:
		return true
	}
	return s.IsTerminal()
}

// PaymentIntent tracks one attempt to pay for a booking.
//
// Amount and the two timestamps are fixed at creation. Only Status,
// ProviderReference, Message and UpdatedAt change afterwards.
type PaymentIntent struct {
	ID                string
	BookingID         string
	Amount            int64
	CreatedAt         time.Time
	ExpiresAt         time.Time
	Status            PaymentStatus
	ProviderReference string
	Message           string

	// QR payment hand-off data returned by the payment endpoint.
	QRCodeURL   string
	PaymentURL  string
	Description string

	UpdatedAt time.Time
}

// CallbackParams are the query parameters of the provider's return redirect.
type CallbackParams struct {
	Success       bool
	BookingID     string
	TransactionID string
	Message       string
}
