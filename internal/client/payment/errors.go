package payment

import (
	"errors"
	"fmt"

	"github.com/vroomly/rentclient/internal/common"
)

var (
	// ErrPayment is the root of every payment failure shown to the user.
	ErrPayment = errors.New("payment failed")
	// ErrPaymentCreation wraps the cause when no usable intent came back
	// from the payment endpoint. Gateway errors stay matchable through it.
	ErrPaymentCreation = fmt.Errorf("%w: could not create payment", ErrPayment)

	// ErrInvalidTransition is a state machine misuse. It is rejected locally
	// and never reaches the server.
	ErrInvalidTransition = errors.New("invalid payment state transition")

	ErrNoIntent = fmt.Errorf("payment intent: %w", common.ErrNotFound)
)

func creationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPaymentCreation, fmt.Sprintf(format, args...))
}
