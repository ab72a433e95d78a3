package reconcile

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/client/payment"
)

// ErrMalformedCallback is a return redirect that cannot be reconciled.
var ErrMalformedCallback = fmt.Errorf("%w: malformed payment callback", payment.ErrPayment)

// ParseCallback reads the provider's return redirect query. success and
// bookingId are required; transactionId and message are optional.
func ParseCallback(q url.Values) (models.CallbackParams, error) {
	rawSuccess := strings.TrimSpace(q.Get("success"))
	if rawSuccess == "" {
		return models.CallbackParams{}, fmt.Errorf("%w: missing success", ErrMalformedCallback)
	}
	success, err := strconv.ParseBool(rawSuccess)
	if err != nil {
		return models.CallbackParams{}, fmt.Errorf("%w: success=%q", ErrMalformedCallback, rawSuccess)
	}

	bookingID := strings.TrimSpace(q.Get("bookingId"))
	if bookingID == "" {
		return models.CallbackParams{}, fmt.Errorf("%w: missing bookingId", ErrMalformedCallback)
	}

	return models.CallbackParams{
		Success:       success,
		BookingID:     bookingID,
		TransactionID: strings.TrimSpace(q.Get("transactionId")),
		Message:       q.Get("message"),
	}, nil
}
