// Package cli provides the interactive rental client.
//
// It wires configuration, the local SQLite store, the authenticated request
// gateway, the payment session and the return callback listener behind a
// small REPL. Typical flow: log in, create a payment for a booking, pay at
// the provider, and let the provider's redirect to the local listener settle
// the payment.
//
// Commands:
//   - login / logout
//   - pay, watch, check, cancel, retry for a booking's payment
//   - status
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
