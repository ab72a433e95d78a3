// Package models defines the client-side data models of the rental client:
// the credential pair of an auth session and the payment intent of a booking.
package models
