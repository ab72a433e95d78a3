// Package common contains constants and sentinel errors shared by the
// rental client packages.
package common

// AuthorizationHeaderName carries the bearer access token on outbound
// API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName tags every outbound request so client and server
// logs can be correlated.
const RequestIDHeaderName = "X-Request-ID"
