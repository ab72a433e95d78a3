// Package client contains the transport layer of the rental client.
//
// # Overview
//
//  1. HTTPClient speaks the backend's JSON contract (login, refresh, revoke)
//     and classifies responses into the error kinds below.
//  2. Gateway wraps every authenticated call: it attaches the bearer token,
//     coordinates a single in-flight refresh when the server answers 401,
//     retries the original request exactly once, and never retries other
//     failures.
//  3. InitDatabase and RunMigrations bootstrap the local SQLite database
//     that backs the token store and the payment intents.
//
// # Error Handling
//
// Callers match errors with errors.Is: ErrAuth, ErrSessionExpired,
// ErrNetwork, ErrServer, ErrRateLimited, ErrRequest. *APIError carries the
// HTTP status, the server message and, for 429, the Retry-After delay.
//
// # Concurrency
//
// HTTPClient and Gateway are safe for concurrent use. Any number of requests
// failing with 401 at the same time produce one refresh call.
package client
