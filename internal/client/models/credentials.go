package models

import "time"

// Credentials is the access/refresh pair of one authenticated session.
// It is always replaced as a whole; nothing mutates a single field of a
// stored pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token deadline. Zero when unknown.
	ExpiresAt time.Time
}

// IsZero reports whether neither token is present.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// CanRefresh reports whether the pair still carries a refresh token.
func (c Credentials) CanRefresh() bool {
	return c.RefreshToken != ""
}
