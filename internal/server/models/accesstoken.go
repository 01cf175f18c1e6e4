package models

import "time"

// AccessToken is an issued bearer token. Only the SHA-256 hash of the token
// string is stored; the plain token is handed to the client once.
type AccessToken struct {
	ID         int64
	UserID     int64
	Name       string
	TokenHash  string
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
