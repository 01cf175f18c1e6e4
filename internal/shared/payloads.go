// Package shared holds the JSON payloads exchanged between the HTTP API and
// its client, so both sides encode and decode the same shapes.
package shared

import "time"

// UserSummary is the user object embedded in register and login responses.
type UserSummary struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// User is the body of GET /api/user.
type User struct {
	ID              int64      `json:"id"`
	ScreenName      string     `json:"screen_name"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	ProfilePhotoURL *string    `json:"profile_photo_url"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Result is the envelope of every application-level answer. Depending on
// the outcome only some fields are set: Message for plain results,
// ValidationErrors for rejected input, User and Token after register or
// login.
type Result struct {
	Status           int          `json:"status"`
	Message          string       `json:"message,omitempty"`
	ValidationErrors *FieldErrors `json:"validation_errors,omitempty"`
	User             *UserSummary `json:"user,omitempty"`
	Token            string       `json:"token,omitempty"`
}

// OK reports whether the result carries status 200.
func (r *Result) OK() bool {
	return r != nil && r.Status == 200
}

type RegisterRequest struct {
	ScreenName           string `json:"screen_name"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
