// Package models holds the rows the server persists.
package models

import "time"

// User is an account that can hold any number of access tokens.
type User struct {
	ID               int64
	ScreenName       string
	Name             string
	Email            string
	Password         []byte // bcrypt hash
	EmailVerifiedAt  *time.Time
	ProfilePhotoPath *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
