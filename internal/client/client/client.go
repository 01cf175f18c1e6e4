package client

import (
	"context"

	"github.com/waonpad/benkyo-1/internal/shared"
)

// Photo is a profile photo to upload.
type Photo struct {
	Filename string
	Data     []byte
}

// Client talks to the authentication API. Calls that answer with an
// application-level result return it as data, whatever its status; only
// transport problems and unreadable answers are errors.
type Client interface {
	SetToken(token string)
	Token() string
	Register(ctx context.Context, req shared.RegisterRequest) (*shared.Result, error)
	Login(ctx context.Context, req shared.LoginRequest) (*shared.Result, error)
	Logout(ctx context.Context) (*shared.Result, error)
	// User returns ErrUnauthorized when the token is missing or rejected.
	User(ctx context.Context) (*shared.User, error)
	UpdateProfile(ctx context.Context, req shared.ProfileRequest, photo *Photo) (*shared.Result, error)
}
