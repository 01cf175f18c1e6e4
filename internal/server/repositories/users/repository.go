package users

import (
	"context"

	"github.com/waonpad/benkyo-1/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ScreenNameExists(ctx context.Context, screenName string) (bool, error)
	// EmailExists ignores the user with id exceptID; pass 0 to check all users.
	EmailExists(ctx context.Context, email string, exceptID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, name, email string) (*models.User, error)
	UpdatePhotoPath(ctx context.Context, id int64, path *string) error
}
