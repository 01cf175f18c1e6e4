package accesstokens

import (
	"context"
	"time"

	"github.com/waonpad/benkyo-1/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.AccessToken) (*models.AccessToken, error)
	SetHash(ctx context.Context, id int64, hash string) error
	Find(ctx context.Context, id int64) (*models.AccessToken, error)
	Delete(ctx context.Context, id int64) error
	Touch(ctx context.Context, id int64, at time.Time) error
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}
