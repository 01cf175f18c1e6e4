package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/dbx"
	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/server/models"
	"github.com/waonpad/benkyo-1/internal/server/photos"
	"github.com/waonpad/benkyo-1/internal/server/repositories/repomanager"
	"github.com/waonpad/benkyo-1/internal/server/repositories/users"
	"github.com/waonpad/benkyo-1/internal/server/validation"
)

// PhotoStore keeps profile photo objects. photos.S3Store implements it.
type PhotoStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// PhotoUpload is a photo received with a profile update.
type PhotoUpload struct {
	Filename string
	Data     []byte
}

const sniffLen = 512

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validator   *validation.Validator
	photos      PhotoStore
	logger      logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, v *validation.Validator, p PhotoStore, l logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		validator:   v,
		photos:      p,
		logger:      l.With("module", "profile_service"),
	}
}

// Update changes name and email of user and optionally replaces the profile
// photo. The new photo is uploaded before the row changes; the old one is
// removed only after the row points at the new one.
func (s *ProfileService) Update(ctx context.Context, user *models.User, in validation.ProfileInput, photo *PhotoUpload) (*models.User, error) {
	var vphoto *validation.Photo
	if photo != nil {
		head := photo.Data
		if len(head) > sniffLen {
			head = head[:sniffLen]
		}
		vphoto = &validation.Photo{Size: int64(len(photo.Data)), Head: head}
	}

	verrs, err := s.validator.Profile(ctx, user.ID, in, vphoto, s.repomanager.Users(s.db))
	if err != nil {
		s.logger.Error(ctx, "profile validation lookup failed", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}
	if verrs != nil {
		return nil, verrs
	}

	var oldKey string
	if user.ProfilePhotoPath != nil {
		oldKey = *user.ProfilePhotoPath
	}

	var newKey *string
	if photo != nil {
		mt := mimetype.Detect(photo.Data)
		key := photos.Key(user.ID, mt.Extension())
		if err := s.photos.Put(ctx, key, photo.Data, mt.String()); err != nil {
			s.logger.Error(ctx, "storing photo failed", "error", err, "user_id", user.ID)
			return nil, common.ErrorInternal
		}
		newKey = &key
	}

	updated, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		u, err := repo.UpdateProfile(ctx, user.ID, in.Name, in.Email)
		if err != nil {
			return nil, fmt.Errorf("error updating profile: %w", err)
		}
		if newKey != nil {
			if err := repo.UpdatePhotoPath(ctx, user.ID, newKey); err != nil {
				return nil, fmt.Errorf("error updating photo path: %w", err)
			}
			u.ProfilePhotoPath = newKey
		}
		return u, nil
	})
	if err != nil {
		if newKey != nil {
			s.removePhoto(ctx, *newKey)
		}
		var conflict *users.ConflictError
		if errors.As(err, &conflict) {
			verrs := &validation.Errors{}
			verrs.Add(conflict.Field, fmt.Sprintf("The %s has already been taken.", displayName(conflict.Field)))
			return nil, verrs
		}
		s.logger.Error(ctx, "profile update failed", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	if newKey != nil && oldKey != "" && oldKey != *newKey {
		s.removePhoto(ctx, oldKey)
	}

	s.logger.Info(ctx, "profile updated", "user_id", user.ID)
	return updated, nil
}

// PhotoURL is the public address of the user's photo, nil when there is none.
func (s *ProfileService) PhotoURL(u *models.User) *string {
	if u.ProfilePhotoPath == nil || *u.ProfilePhotoPath == "" {
		return nil
	}
	url := s.photos.URL(*u.ProfilePhotoPath)
	return &url
}

func (s *ProfileService) removePhoto(ctx context.Context, key string) {
	if err := s.photos.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "removing photo failed", "error", err, "key", key)
	}
}
