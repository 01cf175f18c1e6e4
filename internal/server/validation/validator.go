package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// UniqueLookup answers the uniqueness questions asked during validation.
// The users repository satisfies it.
type UniqueLookup interface {
	ScreenNameExists(ctx context.Context, screenName string) (bool, error)
	EmailExists(ctx context.Context, email string, exceptID int64) (bool, error)
}

type RegisterInput struct {
	ScreenName           string `json:"screen_name" form:"screen_name" validate:"required,max=16"`
	Name                 string `json:"name" form:"name" validate:"required,max=191"`
	Email                string `json:"email" form:"email" validate:"required,email,max=191"`
	Password             string `json:"password" form:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" validate:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type ProfileInput struct {
	Name  string `json:"name" form:"name" validate:"required,max=191"`
	Email string `json:"email" form:"email" validate:"required,email,max=191"`
}

// Photo describes an uploaded profile photo: its size and the first bytes
// of its content, enough for type detection.
type Photo struct {
	Size int64
	Head []byte
}

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type Validator struct {
	v            *validator.Validate
	maxPhotoSize int64
}

func New(maxPhotoSize int64) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v, maxPhotoSize: maxPhotoSize}
}

// Register checks field rules, then uniqueness of the fields that passed
// them. Only when all of that passes is the password confirmation compared.
// A nil result means the input is acceptable.
func (v *Validator) Register(ctx context.Context, in RegisterInput, lookup UniqueLookup) (*Errors, error) {
	errs := v.fieldErrors(in)

	if !errs.Has("screen_name") {
		taken, err := lookup.ScreenNameExists(ctx, in.ScreenName)
		if err != nil {
			return nil, fmt.Errorf("check screen_name: %w", err)
		}
		if taken {
			errs.Add("screen_name", takenMessage("screen_name"))
		}
	}
	if !errs.Has("email") {
		taken, err := lookup.EmailExists(ctx, in.Email, 0)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			errs.Add("email", takenMessage("email"))
		}
	}

	if !errs.Empty() {
		return errs, nil
	}

	if in.Password != in.PasswordConfirmation {
		errs.Add("password_confirmation", "The password confirmation does not match.")
		return errs, nil
	}

	return nil, nil
}

func (v *Validator) Login(in LoginInput) *Errors {
	errs := v.fieldErrors(in)
	if errs.Empty() {
		return nil
	}
	return errs
}

// Profile validates a profile update for userID. photo may be nil.
func (v *Validator) Profile(ctx context.Context, userID int64, in ProfileInput, photo *Photo, lookup UniqueLookup) (*Errors, error) {
	errs := v.fieldErrors(in)

	if !errs.Has("email") {
		taken, err := lookup.EmailExists(ctx, in.Email, userID)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			errs.Add("email", takenMessage("email"))
		}
	}

	if photo != nil {
		v.checkPhoto(photo, errs)
	}

	if errs.Empty() {
		return nil, nil
	}
	return errs, nil
}

func (v *Validator) checkPhoto(photo *Photo, errs *Errors) {
	mt := mimetype.Detect(photo.Head)
	if !mimetype.EqualsAny(mt.String(), allowedPhotoTypes...) {
		errs.Add("photo", "The photo must be a file of type: jpg, jpeg, png, gif, webp.")
	}
	if v.maxPhotoSize > 0 && photo.Size > v.maxPhotoSize {
		errs.Add("photo", fmt.Sprintf("The photo must not be greater than %d kilobytes.", v.maxPhotoSize/1024))
	}
}

func (v *Validator) fieldErrors(in any) *Errors {
	errs := &Errors{}

	err := v.v.Struct(in)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("input", err.Error())
		return errs
	}

	for _, fe := range verrs {
		// one message per field, the first failing rule
		if errs.Has(fe.Field()) {
			continue
		}
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	attr := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", attr)
	case "max":
		return fmt.Sprintf("The %s must not be greater than %s characters.", attr, fe.Param())
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", attr, fe.Param())
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", attr)
	default:
		return fmt.Sprintf("The %s is invalid.", attr)
	}
}

// NotString reports a field whose JSON value was not a string.
func NotString(field string) *Errors {
	errs := &Errors{}
	errs.Add(field, fmt.Sprintf("The %s must be a string.", strings.ReplaceAll(field, "_", " ")))
	return errs
}

func takenMessage(field string) string {
	return fmt.Sprintf("The %s has already been taken.", strings.ReplaceAll(field, "_", " "))
}
