package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/server/auth"
	"github.com/waonpad/benkyo-1/internal/server/models"
	"github.com/waonpad/benkyo-1/internal/server/observability"
	"github.com/waonpad/benkyo-1/internal/server/services"
	"github.com/waonpad/benkyo-1/internal/server/throttle"
	"github.com/waonpad/benkyo-1/internal/server/validation"
	"github.com/waonpad/benkyo-1/internal/shared"
)

const (
	msgRegistered     = "Registered successfully"
	msgLoggedIn       = "Logged in successfully"
	msgLoggedOut      = "Logged out successfully"
	msgProfileUpdated = "Profile information updated"
)

func (s *Server) register(c *gin.Context) {
	ctx := c.Request.Context()

	var in validation.RegisterInput
	if !s.bind(c, &in) {
		return
	}
	if !s.allow(c, "register:"+c.ClientIP()) {
		return
	}

	s.logger.Info(ctx, "Registration request")

	res, err := s.auth.Register(ctx, in)
	if err != nil {
		observability.AuthEventsTotal.WithLabelValues("register", outcome(err)).Inc()
		s.writeError(c, err)
		return
	}

	observability.AuthEventsTotal.WithLabelValues("register", "ok").Inc()
	s.respond(c, authResult(res, msgRegistered))
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()

	var in validation.LoginInput
	if !s.bind(c, &in) {
		return
	}
	key := throttle.LoginKey(in.Email, c.ClientIP())
	if !s.allow(c, key) {
		return
	}

	presented, _ := auth.BearerToken(c.GetHeader(common.AuthorizationHeaderName))

	res, err := s.auth.Login(ctx, in, presented)
	if err != nil {
		observability.AuthEventsTotal.WithLabelValues("login", outcome(err)).Inc()
		s.writeError(c, err)
		return
	}

	if err := s.limiter.Clear(ctx, key); err != nil {
		s.logger.Warn(ctx, "clearing login throttle failed", "error", err)
	}

	observability.AuthEventsTotal.WithLabelValues("login", "ok").Inc()
	s.respond(c, authResult(res, msgLoggedIn))
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), identity(c)); err != nil {
		observability.AuthEventsTotal.WithLabelValues("logout", outcome(err)).Inc()
		s.writeError(c, err)
		return
	}
	observability.AuthEventsTotal.WithLabelValues("logout", "ok").Inc()
	s.message(c, http.StatusOK, msgLoggedOut)
}

func (s *Server) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, s.userResource(identity(c).User))
}

func (s *Server) updateProfile(c *gin.Context) {
	ctx := c.Request.Context()

	var in validation.ProfileInput
	if !s.bind(c, &in) {
		return
	}

	photo, err := s.readPhoto(c)
	if err != nil {
		s.logger.Warn(ctx, "reading photo upload failed", "error", err)
		s.message(c, http.StatusBadRequest, "Malformed request body.")
		return
	}

	if _, err := s.profile.Update(ctx, identity(c).User, in, photo); err != nil {
		s.writeError(c, err)
		return
	}
	s.message(c, http.StatusOK, msgProfileUpdated)
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes JSON, urlencoded or multipart bodies by content type. An
// empty body leaves dst zeroed so the validator reports the missing fields.
func (s *Server) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBind(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	s.logger.Debug(c.Request.Context(), "binding request failed", "error", err)

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		s.validationFailed(c, validation.NotString(typeErr.Field))
		return false
	}
	s.message(c, http.StatusBadRequest, "Malformed request body.")
	return false
}

// allow consults the limiter. A broken limiter lets the request through.
func (s *Server) allow(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	ok, retryAfter, err := s.limiter.Hit(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "throttle unavailable", "error", err)
		return true
	}
	if !ok {
		observability.ThrottledTotal.Inc()
		s.tooManyAttempts(c, retryAfter)
		return false
	}
	return true
}

// readPhoto returns the optional "photo" part of a multipart body. At most
// one byte over the size limit is read; that is enough to reject it.
func (s *Server) readPhoto(c *gin.Context) (*services.PhotoUpload, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	fh, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if s.cfg.MaxPhotoSize > 0 {
		r = io.LimitReader(f, s.cfg.MaxPhotoSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &services.PhotoUpload{Filename: fh.Filename, Data: data}, nil
}

func (s *Server) userResource(u *models.User) shared.User {
	return shared.User{
		ID:              u.ID,
		ScreenName:      u.ScreenName,
		Name:            u.Name,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		ProfilePhotoURL: s.profile.PhotoURL(u),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func authResult(res *services.AuthResult, msg string) *shared.Result {
	return &shared.Result{
		Status:  http.StatusOK,
		Message: msg,
		User: &shared.UserSummary{
			ID:         res.User.ID,
			ScreenName: res.User.ScreenName,
			Name:       res.User.Name,
			Email:      res.User.Email,
		},
		Token: res.Token,
	}
}

func outcome(err error) string {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		return "invalid"
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrAlreadyLoggedIn):
		return "rejected"
	default:
		return "error"
	}
}
