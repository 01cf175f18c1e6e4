// Package httpapi serves the JSON authentication API over gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/server/config"
	"github.com/waonpad/benkyo-1/internal/server/models"
	"github.com/waonpad/benkyo-1/internal/server/services"
	"github.com/waonpad/benkyo-1/internal/server/throttle"
	"github.com/waonpad/benkyo-1/internal/server/validation"
)

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, in validation.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, in validation.LoginInput, presentedToken string) (*services.AuthResult, error)
	Authenticate(ctx context.Context, token string) (*services.Identity, error)
	Logout(ctx context.Context, id *services.Identity) error
}

// ProfileService is the part of services.ProfileService the handlers use.
type ProfileService interface {
	Update(ctx context.Context, user *models.User, in validation.ProfileInput, photo *services.PhotoUpload) (*models.User, error)
	PhotoURL(u *models.User) *string
}

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address string
	cfg     *config.Config
	auth    AuthService
	profile ProfileService
	limiter throttle.Limiter
	db      Pinger
	logger  logging.Logger
	handler http.Handler
}

func NewServer(cfg *config.Config, l logging.Logger, as AuthService, ps ProfileService, lim throttle.Limiter, db Pinger) *Server {
	s := &Server{
		address: cfg.EndpointAddrHTTP,
		cfg:     cfg,
		auth:    as,
		profile: ps,
		limiter: lim,
		db:      db,
		logger:  l.With("module", "http_server"),
	}
	s.handler = methodOverride(s.routes())
	return s
}

// Handler returns the full HTTP handler, method override included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.RequestTimeout,
		WriteTimeout:      s.cfg.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.cfg.MaxPhotoSize + 1<<20

	r.Use(gin.Recovery(), requestID(), s.accessLog(), metrics(), s.cors())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(metricsHandler()))

	api := r.Group("/api")
	{
		api.POST("/register", s.register)
		api.POST("/login", s.login)

		authed := api.Group("")
		authed.Use(s.requireAuth())
		{
			authed.POST("/logout", s.logout)
			authed.GET("/user", s.currentUser)
			authed.PUT("/user/profile-information", s.updateProfile)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "message": "Not Found"})
	})

	return r
}
