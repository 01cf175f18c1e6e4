package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/server/validation"
	"github.com/waonpad/benkyo-1/internal/shared"
)

// respond writes r with HTTP status equal to r.Status. In legacy mode the
// application-level outcomes (validation and credential problems) go out
// as HTTP 200 with the real status left in the body.
func (s *Server) respond(c *gin.Context, r *shared.Result) {
	code := r.Status
	if s.cfg.LegacyStatusCodes && (code == http.StatusUnprocessableEntity || code == http.StatusBadRequest) {
		code = http.StatusOK
	}
	c.JSON(code, r)
}

func (s *Server) message(c *gin.Context, status int, msg string) {
	s.respond(c, &shared.Result{Status: status, Message: msg})
}

func (s *Server) abortWith(c *gin.Context, status int, msg string) {
	s.message(c, status, msg)
	c.Abort()
}

func (s *Server) validationFailed(c *gin.Context, errs *validation.Errors) {
	s.respond(c, &shared.Result{Status: http.StatusUnprocessableEntity, ValidationErrors: errs})
}

func (s *Server) tooManyAttempts(c *gin.Context, retryAfter time.Duration) {
	secs := int64(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header(common.RetryAfterHeaderName, strconv.FormatInt(secs, 10))
	s.message(c, http.StatusTooManyRequests, "Too many attempts. Please try again in "+strconv.FormatInt(secs, 10)+" seconds.")
}

// writeError maps service errors to payloads. Anything unrecognised is
// logged and answered with a bare 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		s.validationFailed(c, verrs)
	case errors.Is(err, common.ErrInvalidCredentials):
		s.message(c, http.StatusBadRequest, "Invalid credentials.")
	case errors.Is(err, common.ErrAlreadyLoggedIn):
		s.message(c, http.StatusBadRequest, "Already logged in.")
	case errors.Is(err, common.ErrorUnauthorized):
		s.message(c, http.StatusUnauthorized, "Unauthenticated.")
	default:
		if !errors.Is(err, common.ErrorInternal) {
			s.logger.Error(c.Request.Context(), "unhandled error", "error", err)
		}
		s.message(c, http.StatusInternalServerError, "Server Error")
	}
}
