// Package services contains server-side business logic. AuthService handles
// registration, login, logout and resolving bearer tokens to users.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/dbx"
	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/server/auth"
	"github.com/waonpad/benkyo-1/internal/server/config"
	"github.com/waonpad/benkyo-1/internal/server/models"
	"github.com/waonpad/benkyo-1/internal/server/repositories/repomanager"
	"github.com/waonpad/benkyo-1/internal/server/repositories/users"
	"github.com/waonpad/benkyo-1/internal/server/validation"
)

// AuthResult is what a successful register or login hands back.
type AuthResult struct {
	User  *models.User
	Token string
}

// Identity is the authenticated caller: the user and the token used.
type Identity struct {
	User  *models.User
	Token *models.AccessToken
}

// AuthService registers, logs in and authenticates users. Unknown emails
// are still checked against dummyHash so both failures cost a bcrypt compare.
type AuthService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	validator             *validation.Validator
	logger                logging.Logger
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	bcryptCost            int
	dummyHash             []byte
	now                   func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, v *validation.Validator, cfg *config.Config, l logging.Logger) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	return &AuthService{
		db:                    db,
		repomanager:           m,
		validator:             v,
		logger:                l.With("module", "auth_service"),
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		bcryptCost:            cfg.BcryptCost,
		dummyHash:             dummy,
		now:                   time.Now,
	}
}

// Register validates the input, creates the user and issues its first token
// in one transaction. Validation problems come back as *validation.Errors.
func (s *AuthService) Register(ctx context.Context, in validation.RegisterInput) (*AuthResult, error) {
	verrs, err := s.validator.Register(ctx, in, s.repomanager.Users(s.db))
	if err != nil {
		s.logger.Error(ctx, "register validation lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if verrs != nil {
		return nil, verrs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error(ctx, "hashing password failed", "error", err)
		return nil, common.ErrorInternal
	}

	res, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*AuthResult, error) {
		user, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			ScreenName: in.ScreenName,
			Name:       in.Name,
			Email:      in.Email,
			Password:   hash,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating user: %w", err)
		}
		token, err := s.issueToken(ctx, tx, user)
		if err != nil {
			return nil, err
		}
		return &AuthResult{User: user, Token: token}, nil
	})
	if err != nil {
		var conflict *users.ConflictError
		if errors.As(err, &conflict) {
			// lost a race with a concurrent registration
			verrs := &validation.Errors{}
			verrs.Add(conflict.Field, fmt.Sprintf("The %s has already been taken.", displayName(conflict.Field)))
			return nil, verrs
		}
		s.logger.Error(ctx, "register failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", res.User.ID)
	return res, nil
}

// Login verifies credentials and issues a new token. presentedToken is the
// bearer token sent with the request, if any; login is refused only when it
// is a valid token of the very user logging in.
func (s *AuthService) Login(ctx context.Context, in validation.LoginInput, presentedToken string) (*AuthResult, error) {
	if verrs := s.validator.Login(in); verrs != nil {
		return nil, verrs
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep timing close to the found-user path
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(in.Password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	if presentedToken != "" {
		current, err := s.Authenticate(ctx, presentedToken)
		if err == nil && current.User.ID == user.ID {
			return nil, common.ErrAlreadyLoggedIn
		}
		if err != nil && !errors.Is(err, common.ErrorUnauthorized) {
			return nil, err
		}
	}

	token, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		return s.issueToken(ctx, tx, user)
	})
	if err != nil {
		s.logger.Error(ctx, "issuing token failed", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user. Every way a token can be
// bad maps to common.ErrorUnauthorized; storage failures map to
// common.ErrorInternal.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Identity, error) {
	claims, err := auth.ParseToken(tokenString, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	tokenID, err := claims.TokenID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	token, err := s.repomanager.AccessTokens(s.db).Find(ctx, tokenID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: token revoked", common.ErrorUnauthorized)
		}
		s.logger.Error(ctx, "token lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now()
	if token.UserID != claims.UserID || !auth.MatchHash(tokenString, token.TokenHash) {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrInvalidToken)
	}
	if token.Expired(now) {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenExpired)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: owner gone", common.ErrorUnauthorized)
		}
		s.logger.Error(ctx, "token owner lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.repomanager.AccessTokens(s.db).Touch(ctx, token.ID, now); err != nil {
		s.logger.Warn(ctx, "updating token last use failed", "error", err, "token_id", token.ID)
	}

	return &Identity{User: user, Token: token}, nil
}

// Logout deletes only the token the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, id *Identity) error {
	if err := s.repomanager.AccessTokens(s.db).Delete(ctx, id.Token.ID); err != nil {
		s.logger.Error(ctx, "deleting token failed", "error", err, "token_id", id.Token.ID)
		return common.ErrorInternal
	}
	s.logger.Info(ctx, "user logged out", "user_id", id.User.ID, "token_id", id.Token.ID)
	return nil
}

// PruneExpiredTokens removes tokens past their expiry.
func (s *AuthService) PruneExpiredTokens(ctx context.Context) (int64, error) {
	return s.repomanager.AccessTokens(s.db).PruneExpired(ctx, s.now())
}

// issueToken stores a token row, signs a token embedding its ID and then
// records the token's hash on the row.
func (s *AuthService) issueToken(ctx context.Context, db dbx.DBTX, user *models.User) (string, error) {
	row := &models.AccessToken{
		UserID: user.ID,
		Name:   user.Email + common.TokenNameSuffix,
	}
	if s.tokenValidityDuration > 0 {
		exp := s.now().Add(s.tokenValidityDuration)
		row.ExpiresAt = &exp
	}

	repo := s.repomanager.AccessTokens(db)
	row, err := repo.Create(ctx, row)
	if err != nil {
		return "", fmt.Errorf("error creating token: %w", err)
	}

	token, err := auth.GenerateToken(row.ID, user.ID, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	if err := repo.SetHash(ctx, row.ID, auth.HashToken(token)); err != nil {
		return "", fmt.Errorf("error storing token hash: %w", err)
	}
	return token, nil
}

func displayName(field string) string {
	out := []rune(field)
	for i, r := range out {
		if r == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
