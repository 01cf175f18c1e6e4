// Package services contains application services for the benkyo client.
// AuthService is the session store: it mirrors the authentication state of
// the current user, persists the issued token between runs and keeps both
// in step with the server.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/waonpad/benkyo-1/internal/client/client"
	"github.com/waonpad/benkyo-1/internal/client/repositories/metadata"
	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/shared"
)

type State int

const (
	Loading State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	State State
	User  *shared.User
	// ScreenName is the persisted auth_name, set while a token is held.
	ScreenName string
}

// HasUser reports whether the snapshot holds an authenticated user.
func (s Snapshot) HasUser() bool {
	return s.State == Authenticated && s.User != nil
}

type AuthService struct {
	client client.Client
	meta   metadata.Repository
	logger logging.Logger
	group  singleflight.Group

	mu    sync.RWMutex
	snap  Snapshot
	gen   uint64 // bumped on every session change
	subs  map[chan Snapshot]struct{}
	ready chan struct{}
	once  sync.Once
}

func NewAuthService(c client.Client, meta metadata.Repository, l logging.Logger) *AuthService {
	return &AuthService{
		client: c,
		meta:   meta,
		logger: l.With("module", "session"),
		snap:   Snapshot{State: Loading},
		subs:   make(map[chan Snapshot]struct{}),
		ready:  make(chan struct{}),
	}
}

// Snapshot returns the current state.
func (s *AuthService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Ready is closed once the first Bootstrap has finished.
func (s *AuthService) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe returns a channel receiving a snapshot after every state
// change, starting with the current one. Slow receivers miss intermediate
// snapshots; the latest one is always delivered. The channel is closed
// when ctx ends.
func (s *AuthService) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snap
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// Bootstrap loads the persisted token and resolves it to the current user.
// It always ends in Authenticated or Anonymous and closes Ready. A signin,
// registration or signout that lands while it runs wins over its result.
func (s *AuthService) Bootstrap(ctx context.Context) {
	defer s.once.Do(func() { close(s.ready) })

	_, _, _ = s.group.Do("bootstrap", func() (any, error) {
		gen := s.generation()
		token, name, err := s.loadPersisted(ctx)
		if err != nil {
			s.logger.Warn(ctx, "reading persisted session failed", "error", err)
			s.setIf(gen, Snapshot{State: Anonymous})
			return nil, nil
		}
		if token == "" {
			s.setIf(gen, Snapshot{State: Anonymous})
			return nil, nil
		}

		if !s.restoreToken(gen, token) {
			s.logger.Debug(ctx, "session changed during bootstrap")
			return nil, nil
		}
		s.refresh(ctx, name, gen)
		return nil, nil
	})
}

// Register submits the registration. A 200 result persists the token and
// screen name and then reloads the user; any other result is returned
// unchanged and leaves the state alone.
func (s *AuthService) Register(ctx context.Context, req shared.RegisterRequest) (*shared.Result, error) {
	return s.coalesce("register", req, func() (*shared.Result, error) {
		res, err := s.client.Register(ctx, req)
		if err != nil {
			return nil, err
		}
		return s.afterSignin(ctx, res)
	})
}

// Signin is Register's counterpart for existing accounts.
func (s *AuthService) Signin(ctx context.Context, req shared.LoginRequest) (*shared.Result, error) {
	return s.coalesce("signin", req, func() (*shared.Result, error) {
		res, err := s.client.Login(ctx, req)
		if err != nil {
			return nil, err
		}
		return s.afterSignin(ctx, res)
	})
}

// Signout asks the server to delete the current token, then clears the
// local session whatever the outcome. The request error, if any, is
// returned after clearing.
func (s *AuthService) Signout(ctx context.Context) error {
	_, err, _ := s.group.Do("signout", func() (any, error) {
		var reqErr error
		if s.client.Token() != "" {
			res, err := s.client.Logout(ctx)
			switch {
			case err != nil:
				reqErr = err
			case !res.OK() && res.Status != 401:
				reqErr = fmt.Errorf("logout answered with status %d", res.Status)
			}
		}

		s.setToken("")
		if err := s.meta.Delete(ctx, common.AuthTokenKey, common.AuthNameKey); err != nil {
			s.logger.Error(ctx, "clearing persisted session failed", "error", err)
			reqErr = errors.Join(reqErr, err)
		}
		s.setAnonymous()
		return nil, reqErr
	})
	return err
}

// SaveProfile submits the profile update, with a new photo when one is
// given. A 200 result reloads the user. Transport errors and non-200
// results are returned to the caller.
func (s *AuthService) SaveProfile(ctx context.Context, req shared.ProfileRequest, photo *client.Photo) (*shared.Result, error) {
	payload := struct {
		Req   shared.ProfileRequest
		Photo *client.Photo
	}{req, photo}
	return s.coalesce("profile", payload, func() (*shared.Result, error) {
		gen := s.generation()
		res, err := s.client.UpdateProfile(ctx, req, photo)
		if err != nil {
			return nil, err
		}
		if res.OK() {
			s.refresh(ctx, s.Snapshot().ScreenName, gen)
		}
		return res, nil
	})
}

func (s *AuthService) afterSignin(ctx context.Context, res *shared.Result) (*shared.Result, error) {
	if !res.OK() {
		return res, nil
	}
	if res.Token == "" || res.User == nil {
		return nil, fmt.Errorf("%w: success without token", client.ErrUnexpectedResponse)
	}

	if err := s.meta.SetMany(ctx, map[string]string{
		common.AuthTokenKey: res.Token,
		common.AuthNameKey:  res.User.ScreenName,
	}); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	gen := s.setToken(res.Token)

	s.refresh(ctx, res.User.ScreenName, gen)
	return res, nil
}

// refresh reloads the current user. Failure leaves the session Anonymous;
// a rejected token is forgotten as well. Nothing is applied when the
// session changed after gen.
func (s *AuthService) refresh(ctx context.Context, name string, gen uint64) {
	u, err := s.client.User(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			s.forgetToken(ctx, gen)
		} else {
			s.logger.Warn(ctx, "fetching current user failed", "error", err)
		}
		s.setIf(gen, Snapshot{State: Anonymous})
		return
	}

	if name == "" {
		name = u.ScreenName
	}
	s.setIf(gen, Snapshot{State: Authenticated, User: u, ScreenName: name})
}

// forgetToken drops a token the server rejected.
func (s *AuthService) forgetToken(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.client.SetToken("")
	if err := s.meta.Delete(ctx, common.AuthTokenKey, common.AuthNameKey); err != nil {
		s.logger.Warn(ctx, "clearing rejected session failed", "error", err)
	}
}

func (s *AuthService) loadPersisted(ctx context.Context) (string, string, error) {
	token, ok, err := s.meta.Get(ctx, common.AuthTokenKey)
	if err != nil || !ok {
		return "", "", err
	}
	name, _, err := s.meta.Get(ctx, common.AuthNameKey)
	if err != nil {
		return "", "", err
	}
	return token, name, nil
}

// coalesce runs fn once for concurrent calls with the same operation and
// payload; every caller gets the shared result.
func (s *AuthService) coalesce(op string, payload any, fn func() (*shared.Result, error)) (*shared.Result, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	key := op + ":" + hex.EncodeToString(sum[:])

	v, err, _ := s.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*shared.Result), nil
}

func (s *AuthService) setAnonymous() {
	s.set(Snapshot{State: Anonymous})
}

func (s *AuthService) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// setToken installs a new token and starts a new session generation.
func (s *AuthService) setToken(token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.client.SetToken(token)
	return s.gen
}

func (s *AuthService) restoreToken(gen uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.client.SetToken(token)
	return true
}

func (s *AuthService) setIf(gen uint64, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.publish(snap)
	return true
}

func (s *AuthService) set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(snap)
}

func (s *AuthService) publish(snap Snapshot) {
	s.gen++
	s.snap = snap
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
