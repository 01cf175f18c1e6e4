package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/waonpad/benkyo-1/internal/client/client"
	"github.com/waonpad/benkyo-1/internal/client/config"
	"github.com/waonpad/benkyo-1/internal/client/guard"
	"github.com/waonpad/benkyo-1/internal/client/repositories/metadata"
	"github.com/waonpad/benkyo-1/internal/client/services"
	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/shared"
)

// sessionService is the part of services.AuthService the CLI drives.
type sessionService interface {
	Snapshot() services.Snapshot
	Ready() <-chan struct{}
	Bootstrap(ctx context.Context)
	Register(ctx context.Context, req shared.RegisterRequest) (*shared.Result, error)
	Signin(ctx context.Context, req shared.LoginRequest) (*shared.Result, error)
	Signout(ctx context.Context) error
	SaveProfile(ctx context.Context, req shared.ProfileRequest, photo *client.Photo) (*shared.Result, error)
}

type App struct {
	config   *config.Config
	session  sessionService
	router   *guard.Router
	location guard.Location
	reader   *bufio.Reader
	out      io.Writer
	closers  []func() error
}

// Routes are the screens of the client and the guard protecting each.
func Routes() []guard.Route {
	return []guard.Route{
		{Name: "home", Path: guard.HomePath, Exact: true, Kind: guard.PrivateRoute},
		{Name: "login", Path: guard.LoginPath, Kind: guard.PublicRoute},
		{Name: "register", Path: "/register", Kind: guard.PublicRoute},
		{Name: "profile", Path: "/profile", Kind: guard.PrivateRoute},
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.InitDatabase(ctx, c.StateDBPath())
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)
	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	session := services.NewAuthService(api, metadata.NewSQLiteRepository(db), logger)

	a := newApp(c, session, os.Stdin, os.Stdout)
	a.closers = append(a.closers, db.Close)
	return a, nil
}

func newApp(c *config.Config, s sessionService, in io.Reader, out io.Writer) *App {
	return &App{
		config:   c,
		session:  s,
		router:   guard.NewRouter(s, Routes()...),
		location: guard.Location{Path: guard.HomePath},
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	return a.Root(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.session.Snapshot().HasUser()
}
