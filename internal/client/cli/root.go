package cli

import (
	"context"
	"fmt"

	"github.com/waonpad/benkyo-1/internal/client/guard"
	"github.com/waonpad/benkyo-1/internal/client/services"
	"github.com/waonpad/benkyo-1/internal/shared"
)

func (a *App) getStatus() string {
	snap := a.session.Snapshot()
	if snap.State == services.Loading {
		return "(loading)"
	}
	s := a.location.Path
	if snap.HasUser() {
		s = snap.ScreenName + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

// Root bootstraps the session, opens the home screen and runs the REPL
// until the user leaves.
func (a *App) Root(ctx context.Context) error {
	fmt.Fprintln(a.out, "Welcome to benkyo CLI (type 'help' for commands)")
	fmt.Fprintln(a.out, "Loading session...")

	a.session.Bootstrap(ctx)

	if err := a.Open(ctx, homeLocation().Path); err != nil {
		return err
	}

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// Open navigates to p, following guard redirects, and shows the screen
// where navigation ended.
func (a *App) Open(ctx context.Context, p string) error {
	res, err := a.navigate(ctx, guard.Location{Path: p})
	if err != nil {
		fmt.Fprintln(a.out, "Cannot open", p+":", err)
		return err
	}
	a.show(res)
	return nil
}

// enter navigates to the screen at p and reports whether it renders. A
// redirect is shown instead. Re-entering the current screen keeps its
// navigation state, so a login started from a redirect returns there.
func (a *App) enter(ctx context.Context, p string) (bool, error) {
	loc := guard.Location{Path: p}
	if a.location.Path == p {
		loc = a.location
	}
	res, err := a.navigate(ctx, loc)
	if err != nil {
		return false, err
	}
	if res.Redirected {
		a.show(res)
		return false, nil
	}
	return true, nil
}

func homeLocation() guard.Location {
	return guard.Location{Path: guard.HomePath}
}

func (a *App) navigate(ctx context.Context, loc guard.Location) (guard.Resolution, error) {
	res, err := a.router.Navigate(ctx, loc)
	if err != nil {
		return res, err
	}
	a.location = res.Location
	return res, nil
}

func (a *App) show(res guard.Resolution) {
	user := a.session.Snapshot().User

	switch res.Route.Name {
	case "home":
		fmt.Fprintf(a.out, "Hello, %s! Commands: profile, whoami, logout\n", user.Name)
	case "login":
		if res.Redirected {
			fmt.Fprintln(a.out, "Please log in to continue (type 'login' or 'register').")
		} else {
			fmt.Fprintln(a.out, "Type 'login' to sign in.")
		}
	case "register":
		fmt.Fprintln(a.out, "Type 'register' to create an account.")
	case "profile":
		a.printProfile(user)
	}
}

func (a *App) printProfile(u *shared.User) {
	if u == nil {
		return
	}
	verified := "no"
	if u.EmailVerifiedAt != nil {
		verified = u.EmailVerifiedAt.Format("2006-01-02")
	}
	photo := "-"
	if u.ProfilePhotoURL != nil {
		photo = *u.ProfilePhotoURL
	}
	fmt.Fprintf(a.out, "Screen name: %s\nName:        %s\nEmail:       %s (verified: %s)\nPhoto:       %s\n",
		u.ScreenName, u.Name, u.Email, verified, photo)
}

// printResult reports a non-200 result: its field errors when there are
// some, otherwise its message.
func (a *App) printResult(res *shared.Result) {
	if !res.ValidationErrors.Empty() {
		for _, field := range res.ValidationErrors.Fields() {
			for _, msg := range res.ValidationErrors.Messages(field) {
				fmt.Fprintln(a.out, "  -", msg)
			}
		}
		return
	}
	if res.Message != "" {
		fmt.Fprintln(a.out, res.Message)
		return
	}
	fmt.Fprintf(a.out, "Request failed with status %d\n", res.Status)
}
