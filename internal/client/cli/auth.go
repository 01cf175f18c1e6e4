package cli

import (
	"context"
	"fmt"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/shared"
)

// getSimpleText, getPassword and getTextWithDefault are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var getTextWithDefault = GetTextWithDefault

// Register opens the register screen, prompts for the account details and
// submits them. Validation errors are printed; on success the user lands
// on the screen the guards send them to.
func (a *App) Register(ctx context.Context) error {
	ok, err := a.enter(ctx, "/register")
	if err != nil || !ok {
		return err
	}

	screenName, err := getSimpleText(a.reader, "Enter screen name", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirmation, err := getPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirmation)

	res, err := a.session.Register(ctx, shared.RegisterRequest{
		ScreenName:           screenName,
		Name:                 name,
		Email:                email,
		Password:             string(password),
		PasswordConfirmation: string(confirmation),
	})
	if err != nil {
		fmt.Fprintf(a.out, "Registration failed: %v\n", err)
		return err
	}
	if !res.OK() {
		a.printResult(res)
		return nil
	}

	fmt.Fprintln(a.out, res.Message)
	return a.afterAuth(ctx)
}

// Login opens the login screen and signs in with the entered credentials.
func (a *App) Login(ctx context.Context) error {
	ok, err := a.enter(ctx, "/login")
	if err != nil || !ok {
		return err
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.session.Signin(ctx, shared.LoginRequest{Email: email, Password: string(password)})
	if err != nil {
		fmt.Fprintf(a.out, "Login failed: %v\n", err)
		return err
	}
	if !res.OK() {
		a.printResult(res)
		return nil
	}

	fmt.Fprintln(a.out, res.Message)
	return a.afterAuth(ctx)
}

// afterAuth moves on from the current public screen once a user is held.
func (a *App) afterAuth(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Could not load your account, try 'whoami' later.")
		return nil
	}
	res, err := a.navigate(ctx, a.location)
	if err != nil {
		return err
	}
	a.show(res)
	return nil
}

// Logout signs out. The local session is cleared even when the server
// could not be reached; that failure is reported and returned.
func (a *App) Logout(ctx context.Context) error {
	err := a.session.Signout(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Server logout failed (%v), local session cleared.\n", err)
	} else {
		fmt.Fprintln(a.out, "Logged out successfully")
	}

	if res, nerr := a.navigate(ctx, homeLocation()); nerr == nil {
		a.show(res)
	}
	return err
}

func (a *App) WhoAmI(ctx context.Context) error {
	snap := a.session.Snapshot()
	if !snap.HasUser() {
		fmt.Fprintf(a.out, "Not logged in (%s)\n", snap.State)
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d)\n", snap.User.ScreenName, snap.User.Email, snap.User.ID)
	return nil
}
