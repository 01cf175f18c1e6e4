package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/waonpad/benkyo-1/internal/client/client"
	"github.com/waonpad/benkyo-1/internal/client/guard"
	"github.com/waonpad/benkyo-1/internal/shared"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

// Profile opens the profile screen and edits name, email and optionally
// the photo. Empty answers keep the current values.
func (a *App) Profile(ctx context.Context) error {
	ok, err := a.enter(ctx, "/profile")
	if err != nil || !ok {
		return err
	}

	user := a.session.Snapshot().User
	a.printProfile(user)

	name, err := getTextWithDefault(a.reader, "Name", user.Name, a.out)
	if err != nil {
		return err
	}
	email, err := getTextWithDefault(a.reader, "Email", user.Email, a.out)
	if err != nil {
		return err
	}
	photoPath, err := getSimpleText(a.reader, "Photo file (empty to keep the current one)", a.out)
	if err != nil {
		return err
	}

	var photo *client.Photo
	if photoPath != "" {
		data, err := readFile(photoPath)
		if err != nil {
			fmt.Fprintf(a.out, "Cannot read photo: %v\n", err)
			return err
		}
		photo = &client.Photo{Filename: filepath.Base(photoPath), Data: data}
	}

	res, err := a.session.SaveProfile(ctx, shared.ProfileRequest{Name: name, Email: email}, photo)
	if err != nil {
		fmt.Fprintf(a.out, "Saving profile failed: %v\n", err)
		return err
	}
	if !res.OK() {
		a.printResult(res)
		return nil
	}

	fmt.Fprintln(a.out, res.Message)

	// the reload after saving may have ended the session
	nres, err := a.navigate(ctx, guard.Location{Path: "/profile"})
	if err != nil {
		return err
	}
	a.show(nres)
	return nil
}
