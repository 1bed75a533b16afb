package cli

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/google/subcommands"
)

type profileCmd struct {
	app    *App
	name   string
	bio    string
	avatar string
}

func (*profileCmd) Name() string     { return "profile" }
func (*profileCmd) Synopsis() string { return "create, sign in to, or update a profile" }
func (*profileCmd) Usage() string {
	return `crypset profile -name <name> [-bio <text>] [-avatar <image file>]

  Signs in as <name>, creating the profile if it does not exist. When already
  signed in, updates the profile; a different name renames the user.
`
}

func (c *profileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "display name (required)")
	f.StringVar(&c.bio, "bio", "", "short bio")
	f.StringVar(&c.avatar, "avatar", "", "path to an avatar image, stored inline")
}

func (c *profileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.name == "" {
		c.app.errorf("Error: -name is required\n")
		return subcommands.ExitUsageError
	}

	var avatar string
	if c.avatar != "" {
		uri, err := dataURI(c.avatar)
		if err != nil {
			c.app.errorf("Error reading avatar: %v\n", err)
			return subcommands.ExitFailure
		}
		avatar = uri
	}

	if err := c.app.Session.SaveProfile(c.name, c.bio, avatar); err != nil {
		return c.app.fail("saving profile", err)
	}
	c.app.rememberSelection()
	p, _ := c.app.Session.Profile()
	c.app.printf("Signed in as %s\n", p.Name)
	return subcommands.ExitSuccess
}

func dataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(data)
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

type signoutCmd struct {
	app *App
}

func (*signoutCmd) Name() string     { return "signout" }
func (*signoutCmd) Synopsis() string { return "sign out, keeping the stored profile" }
func (*signoutCmd) Usage() string {
	return `crypset signout

  Forgets the current user. Their portfolios stay stored and come back on the
  next 'crypset profile -name' with the same name.
`
}

func (c *signoutCmd) SetFlags(*flag.FlagSet) {}

func (c *signoutCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := c.app.Session.SignOut(); err != nil {
		return c.app.fail("signing out", err)
	}
	c.app.rememberSelection()
	c.app.printf("Signed out\n")
	return subcommands.ExitSuccess
}

type whoamiCmd struct {
	app *App
}

func (*whoamiCmd) Name() string     { return "whoami" }
func (*whoamiCmd) Synopsis() string { return "show the signed-in profile" }
func (*whoamiCmd) Usage() string {
	return `crypset whoami
`
}

func (c *whoamiCmd) SetFlags(*flag.FlagSet) {}

func (c *whoamiCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	rec := c.app.Session.Record()
	if rec == nil {
		c.app.printf("Not signed in\n")
		return subcommands.ExitSuccess
	}
	c.app.printf("Name:       %s\n", rec.Profile.Name)
	if rec.Profile.Bio != "" {
		c.app.printf("Bio:        %s\n", rec.Profile.Bio)
	}
	if rec.Profile.Avatar != "" {
		c.app.printf("Avatar:     set (%d bytes)\n", len(rec.Profile.Avatar))
	}
	c.app.printf("Portfolios: %d\n", len(rec.Portfolios))
	c.app.printf("Watching:   %d coins\n", len(rec.Watchlist))
	return subcommands.ExitSuccess
}
