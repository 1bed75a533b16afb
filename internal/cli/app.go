// Package cli implements the crypset command line. Each command runs against
// one store and exits, so the selected portfolio is remembered in the store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"Crypset/internal/kv"
	"Crypset/internal/market"
	"Crypset/internal/model"
	"Crypset/internal/recorder"
	"Crypset/internal/session"
)

// App is the state shared by all commands.
type App struct {
	Store    *kv.Store
	Session  *session.Session
	Market   *market.Service
	History  recorder.Recorder
	Currency string
	Out      io.Writer
	Err      io.Writer

	build func(*App) error
}

// NewApp returns an App whose dependencies are built on first use, after
// flags are parsed.
func NewApp(build func(*App) error) *App {
	return &App{Out: os.Stdout, Err: os.Stderr, build: build}
}

// Register adds every crypset command to the commander.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&profileCmd{app: app}, "profile")
	c.Register(&signoutCmd{app: app}, "profile")
	c.Register(&whoamiCmd{app: app}, "profile")

	c.Register(&portfolioNewCmd{app: app}, "portfolios")
	c.Register(&portfolioRmCmd{app: app}, "portfolios")
	c.Register(&portfolioLsCmd{app: app}, "portfolios")
	c.Register(&selectCmd{app: app}, "portfolios")
	c.Register(&holdCmd{app: app}, "portfolios")
	c.Register(&unholdCmd{app: app}, "portfolios")
	c.Register(&showCmd{app: app}, "portfolios")
	c.Register(&historyCmd{app: app}, "portfolios")

	c.Register(&watchCmd{app: app}, "market")
	c.Register(&marketsCmd{app: app}, "market")
	c.Register(&globalCmd{app: app}, "market")
	c.Register(&trendingCmd{app: app}, "market")
	c.Register(&searchCmd{app: app}, "market")
	c.Register(&chartCmd{app: app}, "market")
}

// Ready builds the dependencies once and restores the remembered selection.
func (a *App) Ready() error {
	if a.build != nil {
		build := a.build
		a.build = nil
		if err := build(a); err != nil {
			return err
		}
	}
	if a.Store == nil || a.Session == nil || a.Market == nil {
		return errors.New("app is not initialised")
	}
	if a.Currency == "" {
		a.Currency = "usd"
	}
	if a.History == nil {
		a.History = recorder.NewNoopRecorder()
	}
	var id string
	if a.Store.Get(kv.SelectedPortfolioKey, &id) && id != "" {
		a.Session.SelectPortfolio(id)
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) errorf(format string, args ...any) {
	fmt.Fprintf(a.Err, format, args...)
}

// fail reports err and maps it to an exit status. A change that could not be
// saved is still reported as a failure.
func (a *App) fail(what string, err error) subcommands.ExitStatus {
	switch {
	case errors.Is(err, session.ErrNotPersisted):
		a.errorf("Warning: %s was applied but not saved: %v\n", what, err)
	case errors.Is(err, session.ErrNoUser):
		a.errorf("Error: no user signed in, run 'crypset profile -name <name>' first\n")
		return subcommands.ExitUsageError
	case errors.Is(err, session.ErrEmptyName), errors.Is(err, session.ErrInvalidHolding):
		a.errorf("Error %s: %v\n", what, err)
		return subcommands.ExitUsageError
	default:
		a.errorf("Error %s: %v\n", what, err)
	}
	return subcommands.ExitFailure
}

// rememberSelection stores the selected portfolio for the next run.
func (a *App) rememberSelection() {
	p, ok := a.Session.Selected()
	if !ok {
		a.Store.Remove(kv.SelectedPortfolioKey)
		return
	}
	if err := a.Store.Put(kv.SelectedPortfolioKey, p.ID); err != nil {
		a.errorf("Warning: could not remember selection: %v\n", err)
	}
}

// snapshot returns the market listing, warning when it is stale.
func (a *App) snapshot(ctx context.Context) *market.Snapshot {
	snap, err := a.Market.Snapshot(ctx)
	if err != nil {
		if snap.Len() > 0 {
			a.errorf("Warning: market data unavailable, showing prices from %s\n", snap.FetchedAt.Format(time.DateTime))
		} else {
			a.errorf("Warning: market data unavailable: %v\n", err)
		}
	}
	return snap
}

// resolveCoin finds a coin by id or ticker in the dashboard listing, then in
// the wider search listing.
func (a *App) resolveCoin(ctx context.Context, arg string) (model.Coin, bool) {
	arg = strings.TrimSpace(arg)
	snap := a.snapshot(ctx)
	if c, ok := snap.Coin(strings.ToLower(arg)); ok {
		return c, true
	}
	if c, ok := snap.BySymbol(arg); ok {
		return c, true
	}
	universe, err := a.Market.Universe(ctx)
	if err != nil {
		return model.Coin{}, false
	}
	for _, c := range universe {
		if strings.EqualFold(c.ID, arg) || strings.EqualFold(c.Symbol, arg) {
			return c, true
		}
	}
	return model.Coin{}, false
}

// parseAmount parses a decimal user input such as "0.25" or "1e-3".
func parseAmount(what, s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	f, _ := d.Float64()
	return f, nil
}
