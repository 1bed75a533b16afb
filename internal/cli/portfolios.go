package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"Crypset/internal/chart"
	"Crypset/internal/model"
	"Crypset/internal/notifier"
	"Crypset/internal/portfolio"
	"Crypset/internal/session"
)

type portfolioNewCmd struct {
	app *App
}

func (*portfolioNewCmd) Name() string     { return "portfolio-new" }
func (*portfolioNewCmd) Synopsis() string { return "create a portfolio and select it" }
func (*portfolioNewCmd) Usage() string {
	return `crypset portfolio-new <name>
`
}

func (c *portfolioNewCmd) SetFlags(*flag.FlagSet) {}

func (c *portfolioNewCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		c.app.errorf("Error: portfolio name is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	p, err := c.app.Session.CreatePortfolio(strings.Join(f.Args(), " "))
	c.app.rememberSelection()
	if err != nil {
		return c.app.fail("creating portfolio", err)
	}
	c.app.printf("Created portfolio %q (%s)\n", p.Name, p.ID)
	return subcommands.ExitSuccess
}

type portfolioRmCmd struct {
	app *App
}

func (*portfolioRmCmd) Name() string     { return "portfolio-rm" }
func (*portfolioRmCmd) Synopsis() string { return "delete a portfolio" }
func (*portfolioRmCmd) Usage() string {
	return `crypset portfolio-rm <id>
`
}

func (c *portfolioRmCmd) SetFlags(*flag.FlagSet) {}

func (c *portfolioRmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.app.errorf("Error: exactly one portfolio id is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	err := c.app.Session.DeletePortfolio(f.Arg(0))
	c.app.rememberSelection()
	if err != nil {
		return c.app.fail("deleting portfolio", err)
	}
	c.app.printf("Deleted portfolio %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type portfolioLsCmd struct {
	app *App
}

func (*portfolioLsCmd) Name() string     { return "portfolio-ls" }
func (*portfolioLsCmd) Synopsis() string { return "list portfolios with their current value" }
func (*portfolioLsCmd) Usage() string {
	return `crypset portfolio-ls

  The selected portfolio is marked with '*'.
`
}

func (c *portfolioLsCmd) SetFlags(*flag.FlagSet) {}

func (c *portfolioLsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	rec := c.app.Session.Record()
	if rec == nil {
		return c.app.fail("listing portfolios", session.ErrNoUser)
	}
	if len(rec.Portfolios) == 0 {
		c.app.printf("No portfolios yet, create one with 'crypset portfolio-new <name>'\n")
		return subcommands.ExitSuccess
	}
	selected, _ := c.app.Session.Selected()
	snap := c.app.snapshot(ctx)

	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	w.Write([]byte(" \tID\tNAME\tHOLDINGS\tVALUE\t24H\n"))
	for _, p := range rec.Portfolios {
		mark := " "
		if p.ID == selected.ID {
			mark = "*"
		}
		totals := portfolio.PortfolioTotals(p, snap)
		change := portfolio.Change24h(p, snap)
		w.Write([]byte(strings.Join([]string{
			mark, p.ID, p.Name, strconv.Itoa(len(p.Holdings)),
			notifier.Money(totals.Value, c.app.Currency), notifier.Percent(change),
		}, "\t") + "\n"))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type selectCmd struct {
	app *App
}

func (*selectCmd) Name() string     { return "select" }
func (*selectCmd) Synopsis() string { return "select the portfolio other commands act on" }
func (*selectCmd) Usage() string {
	return `crypset select <id>
`
}

func (c *selectCmd) SetFlags(*flag.FlagSet) {}

func (c *selectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.app.errorf("Error: exactly one portfolio id is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := c.app.Session.SelectPortfolio(f.Arg(0)); err != nil {
		return c.app.fail("selecting portfolio", err)
	}
	c.app.rememberSelection()
	p, _ := c.app.Session.Selected()
	c.app.printf("Selected %q\n", p.Name)
	return subcommands.ExitSuccess
}

type holdCmd struct {
	app       *App
	portfolio string
}

func (*holdCmd) Name() string     { return "hold" }
func (*holdCmd) Synopsis() string { return "add or replace a holding" }
func (*holdCmd) Usage() string {
	return `crypset hold [-p <portfolio id>] <coin id or symbol> <amount> <buy price>

  Records <amount> coins bought at an average <buy price> per coin. Holding
  the same coin again replaces the previous entry.
`
}

func (c *holdCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio id, defaults to the selected portfolio")
}

func (c *holdCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		c.app.errorf("Error: coin, amount and buy price are required\n")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount("amount", f.Arg(1))
	if err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	buyPrice, err := parseAmount("buy price", f.Arg(2))
	if err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if !c.app.Session.SignedIn() {
		return c.app.fail("saving holding", session.ErrNoUser)
	}

	h := model.Holding{CoinID: strings.ToLower(f.Arg(0)), Amount: amount, BuyPrice: buyPrice}
	if coin, ok := c.app.resolveCoin(ctx, f.Arg(0)); ok {
		h.CoinID, h.Name, h.Symbol, h.Image = coin.ID, coin.Name, coin.Symbol, coin.Image
	} else {
		c.app.errorf("Warning: %q not found in market data, storing it as given\n", f.Arg(0))
	}

	if err := c.app.Session.SaveHolding(c.portfolio, h); err != nil {
		return c.app.fail("saving holding", err)
	}
	c.app.printf("Holding %s %s at %s\n", notifier.Quantity(h.Amount), displayName(h), notifier.Price(h.BuyPrice, c.app.Currency))
	return subcommands.ExitSuccess
}

type unholdCmd struct {
	app       *App
	portfolio string
}

func (*unholdCmd) Name() string     { return "unhold" }
func (*unholdCmd) Synopsis() string { return "remove a holding" }
func (*unholdCmd) Usage() string {
	return `crypset unhold [-p <portfolio id>] <coin id>
`
}

func (c *unholdCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio id, defaults to the selected portfolio")
}

func (c *unholdCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.app.errorf("Error: exactly one coin id is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	p, ok := c.app.Session.Portfolio(c.portfolio)
	if !ok {
		return c.app.fail("removing holding", portfolioErr(c.app, c.portfolio))
	}
	coinID := f.Arg(0)
	if _, held := portfolio.FindHolding(p, coinID); !held {
		// Accept the ticker too.
		for _, h := range p.Holdings {
			if strings.EqualFold(h.Symbol, coinID) {
				coinID = h.CoinID
				break
			}
		}
	}
	if err := c.app.Session.RemoveHolding(p.ID, coinID); err != nil {
		return c.app.fail("removing holding", err)
	}
	c.app.printf("Removed %s from %q\n", coinID, p.Name)
	return subcommands.ExitSuccess
}

type showCmd struct {
	app       *App
	portfolio string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show a portfolio's positions, totals and 24h chart" }
func (*showCmd) Usage() string {
	return `crypset show [-p <portfolio id>]
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio id, defaults to the selected portfolio")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	p, ok := c.app.Session.Portfolio(c.portfolio)
	if !ok {
		return c.app.fail("showing portfolio", portfolioErr(c.app, c.portfolio))
	}
	snap := c.app.snapshot(ctx)
	cur := c.app.Currency

	c.app.printf("%s (%s)\n\n", p.Name, p.ID)
	if len(p.Holdings) > 0 {
		w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
		w.Write([]byte("COIN\tAMOUNT\tPRICE\tVALUE\tCOST\tPNL\tPNL%\t24H\t\n"))
		for _, pos := range portfolio.Positions(p, snap) {
			price, value, pnl, pct, change := "-", "-", "-", "-", "-"
			if pos.Priced {
				price = notifier.Price(pos.Price, cur)
				value = notifier.Money(pos.Value, cur)
				pnl = notifier.Money(pos.PnL, cur)
				pct = notifier.Percent(pos.PnLPercent)
				change = notifier.Percent(pos.Change24h)
			}
			w.Write([]byte(strings.Join([]string{
				displayName(pos.Holding), notifier.Quantity(pos.Holding.Amount), price, value,
				notifier.Money(pos.Cost, cur), pnl, pct, change,
			}, "\t") + "\t\n"))
		}
		w.Flush()
		c.app.printf("\n")
	} else {
		c.app.printf("No holdings yet, add one with 'crypset hold <coin> <amount> <buy price>'\n\n")
	}

	totals := portfolio.PortfolioTotals(p, snap)
	change := portfolio.Change24h(p, snap)
	c.app.printf("Value: %s  Cost: %s  PnL: %s (%s)\n",
		notifier.Money(totals.Value, cur), notifier.Money(totals.Cost, cur),
		notifier.Money(totals.PnL, cur), notifier.Percent(totals.PnLPercent))
	pts := chart.TwoPoint(totals.Value, change)
	c.app.printf("%s %s -> %s %s (%s)\n",
		pts[0].Label, notifier.Money(pts[0].Value, cur), pts[1].Label, notifier.Money(pts[1].Value, cur), notifier.Percent(change))
	return subcommands.ExitSuccess
}

type historyCmd struct {
	app       *App
	portfolio string
	limit     int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show a portfolio's recorded daily valuations" }
func (*historyCmd) Usage() string {
	return `crypset history [-p <portfolio id>] [-n <reports>]

Valuations are recorded by crypsetd with each scheduled report.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio id, defaults to the selected portfolio")
	f.IntVar(&c.limit, "n", 30, "number of most recent reports")
}

func (c *historyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	p, ok := c.app.Session.Portfolio(c.portfolio)
	if !ok {
		return c.app.fail("showing history", portfolioErr(c.app, c.portfolio))
	}
	vals, err := c.app.History.Valuations(c.app.Session.User(), p.ID, c.limit)
	if err != nil {
		return c.app.fail("showing history", err)
	}
	if len(vals) == 0 {
		c.app.printf("No history for %q yet\n", p.Name)
		return subcommands.ExitSuccess
	}

	cur := c.app.Currency
	values := make([]float64, len(vals))
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	w.Write([]byte("DATE\tVALUE\tPNL\t24H\t\n"))
	for i, v := range vals {
		values[i] = v.Value
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", v.At.Format(time.DateOnly),
			notifier.Money(v.Value, cur), notifier.Money(v.PnL, cur), notifier.Percent(v.Change24h))
	}
	w.Flush()
	c.app.printf("\n%s %s\n", chart.Spark(values), notifier.Percent(chart.Change(values)))
	return subcommands.ExitSuccess
}

func displayName(h model.Holding) string {
	if h.Symbol != "" {
		return strings.ToUpper(h.Symbol)
	}
	return h.CoinID
}

func portfolioErr(app *App, id string) error {
	if !app.Session.SignedIn() {
		return session.ErrNoUser
	}
	if id == "" {
		return fmt.Errorf("%w: none selected", session.ErrPortfolioNotFound)
	}
	return fmt.Errorf("%w: %s", session.ErrPortfolioNotFound, id)
}
