package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"Crypset/internal/chart"
	"Crypset/internal/market"
	"Crypset/internal/model"
	"Crypset/internal/notifier"
	"Crypset/internal/portfolio"
	"Crypset/internal/session"
)

type watchCmd struct {
	app  *App
	list bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "add a coin to the watchlist, or remove it if already watched" }
func (*watchCmd) Usage() string {
	return `crypset watch <coin id or symbol>
crypset watch -l

  Toggles the coin on the watchlist. With -l, lists the watched coins.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "l", false, "list the watchlist instead of toggling")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.list && f.NArg() != 1 {
		c.app.errorf("Error: exactly one coin is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	rec := c.app.Session.Record()
	if rec == nil {
		return c.app.fail("updating watchlist", session.ErrNoUser)
	}

	if c.list {
		snap := c.app.snapshot(ctx)
		if len(rec.Watchlist) == 0 {
			c.app.printf("Nothing watched\n")
			return subcommands.ExitSuccess
		}
		coins := make([]model.Coin, 0, len(rec.Watchlist))
		for _, id := range rec.Watchlist {
			coin, ok := snap.Coin(id)
			if !ok {
				coin = model.Coin{ID: id, Symbol: id}
			}
			coins = append(coins, coin)
		}
		c.app.coinTable(coins)
		return subcommands.ExitSuccess
	}

	coinID := strings.ToLower(f.Arg(0))
	// Removing must not depend on market data being reachable.
	if !portfolio.Contains(rec.Watchlist, coinID) {
		if coin, ok := c.app.resolveCoin(ctx, f.Arg(0)); ok {
			coinID = coin.ID
		}
	}
	on, err := c.app.Session.ToggleWatchlist(coinID)
	if err != nil {
		return c.app.fail("updating watchlist", err)
	}
	if on {
		c.app.printf("Watching %s\n", coinID)
	} else {
		c.app.printf("Stopped watching %s\n", coinID)
	}
	return subcommands.ExitSuccess
}

type marketsCmd struct {
	app   *App
	limit int
}

func (*marketsCmd) Name() string     { return "markets" }
func (*marketsCmd) Synopsis() string { return "list the top coins by market cap" }
func (*marketsCmd) Usage() string {
	return `crypset markets [-n <count>]
`
}

func (c *marketsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of coins to show")
}

func (c *marketsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	snap := c.app.snapshot(ctx)
	coins := snap.Coins()
	if snap.Len() == 0 {
		return subcommands.ExitFailure
	}
	if c.limit > 0 && len(coins) > c.limit {
		coins = coins[:c.limit]
	}
	c.app.coinTable(coins)
	return subcommands.ExitSuccess
}

func (a *App) coinTable(coins []model.Coin) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	w.Write([]byte("#\tCOIN\tNAME\tPRICE\t1H\t24H\t7D\tMARKET CAP\n"))
	for _, c := range coins {
		rank := "-"
		if c.MarketCapRank > 0 {
			rank = strconv.Itoa(c.MarketCapRank)
		}
		w.Write([]byte(strings.Join([]string{
			rank, strings.ToUpper(c.Symbol), c.Name, notifier.Price(c.CurrentPrice, a.Currency),
			notifier.Percent(c.PriceChangePct1hInCur), notifier.Percent(c.Change24h()),
			notifier.Percent(c.PriceChangePct7dInCur), notifier.Compact(c.MarketCap),
		}, "\t") + "\n"))
	}
	w.Flush()
}

type globalCmd struct {
	app *App
}

func (*globalCmd) Name() string     { return "global" }
func (*globalCmd) Synopsis() string { return "show aggregate market stats" }
func (*globalCmd) Usage() string {
	return `crypset global
`
}

func (c *globalCmd) SetFlags(*flag.FlagSet) {}

func (c *globalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	g, err := c.app.Market.Global(ctx)
	if err != nil {
		c.app.errorf("Error fetching global stats: %v\n", err)
		return subcommands.ExitFailure
	}
	cur := strings.ToLower(c.app.Currency)
	c.app.printf("Market cap:    %s %s (24h %s)\n", notifier.Compact(g.TotalMarketCap[cur]), strings.ToUpper(cur), notifier.Percent(g.MarketCapChange))
	c.app.printf("Volume:        %s %s\n", notifier.Compact(g.TotalVolume[cur]), strings.ToUpper(cur))
	c.app.printf("BTC dominance: %.1f%%\n", g.BTCDominance())
	return subcommands.ExitSuccess
}

type trendingCmd struct {
	app *App
}

func (*trendingCmd) Name() string     { return "trending" }
func (*trendingCmd) Synopsis() string { return "show trending coins" }
func (*trendingCmd) Usage() string {
	return `crypset trending
`
}

func (c *trendingCmd) SetFlags(*flag.FlagSet) {}

func (c *trendingCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	coins, err := c.app.Market.Trending(ctx)
	if err != nil {
		c.app.errorf("Error fetching trending coins: %v\n", err)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	w.Write([]byte("ID\tSYMBOL\tNAME\tRANK\n"))
	for _, t := range coins {
		rank := "-"
		if t.MarketCapRank > 0 {
			rank = strconv.Itoa(t.MarketCapRank)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, strings.ToUpper(t.Symbol), t.Name, rank)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type searchCmd struct {
	app   *App
	limit int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "find coins by name or symbol" }
func (*searchCmd) Usage() string {
	return `crypset search [-n <count>] <query>
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", market.DefaultSearchLimit, "maximum number of results")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	query := strings.TrimSpace(strings.Join(f.Args(), " "))
	if query == "" {
		c.app.errorf("Error: a search query is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	universe, err := c.app.Market.Universe(ctx)
	if err != nil && len(universe) == 0 {
		c.app.errorf("Error fetching coin list: %v\n", err)
		return subcommands.ExitFailure
	}
	found := market.Search(universe, query, c.limit)
	if len(found) == 0 {
		c.app.printf("No coins match %q\n", query)
		return subcommands.ExitSuccess
	}
	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	w.Write([]byte("ID\tSYMBOL\tNAME\tPRICE\n"))
	for _, coin := range found {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", coin.ID, strings.ToUpper(coin.Symbol), coin.Name, notifier.Price(coin.CurrentPrice, c.app.Currency))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type chartCmd struct {
	app    *App
	points int
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "chart a coin's recent 7-day sparkline" }
func (*chartCmd) Usage() string {
	return `crypset chart [-n <points>] <coin id or symbol>
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.points, "n", chart.DefaultTail, "number of most recent sparkline points")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		c.app.errorf("Error: exactly one coin is required\n")
		return subcommands.ExitUsageError
	}
	if err := c.app.Ready(); err != nil {
		c.app.errorf("Error: %v\n", err)
		return subcommands.ExitFailure
	}
	coin, ok := c.app.resolveCoin(ctx, f.Arg(0))
	if !ok {
		c.app.errorf("Error: coin %q not found\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	// Only the dashboard listing carries sparklines.
	if coin.Sparkline7d == nil {
		if withSpark, ok := c.app.snapshot(ctx).Coin(coin.ID); ok {
			coin = withSpark
		}
	}
	if coin.Sparkline7d == nil || len(coin.Sparkline7d.Price) == 0 {
		c.app.errorf("Error: no price history for %s\n", coin.ID)
		return subcommands.ExitFailure
	}

	prices := chart.Tail(coin.Sparkline7d.Price, c.points)
	high, low, _ := chart.Range(prices)
	pos, _ := chart.Position(coin.CurrentPrice, high, low)
	cur := c.app.Currency

	c.app.printf("%s (%s) %s\n", coin.Name, strings.ToUpper(coin.Symbol), notifier.Price(coin.CurrentPrice, cur))
	c.app.printf("%s\n", chart.Spark(prices))
	c.app.printf("High %s  Low %s  Position %.0f%%  Change %s\n",
		notifier.Price(high, cur), notifier.Price(low, cur), pos*100, notifier.Percent(chart.Change(prices)))
	if sma, err := chart.SMA(prices, len(prices)); err == nil {
		rsi, _ := chart.RSI(prices, 14)
		c.app.printf("SMA %s  RSI(14) %.0f\n", notifier.Price(sma, cur), rsi)
	}
	return subcommands.ExitSuccess
}
