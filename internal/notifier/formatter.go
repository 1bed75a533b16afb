package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"Crypset/internal/model"
	"Crypset/internal/portfolio"
)

// Money renders v in the given currency code, e.g. "$1,234.56". Unknown
// currencies fall back to a plain comma-grouped number and the code.
func Money(v float64, currency string) string {
	code := strings.ToUpper(currency)
	if s, ok := nonFinite(v); ok {
		return s + " " + code
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return humanize.CommafWithDigits(v, 2) + " " + code
	}
	factor := decimal.New(1, int32(cur.Fraction))
	minor := decimal.NewFromFloat(v).Mul(factor).Round(0)
	// go-money counts minor units in an int64.
	if !minor.Abs().LessThan(maxMinorUnits) {
		return humanize.CommafWithDigits(v, 0) + " " + code
	}
	return money.New(minor.IntPart(), code).Display()
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// nonFinite renders NaN and infinities, which decimal cannot represent.
func nonFinite(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "n/a", true
	case math.IsInf(v, 1):
		return "∞", true
	case math.IsInf(v, -1):
		return "-∞", true
	}
	return "", false
}

// Price renders a unit price. Sub-unit prices keep more digits than the
// currency's minor unit so small caps stay readable.
func Price(v float64, currency string) string {
	if v != 0 && math.Abs(v) < 1 {
		return humanize.CommafWithDigits(v, 8) + " " + strings.ToUpper(currency)
	}
	return Money(v, currency)
}

// Quantity renders a coin amount without trailing zeros.
func Quantity(v float64) string {
	return humanize.CommafWithDigits(v, 8)
}

// Percent renders a signed percentage.
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// Compact renders large totals such as market caps, e.g. "2.50T".
func Compact(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return humanize.CommafWithDigits(v/1e12, 2) + "T"
	case abs >= 1e9:
		return humanize.CommafWithDigits(v/1e9, 2) + "B"
	case abs >= 1e6:
		return humanize.CommafWithDigits(v/1e6, 2) + "M"
	}
	return humanize.CommafWithDigits(v, 0)
}

func label(h model.Holding) string {
	if h.Symbol != "" {
		return strings.ToUpper(h.Symbol)
	}
	return h.CoinID
}

// FormatPortfolioReport formats a portfolio's totals and positions.
func FormatPortfolioReport(p model.Portfolio, prices portfolio.PriceLookup, currency string, now time.Time) string {
	totals := portfolio.PortfolioTotals(p, prices)
	change := portfolio.Change24h(p, prices)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(p.Name), now.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Value: %s (24h %s)\n", Money(totals.Value, currency), Percent(change)))
	b.WriteString(fmt.Sprintf("Cost: %s\n", Money(totals.Cost, currency)))
	b.WriteString(fmt.Sprintf("PnL: %s (%s)\n", Money(totals.PnL, currency), Percent(totals.PnLPercent)))

	positions := portfolio.Positions(p, prices)
	if len(positions) == 0 {
		b.WriteString("\nNo holdings yet.")
		return b.String()
	}
	b.WriteString("\n<b>Positions:</b>\n")
	for _, pos := range positions {
		name := html.EscapeString(label(pos.Holding))
		if !pos.Priced {
			b.WriteString(fmt.Sprintf("  %s %s (no price)\n", name, Quantity(pos.Holding.Amount)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s @ %s = %s (%s)\n",
			name, Quantity(pos.Holding.Amount), Price(pos.Price, currency), Money(pos.Value, currency), Percent(pos.PnLPercent)))
	}
	return b.String()
}

// CoinLookup resolves listing data by coin id.
type CoinLookup interface {
	Coin(id string) (model.Coin, bool)
}

// FormatWatchlist formats the watched coins with their latest prices.
func FormatWatchlist(ids []string, coins CoinLookup, currency string) string {
	var b strings.Builder
	b.WriteString("👀 <b>Watchlist</b>\n\n")
	if len(ids) == 0 {
		b.WriteString("Nothing watched.")
		return b.String()
	}
	for _, id := range ids {
		c, ok := coins.Coin(id)
		if !ok {
			b.WriteString(fmt.Sprintf("%s: no data\n", html.EscapeString(id)))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s (%s)\n",
			strings.ToUpper(c.Symbol), html.EscapeString(c.Name), Price(c.CurrentPrice, currency), Percent(c.Change24h())))
	}
	return b.String()
}

// FormatGlobal formats aggregate market stats.
func FormatGlobal(g *model.GlobalStats, currency string) string {
	var b strings.Builder
	b.WriteString("🌍 <b>Global market</b>\n\n")
	if g == nil {
		b.WriteString("Market stats unavailable.")
		return b.String()
	}
	cur := strings.ToLower(currency)
	b.WriteString(fmt.Sprintf("Market cap: %s %s (24h %s)\n", Compact(g.TotalMarketCap[cur]), strings.ToUpper(cur), Percent(g.MarketCapChange)))
	b.WriteString(fmt.Sprintf("Volume: %s %s\n", Compact(g.TotalVolume[cur]), strings.ToUpper(cur)))
	b.WriteString(fmt.Sprintf("BTC dominance: %.1f%%\n", g.BTCDominance()))
	if g.ActiveCoins > 0 {
		b.WriteString(fmt.Sprintf("Active coins: %s\n", humanize.Comma(int64(g.ActiveCoins))))
	}
	return b.String()
}

// FormatTrending formats the trending coins, ranked coins first.
func FormatTrending(coins []model.TrendingCoin) string {
	var b strings.Builder
	b.WriteString("🔥 <b>Trending</b>\n\n")
	if len(coins) == 0 {
		b.WriteString("Nothing trending right now.")
		return b.String()
	}
	sorted := append([]model.TrendingCoin(nil), coins...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].MarketCapRank, sorted[j].MarketCapRank
		if ri == 0 || rj == 0 {
			return ri != 0
		}
		return ri < rj
	})
	for i, c := range sorted {
		rank := "-"
		if c.MarketCapRank > 0 {
			rank = fmt.Sprintf("#%d", c.MarketCapRank)
		}
		b.WriteString(fmt.Sprintf("%d. %s (%s) %s\n", i+1, html.EscapeString(c.Name), strings.ToUpper(c.Symbol), rank))
	}
	return b.String()
}

// FormatStorageAlert formats a failed save.
func FormatStorageAlert(err error) string {
	return fmt.Sprintf("⚠️ <b>Storage error</b>\n\nYour latest change is kept for this session but was not saved:\n%s",
		html.EscapeString(err.Error()))
}
