package market

import (
	"context"

	"Crypset/internal/model"
)

// Gateway fetches public market data.
type Gateway interface {
	// FetchMarkets returns the raw JSON array of the markets listing.
	FetchMarkets(ctx context.Context, q MarketsQuery) ([]byte, error)
	FetchGlobal(ctx context.Context) (*model.GlobalStats, error)
	FetchTrending(ctx context.Context) ([]model.TrendingCoin, error)
	Name() string
}

// MarketsQuery selects a page of the markets listing sorted by market cap.
type MarketsQuery struct {
	Currency    string
	PerPage     int
	Page        int
	Sparkline   bool
	PriceChange []string // e.g. "1h", "24h", "7d"
}

// DashboardQuery is the listing used for prices, tables and watchlist.
func DashboardQuery(currency string) MarketsQuery {
	return MarketsQuery{
		Currency:    currency,
		PerPage:     50,
		Page:        1,
		Sparkline:   true,
		PriceChange: []string{"1h", "24h", "7d"},
	}
}

// SearchQuery is the wider listing used to pick a coin for a new holding.
func SearchQuery(currency string) MarketsQuery {
	return MarketsQuery{Currency: currency, PerPage: 250, Page: 1}
}
