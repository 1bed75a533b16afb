package model

import (
	"encoding/json"
	"time"
)

// Coin is one row of the gateway markets listing.
type Coin struct {
	ID                     string     `json:"id"`
	Symbol                 string     `json:"symbol"`
	Name                   string     `json:"name"`
	Image                  string     `json:"image"`
	CurrentPrice           float64    `json:"current_price"`
	MarketCap              float64    `json:"market_cap"`
	MarketCapRank          int        `json:"market_cap_rank"`
	TotalVolume            float64    `json:"total_volume"`
	PriceChangePct24h      float64    `json:"price_change_percentage_24h"`
	PriceChangePct1hInCur  float64    `json:"price_change_percentage_1h_in_currency"`
	PriceChangePct24hInCur float64    `json:"price_change_percentage_24h_in_currency"`
	PriceChangePct7dInCur  float64    `json:"price_change_percentage_7d_in_currency"`
	Sparkline7d            *Sparkline `json:"sparkline_in_7d,omitempty"`
}

// Sparkline holds the 7-day price samples returned with sparkline=true.
type Sparkline struct {
	Price []float64 `json:"price"`
}

// Change24h returns the 24h percent change, preferring the in-currency field.
func (c Coin) Change24h() float64 {
	if c.PriceChangePct24hInCur != 0 {
		return c.PriceChangePct24hInCur
	}
	return c.PriceChangePct24h
}

// GlobalStats holds aggregate market figures from the /global endpoint.
type GlobalStats struct {
	TotalMarketCap  map[string]float64 `json:"total_market_cap"`
	TotalVolume     map[string]float64 `json:"total_volume"`
	MarketCapPct    map[string]float64 `json:"market_cap_percentage"`
	MarketCapChange float64            `json:"market_cap_change_percentage_24h_usd"`
	ActiveCoins     int                `json:"active_cryptocurrencies"`
	UpdatedAt       int64              `json:"updated_at"`
}

// BTCDominance returns bitcoin's share of total market cap in percent.
func (g *GlobalStats) BTCDominance() float64 { return g.MarketCapPct["btc"] }

// TrendingCoin is an entry of the /search/trending list.
type TrendingCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// MarketSnapshot is the cached copy of the last markets listing fetch.
type MarketSnapshot struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// FreshAt reports whether the snapshot is still inside the freshness window at now.
func (s *MarketSnapshot) FreshAt(now time.Time, window time.Duration) bool {
	if s == nil || len(s.Payload) == 0 {
		return false
	}
	return now.Sub(s.FetchedAt) < window
}
