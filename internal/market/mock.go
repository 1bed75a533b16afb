package market

import (
	"context"
	"encoding/json"
	"sync"

	"Crypset/internal/model"
)

// MockGateway returns controllable fixed data for development and testing.
type MockGateway struct {
	Coins    []model.Coin
	Global   *model.GlobalStats
	Trending []model.TrendingCoin
	Err      error // returned by every call when set

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockGateway) Name() string { return "mock" }

// Calls returns how many times the named method ran.
func (m *MockGateway) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockGateway) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockGateway) FetchMarkets(_ context.Context, q MarketsQuery) ([]byte, error) {
	m.count("FetchMarkets")
	if m.Err != nil {
		return nil, m.Err
	}
	coins := m.Coins
	if coins == nil {
		coins = DemoCoins()
	}
	if q.PerPage > 0 && len(coins) > q.PerPage {
		coins = coins[:q.PerPage]
	}
	if !q.Sparkline {
		stripped := make([]model.Coin, len(coins))
		for i, c := range coins {
			c.Sparkline7d = nil
			stripped[i] = c
		}
		coins = stripped
	}
	return json.Marshal(coins)
}

func (m *MockGateway) FetchGlobal(_ context.Context) (*model.GlobalStats, error) {
	m.count("FetchGlobal")
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Global != nil {
		return m.Global, nil
	}
	return &model.GlobalStats{
		TotalMarketCap:  map[string]float64{"usd": 2.4e12},
		TotalVolume:     map[string]float64{"usd": 9.1e10},
		MarketCapPct:    map[string]float64{"btc": 52.3, "eth": 16.8},
		MarketCapChange: 1.2,
	}, nil
}

func (m *MockGateway) FetchTrending(_ context.Context) ([]model.TrendingCoin, error) {
	m.count("FetchTrending")
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Trending != nil {
		return m.Trending, nil
	}
	return []model.TrendingCoin{
		{ID: "solana", Name: "Solana", Symbol: "SOL", MarketCapRank: 5},
		{ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE", MarketCapRank: 8},
	}, nil
}

// DemoCoins is a small fixed listing.
func DemoCoins() []model.Coin {
	return []model.Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 25000, MarketCap: 4.9e11, MarketCapRank: 1, PriceChangePct24hInCur: 2.5,
			Sparkline7d: &model.Sparkline{Price: []float64{24000, 24500, 24200, 25000}}},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 1600, MarketCap: 1.9e11, MarketCapRank: 2, PriceChangePct24hInCur: -1.5,
			Sparkline7d: &model.Sparkline{Price: []float64{1650, 1620, 1580, 1600}}},
		{ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: 20, MarketCap: 8e9, MarketCapRank: 5, PriceChangePct24hInCur: 4,
			Sparkline7d: &model.Sparkline{Price: []float64{18, 19, 19.5, 20}}},
		{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", CurrentPrice: 0.06, MarketCap: 8.5e9, MarketCapRank: 8, PriceChangePct24hInCur: 0.3},
	}
}
