package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Crypset/internal/model"
	"Crypset/internal/portfolio"
)

// Snapshot is a decoded markets listing. It resolves live quotes for the
// portfolio engine.
type Snapshot struct {
	FetchedAt time.Time
	Stale     bool // served after a failed refresh

	coins []model.Coin
	index map[string]int
}

var _ portfolio.PriceLookup = (*Snapshot)(nil)

// NewSnapshot indexes coins by id.
func NewSnapshot(coins []model.Coin, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{FetchedAt: fetchedAt, coins: coins, index: make(map[string]int, len(coins))}
	for i, c := range coins {
		if _, dup := s.index[c.ID]; !dup {
			s.index[c.ID] = i
		}
	}
	return s
}

func decodeSnapshot(ms *model.MarketSnapshot) (*Snapshot, error) {
	var coins []model.Coin
	if err := json.Unmarshal(ms.Payload, &coins); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return NewSnapshot(coins, ms.FetchedAt), nil
}

// Coins returns the listing in gateway order.
func (s *Snapshot) Coins() []model.Coin {
	if s == nil {
		return nil
	}
	return s.coins
}

// Len returns the number of coins in the listing.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.coins)
}

func (s *Snapshot) Coin(id string) (model.Coin, bool) {
	if s == nil {
		return model.Coin{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return model.Coin{}, false
	}
	return s.coins[i], true
}

// BySymbol finds the first coin whose ticker matches sym, ignoring case.
func (s *Snapshot) BySymbol(sym string) (model.Coin, bool) {
	if s == nil {
		return model.Coin{}, false
	}
	for _, c := range s.coins {
		if strings.EqualFold(c.Symbol, sym) {
			return c, true
		}
	}
	return model.Coin{}, false
}

func (s *Snapshot) Quote(coinID string) (portfolio.Quote, bool) {
	c, ok := s.Coin(coinID)
	if !ok {
		return portfolio.Quote{}, false
	}
	return portfolio.Quote{Price: c.CurrentPrice, Change24h: c.Change24h()}, true
}

// DefaultSearchLimit caps search results.
const DefaultSearchLimit = 10

// Search returns up to limit coins whose name or symbol contains query,
// ignoring case, in listing order. An empty query matches nothing.
func Search(coins []model.Coin, query string, limit int) []model.Coin {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var out []model.Coin
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Symbol), q) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
