// Package portfolio computes position value, cost and profit/loss, and
// applies holding, portfolio and watchlist edits. Every function is pure:
// inputs are never mutated and nothing here performs I/O.
package portfolio

import "Crypset/internal/model"

// Quote is the live market figure for one coin.
type Quote struct {
	Price     float64
	Change24h float64 // percent
}

// PriceLookup resolves live quotes by coin id.
type PriceLookup interface {
	Quote(coinID string) (Quote, bool)
}

// Prices is a PriceLookup backed by a map.
type Prices map[string]Quote

func (p Prices) Quote(coinID string) (Quote, bool) {
	q, ok := p[coinID]
	return q, ok
}

// Position is the valuation of one holding.
type Position struct {
	Holding    model.Holding
	Price      float64
	Change24h  float64
	Value      float64
	Cost       float64
	PnL        float64
	PnLPercent float64
	Priced     bool // false when the coin was missing from the lookup
}

// Totals aggregates all positions of a portfolio.
type Totals struct {
	Value      float64
	Cost       float64
	PnL        float64
	PnLPercent float64
}

func PositionValue(h model.Holding, price float64) float64 { return price * h.Amount }

func PositionCost(h model.Holding) float64 { return h.BuyPrice * h.Amount }

func PositionPnL(h model.Holding, price float64) float64 {
	return PositionValue(h, price) - PositionCost(h)
}

// PnLPercent returns pnl relative to cost in percent, and exactly 0 when cost is 0.
func PnLPercent(pnl, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	return pnl / cost * 100
}

// quote returns the lookup's quote, or a zero quote for unknown coins.
func quote(lookup PriceLookup, coinID string) (Quote, bool) {
	if lookup == nil {
		return Quote{}, false
	}
	return lookup.Quote(coinID)
}

// Positions values every holding in order.
func Positions(p model.Portfolio, lookup PriceLookup) []Position {
	out := make([]Position, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		q, ok := quote(lookup, h.CoinID)
		value := PositionValue(h, q.Price)
		cost := PositionCost(h)
		pnl := value - cost
		out = append(out, Position{
			Holding:    h,
			Price:      q.Price,
			Change24h:  q.Change24h,
			Value:      value,
			Cost:       cost,
			PnL:        pnl,
			PnLPercent: PnLPercent(pnl, cost),
			Priced:     ok,
		})
	}
	return out
}

// PortfolioTotals sums value and cost over all holdings.
func PortfolioTotals(p model.Portfolio, lookup PriceLookup) Totals {
	var t Totals
	for _, h := range p.Holdings {
		q, _ := quote(lookup, h.CoinID)
		t.Value += PositionValue(h, q.Price)
		t.Cost += PositionCost(h)
	}
	t.PnL = t.Value - t.Cost
	t.PnLPercent = PnLPercent(t.PnL, t.Cost)
	return t
}

// Change24h returns the value-weighted 24h change of the portfolio in
// percent, 0 for a portfolio worth nothing.
func Change24h(p model.Portfolio, lookup PriceLookup) float64 {
	total := PortfolioTotals(p, lookup).Value
	if total == 0 {
		return 0
	}
	var sum float64
	for _, h := range p.Holdings {
		q, _ := quote(lookup, h.CoinID)
		sum += PositionValue(h, q.Price) * q.Change24h / total
	}
	return sum
}
