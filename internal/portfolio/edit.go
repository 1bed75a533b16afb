package portfolio

import (
	"strconv"
	"time"

	"Crypset/internal/model"
)

// UpsertHolding replaces the holding with the same coin id in place, or
// appends h when the coin is not held yet.
func UpsertHolding(p model.Portfolio, h model.Holding) model.Portfolio {
	holdings := make([]model.Holding, 0, len(p.Holdings)+1)
	replaced := false
	for _, cur := range p.Holdings {
		if cur.CoinID == h.CoinID && !replaced {
			holdings = append(holdings, h)
			replaced = true
			continue
		}
		holdings = append(holdings, cur)
	}
	if !replaced {
		holdings = append(holdings, h)
	}
	p.Holdings = holdings
	return p
}

// RemoveHolding drops the holding for coinID, keeping the order of the rest.
func RemoveHolding(p model.Portfolio, coinID string) model.Portfolio {
	holdings := make([]model.Holding, 0, len(p.Holdings))
	for _, cur := range p.Holdings {
		if cur.CoinID != coinID {
			holdings = append(holdings, cur)
		}
	}
	p.Holdings = holdings
	return p
}

// FindHolding returns the holding for coinID.
func FindHolding(p model.Portfolio, coinID string) (model.Holding, bool) {
	for _, h := range p.Holdings {
		if h.CoinID == coinID {
			return h, true
		}
	}
	return model.Holding{}, false
}

// NewPortfolio creates an empty portfolio whose id is the creation time in
// Unix milliseconds, bumped past any id in existing.
func NewPortfolio(name string, now time.Time, existing []model.Portfolio) model.Portfolio {
	taken := make(map[string]bool, len(existing))
	for _, p := range existing {
		taken[p.ID] = true
	}
	ms := now.UnixMilli()
	id := strconv.FormatInt(ms, 10)
	for taken[id] {
		ms++
		id = strconv.FormatInt(ms, 10)
	}
	return model.Portfolio{ID: id, Name: name, Holdings: []model.Holding{}}
}

// FindPortfolio returns the index of the portfolio with id, or -1.
func FindPortfolio(ps []model.Portfolio, id string) int {
	for i, p := range ps {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// RemovePortfolio returns ps without the portfolio id.
func RemovePortfolio(ps []model.Portfolio, id string) []model.Portfolio {
	out := make([]model.Portfolio, 0, len(ps))
	for _, p := range ps {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// ReplacePortfolio returns ps with the portfolio sharing p's id swapped for p.
func ReplacePortfolio(ps []model.Portfolio, p model.Portfolio) []model.Portfolio {
	out := make([]model.Portfolio, len(ps))
	copy(out, ps)
	if i := FindPortfolio(out, p.ID); i >= 0 {
		out[i] = p
	}
	return out
}
