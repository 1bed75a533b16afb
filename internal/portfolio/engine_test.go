package portfolio

import (
	"math"
	"testing"
	"time"

	"Crypset/internal/model"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPosition_BTCScenario(t *testing.T) {
	h := model.Holding{CoinID: "btc", Amount: 2, BuyPrice: 20000}
	price := 25000.0

	if v := PositionValue(h, price); v != 50000 {
		t.Errorf("value: expected 50000, got %v", v)
	}
	if c := PositionCost(h); c != 40000 {
		t.Errorf("cost: expected 40000, got %v", c)
	}
	pnl := PositionPnL(h, price)
	if pnl != 10000 {
		t.Errorf("pnl: expected 10000, got %v", pnl)
	}
	if pct := PnLPercent(pnl, PositionCost(h)); pct != 25 {
		t.Errorf("pnl%%: expected 25, got %v", pct)
	}
}

func TestPosition_ZeroAmount(t *testing.T) {
	h := model.Holding{CoinID: "eth", Amount: 0, BuyPrice: 3000}
	for _, price := range []float64{0, 1, 2500, 1e9} {
		if v := PositionValue(h, price); v != 0 {
			t.Errorf("price %v: value should be 0, got %v", price, v)
		}
		if c := PositionCost(h); c != 0 {
			t.Errorf("cost should be 0, got %v", c)
		}
		if pct := PnLPercent(PositionPnL(h, price), PositionCost(h)); pct != 0 {
			t.Errorf("price %v: pnl%% should be 0, got %v", price, pct)
		}
	}
}

func TestPortfolioTotals(t *testing.T) {
	p := model.Portfolio{ID: "1", Name: "main", Holdings: []model.Holding{
		{CoinID: "bitcoin", Amount: 2, BuyPrice: 20000},
		{CoinID: "ethereum", Amount: 10, BuyPrice: 2000},
		{CoinID: "delisted", Amount: 5, BuyPrice: 10},
	}}
	prices := Prices{
		"bitcoin":  {Price: 25000, Change24h: 2},
		"ethereum": {Price: 1500, Change24h: -4},
	}

	tt := PortfolioTotals(p, prices)
	if tt.Value != 65000 {
		t.Errorf("value: expected 65000, got %v", tt.Value)
	}
	if tt.Cost != 60050 {
		t.Errorf("cost: expected 60050, got %v", tt.Cost)
	}
	if tt.PnL != 4950 {
		t.Errorf("pnl: expected 4950, got %v", tt.PnL)
	}
	if !approx(tt.PnLPercent, 4950.0/60050*100) {
		t.Errorf("pnl%%: got %v", tt.PnLPercent)
	}

	pos := Positions(p, prices)
	if len(pos) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(pos))
	}
	if pos[2].Priced || pos[2].Value != 0 || pos[2].PnL != -50 {
		t.Errorf("unpriced coin should value at 0: %+v", pos[2])
	}
	if !pos[0].Priced || pos[0].PnLPercent != 25 {
		t.Errorf("unexpected bitcoin position: %+v", pos[0])
	}
}

func TestPortfolioTotals_EmptyAndNilLookup(t *testing.T) {
	empty := PortfolioTotals(model.Portfolio{}, Prices{})
	if empty != (Totals{}) {
		t.Errorf("empty portfolio should total zero, got %+v", empty)
	}
	p := model.Portfolio{Holdings: []model.Holding{{CoinID: "x", Amount: 1, BuyPrice: 0}}}
	tt := PortfolioTotals(p, nil)
	if tt.PnLPercent != 0 || tt.Value != 0 {
		t.Errorf("zero cost must give 0%%, got %+v", tt)
	}
}

func TestChange24h_ValueWeighted(t *testing.T) {
	p := model.Portfolio{Holdings: []model.Holding{
		{CoinID: "a", Amount: 1},
		{CoinID: "b", Amount: 3},
	}}
	prices := Prices{"a": {Price: 100, Change24h: 10}, "b": {Price: 100, Change24h: -2}}
	// (100*10 + 300*-2) / 400 = 1
	if got := Change24h(p, prices); !approx(got, 1) {
		t.Errorf("expected 1, got %v", got)
	}
	if got := Change24h(p, Prices{}); got != 0 {
		t.Errorf("worthless portfolio should have 0 change, got %v", got)
	}
}

func TestUpsertHolding_ReplacesInPlace(t *testing.T) {
	p := model.Portfolio{ID: "1", Holdings: []model.Holding{
		{CoinID: "btc", Amount: 1, BuyPrice: 100, Name: "Bitcoin"},
		{CoinID: "eth", Amount: 2, BuyPrice: 10},
	}}
	p1 := UpsertHolding(p, model.Holding{CoinID: "btc", Amount: 3, BuyPrice: 150})
	p2 := UpsertHolding(p1, model.Holding{CoinID: "btc", Amount: 5, BuyPrice: 150})

	count := 0
	for _, h := range p2.Holdings {
		if h.CoinID == "btc" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one btc holding, got %d", count)
	}
	if p2.Holdings[0].CoinID != "btc" || p2.Holdings[0].Amount != 5 {
		t.Errorf("btc should keep position 0 with latest amount: %+v", p2.Holdings)
	}
	if p2.Holdings[0].Name != "" {
		t.Errorf("upsert is a full replace, snapshot fields should follow the incoming holding")
	}
	if p.Holdings[0].Amount != 1 {
		t.Error("input portfolio must not be mutated")
	}

	p3 := UpsertHolding(p2, model.Holding{CoinID: "sol", Amount: 7})
	if len(p3.Holdings) != 3 || p3.Holdings[2].CoinID != "sol" {
		t.Errorf("new coin should be appended: %+v", p3.Holdings)
	}
}

func TestRemoveHolding(t *testing.T) {
	btc := model.Holding{CoinID: "btc", Amount: 2, BuyPrice: 20000, Symbol: "btc"}
	eth := model.Holding{CoinID: "eth", Amount: 1, BuyPrice: 1000}
	p := model.Portfolio{Holdings: []model.Holding{btc, eth}}

	got := RemoveHolding(p, "eth")
	if len(got.Holdings) != 1 || got.Holdings[0] != btc {
		t.Errorf("expected [btc] unchanged, got %+v", got.Holdings)
	}
	same := RemoveHolding(got, "doge")
	if len(same.Holdings) != 1 {
		t.Errorf("removing an absent coin should be a no-op")
	}
	if len(p.Holdings) != 2 {
		t.Error("input portfolio must not be mutated")
	}
}

func TestNewPortfolio_UniqueTimestampID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	a := NewPortfolio("a", now, nil)
	if a.ID != "1700000000000" || a.Holdings == nil || len(a.Holdings) != 0 {
		t.Fatalf("unexpected portfolio: %+v", a)
	}
	b := NewPortfolio("b", now, []model.Portfolio{a})
	if b.ID == a.ID {
		t.Errorf("id reused: %s", b.ID)
	}
	ps := RemovePortfolio([]model.Portfolio{a, b}, a.ID)
	if len(ps) != 1 || ps[0].ID != b.ID {
		t.Errorf("unexpected remaining portfolios: %+v", ps)
	}
	if FindPortfolio(ps, a.ID) != -1 {
		t.Error("removed portfolio should not be found")
	}
}

func TestToggle_DoubleToggleRestoresSet(t *testing.T) {
	sets := []model.Watchlist{
		{},
		{"bitcoin"},
		{"bitcoin", "ethereum", "solana"},
	}
	for _, s := range sets {
		for _, id := range []string{"bitcoin", "ethereum", "dogecoin"} {
			got := Toggle(Toggle(s, id), id)
			if !sameSet(got, s) {
				t.Errorf("toggle twice %q on %v gave %v", id, s, got)
			}
		}
	}
}

func TestToggle_AddsAndRemoves(t *testing.T) {
	w := Toggle(nil, "bitcoin")
	if !Contains(w, "bitcoin") {
		t.Fatal("expected bitcoin added")
	}
	w = Toggle(w, "bitcoin")
	if Contains(w, "bitcoin") || len(w) != 0 {
		t.Errorf("expected bitcoin removed, got %v", w)
	}
}

func sameSet(a, b model.Watchlist) bool {
	m := make(map[string]bool)
	for _, x := range a {
		m[x] = true
	}
	if len(m) != len(a) {
		return false
	}
	n := make(map[string]bool)
	for _, x := range b {
		n[x] = true
		if !m[x] {
			return false
		}
	}
	return len(n) == len(m)
}
