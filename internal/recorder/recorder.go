package recorder

import "time"

// RefreshEvent records one market listing refresh.
type RefreshEvent struct {
	At    time.Time
	Coins int
	Stale bool
	Error string
}

// Valuation is a portfolio's totals at one point in time.
type Valuation struct {
	At          time.Time
	User        string
	PortfolioID string
	Value       float64
	Cost        float64
	PnL         float64
	Change24h   float64
}

// Recorder persists history for later charts and analysis.
type Recorder interface {
	RecordRefresh(evt *RefreshEvent) error
	RecordValuation(v *Valuation) error
	// Valuations returns up to limit most recent valuations, oldest first.
	Valuations(user, portfolioID string, limit int) ([]Valuation, error)
	Close() error
}
