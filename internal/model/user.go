package model

// Profile is the user-entered identity shown in the header.
type Profile struct {
	Name   string `json:"name"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar"` // data URI or empty
}

// Holding is a position in one coin within one portfolio.
// Name, Symbol and Image are captured when the holding is saved and are not
// kept in sync with market data.
type Holding struct {
	CoinID   string  `json:"coinId"`
	Amount   float64 `json:"amount"`
	BuyPrice float64 `json:"buyPrice"` // average cost per unit
	Name     string  `json:"name,omitempty"`
	Symbol   string  `json:"symbol,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// Portfolio is a named list of holdings, at most one per coin.
type Portfolio struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Holdings []Holding `json:"holdings"`
}

// Watchlist is a set of coin ids, persisted as an array.
type Watchlist []string

// UserRecord is everything persisted for one user.
type UserRecord struct {
	Profile    Profile     `json:"profile"`
	Portfolios []Portfolio `json:"portfolios"`
	Watchlist  Watchlist   `json:"watchlist"`
}

// NewUserRecord returns a record with empty, non-nil collections.
func NewUserRecord(p Profile) *UserRecord {
	return &UserRecord{
		Profile:    p,
		Portfolios: []Portfolio{},
		Watchlist:  Watchlist{},
	}
}

// Normalize fills nil collections so they encode as [] rather than null.
func (r *UserRecord) Normalize() {
	if r.Portfolios == nil {
		r.Portfolios = []Portfolio{}
	}
	if r.Watchlist == nil {
		r.Watchlist = Watchlist{}
	}
	for i := range r.Portfolios {
		if r.Portfolios[i].Holdings == nil {
			r.Portfolios[i].Holdings = []Holding{}
		}
	}
}

// Clone returns a deep copy of the record.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	out := &UserRecord{
		Profile:    r.Profile,
		Portfolios: make([]Portfolio, len(r.Portfolios)),
		Watchlist:  append(Watchlist{}, r.Watchlist...),
	}
	for i, p := range r.Portfolios {
		out.Portfolios[i] = Portfolio{
			ID:       p.ID,
			Name:     p.Name,
			Holdings: append([]Holding{}, p.Holdings...),
		}
	}
	return out
}
