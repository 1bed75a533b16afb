// Package session holds the signed-in user's working copy of their record and
// writes it through to the store after every command.
package session

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"Crypset/internal/kv"
	"Crypset/internal/model"
	"Crypset/internal/portfolio"
)

var (
	ErrEmptyName         = errors.New("name is required")
	ErrNoUser            = errors.New("no user signed in")
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrInvalidHolding    = errors.New("invalid holding")
	ErrNotPersisted      = errors.New("change kept in memory but not saved")
)

// Session is the explicit replacement for page-level global state: who is
// signed in, their record, and which portfolio is selected.
type Session struct {
	mu       sync.Mutex
	store    *kv.Store
	user     string // normalized name
	record   *model.UserRecord
	selected string
	degraded bool

	// Now stamps new portfolio ids.
	Now func() time.Time
	// OnPersistError is called with the session lock held after a failed
	// save. It must not call back into the session.
	OnPersistError func(err error)
}

// Open restores the last active user from the store, if any.
func Open(store *kv.Store) *Session {
	s := &Session{store: store, Now: time.Now}
	s.load()
	if s.record != nil {
		log.Printf("[INFO] session restored for %q (%d portfolios)", s.record.Profile.Name, len(s.record.Portfolios))
	}
	return s
}

// Reload re-reads the current user and record from the store, picking up
// changes made by another process. The selection is kept while it exists.
func (s *Session) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.selected
	s.load()
	if s.record != nil && portfolio.FindPortfolio(s.record.Portfolios, prev) >= 0 {
		s.selected = prev
	}
}

// load replaces the in-memory state with the stored one. Callers hold s.mu
// or own s exclusively.
func (s *Session) load() {
	s.user, s.record, s.selected = "", nil, ""

	var user string
	if !s.store.Get(kv.CurrentUserKey, &user) || user == "" {
		return
	}
	var rec model.UserRecord
	if !s.store.Get(kv.UserKey(user), &rec) {
		log.Printf("[WARN] current user %q has no stored record, starting signed out", user)
		return
	}
	rec.Normalize()
	s.user = kv.Normalize(user)
	s.record = &rec
	s.selectFirst()
}

// SignedIn reports whether a user record is loaded.
func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record != nil
}

// User returns the normalized name of the signed-in user, or "".
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Profile returns the signed-in profile.
func (s *Session) Profile() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return model.Profile{}, false
	}
	return s.record.Profile, true
}

// Record returns a copy of the signed-in user's record, or nil.
func (s *Session) Record() *model.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Selected returns the selected portfolio.
func (s *Session) Selected() (model.Portfolio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolio(s.selected)
}

// Portfolio returns a copy of the portfolio with id; an empty id means the
// selected one.
func (s *Session) Portfolio(id string) (model.Portfolio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = s.selected
	}
	return s.portfolio(id)
}

// Degraded reports whether a save has failed during this session.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// SaveProfile creates, signs in to, or updates the profile. Changing the
// normalized name moves the stored record to the new key. An empty avatar
// keeps the current one.
func (s *Session) SaveProfile(name, bio, avatar string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	newUser := kv.Normalize(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	var renameErr error
	if s.record != nil {
		if avatar == "" {
			avatar = s.record.Profile.Avatar
		}
		if newUser != s.user {
			if err := s.store.Rename(kv.UserKey(s.user), kv.UserKey(newUser)); err != nil {
				renameErr = fmt.Errorf("rename %q to %q: %w", s.user, newUser, err)
			} else {
				log.Printf("[INFO] user record moved from %q to %q", s.user, newUser)
			}
		}
	} else {
		var existing model.UserRecord
		if s.store.Get(kv.UserKey(name), &existing) {
			existing.Normalize()
			if avatar == "" {
				avatar = existing.Profile.Avatar
			}
			s.record = &existing
			log.Printf("[INFO] signed in as existing user %q", newUser)
		} else {
			s.record = model.NewUserRecord(model.Profile{})
			log.Printf("[INFO] created user %q", newUser)
		}
		s.selectFirst()
	}
	s.record.Profile = model.Profile{Name: name, Bio: bio, Avatar: avatar}
	s.user = newUser

	// One failed command raises one alert, however many writes failed.
	if err := errors.Join(renameErr, s.write()); err != nil {
		return s.persistFailed(err)
	}
	return nil
}

// SignOut forgets the session and the current-user pointer. The stored
// record is kept.
func (s *Session) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = ""
	s.record = nil
	s.selected = ""
	if err := s.store.Remove(kv.CurrentUserKey); err != nil {
		log.Printf("[ERROR] failed to clear current user: %v", err)
		return err
	}
	return nil
}

// CreatePortfolio appends a new empty portfolio and selects it.
func (s *Session) CreatePortfolio(name string) (model.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Portfolio{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return model.Portfolio{}, ErrNoUser
	}

	p := portfolio.NewPortfolio(name, s.now(), s.record.Portfolios)
	s.record.Portfolios = append(s.record.Portfolios, p)
	s.selected = p.ID
	return p, s.save()
}

// DeletePortfolio removes a portfolio. When it was selected the first
// remaining one becomes selected.
func (s *Session) DeletePortfolio(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return ErrNoUser
	}
	if portfolio.FindPortfolio(s.record.Portfolios, id) < 0 {
		return fmt.Errorf("%w: %s", ErrPortfolioNotFound, id)
	}

	s.record.Portfolios = portfolio.RemovePortfolio(s.record.Portfolios, id)
	if s.selected == id {
		s.selectFirst()
	}
	return s.save()
}

// SelectPortfolio changes the selected portfolio. Selection is not persisted.
func (s *Session) SelectPortfolio(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return ErrNoUser
	}
	if portfolio.FindPortfolio(s.record.Portfolios, id) < 0 {
		return fmt.Errorf("%w: %s", ErrPortfolioNotFound, id)
	}
	s.selected = id
	return nil
}

// SaveHolding adds h to the portfolio or replaces the holding for the same
// coin. An empty portfolioID targets the selected portfolio.
func (s *Session) SaveHolding(portfolioID string, h model.Holding) error {
	if err := validateHolding(h); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.target(portfolioID)
	if err != nil {
		return err
	}

	s.record.Portfolios = portfolio.ReplacePortfolio(s.record.Portfolios, portfolio.UpsertHolding(p, h))
	return s.save()
}

// RemoveHolding drops the holding for coinID from the portfolio.
func (s *Session) RemoveHolding(portfolioID, coinID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.target(portfolioID)
	if err != nil {
		return err
	}

	s.record.Portfolios = portfolio.ReplacePortfolio(s.record.Portfolios, portfolio.RemoveHolding(p, coinID))
	return s.save()
}

// ToggleWatchlist flips coinID's membership and reports whether it is now watched.
func (s *Session) ToggleWatchlist(coinID string) (bool, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return false, fmt.Errorf("%w: empty coin id", ErrInvalidHolding)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return false, ErrNoUser
	}

	s.record.Watchlist = portfolio.Toggle(s.record.Watchlist, coinID)
	return portfolio.Contains(s.record.Watchlist, coinID), s.save()
}

func validateHolding(h model.Holding) error {
	switch {
	case strings.TrimSpace(h.CoinID) == "":
		return fmt.Errorf("%w: empty coin id", ErrInvalidHolding)
	case math.IsNaN(h.Amount) || math.IsInf(h.Amount, 0) || h.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidHolding)
	case math.IsNaN(h.BuyPrice) || math.IsInf(h.BuyPrice, 0) || h.BuyPrice < 0:
		return fmt.Errorf("%w: buy price must not be negative", ErrInvalidHolding)
	case math.IsInf(portfolio.PositionCost(h), 0):
		return fmt.Errorf("%w: amount times buy price is out of range", ErrInvalidHolding)
	}
	return nil
}

// target resolves a portfolio for a holding command. Callers hold s.mu.
func (s *Session) target(id string) (model.Portfolio, error) {
	if s.record == nil {
		return model.Portfolio{}, ErrNoUser
	}
	if id == "" {
		id = s.selected
	}
	p, ok := s.portfolio(id)
	if !ok {
		return model.Portfolio{}, fmt.Errorf("%w: %q", ErrPortfolioNotFound, id)
	}
	return p, nil
}

func (s *Session) portfolio(id string) (model.Portfolio, bool) {
	if s.record == nil || id == "" {
		return model.Portfolio{}, false
	}
	i := portfolio.FindPortfolio(s.record.Portfolios, id)
	if i < 0 {
		return model.Portfolio{}, false
	}
	p := s.record.Portfolios[i]
	p.Holdings = append([]model.Holding{}, p.Holdings...)
	return p, true
}

func (s *Session) selectFirst() {
	s.selected = ""
	if s.record != nil && len(s.record.Portfolios) > 0 {
		s.selected = s.record.Portfolios[0].ID
	}
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// save writes the full record and the current-user pointer. Callers hold s.mu.
func (s *Session) save() error {
	if err := s.write(); err != nil {
		return s.persistFailed(err)
	}
	return nil
}

func (s *Session) write() error {
	recErr := s.store.Put(kv.UserKey(s.user), s.record)
	ptrErr := s.store.Put(kv.CurrentUserKey, s.user)
	return errors.Join(recErr, ptrErr)
}

func (s *Session) persistFailed(err error) error {
	s.degraded = true
	log.Printf("[ERROR] failed to save user record: %v", err)
	if s.OnPersistError != nil {
		s.OnPersistError(err)
	}
	return fmt.Errorf("%w: %w", ErrNotPersisted, err)
}
