package market

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"Crypset/internal/kv"
	"Crypset/internal/model"
)

// FreshFor is how long a fetched listing is served before it is refetched.
const FreshFor = 60 * time.Second

// Service serves market data, caching the dashboard listing in the store so
// repeated reads inside the freshness window make no network call.
type Service struct {
	Gateway Gateway
	Store   *kv.Store
	Query   MarketsQuery
	Window  time.Duration
	Now     func() time.Time

	mu         sync.Mutex
	universe   []model.Coin
	universeAt time.Time
}

// NewService creates a Service. A nil store keeps the cache in memory.
func NewService(g Gateway, store *kv.Store, currency string) *Service {
	if store == nil {
		store = kv.NewStore(kv.NewMemoryBackend(), 0)
	}
	return &Service{
		Gateway: g,
		Store:   store,
		Query:   DashboardQuery(currency),
		Window:  FreshFor,
		Now:     time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Snapshot returns the cached listing while it is fresh and fetches a new one
// otherwise. When the fetch fails the previous listing is returned marked
// Stale (or an empty one if there is none) together with the error.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cached model.MarketSnapshot
	have := s.Store.Get(kv.MarketSnapshotKey, &cached)
	if have && cached.FreshAt(s.now(), s.Window) {
		snap, err := decodeSnapshot(&cached)
		if err == nil {
			return snap, nil
		}
		log.Printf("[WARN] cached market snapshot unreadable, refetching: %v", err)
	}
	var prior *model.MarketSnapshot
	if have {
		prior = &cached
	}
	return s.fetch(ctx, prior)
}

// Refresh fetches a new listing regardless of the cache.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cached model.MarketSnapshot
	var prior *model.MarketSnapshot
	if s.Store.Get(kv.MarketSnapshotKey, &cached) {
		prior = &cached
	}
	return s.fetch(ctx, prior)
}

func (s *Service) fetch(ctx context.Context, prior *model.MarketSnapshot) (*Snapshot, error) {
	payload, err := s.Gateway.FetchMarkets(ctx, s.Query)
	if err != nil {
		log.Printf("[WARN] %s markets fetch failed: %v", s.Gateway.Name(), err)
		return fallback(prior), err
	}
	entry := model.MarketSnapshot{Payload: payload, FetchedAt: s.now()}
	snap, err := decodeSnapshot(&entry)
	if err != nil {
		log.Printf("[WARN] %s markets payload malformed: %v", s.Gateway.Name(), err)
		return fallback(prior), err
	}
	if err := s.Store.Put(kv.MarketSnapshotKey, entry); err != nil {
		log.Printf("[WARN] market snapshot cache write (ignored): %v", err)
	}
	return snap, nil
}

func fallback(prior *model.MarketSnapshot) *Snapshot {
	if prior != nil {
		if snap, err := decodeSnapshot(prior); err == nil {
			snap.Stale = true
			return snap
		}
	}
	snap := NewSnapshot(nil, time.Time{})
	snap.Stale = true
	return snap
}

// Global returns aggregate market stats, nil on failure.
func (s *Service) Global(ctx context.Context) (*model.GlobalStats, error) {
	g, err := s.Gateway.FetchGlobal(ctx)
	if err != nil {
		log.Printf("[WARN] %s global fetch failed: %v", s.Gateway.Name(), err)
		return nil, err
	}
	return g, nil
}

// Trending returns the currently popular coins, empty on failure.
func (s *Service) Trending(ctx context.Context) ([]model.TrendingCoin, error) {
	coins, err := s.Gateway.FetchTrending(ctx)
	if err != nil {
		log.Printf("[WARN] %s trending fetch failed: %v", s.Gateway.Name(), err)
		return nil, err
	}
	return coins, nil
}

// Universe returns the wider listing used for coin search. It is held in
// memory for the same freshness window as the dashboard listing.
func (s *Service) Universe(ctx context.Context) ([]model.Coin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.universe != nil && s.now().Sub(s.universeAt) < s.Window {
		return s.universe, nil
	}
	payload, err := s.Gateway.FetchMarkets(ctx, SearchQuery(s.Query.Currency))
	if err != nil {
		log.Printf("[WARN] %s search listing fetch failed: %v", s.Gateway.Name(), err)
		return s.universe, err
	}
	snap, err := decodeSnapshot(&model.MarketSnapshot{Payload: payload})
	if err != nil {
		log.Printf("[WARN] %s search listing malformed: %v", s.Gateway.Name(), err)
		return s.universe, fmt.Errorf("search listing: %w", err)
	}
	s.universe = snap.Coins()
	s.universeAt = s.now()
	return s.universe, nil
}
