// Package kv is the local key-value store. It keeps JSON documents under
// string keys on top of a byte-oriented Backend and enforces a size quota the
// way browser local storage does.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Well-known keys.
const (
	CurrentUserKey    = "currentUserPointer"
	MarketSnapshotKey = "marketSnapshotCache"
	userKeyPrefix     = "user:"
)

// SelectedPortfolioKey remembers the CLI's selected portfolio between runs.
const SelectedPortfolioKey = "selectedPortfolio"

// DefaultQuota is the usual local storage budget of a browser origin.
const DefaultQuota int64 = 5 << 20

// ErrQuotaExceeded is returned by Put when the write would exceed the quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Normalize folds a display name to its storage identity.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UserKey returns the record key for a display name. Names that differ only
// by case or surrounding whitespace share a key.
func UserKey(name string) string {
	return userKeyPrefix + Normalize(name)
}

// Backend stores raw values by key.
type Backend interface {
	Read(key string) (value []byte, ok bool, err error)
	Write(key string, value []byte) error
	Delete(key string) error
	// Usage returns the total bytes of keys and values held.
	Usage() (int64, error)
	Close() error
}

// Store encodes values as JSON over a Backend.
type Store struct {
	backend Backend
	quota   int64 // 0 means unlimited
}

// NewStore wraps a backend. A quota <= 0 disables the size check.
func NewStore(b Backend, quota int64) *Store {
	if quota < 0 {
		quota = 0
	}
	return &Store{backend: b, quota: quota}
}

// Open creates the backend named by kind ("sqlite", "file" or "memory").
func Open(kind, path string, quota int64) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch kind {
	case "sqlite":
		b, err = NewSQLiteBackend(path)
	case "file":
		b, err = NewFileBackend(path)
	case "memory", "":
		b = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(b, quota), nil
}

// OpenOrMemory opens the configured backend and falls back to a memory
// store when it cannot be opened. The store is always usable; a non-nil
// error reports the fallback, after which nothing survives the process.
func OpenOrMemory(kind, path string, quota int64) (*Store, error) {
	s, err := Open(kind, path, quota)
	if err != nil {
		log.Printf("[WARN] open %s storage at %q failed, using memory: %v", kind, path, err)
		return NewStore(NewMemoryBackend(), quota), err
	}
	return s, nil
}

// Put serializes value and stores it under key, overwriting any previous value.
func (s *Store) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.write(key, data)
}

// Get decodes the value under key into dst. It reports false when the key is
// absent, unreadable or holds a payload that does not parse.
func (s *Store) Get(key string, dst any) bool {
	data, ok, err := s.backend.Read(key)
	if err != nil {
		log.Printf("[WARN] kv read %q: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("[WARN] kv decode %q: %v", key, err)
		return false
	}
	return true
}

// Has reports whether key holds a value.
func (s *Store) Has(key string) bool {
	_, ok, err := s.backend.Read(key)
	return err == nil && ok
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if err := s.backend.Delete(key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Rename moves the payload of oldKey to newKey. Nothing happens when oldKey
// is absent.
func (s *Store) Rename(oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	data, ok, err := s.backend.Read(oldKey)
	if err != nil {
		return fmt.Errorf("rename %q: %w", oldKey, err)
	}
	if !ok {
		return nil
	}
	if err := s.write(newKey, data); err != nil {
		return err
	}
	return s.Remove(oldKey)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) write(key string, data []byte) error {
	if s.quota > 0 {
		if err := s.checkQuota(key, data); err != nil {
			return err
		}
	}
	if err := s.backend.Write(key, data); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *Store) checkQuota(key string, data []byte) error {
	used, err := s.backend.Usage()
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	if old, ok, err := s.backend.Read(key); err == nil && ok {
		used -= int64(len(key) + len(old))
	}
	if used+int64(len(key)+len(data)) > s.quota {
		return fmt.Errorf("write %q (%d bytes): %w", key, len(data), ErrQuotaExceeded)
	}
	return nil
}
