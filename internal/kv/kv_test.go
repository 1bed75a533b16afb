package kv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func backends(t *testing.T) map[string]func() Backend {
	dir := t.TempDir()
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemoryBackend() },
		"file": func() Backend {
			b, err := NewFileBackend(filepath.Join(dir, "store.json"))
			if err != nil {
				t.Fatalf("open file backend: %v", err)
			}
			return b
		},
		"sqlite": func() Backend {
			b, err := NewSQLiteBackend(filepath.Join(dir, "store.db"))
			if err != nil {
				t.Fatalf("open sqlite backend: %v", err)
			}
			return b
		},
	}
}

func TestStore_PutGetRemove(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(open(), 0)
			defer s.Close()

			var got doc
			if s.Get("missing", &got) {
				t.Fatal("expected absent key")
			}

			want := doc{Name: "a", Items: []string{"x", "y"}}
			if err := s.Put("k", want); err != nil {
				t.Fatalf("put: %v", err)
			}
			if !s.Get("k", &got) {
				t.Fatal("expected key present")
			}
			if got.Name != "a" || len(got.Items) != 2 {
				t.Errorf("unexpected value: %+v", got)
			}

			if err := s.Put("k", doc{Name: "b"}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			s.Get("k", &got)
			if got.Name != "b" {
				t.Errorf("expected overwrite, got %q", got.Name)
			}

			if err := s.Remove("k"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if s.Has("k") {
				t.Error("expected key removed")
			}
			if err := s.Remove("k"); err != nil {
				t.Errorf("removing absent key should be a no-op, got %v", err)
			}
		})
	}
}

func TestStore_CorruptValueIsAbsent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open()
			s := NewStore(b, 0)
			defer s.Close()

			if err := b.Write("bad", []byte("{not json")); err != nil {
				t.Fatalf("raw write: %v", err)
			}
			var got doc
			if s.Get("bad", &got) {
				t.Error("corrupt payload should read as absent")
			}
		})
	}
}

func TestStore_Rename(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(open(), 0)
			defer s.Close()

			if err := s.Rename("old", "new"); err != nil {
				t.Fatalf("rename absent: %v", err)
			}
			if s.Has("new") {
				t.Fatal("renaming an absent key must not create the new key")
			}

			if err := s.Put("old", doc{Name: "moved"}); err != nil {
				t.Fatal(err)
			}
			if err := s.Rename("old", "new"); err != nil {
				t.Fatalf("rename: %v", err)
			}
			if s.Has("old") {
				t.Error("old key should be gone")
			}
			var got doc
			if !s.Get("new", &got) || got.Name != "moved" {
				t.Errorf("expected payload under new key, got %+v", got)
			}

			if err := s.Rename("new", "new"); err != nil {
				t.Fatal(err)
			}
			if !s.Has("new") {
				t.Error("self rename must keep the key")
			}
		})
	}
}

func TestStore_Quota(t *testing.T) {
	s := NewStore(NewMemoryBackend(), 64)
	if err := s.Put("k", strings.Repeat("a", 20)); err != nil {
		t.Fatalf("small put: %v", err)
	}
	err := s.Put("k", strings.Repeat("b", 100))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	var got string
	if !s.Get("k", &got) || got != strings.Repeat("a", 20) {
		t.Errorf("failed put must keep the previous value, got %q", got)
	}
	// Replacing a value only counts the difference.
	if err := s.Put("k", strings.Repeat("c", 40)); err != nil {
		t.Errorf("replacement within quota failed: %v", err)
	}
}

func TestFileBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(b, 0)
	if err := s.Put(UserKey("Alice"), doc{Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	b2, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	var got doc
	if !NewStore(b2, 0).Get("user:alice", &got) || got.Name != "Alice" {
		t.Errorf("value not persisted across reopen: %+v", got)
	}
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open("sqlite", path, DefaultQuota)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(CurrentUserKey, "alice"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open("sqlite", path, DefaultQuota)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	var got string
	if !s2.Get(CurrentUserKey, &got) || got != "alice" {
		t.Errorf("expected alice, got %q", got)
	}
}

func TestUserKey_FoldsCaseAndSpace(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Alice", "alice "},
		{"  BOB", "bob"},
		{"Carol Ann", "carol ann"},
	}
	for _, tt := range tests {
		if UserKey(tt.a) != UserKey(tt.b) {
			t.Errorf("%q and %q should share a key: %q vs %q", tt.a, tt.b, UserKey(tt.a), UserKey(tt.b))
		}
	}
	if UserKey("Alice") != "user:alice" {
		t.Errorf("unexpected key layout: %q", UserKey("Alice"))
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("redis", "", 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenOrMemory_FallsBack(t *testing.T) {
	// A regular file where the database directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(blocker, "store.db")
	if _, err := Open("sqlite", path, 0); err == nil {
		t.Fatal("expected open to fail under a regular file")
	}

	s, err := OpenOrMemory("sqlite", path, 64)
	if err == nil {
		t.Error("fallback should be reported")
	}
	defer s.Close()
	if err := s.Put(CurrentUserKey, "alice"); err != nil {
		t.Fatalf("memory fallback should accept writes: %v", err)
	}
	var got string
	if !s.Get(CurrentUserKey, &got) || got != "alice" {
		t.Errorf("expected alice, got %q", got)
	}
	if err := s.Put("big", strings.Repeat("x", 100)); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("fallback should keep the quota, got %v", err)
	}
}

func TestOpenOrMemory_UsesConfiguredBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := OpenOrMemory("file", path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(CurrentUserKey, "bob"); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file backend should have written %s: %v", path, err)
	}
}

func TestSQLiteBackend_StoresBlobs(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	raw := []byte(`{"name":"é"}`)
	if err := b.Write("k", raw); err != nil {
		t.Fatal(err)
	}
	var kind string
	if err := b.db.QueryRow(`SELECT typeof(value) FROM kv WHERE key = 'k'`).Scan(&kind); err != nil {
		t.Fatal(err)
	}
	if kind != "blob" {
		t.Errorf("expected blob column, got %s", kind)
	}
	got, ok, err := b.Read("k")
	if err != nil || !ok || string(got) != string(raw) {
		t.Errorf("unexpected read %q %v %v", got, ok, err)
	}
	if n, _ := b.Usage(); n != int64(len("k")+len(raw)) {
		t.Errorf("usage should count bytes, got %d", n)
	}
}
