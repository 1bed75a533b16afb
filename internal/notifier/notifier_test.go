package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Crypset/internal/model"
	"Crypset/internal/portfolio"
)

func TestMoneyAndQuantity(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Money(65000, "usd"), "$65,000.00"},
		{Money(0, "usd"), "$0.00"},
		{Money(1234.5, "xyz"), "1,234.5 XYZ"},
		{Price(0.06, "usd"), "0.06 USD"},
		{Price(25000, "usd"), "$25,000.00"},
		{Quantity(0.5), "0.5"},
		{Quantity(1234.5), "1,234.5"},
		{Percent(25), "+25.00%"},
		{Percent(-1.5), "-1.50%"},
		{Compact(2.5e12), "2.5T"},
		{Compact(8e10), "80B"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: expected %q, got %q", i, tt.want, tt.got)
		}
	}
	if got := Money(-12.5, "usd"); !strings.HasPrefix(got, "-") || !strings.Contains(got, "12.50") {
		t.Errorf("unexpected negative rendering %q", got)
	}
}

func TestMoney_NonFinite(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Money(math.Inf(1), "usd"), "∞ USD"},
		{Money(math.Inf(-1), "usd"), "-∞ USD"},
		{Money(math.NaN(), "usd"), "n/a USD"},
		{Price(math.Inf(1), "usd"), "∞ USD"},
		{Compact(math.Inf(1)), "∞"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: expected %q, got %q", i, tt.want, tt.got)
		}
	}
	if got := Money(1e300, "usd"); !strings.HasSuffix(got, " USD") {
		t.Errorf("out of range amount should fall back to a plain number, got %q", got)
	}
}

func TestFormatPortfolioReport_HugePosition(t *testing.T) {
	p := model.Portfolio{ID: "1", Name: "Whale", Holdings: []model.Holding{
		{CoinID: "bitcoin", Symbol: "btc", Amount: 1e300, BuyPrice: 1e10},
	}}
	prices := portfolio.Prices{"bitcoin": {Price: 1e10}}
	msg := FormatPortfolioReport(p, prices, "usd", time.Now())
	if !strings.Contains(msg, "∞") {
		t.Errorf("overflowing totals should render as infinity:\n%s", msg)
	}
}

func TestFormatPortfolioReport(t *testing.T) {
	p := model.Portfolio{ID: "1", Name: "Main", Holdings: []model.Holding{
		{CoinID: "bitcoin", Symbol: "btc", Amount: 1, BuyPrice: 40000},
		{CoinID: "mystery", Amount: 3, BuyPrice: 1},
	}}
	prices := portfolio.Prices{"bitcoin": {Price: 50000, Change24h: 2}}
	msg := FormatPortfolioReport(p, prices, "usd", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"<b>Main</b> | 2024-05-01 08:00",
		"Value: $50,000.00 (24h +2.00%)",
		"Cost: $40,003.00",
		"BTC 1 @ $50,000.00 = $50,000.00 (+25.00%)",
		"mystery 3 (no price)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("report missing %q:\n%s", want, msg)
		}
	}

	empty := FormatPortfolioReport(model.Portfolio{Name: "<Empty>"}, nil, "usd", time.Now())
	if !strings.Contains(empty, "No holdings yet.") || !strings.Contains(empty, "&lt;Empty&gt;") {
		t.Errorf("unexpected empty report:\n%s", empty)
	}
}

type coins map[string]model.Coin

func (c coins) Coin(id string) (model.Coin, bool) {
	v, ok := c[id]
	return v, ok
}

func TestFormatWatchlist(t *testing.T) {
	lookup := coins{"solana": {ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: 20, PriceChangePct24h: 4}}
	msg := FormatWatchlist([]string{"solana", "gone"}, lookup, "usd")
	if !strings.Contains(msg, "SOL Solana $20.00 (+4.00%)") {
		t.Errorf("missing solana line:\n%s", msg)
	}
	if !strings.Contains(msg, "gone: no data") {
		t.Errorf("missing unknown coin line:\n%s", msg)
	}
	if !strings.Contains(FormatWatchlist(nil, lookup, "usd"), "Nothing watched.") {
		t.Error("expected empty watchlist text")
	}
}

func TestFormatGlobalAndTrending(t *testing.T) {
	g := &model.GlobalStats{
		TotalMarketCap:  map[string]float64{"usd": 2.5e12},
		TotalVolume:     map[string]float64{"usd": 8e10},
		MarketCapPct:    map[string]float64{"btc": 51.2},
		MarketCapChange: -0.7,
		ActiveCoins:     12000,
	}
	msg := FormatGlobal(g, "usd")
	for _, want := range []string{"Market cap: 2.5T USD (24h -0.70%)", "BTC dominance: 51.2%", "Active coins: 12,000"} {
		if !strings.Contains(msg, want) {
			t.Errorf("global missing %q:\n%s", want, msg)
		}
	}
	if !strings.Contains(FormatGlobal(nil, "usd"), "unavailable") {
		t.Error("nil stats should say unavailable")
	}

	tr := FormatTrending([]model.TrendingCoin{
		{ID: "new", Name: "Newcoin", Symbol: "new"},
		{ID: "pepe", Name: "Pepe", Symbol: "pepe", MarketCapRank: 40},
		{ID: "sol", Name: "Solana", Symbol: "sol", MarketCapRank: 5},
	})
	iSol, iPepe, iNew := strings.Index(tr, "Solana"), strings.Index(tr, "Pepe"), strings.Index(tr, "Newcoin")
	if !(iSol < iPepe && iPepe < iNew) {
		t.Errorf("ranked coins should come first:\n%s", tr)
	}
}

func TestFormatStorageAlert(t *testing.T) {
	msg := FormatStorageAlert(errors.New("quota <exceeded>"))
	if !strings.Contains(msg, "not saved") || !strings.Contains(msg, "&lt;exceeded&gt;") {
		t.Errorf("unexpected alert %q", msg)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var gotPath string
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "TOKEN", ChatID: "42", APIBase: srv.URL, Client: srv.Client()}
	if err := n.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if payload["chat_id"] != "42" || payload["text"] != "<b>hi</b>" || payload["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestTelegramNotifier_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "x", ChatID: "1", APIBase: srv.URL, Client: srv.Client()}
	err := n.SendWithRetry(context.Background(), "hi", 0)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier_Polling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		polls   int
		replies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			mu.Lock()
			polls++
			first := polls == 1
			mu.Unlock()
			if first {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /portfolio "}},{"update_id":8}]}`))
				return
			}
			var params struct {
				Offset int `json:"offset"`
			}
			json.NewDecoder(r.Body).Decode(&params)
			if params.Offset != 9 {
				t.Errorf("expected offset 9, got %d", params.Offset)
			}
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			mu.Lock()
			replies = append(replies, p["text"])
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
			cancel()
		}
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "T", ChatID: "1", APIBase: srv.URL, Client: srv.Client()}
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0] != "got /portfolio" {
		t.Errorf("unexpected replies %v", replies)
	}
}

func TestTelegramNotifier_PanickingHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		polls   int
		replies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			mu.Lock()
			polls++
			first := polls == 1
			mu.Unlock()
			if first {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":1,"message":{"text":"/boom"}},{"update_id":2,"message":{"text":"/ok"}}]}`))
				return
			}
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			mu.Lock()
			replies = append(replies, p["text"])
			if len(replies) == 2 {
				cancel()
			}
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "T", ChatID: "1", APIBase: srv.URL, Client: srv.Client()}
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			if cmd == "/boom" {
				panic("bad value")
			}
			return "fine"
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 2 || replies[0] != failedReply || replies[1] != "fine" {
		t.Errorf("unexpected replies %v", replies)
	}
}

func TestTelegramNotifier_NoRetryOnPermanentError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "x", ChatID: "1", APIBase: srv.URL, Client: srv.Client()}
	err := n.SendWithRetry(context.Background(), "hi", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Description != "Bad Request: chat not found" {
		t.Fatalf("expected API error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error should not be retried, got %d calls", calls)
	}
}

func TestTelegramNotifier_RetryAfter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":0}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "x", ChatID: "1", APIBase: srv.URL, Client: srv.Client()}
	if err := n.SendWithRetry(context.Background(), "hi", 1); err != nil {
		t.Fatalf("expected success on retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestSplitMessage(t *testing.T) {
	short := "<b>Main</b>\nValue: $1.00"
	if got := splitMessage(short, MaxMessageLen); len(got) != 1 || got[0] != short {
		t.Errorf("short text should not be split: %q", got)
	}

	text := "aaaa\nbbbb\n\ncccc"
	got := splitMessage(text, 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Errorf("expected split at the paragraph break, got %q", got)
	}

	got = splitMessage(strings.Repeat("é", 12), 5)
	if len(got) != 3 || got[0] != "ééééé" || got[2] != "éé" {
		t.Errorf("expected hard rune cuts, got %q", got)
	}
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = LogNotifier{}
	if err := n.Send(context.Background(), "hello"); err != nil {
		t.Error(err)
	}
}
