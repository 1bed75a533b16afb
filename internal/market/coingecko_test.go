package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Crypset/internal/model"
)

func TestCoinGecko_FetchMarkets(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-cg-demo-api-key")
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":25000,
			"price_change_percentage_24h_in_currency":1.5,"sparkline_in_7d":{"price":[1,2,3]}}]`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL+"/", "demo-key", "", 5*time.Second)
	body, err := c.FetchMarkets(context.Background(), DashboardQuery("usd"))
	if err != nil {
		t.Fatalf("fetch markets: %v", err)
	}
	if gotPath != "/coins/markets" {
		t.Errorf("unexpected path %q", gotPath)
	}
	for _, want := range []string{"vs_currency=usd", "order=market_cap_desc", "per_page=50", "page=1", "sparkline=true", "price_change_percentage=1h%2C24h%2C7d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if gotKey != "demo-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}

	snap, err := decodeSnapshot(&model.MarketSnapshot{Payload: body})
	if err != nil {
		t.Fatal(err)
	}
	q, ok := snap.Quote("bitcoin")
	if !ok || q.Price != 25000 || q.Change24h != 1.5 {
		t.Errorf("unexpected quote %+v", q)
	}
}

func TestCoinGecko_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, "", "", time.Second)
	_, err := c.FetchMarkets(context.Background(), SearchQuery("usd"))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestCoinGecko_MalformedListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, "", "", time.Second)
	if _, err := c.FetchMarkets(context.Background(), SearchQuery("usd")); err == nil {
		t.Error("expected decode error for non-array listing")
	}
}

func TestCoinGecko_GlobalAndTrending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/global":
			w.Write([]byte(`{"data":{"total_market_cap":{"usd":2.5e12},"total_volume":{"usd":8e10},
				"market_cap_percentage":{"btc":51.2},"market_cap_change_percentage_24h_usd":-0.7}}`))
		case "/search/trending":
			w.Write([]byte(`{"coins":[{"item":{"id":"pepe","name":"Pepe","symbol":"PEPE","thumb":"t.png","market_cap_rank":40}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, "", "", time.Second)
	g, err := c.FetchGlobal(context.Background())
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	if g.TotalMarketCap["usd"] != 2.5e12 || g.BTCDominance() != 51.2 || g.MarketCapChange != -0.7 {
		t.Errorf("unexpected global stats %+v", g)
	}

	tr, err := c.FetchTrending(context.Background())
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(tr) != 1 || tr[0].ID != "pepe" || tr[0].MarketCapRank != 40 {
		t.Errorf("unexpected trending %+v", tr)
	}
}
