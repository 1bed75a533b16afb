package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Crypset/internal/model"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko implements Gateway over the CoinGecko REST API.
type CoinGecko struct {
	BaseURL string
	APIKey  string // optional demo key
	Client  *http.Client
}

// NewCoinGecko creates a client with optional proxy support.
func NewCoinGecko(baseURL, apiKey, proxyURL string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &CoinGecko{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) FetchMarkets(ctx context.Context, q MarketsQuery) ([]byte, error) {
	params := url.Values{}
	cur := q.Currency
	if cur == "" {
		cur = "usd"
	}
	params.Set("vs_currency", cur)
	params.Set("order", "market_cap_desc")
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	params.Set("sparkline", strconv.FormatBool(q.Sparkline))
	if len(q.PriceChange) > 0 {
		params.Set("price_change_percentage", strings.Join(q.PriceChange, ","))
	}

	body, err := c.get(ctx, "/coins/markets", params)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return body, nil
}

func (c *CoinGecko) FetchGlobal(ctx context.Context) (*model.GlobalStats, error) {
	body, err := c.get(ctx, "/global", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch global: %w", err)
	}
	var result struct {
		Data *model.GlobalStats `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode global: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("decode global: missing data")
	}
	return result.Data, nil
}

func (c *CoinGecko) FetchTrending(ctx context.Context) ([]model.TrendingCoin, error) {
	body, err := c.get(ctx, "/search/trending", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	var result struct {
		Coins []struct {
			Item model.TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode trending: %w", err)
	}
	coins := make([]model.TrendingCoin, len(result.Coins))
	for i, c := range result.Coins {
		coins[i] = c.Item
	}
	return coins, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
