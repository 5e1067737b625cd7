package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ticker24hr is the 24hr ticker statistics payload returned by
// Binance-style exchange APIs. Numeric fields arrive as JSON strings.
type ticker24hr struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice,string"`
	OpenPrice          float64 `json:"openPrice,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
}

// ExchangeTickerSource fetches 24h ticker snapshots from an exchange REST
// API (GET /api/v3/ticker/24hr?symbol=SYM).
type ExchangeTickerSource struct {
	sourceState
	baseURL    string
	httpClient *http.Client
}

// NewExchangeTickerSource creates an exchange source. An empty baseURL
// defaults to the Binance public API.
func NewExchangeTickerSource(baseURL string, spacing, timeout time.Duration) *ExchangeTickerSource {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &ExchangeTickerSource{
		sourceState: newSourceState("Binance", spacing),
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Fetch implements Source.
func (s *ExchangeTickerSource) Fetch(ctx context.Context, symbol string) (*Tick, error) {
	if !s.IsAvailable() {
		return nil, ErrSourceUnavailable
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("error fetching ticker: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
		s.recordError(err)
		return nil, err
	}

	var ticker ticker24hr
	if err := json.Unmarshal(body, &ticker); err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("error parsing ticker: %w", err)
	}

	s.recordSuccess()

	return &Tick{
		Timestamp:      time.Now(),
		Symbol:         symbol,
		Price:          ticker.LastPrice,
		Open:           ticker.OpenPrice,
		High:           ticker.HighPrice,
		Low:            ticker.LowPrice,
		Close:          ticker.LastPrice,
		Volume:         ticker.Volume,
		Source:         s.Name(),
		PriceChange24h: ticker.PriceChangePercent,
	}, nil
}
