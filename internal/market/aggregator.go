package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultCoinIDs maps exchange pair symbols to aggregator coin IDs.
var defaultCoinIDs = map[string]string{
	"BTCUSDT":  "bitcoin",
	"ETHUSDT":  "ethereum",
	"SOLUSDT":  "solana",
	"BNBUSDT":  "binancecoin",
	"ADAUSDT":  "cardano",
	"DOTUSDT":  "polkadot",
	"LINKUSDT": "chainlink",
}

// AggregatorSource fetches spot prices from a CoinGecko-style aggregator
// (GET /api/v3/simple/price). OHLC fields are absent from the API and are
// filled by repeating the price.
type AggregatorSource struct {
	sourceState
	baseURL    string
	httpClient *http.Client
	coinIDs    map[string]string
}

// NewAggregatorSource creates an aggregator source. An empty baseURL
// defaults to the CoinGecko public API.
func NewAggregatorSource(baseURL string, spacing, timeout time.Duration) *AggregatorSource {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	return &AggregatorSource{
		sourceState: newSourceState("CoinGecko", spacing),
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		coinIDs:     defaultCoinIDs,
	}
}

// Fetch implements Source.
func (s *AggregatorSource) Fetch(ctx context.Context, symbol string) (*Tick, error) {
	if !s.IsAvailable() {
		return nil, ErrSourceUnavailable
	}

	coinID, ok := s.coinIDs[symbol]
	if !ok {
		// Not an error against the source; the symbol simply has no mapping.
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotSupported, symbol)
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true&include_24hr_vol=true&include_market_cap=true",
		s.baseURL, coinID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("error fetching price: %w", err)
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

	var payload map[string]struct {
		USD          float64 `json:"usd"`
		USD24hVol    float64 `json:"usd_24h_vol"`
		USD24hChange float64 `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("error parsing price: %w", err)
	}

	coin, ok := payload[coinID]
	if !ok {
		err := fmt.Errorf("coin %s missing from response", coinID)
		s.recordError(err)
		return nil, err
	}

	s.recordSuccess()

	return FlatTick(symbol, coin.USD, coin.USD24hVol, coin.USD24hChange, s.Name()), nil
}
