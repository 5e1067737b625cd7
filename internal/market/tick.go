package market

import "time"

// Tick is a single point-in-time price snapshot with OHLCV fields.
type Tick struct {
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Price          float64   `json:"price" db:"price"`
	Open           float64   `json:"open" db:"open_price"`
	High           float64   `json:"high" db:"high_price"`
	Low            float64   `json:"low" db:"low_price"`
	Close          float64   `json:"close" db:"close_price"`
	Volume         float64   `json:"volume" db:"volume"`
	Source         string    `json:"source" db:"source"`
	PriceChange24h float64   `json:"price_change_24h" db:"-"`
}

// FlatTick builds a tick whose OHLC fields all repeat the last price.
// Aggregator APIs expose only the spot price, so open/high/low are
// approximated this way.
func FlatTick(symbol string, price, volume, change24h float64, source string) *Tick {
	return &Tick{
		Timestamp:      time.Now(),
		Symbol:         symbol,
		Price:          price,
		Open:           price,
		High:           price,
		Low:            price,
		Close:          price,
		Volume:         volume,
		Source:         source,
		PriceChange24h: change24h,
	}
}
