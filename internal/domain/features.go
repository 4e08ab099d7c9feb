package domain

import "time"

// PriceBar is one daily observation returned by the market data provider.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// RsiWindow is the number of deltas behind Rsi14.
const RsiWindow = 14

// FeatureSnapshot is the fixed feature vector derived from an instrument's
// price history. Sma50, Sma200 and Rsi14 are 0 when the history is shorter
// than the respective window; 0 means "not computed". A strictly falling
// window also gives an Rsi14 of 0, so use HasRsi14 rather than the value.
type FeatureSnapshot struct {
	Instrument string    `json:"instrument"`
	AsOf       time.Time `json:"asOf"`
	Price      float64   `json:"price"`
	Sma50      float64   `json:"sma50"`
	Sma200     float64   `json:"sma200"`
	Rsi14      float64   `json:"rsi14"`
	// Closes is the number of usable closes the snapshot was built from.
	Closes int `json:"closes"`
}

func (f FeatureSnapshot) HasSma50() bool {
	return f.Sma50 != 0
}

func (f FeatureSnapshot) HasSma200() bool {
	return f.Sma200 != 0
}

func (f FeatureSnapshot) HasRsi14() bool {
	return f.Rsi14 != 0 || f.Closes > RsiWindow
}
