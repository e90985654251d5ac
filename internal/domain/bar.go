package domain

import "time"

// Bar is one OHLCV bar, minute or daily depending on the feed.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is the latest tick for a symbol.
type Quote struct {
	Symbol         string    `json:"symbol"`
	Last           float64   `json:"last"`
	Bid            float64   `json:"bid"`
	Ask            float64   `json:"ask"`
	PrevSettlement float64   `json:"prev_settlement"`
	Volume         float64   `json:"volume"`
	Time           time.Time `json:"time"`
}

// PriceSample is a price that may come from synthesized minute data.
// Synthesized samples are approximations from daily OHLC and must be
// surfaced as such so reporting can distinguish exact from estimated fills.
type PriceSample struct {
	Value       float64 `json:"value"`
	Synthesized bool    `json:"synthesized"`
}
