package types

import "time"

// Direction is the trade direction suggested by an external signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal is the opaque entry signal supplied by the external market-data
// collaborator. Confidence is in [0,1]; StopLoss/TakeProfit/Leverage are
// optional hints (zero means unset).
type Signal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	Leverage   float64   `json:"leverage,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SymbolSnapshot is the per-symbol view the engine consumes once per tick.
// All exit decisions for a symbol within one tick use the same snapshot.
type SymbolSnapshot struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	FundingRate    float64 `json:"funding_rate"`
	VolatilityPct  float64 `json:"volatility_pct"`
	IndicatorScore float64 `json:"indicator_score"` // -1 (bearish) .. +1 (bullish)
	Rank           int     `json:"rank"`            // 1 = strongest ranked asset, 0 = unranked
	Signal         *Signal `json:"signal,omitempty"`

	// Known liquidation cluster prices near the current price, if the
	// collaborator supplies them.
	LiquidationClusters []float64 `json:"liquidation_clusters,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
