package risk

import (
	"fmt"
	"math"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// LiquidationResult is the output of a liquidation-price computation.
type LiquidationResult struct {
	Price           float64 `json:"price"`
	DistancePct     float64 `json:"distance_pct"` // % distance from entry
	MarginBufferPct float64 `json:"margin_buffer_pct"`
}

// LiquidationPrice computes the price at which a leveraged position would be
// forcibly closed. The maintenance margin rate is 1/leverage, reduced by the
// margin buffer; LONG positions liquidate below entry, SHORT above.
func LiquidationPrice(entry, leverage float64, side position.Side, marginBufferPct float64) (LiquidationResult, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return LiquidationResult{}, fmt.Errorf("invalid entry price %.8f", entry)
	}
	if leverage <= 0 || math.IsNaN(leverage) || math.IsInf(leverage, 0) {
		return LiquidationResult{}, fmt.Errorf("invalid leverage %.4f", leverage)
	}
	if marginBufferPct < 0 || marginBufferPct >= 100 {
		return LiquidationResult{}, fmt.Errorf("invalid margin buffer %.2f%%", marginBufferPct)
	}

	marginRate := (1 / leverage) * (1 - marginBufferPct/100)

	var price float64
	if side == position.SideLong {
		price = entry * (1 - marginRate)
	} else {
		price = entry * (1 + marginRate)
	}

	return LiquidationResult{
		Price:           price,
		DistancePct:     marginRate * 100,
		MarginBufferPct: marginBufferPct,
	}, nil
}

// SafeLeverage bounds leverage by recent volatility: higher volatility means
// lower leverage so that the liquidation buffer survives a typical move.
// If a liquidation-cluster price closer than minBufferPct is known, the
// cluster distance tightens the bound further. The result is clamped to
// [1, maxLeverage]; degenerate volatility yields 1.
func SafeLeverage(volatilityPct, minBufferPct, maxLeverage, price, clusterPrice float64) float64 {
	if volatilityPct <= 0 || math.IsNaN(volatilityPct) || math.IsInf(volatilityPct, 0) {
		return 1
	}
	if maxLeverage < 1 {
		maxLeverage = 1
	}

	effectiveBuffer := minBufferPct
	if clusterPrice > 0 && price > 0 {
		clusterDistPct := math.Abs(price-clusterPrice) / price * 100
		if clusterDistPct < effectiveBuffer {
			effectiveBuffer = clusterDistPct
		}
	}

	leverage := effectiveBuffer / volatilityPct

	if leverage < 1 {
		return 1
	}
	if leverage > maxLeverage {
		return maxLeverage
	}
	return leverage
}

// RiskTier classifies position risk purely from leverage.
type RiskTier string

const (
	RiskTierLow     RiskTier = "low"
	RiskTierMedium  RiskTier = "medium"
	RiskTierHigh    RiskTier = "high"
	RiskTierExtreme RiskTier = "extreme"
)

// TierForLeverage maps leverage to a risk tier.
func TierForLeverage(leverage float64) RiskTier {
	switch {
	case leverage >= 50:
		return RiskTierExtreme
	case leverage >= 30:
		return RiskTierHigh
	case leverage >= 15:
		return RiskTierMedium
	default:
		return RiskTierLow
	}
}

// SizingConfig holds the account-level risk budget for position sizing.
type SizingConfig struct {
	Capital                 float64 `json:"capital"`                // account equity, quote units
	MaxRiskPerTradePct      float64 `json:"max_risk_per_trade_pct"` // % of capital risked per trade
	MinLiquidationBufferPct float64 `json:"min_liquidation_buffer_pct"`
	MaxLeverage             float64 `json:"max_leverage"`
	MarginBufferPct         float64 `json:"margin_buffer_pct"`
	VolatilityPct           float64 `json:"volatility_pct"` // recent volatility of the asset
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *SizingConfig) ApplyDefaults() {
	if c.MaxRiskPerTradePct == 0 {
		c.MaxRiskPerTradePct = 1
	}
	if c.MinLiquidationBufferPct == 0 {
		c.MinLiquidationBufferPct = 5
	}
	if c.MaxLeverage == 0 {
		c.MaxLeverage = 20
	}
}

// SizeResult is the outcome of liquidation-aware position sizing. Size is a
// notional amount in quote units; callers derive base quantity as Size/entry.
type SizeResult struct {
	Size      float64  `json:"size"` // notional, quote units
	Leverage  float64  `json:"leverage"`
	Margin    float64  `json:"margin"`
	Tier      RiskTier `json:"tier"`
	Reason    string   `json:"reason"`
	LiqResult LiquidationResult
}

// maxCapitalFraction caps any single position's notional at 20% of capital.
const maxCapitalFraction = 0.20

// SafePositionSize sizes an entry from the risk budget and the distance to
// the stop, then verifies the implied liquidation distance. If the distance
// is unsafe and cluster data is available, leverage is recomputed against
// the nearest cluster and the size rescaled; the final size is capped at
// 20% of capital.
func SafePositionSize(entry float64, side position.Side, stopLoss, leverage float64, cfg SizingConfig, clusters []float64) (SizeResult, error) {
	cfg.ApplyDefaults()

	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return SizeResult{}, fmt.Errorf("invalid entry price %.8f", entry)
	}
	if leverage <= 0 {
		return SizeResult{}, fmt.Errorf("invalid leverage %.4f", leverage)
	}
	if cfg.Capital <= 0 {
		return SizeResult{}, fmt.Errorf("invalid capital %.2f", cfg.Capital)
	}

	stopDistPct := math.Abs(entry-stopLoss) / entry * 100
	if stopDistPct <= 0 || math.IsNaN(stopDistPct) {
		return SizeResult{}, fmt.Errorf("stop too close to entry: %.4f vs %.4f", stopLoss, entry)
	}

	riskBudget := cfg.Capital * cfg.MaxRiskPerTradePct / 100
	size := riskBudget / (stopDistPct / 100) / leverage

	liq, err := LiquidationPrice(entry, leverage, side, cfg.MarginBufferPct)
	if err != nil {
		return SizeResult{}, err
	}

	reason := fmt.Sprintf("risk budget $%.2f over %.2f%% stop at %.1fx", riskBudget, stopDistPct, leverage)

	if liq.DistancePct < cfg.MinLiquidationBufferPct {
		cluster := nearestCluster(entry, clusters)
		if cluster > 0 {
			newLev := SafeLeverage(cfg.VolatilityPct, cfg.MinLiquidationBufferPct, cfg.MaxLeverage, entry, cluster)
			size = size * leverage / newLev
			leverage = newLev
			liq, err = LiquidationPrice(entry, leverage, side, cfg.MarginBufferPct)
			if err != nil {
				return SizeResult{}, err
			}
			reason = fmt.Sprintf("%s, leverage cut to %.1fx for liquidation buffer near cluster %.4f", reason, newLev, cluster)
		} else {
			reason = fmt.Sprintf("%s, WARNING liquidation distance %.2f%% below minimum %.2f%%", reason, liq.DistancePct, cfg.MinLiquidationBufferPct)
		}
	}

	maxSize := cfg.Capital * maxCapitalFraction
	if size > maxSize {
		size = maxSize
		reason = fmt.Sprintf("%s, capped at %.0f%% of capital", reason, maxCapitalFraction*100)
	}

	return SizeResult{
		Size:      size,
		Leverage:  leverage,
		Margin:    size / leverage,
		Tier:      TierForLeverage(leverage),
		Reason:    reason,
		LiqResult: liq,
	}, nil
}

// ValidatePositionSafety checks whether a position's liquidation distance
// and cluster proximity respect the configured minimum buffer.
func ValidatePositionSafety(entry, leverage float64, side position.Side, cfg SizingConfig, clusters []float64) (bool, string) {
	cfg.ApplyDefaults()

	liq, err := LiquidationPrice(entry, leverage, side, cfg.MarginBufferPct)
	if err != nil {
		return false, err.Error()
	}

	if liq.DistancePct < cfg.MinLiquidationBufferPct {
		return false, fmt.Sprintf("liquidation distance %.2f%% below minimum buffer %.2f%%", liq.DistancePct, cfg.MinLiquidationBufferPct)
	}

	if cluster := nearestCluster(entry, clusters); cluster > 0 {
		clusterDistPct := math.Abs(entry-cluster) / entry * 100
		if clusterDistPct < cfg.MinLiquidationBufferPct {
			return false, fmt.Sprintf("liquidation cluster %.4f within %.2f%% of entry (minimum %.2f%%)", cluster, clusterDistPct, cfg.MinLiquidationBufferPct)
		}
	}

	return true, "position safety validated"
}

// nearestCluster returns the cluster price closest to entry, 0 if none.
func nearestCluster(entry float64, clusters []float64) float64 {
	best := 0.0
	bestDist := math.MaxFloat64
	for _, c := range clusters {
		if c <= 0 {
			continue
		}
		d := math.Abs(entry - c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
