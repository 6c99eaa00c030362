package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// TestLiquidationPriceLong verifies the long-side formula with no margin
// buffer: 10x long liquidates 10% below entry.
func TestLiquidationPriceLong(t *testing.T) {
	liq, err := LiquidationPrice(100, 10, position.SideLong, 0)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, liq.Price, 1e-9)
	assert.InDelta(t, 10.0, liq.DistancePct, 1e-9)
}

// TestLiquidationPriceShort verifies the short side liquidates above entry.
func TestLiquidationPriceShort(t *testing.T) {
	liq, err := LiquidationPrice(100, 20, position.SideShort, 0)
	require.NoError(t, err)
	assert.InDelta(t, 105.0, liq.Price, 1e-9)
}

// TestLiquidationPriceMarginBuffer verifies the buffer tightens the
// distance: 10x with a 20% buffer leaves an 8% distance.
func TestLiquidationPriceMarginBuffer(t *testing.T) {
	liq, err := LiquidationPrice(100, 10, position.SideLong, 20)
	require.NoError(t, err)
	assert.InDelta(t, 92.0, liq.Price, 1e-9)
	assert.InDelta(t, 8.0, liq.DistancePct, 1e-9)
}

// TestLiquidationPriceRejectsBadInputs verifies invalid prices and
// leverage are errors, not garbage results.
func TestLiquidationPriceRejectsBadInputs(t *testing.T) {
	_, err := LiquidationPrice(0, 10, position.SideLong, 0)
	assert.Error(t, err)

	_, err = LiquidationPrice(100, 0, position.SideLong, 0)
	assert.Error(t, err)

	_, err = LiquidationPrice(100, 10, position.SideLong, 100)
	assert.Error(t, err)
}

// TestSafeLeverageScalesWithVolatility verifies quiet markets allow more
// leverage than volatile ones, within the clamp.
func TestSafeLeverageScalesWithVolatility(t *testing.T) {
	quiet := SafeLeverage(0.5, 10, 20, 100, 0)
	volatile := SafeLeverage(5, 10, 20, 100, 0)

	assert.Greater(t, quiet, volatile)
	assert.InDelta(t, 20.0, quiet, 1e-9) // 10/0.5 clamps at max
	assert.InDelta(t, 2.0, volatile, 1e-9)
}

// TestSafeLeverageClusterTightensBuffer verifies a cluster closer than the
// configured buffer reduces allowed leverage.
func TestSafeLeverageClusterTightensBuffer(t *testing.T) {
	without := SafeLeverage(2, 10, 20, 100, 0)
	with := SafeLeverage(2, 10, 20, 100, 96) // cluster 4% away

	assert.InDelta(t, 5.0, without, 1e-9)
	assert.InDelta(t, 2.0, with, 1e-9)
}

// TestSafeLeverageDegenerateVolatility verifies zero or negative
// volatility collapses to 1x.
func TestSafeLeverageDegenerateVolatility(t *testing.T) {
	assert.Equal(t, 1.0, SafeLeverage(0, 10, 20, 100, 0))
	assert.Equal(t, 1.0, SafeLeverage(-1, 10, 20, 100, 0))
}

// TestTierForLeverage verifies the tier boundaries.
func TestTierForLeverage(t *testing.T) {
	assert.Equal(t, RiskTierLow, TierForLeverage(5))
	assert.Equal(t, RiskTierMedium, TierForLeverage(15))
	assert.Equal(t, RiskTierHigh, TierForLeverage(30))
	assert.Equal(t, RiskTierExtreme, TierForLeverage(50))
}

// TestSafePositionSizeFromRiskBudget verifies the stop-distance sizing:
// $10k capital, 1% risk, 2% stop at 5x gives a $1000 notional.
func TestSafePositionSizeFromRiskBudget(t *testing.T) {
	cfg := SizingConfig{
		Capital:            10000,
		MaxRiskPerTradePct: 1,
		MaxLeverage:        20,
	}
	res, err := SafePositionSize(100, position.SideLong, 98, 5, cfg, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, res.Size, 1e-6)
	assert.InDelta(t, 5.0, res.Leverage, 1e-9)
	assert.InDelta(t, 200.0, res.Margin, 1e-6)
	assert.Equal(t, RiskTierLow, res.Tier)
}

// TestSafePositionSizeCapitalCap verifies no single position exceeds 20%
// of capital even when the stop is very tight.
func TestSafePositionSizeCapitalCap(t *testing.T) {
	cfg := SizingConfig{
		Capital:            10000,
		MaxRiskPerTradePct: 1,
		MaxLeverage:        20,
	}
	// 0.1% stop at 2x would imply $50k notional without the cap.
	res, err := SafePositionSize(100, position.SideLong, 99.9, 2, cfg, nil)
	require.NoError(t, err)

	assert.InDelta(t, 2000.0, res.Size, 1e-6)
	assert.Contains(t, res.Reason, "capped")
}

// TestSafePositionSizeCutsLeverageNearCluster verifies an unsafe
// liquidation distance with cluster data recomputes leverage down.
func TestSafePositionSizeCutsLeverageNearCluster(t *testing.T) {
	cfg := SizingConfig{
		Capital:                 10000,
		MaxRiskPerTradePct:      1,
		MinLiquidationBufferPct: 8,
		MaxLeverage:             20,
		VolatilityPct:           2,
	}
	// 20x gives a 5% liquidation distance, below the 8% minimum.
	res, err := SafePositionSize(100, position.SideLong, 95, 20, cfg, []float64{94})
	require.NoError(t, err)

	assert.Less(t, res.Leverage, 20.0)
	assert.Contains(t, res.Reason, "leverage cut")
	assert.GreaterOrEqual(t, res.LiqResult.DistancePct, cfg.MinLiquidationBufferPct)
}

// TestSafePositionSizeRejectsZeroStopDistance verifies a stop equal to
// entry is an error.
func TestSafePositionSizeRejectsZeroStopDistance(t *testing.T) {
	cfg := SizingConfig{Capital: 10000}
	_, err := SafePositionSize(100, position.SideLong, 100, 5, cfg, nil)
	assert.Error(t, err)
}

// TestValidatePositionSafety verifies both the liquidation-distance and
// cluster-proximity rejections.
func TestValidatePositionSafety(t *testing.T) {
	cfg := SizingConfig{MinLiquidationBufferPct: 5, MaxLeverage: 50}

	ok, _ := ValidatePositionSafety(100, 10, position.SideLong, cfg, nil)
	assert.True(t, ok)

	// 50x leaves only a 2% distance.
	ok, reason := ValidatePositionSafety(100, 50, position.SideLong, cfg, nil)
	assert.False(t, ok)
	assert.Contains(t, reason, "liquidation distance")

	// Safe leverage but a cluster 3% below entry.
	ok, reason = ValidatePositionSafety(100, 10, position.SideLong, cfg, []float64{97})
	assert.False(t, ok)
	assert.Contains(t, reason, "cluster")
}
