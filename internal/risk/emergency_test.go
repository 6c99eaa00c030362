package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

func emergencyConfig() EmergencyConfig {
	return EmergencyConfig{
		MinLiquidationBufferPct: 5,
		FundingRateLimit:        0.001,
		ReferenceSymbol:         "BTC",
		Correlation:             0.8,
		ImpactMultiplier:        1.2,
		NormalMovePct:           0.5,
		ProjectedImpactLimit:    1.5,
	}
}

func longPosition(entry, current, leverage float64) *position.Position {
	return &position.Position{
		Symbol:       "ETH",
		Side:         position.SideLong,
		Quantity:     1,
		EntryPrice:   entry,
		CurrentPrice: current,
		Leverage:     leverage,
		EntryTime:    time.Now(),
	}
}

// TestCheckHoldWhenHealthy verifies a comfortable position with benign
// funding triggers nothing.
func TestCheckHoldWhenHealthy(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())
	p := longPosition(100, 100, 3)

	advice := m.Check(p, 0.0001)
	assert.Equal(t, ActionHold, advice.Action)
	assert.Empty(t, advice.Conditions)
}

// TestCheckLiquidationProximity verifies the two-step liquidation
// escalation: reduce at 2x the buffer, close inside the buffer.
func TestCheckLiquidationProximity(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())

	// 10x long from 100 liquidates at 90. Price 98 is 8.2% away, inside
	// twice the 5% buffer.
	p := longPosition(100, 98, 10)
	advice := m.Check(p, 0)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, ActionReduce50, advice.Action)
	assert.Equal(t, UrgencyHigh, advice.Conditions[0].Urgency)

	// Price 93 is 3.2% from liquidation, inside the buffer itself.
	p = longPosition(100, 93, 10)
	advice = m.Check(p, 0)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, ActionCloseAll, advice.Action)
	assert.Equal(t, UrgencyCritical, advice.Conditions[0].Urgency)
}

// TestCheckFundingExtreme verifies the paying side escalates while the
// collecting side only gets an informational hold.
func TestCheckFundingExtreme(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())
	p := longPosition(100, 100, 3)

	// Positive funding above the limit is paid by longs.
	advice := m.Check(p, 0.0015)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, ActionReduce50, advice.Action)

	// Above twice the limit escalates to close.
	advice = m.Check(p, 0.0025)
	assert.Equal(t, ActionCloseAll, advice.Action)

	// Negative funding favors the long; condition is noted but held.
	advice = m.Check(p, -0.0025)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, ActionHold, advice.Action)
}

// TestCheckCorrelatedShock verifies a sharp adverse reference move
// projects through correlation onto the position.
func TestCheckCorrelatedShock(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())
	now := time.Now()

	// A 2% drop in the window: projected impact 2 * 0.8 * 1.2 = 1.92%,
	// above the 1.5% limit and adverse for a long.
	m.RecordReferencePrice(50000, now.Add(-3*time.Minute))
	m.RecordReferencePrice(49000, now)

	p := longPosition(100, 100, 3)
	advice := m.Check(p, 0)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, "correlated_shock", advice.Conditions[0].Category)
	assert.Equal(t, ActionReduce50, advice.Action)

	// The same move favors a short.
	short := longPosition(100, 100, 3)
	short.Side = position.SideShort
	advice = m.Check(short, 0)
	require.Len(t, advice.Conditions, 1)
	assert.Equal(t, ActionHold, advice.Action)
}

// TestCheckCorrelatedShockIgnoresOldPoints verifies points outside the
// window are trimmed and cannot fake a shock.
func TestCheckCorrelatedShockIgnoresOldPoints(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())
	now := time.Now()

	m.RecordReferencePrice(50000, now.Add(-10*time.Minute))
	m.RecordReferencePrice(49000, now)

	p := longPosition(100, 100, 3)
	advice := m.Check(p, 0)
	assert.Equal(t, ActionHold, advice.Action)
	assert.Empty(t, advice.Conditions)
}

// TestCheckMostUrgentConditionWins verifies the advice action comes from
// the highest-urgency condition when several fire.
func TestCheckMostUrgentConditionWins(t *testing.T) {
	m := NewEmergencyMonitor(emergencyConfig())

	// Liquidation proximity is critical, funding only high.
	p := longPosition(100, 93, 10)
	advice := m.Check(p, 0.0015)
	require.Len(t, advice.Conditions, 2)
	assert.Equal(t, ActionCloseAll, advice.Action)
	assert.Equal(t, UrgencyCritical, advice.Conditions[0].Urgency)
}
