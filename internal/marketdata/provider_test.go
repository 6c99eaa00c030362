package marketdata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

type stubSource struct {
	mids map[string]float64
}

func (s *stubSource) AllMids(ctx context.Context) (map[string]float64, error) {
	return s.mids, nil
}

func newTestProvider(t *testing.T, source PriceSource, signalPath string) *Provider {
	t.Helper()
	t.Chdir(t.TempDir())
	log, err := logger.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewProvider(source, signalPath, log)
}

func writeSignals(t *testing.T, signals []FileSignal) string {
	t.Helper()
	data, err := json.Marshal(signals)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signals.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// TestSnapshotsOmitUnquotedSymbols verifies a symbol the venue does not
// quote is dropped without failing the tick.
func TestSnapshotsOmitUnquotedSymbols(t *testing.T) {
	source := &stubSource{mids: map[string]float64{"BTC": 50000}}
	p := newTestProvider(t, source, "")

	snaps, err := p.Snapshots(context.Background(), []string{"BTC", "DOGE"})
	require.NoError(t, err)

	require.Contains(t, snaps, "BTC")
	assert.NotContains(t, snaps, "DOGE")
	assert.Equal(t, 50000.0, snaps["BTC"].Price)
}

// TestSignalAttachment verifies a fresh file signal is attached to the
// matching snapshot.
func TestSignalAttachment(t *testing.T) {
	path := writeSignals(t, []FileSignal{{
		Symbol:     "BTC",
		Direction:  "LONG",
		Confidence: 0.8,
		StopLoss:   48500,
		Leverage:   5,
		Rank:       1,
		Timestamp:  time.Now(),
	}})

	source := &stubSource{mids: map[string]float64{"BTC": 50000}}
	p := newTestProvider(t, source, path)

	snaps, err := p.Snapshots(context.Background(), []string{"BTC"})
	require.NoError(t, err)

	snap := snaps["BTC"]
	require.NotNil(t, snap.Signal)
	assert.Equal(t, types.DirectionLong, snap.Signal.Direction)
	assert.Equal(t, 0.8, snap.Signal.Confidence)
	assert.Equal(t, 1, snap.Rank)
}

// TestStaleSignalDropped verifies signals older than the TTL never reach
// the engine.
func TestStaleSignalDropped(t *testing.T) {
	path := writeSignals(t, []FileSignal{{
		Symbol:     "BTC",
		Direction:  "LONG",
		Confidence: 0.8,
		Timestamp:  time.Now().Add(-time.Hour),
	}})

	source := &stubSource{mids: map[string]float64{"BTC": 50000}}
	p := newTestProvider(t, source, path)

	snaps, err := p.Snapshots(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	assert.Nil(t, snaps["BTC"].Signal)
}

// TestFutureDatedSignalDropped verifies a signal stamped well in the
// future is rejected rather than treated as permanently fresh.
func TestFutureDatedSignalDropped(t *testing.T) {
	path := writeSignals(t, []FileSignal{{
		Symbol:     "BTC",
		Direction:  "LONG",
		Confidence: 0.8,
		Timestamp:  time.Now().Add(2 * time.Hour),
	}})

	source := &stubSource{mids: map[string]float64{"BTC": 50000}}
	p := newTestProvider(t, source, path)

	snaps, err := p.Snapshots(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	assert.Nil(t, snaps["BTC"].Signal)
}

// TestMalformedSignalDropped verifies out-of-range confidence and unknown
// directions are dropped, not propagated.
func TestMalformedSignalDropped(t *testing.T) {
	path := writeSignals(t, []FileSignal{
		{Symbol: "BTC", Direction: "SIDEWAYS", Confidence: 0.8, Timestamp: time.Now()},
		{Symbol: "ETH", Direction: "LONG", Confidence: 1.4, Timestamp: time.Now()},
	})

	source := &stubSource{mids: map[string]float64{"BTC": 50000, "ETH": 3000}}
	p := newTestProvider(t, source, path)

	snaps, err := p.Snapshots(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	assert.Nil(t, snaps["BTC"].Signal)
	assert.Nil(t, snaps["ETH"].Signal)
}

// TestVolatilityFromHistory verifies the estimate tightens once enough
// ticks are observed and stays at the default before that.
func TestVolatilityFromHistory(t *testing.T) {
	source := &stubSource{mids: map[string]float64{"BTC": 50000}}
	p := newTestProvider(t, source, "")

	snaps, err := p.Snapshots(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, snaps["BTC"].VolatilityPct)

	// Feed a flat price series; realized volatility collapses toward zero.
	for i := 0; i < 20; i++ {
		_, err := p.Snapshots(context.Background(), []string{"BTC"})
		require.NoError(t, err)
	}
	snaps, err = p.Snapshots(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	assert.Less(t, snaps["BTC"].VolatilityPct, 0.001)
}
