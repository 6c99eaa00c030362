package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/safety"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

// historyWindow bounds the per-symbol mid-price history used for the
// volatility estimate.
const historyWindow = 96

// signalTTL is how long a file-fed signal stays actionable.
const signalTTL = 5 * time.Minute

// PriceSource supplies current mid prices for all tradeable symbols.
// The venue client's allMids query satisfies it.
type PriceSource interface {
	AllMids(ctx context.Context) (map[string]float64, error)
}

// FileSignal is one entry in the external signal file. The engine does
// not generate signals; a collaborator process writes this file.
type FileSignal struct {
	Symbol              string    `json:"symbol"`
	Direction           string    `json:"direction"` // LONG or SHORT
	Confidence          float64   `json:"confidence"`
	StopLoss            float64   `json:"stop_loss,omitempty"`
	TakeProfit          float64   `json:"take_profit,omitempty"`
	Leverage            float64   `json:"leverage,omitempty"`
	IndicatorScore      float64   `json:"indicator_score,omitempty"`
	Rank                int       `json:"rank,omitempty"`
	FundingRate         float64   `json:"funding_rate,omitempty"`
	LiquidationClusters []float64 `json:"liquidation_clusters,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Provider builds per-symbol snapshots from venue mid prices and an
// optional external signal file.
type Provider struct {
	source     PriceSource
	signalPath string
	log        *logger.Logger
	validator  *safety.Validator

	// Rolling mid history per symbol, oldest first.
	history map[string][]float64
}

// NewProvider creates a snapshot provider. signalPath may be empty, in
// which case the engine only manages exits for restored positions.
func NewProvider(source PriceSource, signalPath string, log *logger.Logger) *Provider {
	return &Provider{
		source:     source,
		signalPath: signalPath,
		log:        log,
		validator:  safety.NewValidator(),
		history:    make(map[string][]float64),
	}
}

// Snapshots returns one snapshot per requested symbol. Symbols the venue
// does not quote are omitted rather than failing the whole tick.
func (p *Provider) Snapshots(ctx context.Context, symbols []string) (map[string]types.SymbolSnapshot, error) {
	mids, err := p.source.AllMids(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mids: %w", err)
	}

	signals := p.loadSignals(time.Now())

	now := time.Now()
	out := make(map[string]types.SymbolSnapshot, len(symbols))
	for _, symbol := range symbols {
		price, ok := mids[symbol]
		if !ok || price <= 0 {
			p.log.Warning("Venue quotes no mid for %s", symbol)
			continue
		}

		p.record(symbol, price)

		snap := types.SymbolSnapshot{
			Symbol:        symbol,
			Price:         price,
			VolatilityPct: p.volatility(symbol),
			Timestamp:     now,
		}

		if fs, ok := signals[symbol]; ok {
			snap.FundingRate = fs.FundingRate
			snap.IndicatorScore = fs.IndicatorScore
			snap.Rank = fs.Rank
			snap.LiquidationClusters = fs.LiquidationClusters
			if fs.Confidence > 0 && fs.Direction != "" {
				snap.Signal = &types.Signal{
					Symbol:     symbol,
					Direction:  types.Direction(fs.Direction),
					Confidence: fs.Confidence,
					StopLoss:   fs.StopLoss,
					TakeProfit: fs.TakeProfit,
					Leverage:   fs.Leverage,
					Timestamp:  fs.Timestamp,
				}
			}
		}

		out[symbol] = snap
	}

	return out, nil
}

// record appends a mid to the symbol's rolling history.
func (p *Provider) record(symbol string, price float64) {
	h := append(p.history[symbol], price)
	if len(h) > historyWindow {
		h = h[len(h)-historyWindow:]
	}
	p.history[symbol] = h
}

// volatility estimates recent volatility as the sample standard deviation
// of tick-to-tick returns, in percent. Too little history yields a
// conservative default.
func (p *Provider) volatility(symbol string) float64 {
	h := p.history[symbol]
	if len(h) < 5 {
		return 2.0
	}

	returns := make([]float64, 0, len(h)-1)
	for i := 1; i < len(h); i++ {
		if h[i-1] > 0 {
			returns = append(returns, (h[i]-h[i-1])/h[i-1])
		}
	}
	if len(returns) < 2 {
		return 2.0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	// Scale the per-tick deviation to the whole observed window.
	return math.Sqrt(variance) * math.Sqrt(float64(len(returns))) * 100
}

// loadSignals reads the signal file, dropping malformed or stale entries.
// A missing file is not an error; it simply means no fresh signals.
func (p *Provider) loadSignals(now time.Time) map[string]FileSignal {
	if p.signalPath == "" {
		return nil
	}

	data, err := os.ReadFile(p.signalPath)
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.LogWarning("signal file", "could not read %s: %v", p.signalPath, err)
		}
		return nil
	}

	var raw []FileSignal
	if err := json.Unmarshal(data, &raw); err != nil {
		p.log.LogWarning("signal file", "could not parse %s: %v", p.signalPath, err)
		return nil
	}

	out := make(map[string]FileSignal, len(raw))
	for _, fs := range raw {
		if fs.Symbol == "" {
			continue
		}
		if fs.Direction != "" && fs.Direction != string(types.DirectionLong) && fs.Direction != string(types.DirectionShort) {
			p.log.LogWarning("signal file", "dropping %s: unknown direction %q", fs.Symbol, fs.Direction)
			continue
		}
		if fs.Confidence < 0 || fs.Confidence > 1 {
			p.log.LogWarning("signal file", "dropping %s: confidence %.2f outside [0,1]", fs.Symbol, fs.Confidence)
			continue
		}
		if !fs.Timestamp.IsZero() {
			if now.Sub(fs.Timestamp) > signalTTL {
				continue
			}
			if v := p.validator.ValidateTimestamp(fs.Timestamp, "signal"); !v.Valid {
				p.log.LogWarning("signal file", "dropping %s: %s", fs.Symbol, v.Message)
				continue
			}
		}
		out[fs.Symbol] = fs
	}
	return out
}
