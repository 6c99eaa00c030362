package position

import (
	"fmt"
	"sort"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

// ExitReason identifies why an exit condition fired.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitIndicator      ExitReason = "INDICATOR"
	ExitTrailingStop   ExitReason = "TRAILING_STOP"
	ExitSignalReversal ExitReason = "SIGNAL_REVERSAL"
	ExitRankingDrop    ExitReason = "RANKING_DROP"
	ExitEmergency      ExitReason = "EMERGENCY"
	ExitCircuitBreaker ExitReason = "CIRCUIT_BREAKER"
	ExitManualClose    ExitReason = "MANUAL_CLOSE"
)

// Exit check precedence. Lower number wins; only the first sorted
// condition is acted on per tick.
const (
	PriorityStopLoss       = 1
	PriorityTakeProfit     = 2
	PriorityIndicator      = 3
	PriorityTrailingStop   = 4
	PrioritySignalReversal = 5
	PriorityRankingDrop    = 6
)

// ExitCondition is one fired exit check for a position.
type ExitCondition struct {
	Reason      ExitReason `json:"reason"`
	Priority    int        `json:"priority"`
	ShouldExit  bool       `json:"should_exit"`
	ExitSize    float64    `json:"exit_size"`            // percent of position, (0,100]
	ExitPrice   float64    `json:"exit_price,omitempty"` // 0 = use market price
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ExitAction is the resolved action for the highest-priority condition.
type ExitAction struct {
	Condition ExitCondition
	ExitSize  float64 // clamped to [0,100]
	ExitPrice float64 // condition price if set, else market
}

// EvaluatorConfig holds the thresholds for the non-level exit checks.
type EvaluatorConfig struct {
	// Indicator-based exit: fires when the indicator score opposes the
	// position side by at least this magnitude (score in [-1,1]).
	IndicatorExitThreshold float64 `json:"indicator_exit_threshold"`

	// Signal reversal: full exit at or above StrongReversalConfidence,
	// half exit at or above ReversalConfidence.
	ReversalConfidence       float64 `json:"reversal_confidence"`
	StrongReversalConfidence float64 `json:"strong_reversal_confidence"`

	// Ranking drop: exit when the symbol's rank falls below this cutoff
	// (0 disables the check).
	RankingCutoff int `json:"ranking_cutoff"`

	// Default trailing distance, used when a position carries none.
	TrailingStopPct float64 `json:"trailing_stop_pct"`

	// Profit (in % of margin) required before the trailing stop arms.
	TrailingActivationPct float64 `json:"trailing_activation_pct"`
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *EvaluatorConfig) ApplyDefaults() {
	if c.IndicatorExitThreshold == 0 {
		c.IndicatorExitThreshold = 0.6
	}
	if c.ReversalConfidence == 0 {
		c.ReversalConfidence = 0.55
	}
	if c.StrongReversalConfidence == 0 {
		c.StrongReversalConfidence = 0.75
	}
	if c.TrailingStopPct == 0 {
		c.TrailingStopPct = 1.5
	}
	if c.TrailingActivationPct == 0 {
		c.TrailingActivationPct = 20
	}
}

// ExitEvaluator runs the six exit checks for one position per tick.
type ExitEvaluator struct {
	cfg EvaluatorConfig
}

// NewExitEvaluator creates an evaluator with defaults applied.
func NewExitEvaluator(cfg EvaluatorConfig) *ExitEvaluator {
	cfg.ApplyDefaults()
	return &ExitEvaluator{cfg: cfg}
}

// Evaluate runs all checks independently against a consistent snapshot and
// returns only the fired conditions, sorted ascending by priority.
// Trailing-stop state on the position is updated once per call regardless
// of whether any condition fires.
func (e *ExitEvaluator) Evaluate(p *Position, snap types.SymbolSnapshot, now time.Time) []ExitCondition {
	e.updateTrailingState(p)

	var fired []ExitCondition

	if c := e.checkStopLoss(p, snap, now); c != nil {
		fired = append(fired, *c)
	}
	if c := e.checkTakeProfit(p, snap, now); c != nil {
		fired = append(fired, *c)
	}
	if c := e.checkIndicator(p, snap, now); c != nil {
		fired = append(fired, *c)
	}
	if c := e.checkTrailingStop(p, snap, now); c != nil {
		fired = append(fired, *c)
	}
	if c := e.checkSignalReversal(p, snap, now); c != nil {
		fired = append(fired, *c)
	}
	if c := e.checkRankingDrop(p, snap, now); c != nil {
		fired = append(fired, *c)
	}

	sort.SliceStable(fired, func(i, j int) bool {
		return fired[i].Priority < fired[j].Priority
	})

	return fired
}

// DetermineExitAction resolves the acted-upon condition: exit size clamped
// to [0,100] and the exit price falling back to the market price.
func DetermineExitAction(c ExitCondition, marketPrice float64) ExitAction {
	size := c.ExitSize
	if size < 0 {
		size = 0
	}
	if size > 100 {
		size = 100
	}

	price := c.ExitPrice
	if price <= 0 {
		price = marketPrice
	}

	return ExitAction{Condition: c, ExitSize: size, ExitPrice: price}
}

// updateTrailingState arms the trailing stop once the position is far
// enough in profit. The high/low ratchet itself happens in RefreshPrice.
func (e *ExitEvaluator) updateTrailingState(p *Position) {
	if p.TrailingActive {
		return
	}
	if p.UnrealizedPnLPct >= e.cfg.TrailingActivationPct {
		p.TrailingActive = true
	}
}

func (e *ExitEvaluator) checkStopLoss(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	if p.StopLoss <= 0 {
		return nil
	}

	hit := (p.Side == SideLong && snap.Price <= p.StopLoss) ||
		(p.Side == SideShort && snap.Price >= p.StopLoss)
	if !hit {
		return nil
	}

	return &ExitCondition{
		Reason:      ExitStopLoss,
		Priority:    PriorityStopLoss,
		ShouldExit:  true,
		ExitSize:    100,
		ExitPrice:   p.StopLoss,
		Description: fmt.Sprintf("%s stop loss %.4f hit at %.4f", p.Symbol, p.StopLoss, snap.Price),
		Timestamp:   now,
	}
}

func (e *ExitEvaluator) checkTakeProfit(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	if p.TakeProfit <= 0 {
		return nil
	}

	hit := (p.Side == SideLong && snap.Price >= p.TakeProfit) ||
		(p.Side == SideShort && snap.Price <= p.TakeProfit)
	if !hit {
		return nil
	}

	return &ExitCondition{
		Reason:      ExitTakeProfit,
		Priority:    PriorityTakeProfit,
		ShouldExit:  true,
		ExitSize:    100,
		ExitPrice:   p.TakeProfit,
		Description: fmt.Sprintf("%s take profit %.4f hit at %.4f", p.Symbol, p.TakeProfit, snap.Price),
		Timestamp:   now,
	}
}

func (e *ExitEvaluator) checkIndicator(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	score := snap.IndicatorScore

	opposes := (p.Side == SideLong && score <= -e.cfg.IndicatorExitThreshold) ||
		(p.Side == SideShort && score >= e.cfg.IndicatorExitThreshold)
	if !opposes {
		return nil
	}

	return &ExitCondition{
		Reason:      ExitIndicator,
		Priority:    PriorityIndicator,
		ShouldExit:  true,
		ExitSize:    100,
		Description: fmt.Sprintf("%s indicator score %.2f opposes %s position", p.Symbol, score, p.Side),
		Timestamp:   now,
	}
}

func (e *ExitEvaluator) checkTrailingStop(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	if !p.TrailingActive {
		return nil
	}

	trailPct := p.TrailingStopPct
	if trailPct <= 0 {
		trailPct = e.cfg.TrailingStopPct
	}

	var retracePct float64
	if p.Side == SideLong {
		if p.HighestPrice <= 0 {
			return nil
		}
		retracePct = (p.HighestPrice - snap.Price) / p.HighestPrice * 100
	} else {
		if p.LowestPrice <= 0 {
			return nil
		}
		retracePct = (snap.Price - p.LowestPrice) / p.LowestPrice * 100
	}

	if retracePct < trailPct {
		return nil
	}

	return &ExitCondition{
		Reason:      ExitTrailingStop,
		Priority:    PriorityTrailingStop,
		ShouldExit:  true,
		ExitSize:    100,
		Description: fmt.Sprintf("%s retraced %.2f%% from extreme (trail %.2f%%)", p.Symbol, retracePct, trailPct),
		Timestamp:   now,
	}
}

func (e *ExitEvaluator) checkSignalReversal(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	sig := snap.Signal
	if sig == nil {
		return nil
	}

	reversed := (p.Side == SideLong && sig.Direction == types.DirectionShort) ||
		(p.Side == SideShort && sig.Direction == types.DirectionLong)
	if !reversed || sig.Confidence < e.cfg.ReversalConfidence {
		return nil
	}

	size := 50.0
	if sig.Confidence >= e.cfg.StrongReversalConfidence {
		size = 100
	}

	return &ExitCondition{
		Reason:      ExitSignalReversal,
		Priority:    PrioritySignalReversal,
		ShouldExit:  true,
		ExitSize:    size,
		Description: fmt.Sprintf("%s signal reversed to %s (confidence %.2f)", p.Symbol, sig.Direction, sig.Confidence),
		Timestamp:   now,
	}
}

func (e *ExitEvaluator) checkRankingDrop(p *Position, snap types.SymbolSnapshot, now time.Time) *ExitCondition {
	if e.cfg.RankingCutoff <= 0 || snap.Rank <= 0 {
		return nil
	}
	if snap.Rank <= e.cfg.RankingCutoff {
		return nil
	}

	return &ExitCondition{
		Reason:      ExitRankingDrop,
		Priority:    PriorityRankingDrop,
		ShouldExit:  true,
		ExitSize:    100,
		Description: fmt.Sprintf("%s rank %d fell below cutoff %d", p.Symbol, snap.Rank, e.cfg.RankingCutoff),
		Timestamp:   now,
	}
}
