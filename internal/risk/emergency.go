package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// Urgency ranks emergency conditions.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

var urgencyRank = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// EmergencyAction is the recommended response for a condition.
type EmergencyAction string

const (
	ActionCloseAll EmergencyAction = "close_all"
	ActionReduce50 EmergencyAction = "reduce_50"
	ActionReduce25 EmergencyAction = "reduce_25"
	ActionHold     EmergencyAction = "hold"
)

// EmergencyCondition is one triggered per-position check.
type EmergencyCondition struct {
	Triggered bool            `json:"triggered"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Urgency   Urgency         `json:"urgency"`
	Action    EmergencyAction `json:"action"`
}

// EmergencyAdvice aggregates the triggered conditions for one position;
// the single most urgent condition determines the action.
type EmergencyAdvice struct {
	Symbol     string               `json:"symbol"`
	Conditions []EmergencyCondition `json:"conditions"`
	Action     EmergencyAction      `json:"action"`
}

// EmergencyConfig holds the monitor thresholds.
type EmergencyConfig struct {
	MinLiquidationBufferPct float64 `json:"min_liquidation_buffer_pct"`
	FundingRateLimit        float64 `json:"funding_rate_limit"` // absolute per-interval rate

	// Correlated-asset shock detection.
	ReferenceSymbol      string  `json:"reference_symbol"`
	Correlation          float64 `json:"correlation"`
	ImpactMultiplier     float64 `json:"impact_multiplier"`
	NormalMovePct        float64 `json:"normal_move_pct"`        // typical 5-minute move
	ProjectedImpactLimit float64 `json:"projected_impact_limit"` // % adverse impact that triggers
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *EmergencyConfig) ApplyDefaults() {
	if c.MinLiquidationBufferPct == 0 {
		c.MinLiquidationBufferPct = 5
	}
	if c.FundingRateLimit == 0 {
		c.FundingRateLimit = 0.001
	}
	if c.ReferenceSymbol == "" {
		c.ReferenceSymbol = "BTC"
	}
	if c.Correlation == 0 {
		c.Correlation = 0.8
	}
	if c.ImpactMultiplier == 0 {
		c.ImpactMultiplier = 1.2
	}
	if c.NormalMovePct == 0 {
		c.NormalMovePct = 0.5
	}
	if c.ProjectedImpactLimit == 0 {
		c.ProjectedImpactLimit = 1.5
	}
}

// shockWindow is the rolling window for reference-asset shock detection.
const shockWindow = 5 * time.Minute

type refPoint struct {
	price float64
	ts    time.Time
}

// EmergencyMonitor runs the three independent per-position emergency
// checks. The rolling reference-price buffer is explicit instance state,
// created with the engine and trimmed every tick.
type EmergencyMonitor struct {
	cfg       EmergencyConfig
	refPrices []refPoint
}

// NewEmergencyMonitor creates a monitor with defaults applied.
func NewEmergencyMonitor(cfg EmergencyConfig) *EmergencyMonitor {
	cfg.ApplyDefaults()
	return &EmergencyMonitor{cfg: cfg}
}

// ReferenceSymbol returns the asset whose price feeds shock detection.
func (m *EmergencyMonitor) ReferenceSymbol() string {
	return m.cfg.ReferenceSymbol
}

// RecordReferencePrice appends a reference-asset price point and trims the
// window to the last five minutes.
func (m *EmergencyMonitor) RecordReferencePrice(price float64, now time.Time) {
	if price <= 0 {
		return
	}
	m.refPrices = append(m.refPrices, refPoint{price: price, ts: now})

	cutoff := now.Add(-shockWindow)
	trimmed := m.refPrices[:0]
	for _, p := range m.refPrices {
		if p.ts.After(cutoff) {
			trimmed = append(trimmed, p)
		}
	}
	m.refPrices = trimmed
}

// Check runs the three checks for one position. The checks are independent
// and order-insensitive; only triggered conditions are returned, sorted by
// urgency. Absence of any triggered condition yields a hold advice.
func (m *EmergencyMonitor) Check(p *position.Position, fundingRate float64) EmergencyAdvice {
	var conditions []EmergencyCondition

	if c := m.checkLiquidationRisk(p); c.Triggered {
		conditions = append(conditions, c)
	}
	if c := m.checkFundingExtreme(p, fundingRate); c.Triggered {
		conditions = append(conditions, c)
	}
	if c := m.checkCorrelatedShock(p); c.Triggered {
		conditions = append(conditions, c)
	}

	sort.SliceStable(conditions, func(i, j int) bool {
		return urgencyRank[conditions[i].Urgency] < urgencyRank[conditions[j].Urgency]
	})

	action := ActionHold
	if len(conditions) > 0 {
		action = conditions[0].Action
	}

	return EmergencyAdvice{Symbol: p.Symbol, Conditions: conditions, Action: action}
}

// checkLiquidationRisk recomputes the liquidation price with zero margin
// buffer and flags proximity to it.
func (m *EmergencyMonitor) checkLiquidationRisk(p *position.Position) EmergencyCondition {
	liq, err := LiquidationPrice(p.EntryPrice, p.Leverage, p.Side, 0)
	if err != nil {
		return EmergencyCondition{}
	}

	distPct := math.Abs(p.CurrentPrice-liq.Price) / p.CurrentPrice * 100

	switch {
	case distPct < m.cfg.MinLiquidationBufferPct:
		return EmergencyCondition{
			Triggered: true,
			Category:  "liquidation_risk",
			Message:   fmt.Sprintf("%s is %.2f%% from liquidation at %.4f", p.Symbol, distPct, liq.Price),
			Urgency:   UrgencyCritical,
			Action:    ActionCloseAll,
		}
	case distPct < 2*m.cfg.MinLiquidationBufferPct:
		return EmergencyCondition{
			Triggered: true,
			Category:  "liquidation_risk",
			Message:   fmt.Sprintf("%s is %.2f%% from liquidation at %.4f", p.Symbol, distPct, liq.Price),
			Urgency:   UrgencyHigh,
			Action:    ActionReduce50,
		}
	default:
		return EmergencyCondition{
			Triggered: false,
			Category:  "liquidation_risk",
			Urgency:   UrgencyLow,
			Action:    ActionHold,
		}
	}
}

// checkFundingExtreme flags extreme funding rates; the sign identifies
// which side pays.
func (m *EmergencyMonitor) checkFundingExtreme(p *position.Position, fundingRate float64) EmergencyCondition {
	absRate := math.Abs(fundingRate)
	if absRate <= m.cfg.FundingRateLimit {
		return EmergencyCondition{}
	}

	// Positive funding is paid by longs, negative by shorts.
	payingSide := position.SideLong
	if fundingRate < 0 {
		payingSide = position.SideShort
	}

	urgency := UrgencyHigh
	action := ActionReduce50
	if absRate > 2*m.cfg.FundingRateLimit {
		urgency = UrgencyCritical
		action = ActionCloseAll
	}

	if p.Side != payingSide {
		// Position collects funding; informational only.
		return EmergencyCondition{
			Triggered: true,
			Category:  "funding_extreme",
			Message:   fmt.Sprintf("%s funding rate %.5f extreme but favors %s position", p.Symbol, fundingRate, p.Side),
			Urgency:   UrgencyMedium,
			Action:    ActionHold,
		}
	}

	return EmergencyCondition{
		Triggered: true,
		Category:  "funding_extreme",
		Message:   fmt.Sprintf("%s funding rate %.5f against %s position (limit %.5f)", p.Symbol, fundingRate, p.Side, m.cfg.FundingRateLimit),
		Urgency:   urgency,
		Action:    action,
	}
}

// checkCorrelatedShock projects a sharp reference-asset move onto the
// position via correlation.
func (m *EmergencyMonitor) checkCorrelatedShock(p *position.Position) EmergencyCondition {
	if len(m.refPrices) < 2 {
		return EmergencyCondition{}
	}

	oldest := m.refPrices[0]
	latest := m.refPrices[len(m.refPrices)-1]
	if oldest.price <= 0 {
		return EmergencyCondition{}
	}

	movePct := (latest.price - oldest.price) / oldest.price * 100
	if math.Abs(movePct) < 2*m.cfg.NormalMovePct {
		return EmergencyCondition{}
	}

	projected := movePct * m.cfg.Correlation * m.cfg.ImpactMultiplier

	adverse := (p.Side == position.SideLong && projected < 0) ||
		(p.Side == position.SideShort && projected > 0)

	if !adverse {
		return EmergencyCondition{
			Triggered: true,
			Category:  "correlated_shock",
			Message:   fmt.Sprintf("%s moved %.2f%% in 5m, projected %.2f%% favors %s position", m.cfg.ReferenceSymbol, movePct, projected, p.Side),
			Urgency:   UrgencyMedium,
			Action:    ActionHold,
		}
	}

	if math.Abs(projected) < m.cfg.ProjectedImpactLimit {
		return EmergencyCondition{}
	}

	urgency := UrgencyHigh
	action := ActionReduce50
	if math.Abs(projected) >= 2*m.cfg.ProjectedImpactLimit {
		urgency = UrgencyCritical
		action = ActionCloseAll
	}

	return EmergencyCondition{
		Triggered: true,
		Category:  "correlated_shock",
		Message:   fmt.Sprintf("%s moved %.2f%% in 5m, projected %.2f%% impact against %s position", m.cfg.ReferenceSymbol, movePct, projected, p.Side),
		Urgency:   urgency,
		Action:    action,
	}
}
