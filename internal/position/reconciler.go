package position

import (
	"fmt"
	"math"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
)

// RemotePosition is the venue's authoritative view of one open position.
type RemotePosition struct {
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	Leverage   float64
}

// ReconcileEventType classifies a detected drift.
type ReconcileEventType string

const (
	EventManualClose  ReconcileEventType = "MANUAL_CLOSE"
	EventSizeMismatch ReconcileEventType = "SIZE_MISMATCH"
	EventManualOpen   ReconcileEventType = "MANUAL_OPEN"
)

// ReconcileEvent describes one correction applied during reconciliation.
type ReconcileEvent struct {
	Type      ReconcileEventType `json:"type"`
	Symbol    string             `json:"symbol"`
	Detail    string             `json:"detail"`
	Timestamp time.Time          `json:"timestamp"`
}

// ReconcileResult carries the corrections for the orchestrator to fold
// into the trade log and circuit breaker. Reconciliation is advisory and
// corrective: it never blocks the cycle.
type ReconcileResult struct {
	Events       []ReconcileEvent
	ClosedTrades []*TradeRecord
	Imported     []*Position
}

// ReconcilerConfig holds reconciliation tolerances.
type ReconcilerConfig struct {
	// Absolute quantity epsilon below which a size difference is noise.
	QuantityEpsilon float64 `json:"quantity_epsilon"`

	// ImportUntracked imports venue positions the engine does not track.
	// Disabled by default so the engine never silently absorbs exposure.
	ImportUntracked bool `json:"import_untracked"`
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *ReconcilerConfig) ApplyDefaults() {
	if c.QuantityEpsilon == 0 {
		c.QuantityEpsilon = 1e-8
	}
}

// Reconciler diffs tracked positions against the venue snapshot.
type Reconciler struct {
	cfg ReconcilerConfig
	log *logger.Logger
}

// NewReconciler creates a reconciler with defaults applied.
func NewReconciler(cfg ReconcilerConfig, log *logger.Logger) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{cfg: cfg, log: log}
}

// Reconcile corrects the store in place to match the remote snapshot and
// reports what changed. Running it twice on unchanged inputs is idempotent.
func (r *Reconciler) Reconcile(store *Store, remote []RemotePosition, now time.Time) ReconcileResult {
	var result ReconcileResult

	remoteBySymbol := make(map[string]RemotePosition, len(remote))
	for _, rp := range remote {
		remoteBySymbol[rp.Symbol] = rp
	}

	for _, p := range store.All() {
		rp, present := remoteBySymbol[p.Symbol]
		if !present {
			// Closed out-of-band; assume the last known price as exit.
			record, err := store.ApplyExitFill(p.Symbol, p.CurrentPrice, 100, string(ExitManualClose), 0, now)
			if err != nil {
				r.log.LogError("Reconcile", err)
				continue
			}
			result.ClosedTrades = append(result.ClosedTrades, record)
			result.Events = append(result.Events, ReconcileEvent{
				Type:      EventManualClose,
				Symbol:    p.Symbol,
				Detail:    fmt.Sprintf("position absent on venue, closed at last price %.4f", p.CurrentPrice),
				Timestamp: now,
			})
			r.log.Warning("Manual close detected for %s, assumed exit at %.4f", p.Symbol, p.CurrentPrice)
			continue
		}

		if r.sizeMismatch(p.Quantity, rp.Quantity) {
			detail := fmt.Sprintf("tracked %.8f vs venue %.8f, rescaled", p.Quantity, rp.Quantity)
			if rp.Quantity <= r.cfg.QuantityEpsilon {
				// Effectively zero on the venue: treat as a full close.
				record, err := store.ApplyExitFill(p.Symbol, p.CurrentPrice, 100, string(ExitManualClose), 0, now)
				if err != nil {
					r.log.LogError("Reconcile", err)
					continue
				}
				result.ClosedTrades = append(result.ClosedTrades, record)
				detail = fmt.Sprintf("venue size %.8f effectively zero, closed", rp.Quantity)
			} else {
				p.Quantity = rp.Quantity
			}
			result.Events = append(result.Events, ReconcileEvent{
				Type:      EventSizeMismatch,
				Symbol:    p.Symbol,
				Detail:    detail,
				Timestamp: now,
			})
			r.log.Warning("Size mismatch for %s: %s", p.Symbol, detail)
		}
	}

	for _, rp := range remote {
		if store.Has(rp.Symbol) {
			continue
		}
		if !r.cfg.ImportUntracked {
			r.log.Warning("Untracked venue position %s (%.8f) ignored, import disabled", rp.Symbol, rp.Quantity)
			continue
		}

		imported := &Position{
			Symbol:       rp.Symbol,
			Side:         rp.Side,
			Quantity:     rp.Quantity,
			EntryPrice:   rp.EntryPrice,
			Leverage:     rp.Leverage,
			CurrentPrice: rp.EntryPrice,
			EntryTime:    now,
			HighestPrice: rp.EntryPrice,
			LowestPrice:  rp.EntryPrice,
		}
		if err := store.Open(imported); err != nil {
			r.log.LogError("Reconcile", err)
			continue
		}
		result.Imported = append(result.Imported, imported)
		result.Events = append(result.Events, ReconcileEvent{
			Type:      EventManualOpen,
			Symbol:    rp.Symbol,
			Detail:    fmt.Sprintf("imported venue position %.8f @ %.4f", rp.Quantity, rp.EntryPrice),
			Timestamp: now,
		})
		r.log.Warning("Manual open detected for %s, imported %.8f @ %.4f", rp.Symbol, rp.Quantity, rp.EntryPrice)
	}

	return result
}

// sizeMismatch applies max(absolute epsilon, 1% relative) tolerance.
func (r *Reconciler) sizeMismatch(tracked, remote float64) bool {
	diff := math.Abs(tracked - remote)
	tolerance := math.Max(r.cfg.QuantityEpsilon, 0.01*math.Max(tracked, remote))
	return diff > tolerance
}
