package exchange

import (
	"context"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

// confidenceFloor is the minimum signal confidence both backends accept.
const confidenceFloor = 0.60

// EntryRequest carries a sized, accepted entry decision to a backend.
type EntryRequest struct {
	Signal   types.Signal
	Quantity float64 // base units
	Leverage float64
}

// Executor turns accepted entry/exit decisions into filled or rejected
// orders. Implementations never return an error for rejections or
// timeouts; those are reported through the Order's status and reason.
type Executor interface {
	// ExecuteEntry opens (or rejects) a new position for a signal at the
	// current snapshot price.
	ExecuteEntry(ctx context.Context, req EntryRequest, currentPrice float64) (*Order, error)

	// ExecuteExit closes exitSizePct percent of the position at the
	// current snapshot price. Exit orders are always reduce-only.
	ExecuteExit(ctx context.Context, pos *position.Position, exitSizePct float64, reason string, currentPrice float64) (*Order, error)
}

// VenueReader exposes the venue's authoritative account state for
// reconciliation and the circuit breaker's margin check.
type VenueReader interface {
	// RemotePositions returns the venue's open positions for the account.
	RemotePositions(ctx context.Context) ([]position.RemotePosition, error)

	// MarginLevel returns account equity divided by margin used, or 0 when
	// unknown (no margin in use).
	MarginLevel(ctx context.Context) (float64, error)
}

// APIStats reports the running request/error counters a backend collects
// for circuit-breaker consumption.
type APIStats interface {
	APICounters() (errors, requests int)
}
