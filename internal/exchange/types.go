package exchange

import "time"

// OrderSide is the requested direction of an order. CLOSE marks reduce-only
// exits regardless of the position side.
type OrderSide string

const (
	OrderSideLong  OrderSide = "LONG"
	OrderSideShort OrderSide = "SHORT"
	OrderSideClose OrderSide = "CLOSE"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the lifecycle status of an order. TIMEOUT means the local
// fill wait expired with the outcome unknown; the order is resolved by
// reconciliation on the next tick, never retried blindly.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusFilled        OrderStatus = "FILLED"
	OrderStatusPartialFilled OrderStatus = "PARTIAL_FILLED"
	OrderStatusRejected      OrderStatus = "REJECTED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
	OrderStatusTimeout       OrderStatus = "TIMEOUT"
)

// Order is the structured outcome of an execution attempt. Rejections and
// timeouts are returned as Orders with a reason, never as errors.
type Order struct {
	ID            string      `json:"id"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	Quantity      float64     `json:"quantity"`
	Price         float64     `json:"price,omitempty"`
	FilledQty     float64     `json:"filled_qty"`
	FilledPrice   float64     `json:"filled_price"`
	Status        OrderStatus `json:"status"`
	RejectReason  string      `json:"reject_reason,omitempty"`
	StopLoss      float64     `json:"stop_loss,omitempty"`
	TakeProfit    float64     `json:"take_profit,omitempty"`
	Leverage      float64     `json:"leverage,omitempty"`
	ReduceOnly    bool        `json:"reduce_only"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsFilled reports whether the order filled fully or partially.
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusPartialFilled
}
