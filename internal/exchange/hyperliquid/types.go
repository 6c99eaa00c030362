package hyperliquid

import "encoding/json"

// Time-in-force values accepted by the venue for limit orders.
const (
	TifGtc = "Gtc"
	TifIoc = "Ioc"
	TifAlo = "Alo"
)

// OrderAction is a tagged order variant. The wire shape depends on the
// variant: limit orders carry price and time-in-force, market orders omit
// them. Each variant is fully specified at construction time.
type OrderAction interface {
	wire() wireOrder
	Cloid() string
}

// MarketOrder is an immediate order at the current book price.
type MarketOrder struct {
	Asset         string
	IsBuy         bool
	Size          float64
	ReduceOnly    bool
	ClientOrderID string
}

func (o MarketOrder) wire() wireOrder {
	return wireOrder{
		Asset:      o.Asset,
		IsBuy:      o.IsBuy,
		Size:       o.Size,
		ReduceOnly: o.ReduceOnly,
		Type:       wireOrderType{Market: &struct{}{}},
		Cloid:      o.ClientOrderID,
	}
}

func (o MarketOrder) Cloid() string { return o.ClientOrderID }

// LimitOrder rests at a price with an explicit time-in-force.
type LimitOrder struct {
	Asset         string
	IsBuy         bool
	Size          float64
	Price         float64
	Tif           string
	ReduceOnly    bool
	ClientOrderID string
}

func (o LimitOrder) wire() wireOrder {
	tif := o.Tif
	if tif == "" {
		tif = TifGtc
	}
	return wireOrder{
		Asset:      o.Asset,
		IsBuy:      o.IsBuy,
		Size:       o.Size,
		Price:      o.Price,
		ReduceOnly: o.ReduceOnly,
		Type:       wireOrderType{Limit: &wireLimit{Tif: tif}},
		Cloid:      o.ClientOrderID,
	}
}

func (o LimitOrder) Cloid() string { return o.ClientOrderID }

// wireOrder is the venue's order payload shape.
type wireOrder struct {
	Asset      string        `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      float64       `json:"p,omitempty"`
	Size       float64       `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       wireOrderType `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type wireOrderType struct {
	Limit  *wireLimit `json:"limit,omitempty"`
	Market *struct{}  `json:"market,omitempty"`
}

type wireLimit struct {
	Tif string `json:"tif"`
}

// orderActionPayload is the full signed action body.
type orderActionPayload struct {
	Type     string      `json:"type"`
	Orders   []wireOrder `json:"orders"`
	Grouping string      `json:"grouping"`
}

// signaturePayload is the signature split into its standard components.
type signaturePayload struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// exchangeRequest is the signed-order-submission envelope. The nonce is
// monotonically increasing per signing key.
type exchangeRequest struct {
	Action    orderActionPayload `json:"action"`
	Nonce     int64              `json:"nonce"`
	Signature signaturePayload   `json:"signature"`
}

// exchangeResponse is the venue's reply to a submission.
type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// infoRequest is the read-only state query envelope (unauthenticated).
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// ClearinghouseState is the venue's authoritative account snapshot.
type ClearinghouseState struct {
	AssetPositions []AssetPosition `json:"assetPositions"`
	MarginSummary  MarginSummary   `json:"marginSummary"`
	Withdrawable   float64         `json:"withdrawable,string"`
}

// AssetPosition wraps one venue position.
type AssetPosition struct {
	Position VenuePosition `json:"position"`
}

// VenuePosition is one open position as the venue reports it. Szi is the
// signed size: positive long, negative short.
type VenuePosition struct {
	Coin          string   `json:"coin"`
	Szi           float64  `json:"szi,string"`
	EntryPx       float64  `json:"entryPx,string"`
	LiquidationPx float64  `json:"liquidationPx,string"`
	MarginUsed    float64  `json:"marginUsed,string"`
	Leverage      Leverage `json:"leverage"`
	UnrealizedPnl float64  `json:"unrealizedPnl,string"`
}

// Leverage is the venue's leverage descriptor.
type Leverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// MarginSummary is the venue's account-level margin view.
type MarginSummary struct {
	AccountValue    float64 `json:"accountValue,string"`
	TotalMarginUsed float64 `json:"totalMarginUsed,string"`
}

// OpenOrder is one resting order as the venue reports it.
type OpenOrder struct {
	Coin    string  `json:"coin"`
	Oid     int64   `json:"oid"`
	Cloid   string  `json:"cloid,omitempty"`
	Side    string  `json:"side"`
	Size    float64 `json:"sz,string"`
	LimitPx float64 `json:"limitPx,string"`
}
