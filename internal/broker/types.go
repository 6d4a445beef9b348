package broker

import "time"

// TradeAction selects the terminal operation an order request performs.
// Values are the terminal's wire numbers.
type TradeAction int

// Trade actions.
const (
	ActionDeal    TradeAction = 1 // immediate execution at market
	ActionPending TradeAction = 5 // place a pending order
	ActionSLTP    TradeAction = 6 // modify SL/TP of an open position
	ActionModify  TradeAction = 7 // modify a pending order
	ActionRemove  TradeAction = 8 // cancel a pending order
)

// OrderType is the direction/trigger combination of an order. Values are the
// terminal's wire numbers.
type OrderType int

// Order types.
const (
	OrderTypeBuy OrderType = iota
	OrderTypeSell
	OrderTypeBuyLimit
	OrderTypeSellLimit
	OrderTypeBuyStop
	OrderTypeSellStop
)

// String returns the terminal-style name for logs.
func (t OrderType) String() string {
	switch t {
	case OrderTypeBuy:
		return "buy"
	case OrderTypeSell:
		return "sell"
	case OrderTypeBuyLimit:
		return "buy_limit"
	case OrderTypeSellLimit:
		return "sell_limit"
	case OrderTypeBuyStop:
		return "buy_stop"
	case OrderTypeSellStop:
		return "sell_stop"
	default:
		return "unknown"
	}
}

// IsPending reports whether the type is a stop or limit trigger rather than
// an immediate deal.
func (t OrderType) IsPending() bool {
	return t != OrderTypeBuy && t != OrderTypeSell
}

// IsBuy reports whether the type opens in the buy direction.
func (t OrderType) IsBuy() bool {
	return t == OrderTypeBuy || t == OrderTypeBuyLimit || t == OrderTypeBuyStop
}

// Filling and time-in-force wire numbers.
const (
	FillingIOC = 1

	TimeGTC       = 0
	TimeSpecified = 2
)

// Magic tags every order this bot opens so the lifecycle engine can tell its
// own tickets from manual ones.
const Magic = 2025

// Tick is one quote observation for a symbol.
type Tick struct {
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
	Last float64   `json:"last"`
	Time time.Time `json:"time"`
}

// SymbolInfo is the static trading profile of a symbol.
type SymbolInfo struct {
	Name           string  `json:"name"`
	Digits         int     `json:"digits"`
	Point          float64 `json:"point"`
	TradeTickSize  float64 `json:"trade_tick_size"`
	TradeTickValue float64 `json:"trade_tick_value"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeStep     float64 `json:"volume_step"`
}

// PositionItem is an open position as reported by the terminal.
type PositionItem struct {
	Ticket    int64     `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Type      OrderType `json:"type"`
	Volume    float64   `json:"volume"`
	PriceOpen float64   `json:"price_open"`
	SL        float64   `json:"sl"`
	TP        float64   `json:"tp"`
	Magic     int64     `json:"magic"`
	Profit    float64   `json:"profit"`
}

// OrderItem is a pending order as reported by the terminal.
type OrderItem struct {
	Ticket        int64     `json:"ticket"`
	Symbol        string    `json:"symbol"`
	Type          OrderType `json:"type"`
	VolumeCurrent float64   `json:"volume_current"`
	PriceOpen     float64   `json:"price_open"`
	SL            float64   `json:"sl"`
	TP            float64   `json:"tp"`
	Magic         int64     `json:"magic"`
}

// OrderRequest is the terminal order_send request.
type OrderRequest struct {
	Action      TradeAction `json:"action"`
	Symbol      string      `json:"symbol,omitempty"`
	Volume      float64     `json:"volume,omitempty"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price,omitempty"`
	SL          float64     `json:"sl,omitempty"`
	TP          float64     `json:"tp,omitempty"`
	Deviation   int         `json:"deviation,omitempty"`
	Magic       int64       `json:"magic,omitempty"`
	Comment     string      `json:"comment,omitempty"`
	Position    int64       `json:"position,omitempty"`
	Order       int64       `json:"order,omitempty"`
	TypeTime    int         `json:"type_time"`
	Expiration  int64       `json:"expiration,omitempty"` // unix seconds, broker server time
	TypeFilling int         `json:"type_filling"`
}

// OrderResult is the terminal order_send response.
type OrderResult struct {
	Retcode int     `json:"retcode"`
	Deal    int64   `json:"deal"`
	Order   int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// AccountInfo is the terminal account snapshot.
type AccountInfo struct {
	Login   int64   `json:"login"`
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}
