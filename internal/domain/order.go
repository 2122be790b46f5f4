package domain

import (
	"fmt"
	"strings"

	"paper_trade/pkg/quant"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType selects the matching rule.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus is the lifecycle state. Everything but PENDING is terminal.
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
)

// OrderRequest is what a caller submits to place an order.
type OrderRequest struct {
	Symbol           string            `json:"symbol"`
	Side             Side              `json:"side"`
	Type             OrderType         `json:"type"`
	QtySats          quant.QtySats     `json:"qty,string"`
	LimitPriceMicros quant.PriceMicros `json:"limit_price,string,omitempty"`
	StopPriceMicros  quant.PriceMicros `json:"stop_price,string,omitempty"`
}

// Validate checks the request shape. Market state and funds are checked by the engine.
func (r OrderRequest) Validate() error {
	if _, _, err := SplitSymbol(r.Symbol); err != nil {
		return err
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, r.Side)
	}
	if r.QtySats <= 0 {
		return fmt.Errorf("%w: qty must be positive", ErrInvalidOrder)
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.LimitPriceMicros <= 0 {
			return fmt.Errorf("%w: limit order needs a positive limit price", ErrInvalidOrder)
		}
	case OrderTypeStop:
		if r.StopPriceMicros <= 0 {
			return fmt.Errorf("%w: stop order needs a positive stop price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidOrder, r.Type)
	}
	if price := max(r.LimitPriceMicros, r.StopPriceMicros); price > 0 {
		if _, ok := quant.CheckedNotionalCeil(r.QtySats, price); !ok {
			return fmt.Errorf("%w: order value qty*price is too large", ErrInvalidOrder)
		}
	}
	return nil
}

// Order represents a paper trading order.
// All monetary values are strictly int64.
type Order struct {
	ID               string            `json:"id"`
	Symbol           string            `json:"symbol"`
	Side             Side              `json:"side"`
	Type             OrderType         `json:"type"`
	QtySats          quant.QtySats     `json:"qty,string"`
	LimitPriceMicros quant.PriceMicros `json:"limit_price,string,omitempty"`
	StopPriceMicros  quant.PriceMicros `json:"stop_price,string,omitempty"`
	Status           OrderStatus       `json:"status"`
	RejectReason     string            `json:"reject_reason,omitempty"`

	CreatedUnixM    quant.TimeStamp   `json:"created_at,string"`
	FilledUnixM     quant.TimeStamp   `json:"filled_at,string,omitempty"`
	FillPriceMicros quant.PriceMicros `json:"fill_price,string,omitempty"`
	FilledQtySats   quant.QtySats     `json:"filled_qty,string"`
	RemainingQty    quant.QtySats     `json:"remaining_qty,string"`

	// Funds locked at placement, in ReservedCurrency units.
	ReservedCurrency string `json:"reserved_currency"`
	ReservedUnits    int64  `json:"reserved_units,string"`
}

// NewOrder creates a PENDING order from a validated request.
func NewOrder(id string, req OrderRequest, now quant.TimeStamp) *Order {
	return &Order{
		ID:               id,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Type:             req.Type,
		QtySats:          req.QtySats,
		LimitPriceMicros: req.LimitPriceMicros,
		StopPriceMicros:  req.StopPriceMicros,
		Status:           StatusPending,
		CreatedUnixM:     now,
		RemainingQty:     req.QtySats,
	}
}

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == StatusPending
}

// Base returns the asset being bought or sold ("BTC" in "BTC/USD").
func (o *Order) Base() string {
	base, _, _ := SplitSymbol(o.Symbol)
	return base
}

// Quote returns the currency the asset is priced in.
func (o *Order) Quote() string {
	_, quote, _ := SplitSymbol(o.Symbol)
	return quote
}

// Fill moves the order to FILLED for its whole quantity.
func (o *Order) Fill(price quant.PriceMicros, now quant.TimeStamp) {
	o.transition(StatusFilled)
	o.FillPriceMicros = price
	o.FilledUnixM = now
	o.FilledQtySats = o.QtySats
	o.RemainingQty = 0
	o.VerifyInvariant()
}

// Cancel moves the order to CANCELED.
func (o *Order) Cancel() {
	o.transition(StatusCanceled)
}

// Reject moves the order to REJECTED with a reason.
func (o *Order) Reject(reason string) {
	o.transition(StatusRejected)
	o.RejectReason = reason
}

// TerminalError reports why a non-pending order can no longer be changed.
func (o *Order) TerminalError() error {
	switch o.Status {
	case StatusFilled:
		return ErrAlreadyFilled
	case StatusCanceled:
		return ErrAlreadyCancelled
	case StatusRejected:
		return ErrAlreadyRejected
	default:
		return nil
	}
}

func (o *Order) transition(to OrderStatus) {
	if o.Status != StatusPending {
		panic(fmt.Sprintf("ORDER_ILLEGAL_TRANSITION: %s %s -> %s", o.ID, o.Status, to))
	}
	o.Status = to
}

// VerifyInvariant panics if filled + remaining != requested.
func (o *Order) VerifyInvariant() {
	if o.FilledQtySats+o.RemainingQty != o.QtySats || o.FilledQtySats < 0 || o.RemainingQty < 0 {
		panic(fmt.Sprintf("ORDER_INVARIANT_VIOLATION: %s filled=%d remaining=%d qty=%d",
			o.ID, o.FilledQtySats, o.RemainingQty, o.QtySats))
	}
}

// SplitSymbol splits "BTC/USD" into base and quote.
func SplitSymbol(symbol string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return "", "", fmt.Errorf("%w: symbol %q must be BASE/QUOTE", ErrInvalidOrder, symbol)
	}
	return base, quote, nil
}

// PairSymbol joins an asset and the cash currency into a symbol.
func PairSymbol(asset, cash string) string {
	return asset + "/" + cash
}
