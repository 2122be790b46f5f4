package domain

import (
	"errors"
	"testing"
)

func TestOrder_IsOpen(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"PENDING", StatusPending, true},
		{"FILLED", StatusFilled, false},
		{"CANCELED", StatusCanceled, false},
		{"REJECTED", StatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status}
			if got := o.IsOpen(); got != tt.want {
				t.Errorf("Order.IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderRequest_Validate(t *testing.T) {
	base := OrderRequest{Symbol: "BTC/USD", Side: SideBuy, Type: OrderTypeMarket, QtySats: 1}
	tests := []struct {
		name   string
		mutate func(*OrderRequest)
		ok     bool
	}{
		{"Market", func(r *OrderRequest) {}, true},
		{"BadSymbol", func(r *OrderRequest) { r.Symbol = "BTCUSD" }, false},
		{"EmptyQuote", func(r *OrderRequest) { r.Symbol = "BTC/" }, false},
		{"BadSide", func(r *OrderRequest) { r.Side = "HOLD" }, false},
		{"ZeroQty", func(r *OrderRequest) { r.QtySats = 0 }, false},
		{"LimitNoPrice", func(r *OrderRequest) { r.Type = OrderTypeLimit }, false},
		{"Limit", func(r *OrderRequest) { r.Type = OrderTypeLimit; r.LimitPriceMicros = 1 }, true},
		{"StopNoPrice", func(r *OrderRequest) { r.Type = OrderTypeStop }, false},
		{"UnknownType", func(r *OrderRequest) { r.Type = "ICEBERG" }, false},
		{"LimitValueTooLarge", func(r *OrderRequest) {
			r.Type, r.QtySats, r.LimitPriceMicros = OrderTypeLimit, 9_000_000_000_000_000_000, 50_050_000_000
		}, false},
		{"StopValueTooLarge", func(r *OrderRequest) {
			r.Type, r.Side, r.QtySats, r.StopPriceMicros = OrderTypeStop, SideSell, 9_000_000_000_000_000_000, 50_050_000_000
		}, false},
		{"MarketLargeQty", func(r *OrderRequest) { r.QtySats = 9_000_000_000_000_000_000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			err := req.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}
}

func TestOrder_Lifecycle(t *testing.T) {
	req := OrderRequest{Symbol: "BTC/USD", Side: SideBuy, Type: OrderTypeMarket, QtySats: 10}
	o := NewOrder("o-1", req, 100)
	o.VerifyInvariant()
	if o.Base() != "BTC" || o.Quote() != "USD" {
		t.Fatalf("unexpected pair %s %s", o.Base(), o.Quote())
	}

	o.Fill(5, 200)
	if o.FilledQtySats != 10 || o.RemainingQty != 0 || o.FilledUnixM != 200 {
		t.Errorf("unexpected fill state: %+v", o)
	}
	if !errors.Is(o.TerminalError(), ErrAlreadyFilled) {
		t.Errorf("expected ErrAlreadyFilled, got %v", o.TerminalError())
	}
}

func TestOrder_IllegalTransitionPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when cancelling a filled order")
		}
	}()

	o := NewOrder("o-2", OrderRequest{Symbol: "BTC/USD", Side: SideSell, Type: OrderTypeMarket, QtySats: 1}, 0)
	o.Fill(1, 1)
	o.Cancel()
}
