package event

import (
	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"
)

// Kind names an outbound engine notification.
type Kind string

const (
	KindOrderPlaced     Kind = "order_placed"
	KindOrderFilled     Kind = "order_filled"
	KindOrderCancelled  Kind = "order_cancelled"
	KindOrderRejected   Kind = "order_rejected"
	KindPositionUpdated Kind = "position_updated"
	KindEngineEnabled   Kind = "engine_enabled"
	KindEngineDisabled  Kind = "engine_disabled"
	KindReset           Kind = "reset"
)

// Notification is a state change published by the engine.
// Order and Position are copies; the Bus hands every subscriber its own, so
// mutating them affects neither the engine nor other subscribers.
type Notification struct {
	Seq      uint64           `json:"seq"`
	Ts       quant.TimeStamp  `json:"ts,string"`
	Kind     Kind             `json:"kind"`
	Order    *domain.Order    `json:"order,omitempty"`
	Position *domain.Position `json:"position,omitempty"`

	// Set on reset: the fresh cash balance in cash micros.
	InitialCash int64 `json:"initial_cash,string,omitempty"`
}

// OrderNotification wraps a copy of o.
func OrderNotification(kind Kind, o domain.Order) Notification {
	return Notification{Kind: kind, Order: &o}
}

// PositionNotification wraps a copy of p.
func PositionNotification(p domain.Position) Notification {
	return Notification{Kind: KindPositionUpdated, Position: &p}
}

// clone returns n with its own Order and Position.
func (n Notification) clone() Notification {
	if n.Order != nil {
		o := *n.Order
		n.Order = &o
	}
	if n.Position != nil {
		p := *n.Position
		n.Position = &p
	}
	return n
}
