package event

import (
	"paper_trade/pkg/quant"
)

// Type defines the type of event.
type Type uint16

const (
	EvMarketUpdate Type = iota + 1
	EvSystemHalt
)

// Event is the interface for all sequencer events.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64         { return e.Seq }
func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

// SetSeq stamps the sequence number. Only the Gateway calls it.
func (e *BaseEvent) SetSeq(seq uint64) { e.Seq = seq }

// Sequenced is an event that can be stamped by a Gateway.
type Sequenced interface {
	Event
	SetSeq(seq uint64)
}

// MarketUpdateEvent carries a top-of-book update from a feed.
type MarketUpdateEvent struct {
	BaseEvent
	Symbol     string            `json:"symbol"`
	LastMicros quant.PriceMicros `json:"last"`
	BidMicros  quant.PriceMicros `json:"bid"`
	AskMicros  quant.PriceMicros `json:"ask"`
	Source     string            `json:"source"`
}

func (e MarketUpdateEvent) GetType() Type { return EvMarketUpdate }

// SystemHaltEvent asks the sequencer to disable order entry.
type SystemHaltEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

func (e SystemHaltEvent) GetType() Type { return EvSystemHalt }
