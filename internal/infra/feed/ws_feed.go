package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/infra"
	"paper_trade/pkg/quant"

	"github.com/gorilla/websocket"
)

// tickerMessage is one top-of-book update. Prices are decimal strings (or
// JSON numbers) so no float ever touches them; ts is unix milliseconds.
type tickerMessage struct {
	Symbol string      `json:"symbol"`
	Bid    json.Number `json:"bid"`
	Ask    json.Number `json:"ask"`
	Last   json.Number `json:"last"`
	Ts     json.Number `json:"ts"`
}

type subscribeMessage struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// WSFeed subscribes to a JSON ticker WebSocket and publishes every update.
type WSFeed struct {
	base    *infra.BaseWSWorker
	url     string
	symbols []string
	watch   map[string]bool
	out     Publisher
	log     *slog.Logger
	now     func() time.Time
	counters
}

// NewWSFeed creates a feed for symbols on url. An empty symbol list accepts everything.
func NewWSFeed(url string, symbols []string, out Publisher, log *slog.Logger) *WSFeed {
	if log == nil {
		log = slog.Default()
	}
	f := &WSFeed{
		url:     url,
		symbols: symbols,
		watch:   make(map[string]bool, len(symbols)),
		out:     out,
		log:     log,
		now:     time.Now,
	}
	for _, s := range symbols {
		f.watch[s] = true
	}
	f.base = infra.NewBaseWSWorker(f)
	f.base.Logger = log
	return f
}

func (f *WSFeed) ID() string     { return "WS_FEED" }
func (f *WSFeed) GetURL() string { return f.url }

// Start connects in the background and keeps reconnecting until Stop.
func (f *WSFeed) Start(ctx context.Context) {
	f.base.Start(ctx)
}

// Stop closes the connection.
func (f *WSFeed) Stop() {
	f.base.Stop()
}

// Stats returns publish counters.
func (f *WSFeed) Stats() Stats {
	return f.stats()
}

// OnConnect sends the subscription.
func (f *WSFeed) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	b, err := json.Marshal(subscribeMessage{Op: "subscribe", Symbols: f.symbols})
	if err != nil {
		return err
	}
	return f.base.Write(websocket.TextMessage, b)
}

// OnMessage parses a ticker update. Acks and unknown symbols are ignored.
func (f *WSFeed) OnMessage(ctx context.Context, msg []byte) {
	var m tickerMessage
	if err := json.Unmarshal(msg, &m); err != nil || m.Symbol == "" {
		return
	}
	if len(f.watch) > 0 && !f.watch[m.Symbol] {
		return
	}

	tick, err := m.tick()
	if err == nil {
		if tick.Ts == 0 {
			tick.Ts = quant.TimeStamp(f.now().UnixMicro())
		}
		err = publish(f.out, f.ID(), tick, &f.counters)
	} else {
		f.invalid.Add(1)
	}
	if err != nil {
		f.log.Debug("FEED_TICK_INVALID", slog.String("symbol", m.Symbol), slog.Any("error", err))
	}
}

// OnPing sends a WebSocket ping frame.
func (f *WSFeed) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (m tickerMessage) tick() (domain.MarketTick, error) {
	bid, err := quant.ParsePriceMicros(m.Bid.String())
	if err != nil {
		return domain.MarketTick{}, err
	}
	ask, err := quant.ParsePriceMicros(m.Ask.String())
	if err != nil {
		return domain.MarketTick{}, err
	}
	last, err := quant.ParsePriceMicros(m.Last.String())
	if err != nil {
		return domain.MarketTick{}, err
	}
	var ts quant.TimeStamp
	if m.Ts != "" {
		if ts, err = quant.ParseTimeStamp(m.Ts.String()); err != nil {
			return domain.MarketTick{}, err
		}
	}
	return domain.MarketTick{
		Symbol:     m.Symbol,
		BidMicros:  bid,
		AskMicros:  ask,
		LastMicros: last,
		Ts:         ts,
	}, nil
}
