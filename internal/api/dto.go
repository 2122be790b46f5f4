package api

import (
	"fmt"
	"strings"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/pkg/quant"
)

// Amounts cross the API as decimal strings ("50050.25", "0.01") and
// timestamps as RFC 3339.

type placeOrderRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Qty        string `json:"qty"`
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
}

func (r placeOrderRequest) toDomain() (domain.OrderRequest, error) {
	qty, err := quant.ParseQtySats(r.Qty)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("%w: qty: %v", domain.ErrInvalidOrder, err)
	}
	limit, err := quant.ParsePriceMicros(r.LimitPrice)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("%w: limit_price: %v", domain.ErrInvalidOrder, err)
	}
	stop, err := quant.ParsePriceMicros(r.StopPrice)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("%w: stop_price: %v", domain.ErrInvalidOrder, err)
	}
	typ := strings.ToUpper(r.Type)
	if typ == "" {
		typ = string(domain.OrderTypeMarket)
	}
	return domain.OrderRequest{
		Symbol:           strings.ToUpper(r.Symbol),
		Side:             domain.Side(strings.ToUpper(r.Side)),
		Type:             domain.OrderType(typ),
		QtySats:          qty,
		LimitPriceMicros: limit,
		StopPriceMicros:  stop,
	}, nil
}

type tickRequest struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Last   string `json:"last,omitempty"`
	Ts     int64  `json:"ts,omitempty"` // unix milliseconds
}

func (r tickRequest) toDomain() (domain.MarketTick, error) {
	var t domain.MarketTick
	var err error
	t.Symbol = strings.ToUpper(r.Symbol)
	if t.BidMicros, err = quant.ParsePriceMicros(r.Bid); err != nil {
		return t, fmt.Errorf("%w: bid: %v", domain.ErrInvalidTick, err)
	}
	if t.AskMicros, err = quant.ParsePriceMicros(r.Ask); err != nil {
		return t, fmt.Errorf("%w: ask: %v", domain.ErrInvalidTick, err)
	}
	if t.LastMicros, err = quant.ParsePriceMicros(r.Last); err != nil {
		return t, fmt.Errorf("%w: last: %v", domain.ErrInvalidTick, err)
	}
	t.Ts = quant.TimeStamp(r.Ts * 1000)
	return t, t.Normalize()
}

type resetRequest struct {
	InitialCash string `json:"initial_cash,omitempty"`
}

func timeOf(ts quant.TimeStamp) string {
	if ts == 0 {
		return ""
	}
	return time.UnixMicro(int64(ts)).UTC().Format(time.RFC3339Nano)
}

func priceOrEmpty(p quant.PriceMicros) string {
	if p == 0 {
		return ""
	}
	return p.String()
}

type orderDTO struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Qty          string `json:"qty"`
	LimitPrice   string `json:"limit_price,omitempty"`
	StopPrice    string `json:"stop_price,omitempty"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason,omitempty"`
	FillPrice    string `json:"fill_price,omitempty"`
	FilledQty    string `json:"filled_qty"`
	RemainingQty string `json:"remaining_qty"`
	CreatedAt    string `json:"created_at"`
	FilledAt     string `json:"filled_at,omitempty"`
}

func newOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:           o.ID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Type:         string(o.Type),
		Qty:          o.QtySats.String(),
		LimitPrice:   priceOrEmpty(o.LimitPriceMicros),
		StopPrice:    priceOrEmpty(o.StopPriceMicros),
		Status:       string(o.Status),
		RejectReason: o.RejectReason,
		FillPrice:    priceOrEmpty(o.FillPriceMicros),
		FilledQty:    o.FilledQtySats.String(),
		RemainingQty: o.RemainingQty.String(),
		CreatedAt:    timeOf(o.CreatedUnixM),
		FilledAt:     timeOf(o.FilledUnixM),
	}
}

func newOrderDTOs(orders []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderDTO(o))
	}
	return out
}

type positionDTO struct {
	Symbol        string `json:"symbol"`
	Direction     string `json:"direction"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	RealizedPnL   string `json:"realized_pnl"`
	OpenedAt      string `json:"opened_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newPositionDTO(p domain.Position) positionDTO {
	return positionDTO{
		Symbol:        p.Symbol,
		Direction:     string(p.Direction),
		Qty:           p.QtySats.String(),
		AvgEntryPrice: p.AvgEntryPriceMicros.String(),
		CurrentPrice:  p.CurrentPriceMicros.String(),
		UnrealizedPnL: quant.PriceMicros(p.UnrealizedPnLMicros).String(),
		RealizedPnL:   quant.PriceMicros(p.RealizedPnLMicros).String(),
		OpenedAt:      timeOf(p.OpenedUnixM),
		UpdatedAt:     timeOf(p.UpdatedUnixM),
	}
}

type balanceDTO struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Total     string `json:"total"`
}

// newBalanceDTO formats cash with 6 decimals and assets with 8.
func newBalanceDTO(b domain.Balance, cash string) balanceDTO {
	format := func(v int64) string { return quant.QtySats(v).String() }
	if b.Currency == cash {
		format = func(v int64) string { return quant.PriceMicros(v).String() }
	}
	return balanceDTO{
		Currency:  b.Currency,
		Available: format(b.Available),
		Locked:    format(b.Locked),
		Total:     format(b.Total),
	}
}

type portfolioDTO struct {
	Currency string   `json:"currency"`
	Cash     string   `json:"cash"`
	Assets   string   `json:"assets"`
	Total    string   `json:"total"`
	Unpriced []string `json:"unpriced,omitempty"`
}

func newPortfolioDTO(v execution.Valuation, cash string) portfolioDTO {
	return portfolioDTO{
		Currency: cash,
		Cash:     quant.PriceMicros(v.CashMicros).String(),
		Assets:   quant.PriceMicros(v.AssetsMicros).String(),
		Total:    quant.PriceMicros(v.TotalMicros).String(),
		Unpriced: v.Unpriced,
	}
}

type notificationDTO struct {
	ID          int64        `json:"id,omitempty"` // journal row, history only
	Seq         uint64       `json:"seq"`
	Ts          string       `json:"ts"`
	Kind        string       `json:"kind"`
	Order       *orderDTO    `json:"order,omitempty"`
	Position    *positionDTO `json:"position,omitempty"`
	InitialCash string       `json:"initial_cash,omitempty"`
}

func newNotificationDTO(n event.Notification) notificationDTO {
	dto := notificationDTO{
		Seq:  n.Seq,
		Ts:   timeOf(n.Ts),
		Kind: string(n.Kind),
	}
	if n.Order != nil {
		o := newOrderDTO(*n.Order)
		dto.Order = &o
	}
	if n.Position != nil {
		p := newPositionDTO(*n.Position)
		dto.Position = &p
	}
	if n.Kind == event.KindReset {
		dto.InitialCash = quant.PriceMicros(n.InitialCash).String()
	}
	return dto
}
