package execution

import (
	"paper_trade/internal/domain"
	"paper_trade/pkg/quant"
)

// matchPrice decides whether o executes against tick and at what price.
//
//	MARKET: always; ask (buy) or bid (sell), slipped against the trader.
//	LIMIT:  buy when ask <= limit, sell when bid >= limit; fills at the limit.
//	STOP:   buy when ask >= stop, sell when bid <= stop; then as MARKET.
func matchPrice(o *domain.Order, tick domain.MarketTick, slippageBps int64) (quant.PriceMicros, bool) {
	buy := o.Side == domain.SideBuy

	switch o.Type {
	case domain.OrderTypeMarket:
		return marketPrice(buy, tick, slippageBps), true

	case domain.OrderTypeLimit:
		if buy && tick.AskMicros <= o.LimitPriceMicros {
			return o.LimitPriceMicros, true
		}
		if !buy && tick.BidMicros >= o.LimitPriceMicros {
			return o.LimitPriceMicros, true
		}

	case domain.OrderTypeStop:
		if buy && tick.AskMicros >= o.StopPriceMicros {
			return marketPrice(buy, tick, slippageBps), true
		}
		if !buy && tick.BidMicros <= o.StopPriceMicros {
			return marketPrice(buy, tick, slippageBps), true
		}
	}
	return 0, false
}

func marketPrice(buy bool, tick domain.MarketTick, slippageBps int64) quant.PriceMicros {
	if buy {
		return quant.SlipUp(tick.AskMicros, slippageBps)
	}
	return quant.SlipDown(tick.BidMicros, slippageBps)
}

// reservation returns the currency and worst-case amount to lock for req.
// Sells lock the base asset; buys lock cash at the limit price, or at the
// slipped ask (the higher of ask and stop for stops). ok is false when the
// buy's cost does not fit in int64 cash micros.
func reservation(req domain.OrderRequest, base, cash string, tick domain.MarketTick, slippageBps int64) (string, int64, bool) {
	if req.Side == domain.SideSell {
		return base, int64(req.QtySats), true
	}

	var price quant.PriceMicros
	switch req.Type {
	case domain.OrderTypeLimit:
		price = req.LimitPriceMicros
	case domain.OrderTypeStop:
		price = max(tick.AskMicros, req.StopPriceMicros)
		price = quant.SlipUp(price, slippageBps)
	default:
		price = quant.SlipUp(tick.AskMicros, slippageBps)
	}
	amount, ok := quant.CheckedNotionalCeil(req.QtySats, price)
	return cash, amount, ok
}
