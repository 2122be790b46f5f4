package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"paper_trade/internal/domain"
	"paper_trade/internal/event"
	"paper_trade/internal/execution"
	"paper_trade/internal/infra"
	"paper_trade/internal/storage"
	"paper_trade/pkg/quant"

	"github.com/go-chi/chi/v5"
)

// NotificationStore serves journaled notifications.
type NotificationStore interface {
	LoadNotifications(ctx context.Context, afterID int64, orderID string, limit int) ([]storage.JournalEntry, error)
}

// Handler contains dependencies for HTTP handlers. Gateway, Journal, Bus
// and Limiter are optional; the routes that need a missing one answer 503.
type Handler struct {
	Engine  *execution.PaperEngine
	Gateway *event.Gateway
	Journal NotificationStore
	Bus     *event.Bus
	Limiter *infra.RateLimiter

	// DefaultCash funds the account on a reset without a body, in cash micros.
	DefaultCash  int64
	StreamBuffer int
	Log          *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps engine sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidTick):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyFilled),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrAlreadyRejected),
		errors.Is(err, domain.ErrNoMarketData):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEngineDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().Error("API_ERROR", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil && !h.Limiter.TryAcquire() {
		writeError(w, http.StatusTooManyRequests, "order rate limit exceeded")
		return
	}

	var req placeOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	oreq, err := req.toDomain()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.Engine.PlaceOrder(r.Context(), oreq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderDTO(o))
}

// CancelOrder handles DELETE /orders/{id}.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderDTO(o))
}

// GetOrders handles GET /orders; ?open=true lists only PENDING orders.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	var orders []domain.Order
	if open, _ := strconv.ParseBool(r.URL.Query().Get("open")); open {
		orders = h.Engine.OpenOrders()
	} else {
		orders = h.Engine.Orders()
	}
	writeJSON(w, http.StatusOK, newOrderDTOs(orders))
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.Order(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderDTO(o))
}

// GetPositions handles GET /positions.
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.Engine.Positions()
	out := make([]positionDTO, 0, len(positions))
	for _, p := range positions {
		out = append(out, newPositionDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBalances handles GET /balances.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	cash := h.Engine.CashCurrency()
	balances := h.Engine.Balances()
	out := make([]balanceDTO, 0, len(balances))
	for _, b := range balances {
		out = append(out, newBalanceDTO(b, cash))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBalance handles GET /balances/{currency}. Unknown currencies read as zero.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(chi.URLParam(r, "currency"))
	b := h.Engine.Balance(currency)
	b.Currency = currency
	writeJSON(w, http.StatusOK, newBalanceDTO(b, h.Engine.CashCurrency()))
}

// GetPortfolio handles GET /portfolio.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newPortfolioDTO(h.Engine.Valuation(), h.Engine.CashCurrency()))
}

type tickAccepted struct {
	Seq uint64 `json:"seq"`
}

// PostTick handles POST /ticks: the tick is sequenced like feed data.
func (h *Handler) PostTick(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil {
		writeError(w, http.StatusServiceUnavailable, "tick ingress disabled")
		return
	}
	var req tickRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tick, err := req.toDomain()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ev := event.AcquireMarketUpdateEvent()
	ev.Ts = tick.Ts
	ev.Symbol = tick.Symbol
	ev.BidMicros = tick.BidMicros
	ev.AskMicros = tick.AskMicros
	ev.LastMicros = tick.LastMicros
	ev.Source = "API"
	if ev.Ts == 0 {
		ev.Ts = quant.TimeStamp(h.Engine.Now().UnixMicro())
	}

	seq, ok := h.Gateway.TryEnqueue(ev)
	if !ok {
		event.ReleaseMarketUpdateEvent(ev)
		writeError(w, http.StatusServiceUnavailable, "sequencer inbox full")
		return
	}
	// ev belongs to the sequencer now; read nothing back from it.
	writeJSON(w, http.StatusAccepted, tickAccepted{Seq: seq})
}

type engineStatus struct {
	Enabled bool `json:"enabled"`
}

// Enable handles POST /engine/enable.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.Engine.Enable()
	writeJSON(w, http.StatusOK, engineStatus{Enabled: h.Engine.Enabled()})
}

// Disable handles POST /engine/disable.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.Engine.Disable()
	writeJSON(w, http.StatusOK, engineStatus{Enabled: h.Engine.Enabled()})
}

// GetEngine handles GET /engine.
func (h *Handler) GetEngine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engineStatus{Enabled: h.Engine.Enabled()})
}

// Reset handles POST /engine/reset with an optional {"initial_cash": "..."}.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	cash := h.DefaultCash
	if r.ContentLength != 0 {
		var req resetRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.InitialCash != "" {
			p, err := quant.ParsePriceMicros(req.InitialCash)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			cash = int64(p)
		}
	}
	if err := h.Engine.Reset(cash); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newPortfolioDTO(h.Engine.Valuation(), h.Engine.CashCurrency()))
}

// GetNotifications handles GET /notifications?after=&order_id=&limit=.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	q := r.URL.Query()
	after, err := parseIntParam(q.Get("after"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after")
		return
	}
	limit, err := parseIntParam(q.Get("limit"), 100)
	if err != nil || limit <= 0 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}

	entries, err := h.Journal.LoadNotifications(r.Context(), after, q.Get("order_id"), int(limit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]notificationDTO, 0, len(entries))
	for _, e := range entries {
		dto := newNotificationDTO(e.Notification)
		dto.ID = e.ID
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func parseIntParam(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
