package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running service: seeds a tick, rests a limit buy far
// below the market, cancels it and checks that the reservation came back.

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type balanceResponse struct {
	Currency string `json:"currency"`
	Locked   string `json:"locked"`
}

var client = &http.Client{Timeout: 5 * time.Second}

func call(method, url string, body any, out any) (int, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}

func must(step string, status, want int, err error) {
	if err != nil {
		slog.Error("STEP_FAILED", "step", step, "error", err)
		os.Exit(1)
	}
	if status != want {
		slog.Error("STEP_FAILED", "step", step, "status", status, "want", want)
		os.Exit(1)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	base := os.Getenv("PAPER_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	slog.Info("INTEGRATION_STARTED", "base", base)

	status, err := call(http.MethodGet, base+"/healthz", nil, nil)
	must("health", status, http.StatusOK, err)

	// 1. Market data
	tick := map[string]string{"symbol": "BTC/USD", "bid": "49990", "ask": "50010", "last": "50000"}
	status, err = call(http.MethodPost, base+"/ticks", tick, nil)
	must("tick", status, http.StatusAccepted, err)
	time.Sleep(200 * time.Millisecond)

	// 2. Limit buy at $10,000, far below the market
	var placed orderResponse
	req := map[string]string{"symbol": "BTC/USD", "side": "BUY", "type": "LIMIT", "qty": "0.001", "limit_price": "10000"}
	status, err = call(http.MethodPost, base+"/orders", req, &placed)
	must("place", status, http.StatusCreated, err)
	slog.Info("ORDER_PLACED", "id", placed.ID, "status", placed.Status)

	time.Sleep(2 * time.Second)

	// 3. Cancel
	var canceled orderResponse
	status, err = call(http.MethodDelete, base+"/orders/"+placed.ID, nil, &canceled)
	must("cancel", status, http.StatusOK, err)
	if canceled.Status != "CANCELED" {
		slog.Error("STEP_FAILED", "step", "cancel", "order_status", canceled.Status)
		os.Exit(1)
	}
	slog.Info("ORDER_CANCELED", "id", canceled.ID)

	// 4. Nothing left reserved
	var usd balanceResponse
	status, err = call(http.MethodGet, base+"/balances/USD", nil, &usd)
	must("balance", status, http.StatusOK, err)
	if usd.Locked != "0.000000" {
		slog.Error("STEP_FAILED", "step", "balance", "locked", usd.Locked)
		os.Exit(1)
	}
	slog.Info("INTEGRATION_PASSED")
}
