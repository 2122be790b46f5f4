package infra

import (
	"fmt"
	"io"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner writes the startup banner: mode, account currency, feed and API address.
func PrintBanner(w io.Writer, cfg *Config) {
	mode := strings.ToUpper(cfg.Trading.Mode)

	color := ColorCyan
	if mode != "PAPER" {
		color = ColorRed
	}
	state := "ENABLED"
	if cfg.Trading.StartDisabled {
		color = ColorYellow
		state = "DISABLED (POST /engine/enable)"
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s"+format+"%s\n", append(append([]any{color}, args...), ColorReset)...)
	}

	fmt.Fprintln(w)
	line("###########################################################")
	line("#                 Paper Trading Engine                    #")
	line("#                                                         #")
	line("#   MODE:     %-43s #", mode+" (NO REAL ORDERS)")
	line("#   ENGINE:   %-43s #", state)
	line("#   CASH:     %-43s #", cfg.Trading.InitialCash+" "+cfg.Trading.CashCurrency)
	line("#   FEED:     %-43s #", cfg.Feed.Kind)
	line("#   API:      %-43s #", cfg.API.Addr)
	line("#   VERSION:  %-43s #", cfg.App.Version)
	line("###########################################################")
	fmt.Fprintln(w)
}
