package execution

import (
	"fmt"
	"log/slog"

	"paper_trade/internal/event"
	"paper_trade/internal/infra"
)

// Mode represents the trading execution mode
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeDemo  Mode = "DEMO"
	ModeReal  Mode = "REAL"
)

// ExecutionFactory builds engines from configuration.
type ExecutionFactory struct {
	config *infra.Config
}

// NewExecutionFactory creates a new factory
func NewExecutionFactory(cfg *infra.Config) *ExecutionFactory {
	return &ExecutionFactory{config: cfg}
}

// CreateExecution returns a PaperEngine for PAPER mode. Exchange-backed modes
// are refused: this service never routes orders to a venue.
func (f *ExecutionFactory) CreateExecution(sched Scheduler, bus *event.Bus, log *slog.Logger) (*PaperEngine, error) {
	mode := Mode(f.config.Trading.Mode)
	if log == nil {
		log = slog.Default()
	}
	log.Info("Initializing Execution System", slog.String("mode", string(mode)))

	switch mode {
	case ModePaper:
		cash, err := f.config.InitialCashMicros()
		if err != nil {
			return nil, err
		}
		return NewPaperEngine(Options{
			CashCurrency:    f.config.Trading.CashCurrency,
			Assets:          f.config.Trading.Assets,
			InitialCash:     cash,
			SlippageBps:     f.config.Trading.SlippageBps,
			AcceptanceDelay: f.config.AcceptanceDelay(),
			StartDisabled:   f.config.Trading.StartDisabled,
			Scheduler:       sched,
			Bus:             bus,
			Logger:          log,
		}), nil

	case ModeDemo, ModeReal:
		return nil, fmt.Errorf("execution mode %s needs an exchange connection; only %s is supported", mode, ModePaper)

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", mode)
	}
}
