package poller

import (
	"log/slog"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

// AlertEmitter receives divergence alerts. Alerting is level-triggered:
// the poller emits one event per tick in which the threshold holds, and
// leaves de-duplication to the consumer.
type AlertEmitter interface {
	Emit(alert model.Alert)
}

// AlertEmitterFunc is a function adapter for AlertEmitter.
type AlertEmitterFunc func(model.Alert)

func (f AlertEmitterFunc) Emit(a model.Alert) {
	f(a)
}

// LogEmitter writes alerts to the structured log.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(a model.Alert) {
	e.logger.Warn("own movement over threshold",
		"alert_id", a.ID,
		"symbol", a.Symbol,
		"residual", a.Residual,
		"residual_pct", a.Residual*100,
		"window_minutes", a.WindowMinutes,
		"at", a.At,
	)
}
