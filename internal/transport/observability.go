package transport

import (
	"log/slog"
	"time"
)

// RefreshOutcome classifies how a refresh cycle ended.
type RefreshOutcome string

const (
	RefreshOK        RefreshOutcome = "ok"
	RefreshFailed    RefreshOutcome = "failed"
	RefreshNoSession RefreshOutcome = "no_refresh_token"
)

// RefreshEvent records one completed refresh cycle.
type RefreshEvent struct {
	Outcome  RefreshOutcome
	Waiters  int
	Duration time.Duration
	Err      error
}

// Observer receives refresh lifecycle events.
type Observer interface {
	OnRefresh(event RefreshEvent)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnRefresh(RefreshEvent) {}

// LogObserver writes refresh events through slog.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer backed by logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnRefresh(event RefreshEvent) {
	attrs := []any{
		"outcome", string(event.Outcome),
		"waiters", event.Waiters,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Err != nil {
		o.logger.Warn("token_refresh", append(attrs, "error", event.Err.Error())...)
		return
	}
	o.logger.Info("token_refresh", attrs...)
}
