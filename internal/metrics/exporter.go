package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// TextfileExporter periodically rewrites a Prometheus textfile.
type TextfileExporter struct {
	Recorder *PrometheusRecorder
	Path     string
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Run writes the textfile once per interval until ctx is cancelled, then
// writes a final snapshot. Write failures only warn.
func (e *TextfileExporter) Run(ctx context.Context) error {
	clock := e.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ticker := clock.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.write(logger)
			return nil
		case <-ticker.Chan():
			e.write(logger)
		}
	}
}

func (e *TextfileExporter) write(logger *slog.Logger) {
	if err := e.Recorder.WriteTextfile(e.Path); err != nil {
		logger.Warn("metrics export failed", "path", e.Path, "error", err)
	}
}
