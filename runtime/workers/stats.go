package workers

import (
	"chat-service/contract"
	"context"
	"log/slog"
	"sort"
	"time"
)

var _ contract.Worker = (*StatsWorker)(nil)

// Gauge samples one value. It must not block.
type Gauge func() int

// StatsWorker periodically logs a set of gauges: queue depth, live rooms and
// the like. Sampling never interferes with the sampled components.
type StatsWorker struct {
	log      *slog.Logger
	gauges   map[string]Gauge
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, gauges map[string]Gauge, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, gauges: gauges, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	if w.interval <= 0 || len(w.gauges) == 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.log.Info("Runtime stats", w.Sample()...)
		}
	}
}

// Sample returns the gauges as sorted key/value log attributes.
func (w *StatsWorker) Sample() []any {
	names := make([]string, 0, len(w.gauges))
	for name := range w.gauges {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]any, 0, 2*len(names))
	for _, name := range names {
		attrs = append(attrs, name, w.gauges[name]())
	}
	return attrs
}
