package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit implements events.Emitter so the registry can sit on the post-commit
// fanout next to the audit sink.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()
	canonical, ok := events.Canonical(evt)
	if !ok {
		return
	}
	switch eventType {
	case "escrow.deposited":
		Protocol().RecordDeposit(canonical.Attributes["token"])
	case "payout.executed":
		amount, _ := new(big.Int).SetString(canonical.Attributes["amount"], 10)
		Protocol().RecordPayout(canonical.Attributes["module"], amount)
	}
}
