package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	protocolMetricsOnce sync.Once
	protocolRegistry    *ProtocolMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording HTTP API
// activity per route group.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "arcade",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module = labelOr(module, "unknown")
	method = labelOr(method, "unknown")
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(module, "unknown"), labelOr(reason, "unspecified")).Inc()
}

// ProtocolMetrics tracks state transitions executed by the host runtime.
type ProtocolMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	payouts      *prometheus.CounterVec
	payoutAmount *prometheus.CounterVec
	nonceRejects *prometheus.CounterVec
	deposits     *prometheus.CounterVec
	sequence     prometheus.Gauge
	paused       *prometheus.GaugeVec
}

// Protocol returns the singleton protocol metrics registry.
func Protocol() *ProtocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolRegistry = &ProtocolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "operations_total",
				Help:      "Executed operations segmented by module, operation and outcome kind.",
			}, []string{"module", "op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "operation_duration_seconds",
				Help:      "Latency of executed operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "op"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "payouts_total",
				Help:      "Committed attested payouts per module.",
			}, []string{"module"}),
			payoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "payout_amount_total",
				Help:      "Sum of committed payout amounts in base units per module.",
			}, []string{"module"}),
			nonceRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "nonce_rejections_total",
				Help:      "Authorizations rejected by the nonce ledger segmented by reason.",
			}, []string{"reason"}),
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "escrow_deposits_total",
				Help:      "Committed escrow deposits per token.",
			}, []string{"token"}),
			sequence: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "commit_sequence",
				Help:      "Sequence number of the last committed operation.",
			}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "arcade",
				Subsystem: "protocol",
				Name:      "paused",
				Help:      "Indicates whether a module instance is paused (1) or not (0).",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			protocolRegistry.operations,
			protocolRegistry.latency,
			protocolRegistry.payouts,
			protocolRegistry.payoutAmount,
			protocolRegistry.nonceRejects,
			protocolRegistry.deposits,
			protocolRegistry.sequence,
			protocolRegistry.paused,
		)
	})
	return protocolRegistry
}

// ObserveOperation records one executed operation. op is "module.action";
// outcome is "ok" or an error kind.
func (m *ProtocolMetrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	module, action, found := strings.Cut(op, ".")
	if !found {
		action = module
		module = "host"
	}
	module = labelOr(module, "unknown")
	action = labelOr(action, "unknown")
	m.operations.WithLabelValues(module, action, labelOr(outcome, "ok")).Inc()
	m.latency.WithLabelValues(module, action).Observe(d.Seconds())
}

// RecordPayout counts a committed payout.
func (m *ProtocolMetrics) RecordPayout(module string, amount *big.Int) {
	if m == nil {
		return
	}
	module = labelOr(module, "unknown")
	m.payouts.WithLabelValues(module).Inc()
	m.payoutAmount.WithLabelValues(module).Add(bigToFloat(amount))
}

// RecordNonceRejection counts a replayed or out-of-order nonce.
func (m *ProtocolMetrics) RecordNonceRejection(reason string) {
	if m == nil {
		return
	}
	m.nonceRejects.WithLabelValues(labelOr(reason, "unspecified")).Inc()
}

// RecordDeposit counts a committed escrow deposit.
func (m *ProtocolMetrics) RecordDeposit(token string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(labelAsset(token)).Inc()
}

// SetSequence publishes the last committed sequence.
func (m *ProtocolMetrics) SetSequence(seq uint64) {
	if m == nil {
		return
	}
	m.sequence.Set(float64(seq))
}

// SetPaused toggles the paused gauge for module.
func (m *ProtocolMetrics) SetPaused(module string, paused bool) {
	if m == nil {
		return
	}
	value := 0.0
	if paused {
		value = 1
	}
	m.paused.WithLabelValues(labelOr(module, "unknown")).Set(value)
}

func labelOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
