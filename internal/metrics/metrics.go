package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects pipeline counters. A nil *Recorder records nothing.
type Recorder struct {
	instrumentOutcomes *prometheus.CounterVec
	oracleCalls        *prometheus.CounterVec
	oracleLatency      *prometheus.HistogramVec
	providerErrors     *prometheus.CounterVec
	ledgerOps          *prometheus.CounterVec
	oracleInFlight     prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on /metrics.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		instrumentOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorscan_instrument_outcomes_total",
				Help: "Research outcomes per instrument",
			},
			[]string{"state"},
		),
		oracleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorscan_oracle_calls_total",
				Help: "Reasoning oracle calls by contract and result",
			},
			[]string{"contract", "result"},
		),
		oracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sectorscan_oracle_call_duration_seconds",
				Help:    "Reasoning oracle call latency",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 90},
			},
			[]string{"contract"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorscan_provider_errors_total",
				Help: "Market data and news provider faults that were degraded",
			},
			[]string{"provider"},
		),
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorscan_ledger_operations_total",
				Help: "Ledger writes by operation and result",
			},
			[]string{"op", "result"},
		),
		oracleInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorscan_oracle_in_flight",
				Help: "Reasoning oracle calls currently in flight",
			},
		),
	}
}

func (r *Recorder) RecordInstrumentOutcome(state string) {
	if r == nil {
		return
	}
	r.instrumentOutcomes.WithLabelValues(state).Inc()
}

func (r *Recorder) RecordOracleCall(contract, result string, seconds float64) {
	if r == nil {
		return
	}
	r.oracleCalls.WithLabelValues(contract, result).Inc()
	r.oracleLatency.WithLabelValues(contract).Observe(seconds)
}

func (r *Recorder) RecordProviderError(provider string) {
	if r == nil {
		return
	}
	r.providerErrors.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordLedgerOp(op, result string) {
	if r == nil {
		return
	}
	r.ledgerOps.WithLabelValues(op, result).Inc()
}

// OracleStarted bumps the in-flight gauge and returns the matching decrement.
func (r *Recorder) OracleStarted() func() {
	if r == nil {
		return func() {}
	}
	r.oracleInFlight.Inc()
	return r.oracleInFlight.Dec
}
