package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger programs.
type Metrics struct {
	// --- Operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Prediction market ---
	MarketsCreated  prometheus.Counter
	BetsPlaced      *prometheus.CounterVec
	BetVolume       prometheus.Counter
	MarketsResolved prometheus.Counter
	PayoutsClaimed  prometheus.Counter
	PayoutTotal     prometheus.Counter
	OpenMarkets     prometheus.Gauge

	// --- Registry / insurance ---
	ModelsRegistered  prometheus.Counter
	ReceiptsSubmitted prometheus.Counter
	DriftAlerts       prometheus.Counter
	PoliciesActive    prometheus.Gauge
	ClaimsPaidTotal   prometheus.Counter

	// --- Emission ---
	EventsEmitted *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

// NewMetrics registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drift_ops_applied_total",
			Help: "Operations applied, by program and operation",
		}, []string{"program", "op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drift_ops_rejected_total",
			Help: "Operations rejected, by program, operation, and reason",
		}, []string{"program", "op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drift_op_duration_seconds",
			Help:    "Operation processing duration",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}, []string{"program", "op"}),

		MarketsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_markets_created_total",
			Help: "Prediction markets created",
		}),

		BetsPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drift_bets_placed_total",
			Help: "Bets placed, by outcome side",
		}, []string{"outcome"}),

		BetVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_bet_volume_units_total",
			Help: "Cumulative stake placed across all markets",
		}),

		MarketsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_markets_resolved_total",
			Help: "Markets resolved",
		}),

		PayoutsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_payouts_claimed_total",
			Help: "Successful winnings claims",
		}),

		PayoutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_payout_units_total",
			Help: "Cumulative payout value transferred to claimants",
		}),

		OpenMarkets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drift_open_markets",
			Help: "Markets currently open",
		}),

		ModelsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_models_registered_total",
			Help: "Models registered",
		}),

		ReceiptsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_receipts_submitted_total",
			Help: "Monitoring receipts submitted",
		}),

		DriftAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_alerts_total",
			Help: "Drift alerts raised",
		}),

		PoliciesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drift_policies_active",
			Help: "Insurance policies currently active",
		}),

		ClaimsPaidTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_insurance_claims_paid_total",
			Help: "Insurance claims paid",
		}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drift_events_emitted_total",
			Help: "Notifications emitted, by event type",
		}, []string{"event_type"}),

		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drift_events_dropped_total",
			Help: "Notifications dropped due to full buffer",
		}),
	}
}
