// Package metrics exposes the trading loop's Prometheus instruments on a
// private registry. One instance per daemon, handed to whoever records;
// there is no package-level default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries every instrument the daemon records.
type Metrics struct {
	registry *prometheus.Registry

	// Signal flow
	SignalsTotal *prometheus.CounterVec
	EntryEdge    *prometheus.HistogramVec

	// Order and position lifecycle
	OrdersTotal  *prometheus.CounterVec
	FillsTotal   *prometheus.CounterVec
	ExitsTotal   *prometheus.CounterVec
	OrderLatency prometheus.Histogram

	// Book state
	OpenPositions prometheus.Gauge
	ExposureCents prometheus.Gauge
	BalanceCents  prometheus.Gauge

	// Session state
	LiveGames      prometheus.Gauge
	TrackedMarkets prometheus.Gauge
	SessionActive  prometheus.Gauge
	CycleDuration  prometheus.Histogram

	// Upstream failures
	FeedErrors  *prometheus.CounterVec
	VenueErrors *prometheus.CounterVec
}

// New creates the instrument set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_signals_total",
				Help: "Signals emitted by the detectors",
			},
			[]string{"strategy", "side"},
		),
		EntryEdge: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtside_entry_edge_cents",
				Help:    "Claimed edge on admitted entries, in cents",
				Buckets: []float64{2, 4, 6, 8, 10, 12, 15, 20, 25},
			},
			[]string{"side"},
		),

		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_orders_total",
				Help: "Orders placed against the venue, by outcome",
			},
			[]string{"side", "status"},
		),
		FillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_fills_total",
				Help: "Order fills confirmed by the venue",
			},
			[]string{"side"},
		),
		ExitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_exits_total",
				Help: "Position closes, by exit rule",
			},
			[]string{"reason"},
		),
		OrderLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "courtside_order_place_seconds",
				Help:    "Venue round trip for order placement",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),

		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_open_positions",
			Help: "Positions currently held or pending fill",
		}),
		ExposureCents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_exposure_cents",
			Help: "Total entry cost across open positions, in cents",
		}),
		BalanceCents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_balance_cents",
			Help: "Venue balance at last refresh, in cents",
		}),

		LiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_live_games",
			Help: "Games currently in progress on the scoreboard",
		}),
		TrackedMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_tracked_markets",
			Help: "Markets matched to live games this cycle",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_session_active",
			Help: "1 while inside the trading window",
		}),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "courtside_cycle_seconds",
				Help:    "Wall time of one orchestrator cycle",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),

		FeedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_feed_errors_total",
				Help: "Scoreboard feed failures, by kind",
			},
			[]string{"kind"},
		),
		VenueErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtside_venue_errors_total",
				Help: "Venue API failures, by classified kind",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.SignalsTotal,
		m.EntryEdge,
		m.OrdersTotal,
		m.FillsTotal,
		m.ExitsTotal,
		m.OrderLatency,
		m.OpenPositions,
		m.ExposureCents,
		m.BalanceCents,
		m.LiveGames,
		m.TrackedMarkets,
		m.SessionActive,
		m.CycleDuration,
		m.FeedErrors,
		m.VenueErrors,
	)
	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSignal counts an emitted signal and its claimed edge.
func (m *Metrics) RecordSignal(strategy, side string, edgeCents int) {
	m.SignalsTotal.WithLabelValues(strategy, side).Inc()
	m.EntryEdge.WithLabelValues(side).Observe(float64(edgeCents))
}

// RecordOrder counts an order outcome: placed, filled, canceled, rejected.
func (m *Metrics) RecordOrder(side, status string) {
	m.OrdersTotal.WithLabelValues(side, status).Inc()
}

// RecordFill counts a confirmed fill.
func (m *Metrics) RecordFill(side string) {
	m.FillsTotal.WithLabelValues(side).Inc()
}

// RecordExit counts a position close under an exit rule.
func (m *Metrics) RecordExit(reason string) {
	m.ExitsTotal.WithLabelValues(reason).Inc()
}

// ObserveOrderLatency records one venue placement round trip.
func (m *Metrics) ObserveOrderLatency(seconds float64) {
	m.OrderLatency.Observe(seconds)
}

// ObserveCycle records one orchestrator cycle's wall time.
func (m *Metrics) ObserveCycle(seconds float64) {
	m.CycleDuration.Observe(seconds)
}

// UpdateBook sets the position-book gauges.
func (m *Metrics) UpdateBook(open, exposureCents, balanceCents int) {
	m.OpenPositions.Set(float64(open))
	m.ExposureCents.Set(float64(exposureCents))
	m.BalanceCents.Set(float64(balanceCents))
}

// UpdateSession sets the session-scope gauges.
func (m *Metrics) UpdateSession(active bool, liveGames, trackedMarkets int) {
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
	m.LiveGames.Set(float64(liveGames))
	m.TrackedMarkets.Set(float64(trackedMarkets))
}

// RecordFeedError counts a scoreboard failure.
func (m *Metrics) RecordFeedError(kind string) {
	m.FeedErrors.WithLabelValues(kind).Inc()
}

// RecordVenueError counts a venue failure by its classified kind.
func (m *Metrics) RecordVenueError(kind string) {
	m.VenueErrors.WithLabelValues(kind).Inc()
}
