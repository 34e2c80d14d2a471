package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Rounds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estimator_rounds_total",
		Help: "Estimation rounds by outcome (delivered, stale, empty, failed)",
	}, []string{"outcome"})

	RoundLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "estimator_round_latency_seconds",
		Help:    "Fan-out plus ranking time for one round",
		Buckets: prometheus.DefBuckets,
	})

	VenueResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estimator_venue_results_total",
		Help: "Venue estimates by venue and result kind (OK or error kind)",
	}, []string{"venue", "result"})

	VenueLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "estimator_venue_latency_seconds",
		Help:    "Time for one venue estimate",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"venue"})

	BestEffectivePrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "estimator_best_effective_price",
		Help: "Effective price of the top-ranked estimate in the last delivered round",
	})

	GasUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "estimator_best_gas_usd",
		Help: "Gas cost in USD of the top-ranked estimate",
	})

	PriceUSD = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "estimator_price_usd",
		Help: "Last USD conversion price by source",
	}, []string{"source"})

	PriceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estimator_price_errors_total",
		Help: "Price source failures",
	}, []string{"source"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "estimator_active_sessions",
		Help: "Live API estimation sessions",
	})
)

func init() {
	prometheus.MustRegister(
		Rounds,
		RoundLatency,
		VenueResults,
		VenueLatency,
		BestEffectivePrice,
		GasUSD,
		PriceUSD,
		PriceErrors,
		ActiveSessions,
	)
}
