package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_trades_total",
			Help: "Total number of closed trades",
		},
		[]string{"symbol", "side", "reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_trade_pnl",
			Help:    "Distribution of realized trade PnL in quote units",
			Buckets: []float64{-500, -200, -100, -50, -20, 0, 20, 50, 100, 200, 500},
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_current_price",
			Help: "Current mark price of a tracked symbol",
		},
		[]string{"symbol"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_open_positions",
			Help: "Number of currently open positions",
		},
	)

	// Circuit breaker state: 0 NORMAL, 1 PAUSED, 2 STOPPED
	accountStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_engine_account_status",
			Help: "Circuit breaker account status (0 normal, 1 paused, 2 stopped)",
		},
	)

	emergencyTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_emergency_triggers_total",
			Help: "Total number of emergency exit triggers",
		},
		[]string{"check", "urgency"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_engine_cycle_duration_seconds",
			Help:    "End-to-end duration of one engine cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountStatus)
	prometheus.MustRegister(emergencyTriggers)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records a closed trade
func RecordTrade(symbol, side, reason string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, side, reason).Inc()
	tradePnL.WithLabelValues(symbol).Observe(pnl)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateOpenPositions updates the open position count
func UpdateOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// UpdateAccountStatus updates the circuit breaker status gauge
func UpdateAccountStatus(level int) {
	accountStatus.Set(float64(level))
}

// RecordEmergencyTrigger records an emergency exit trigger
func RecordEmergencyTrigger(check, urgency string) {
	emergencyTriggers.WithLabelValues(check, urgency).Inc()
}

// ObserveCycleDuration records one cycle's wall time
func ObserveCycleDuration(seconds float64) {
	cycleDuration.Observe(seconds)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
