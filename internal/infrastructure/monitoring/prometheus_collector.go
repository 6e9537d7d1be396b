package monitoring

import (
	"strconv"
	"time"

	"relaychat/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.RelayMetrics and also records the
// HTTP and storage side of the server.
type PrometheusCollector struct {
	// Relay
	connectionsOpen   prometheus.Gauge
	connectionsTotal  prometheus.Counter
	handshakeRejected *prometheus.CounterVec
	onlineUsers       prometheus.Gauge
	presenceAnnounced prometheus.Counter
	signalsRouted     *prometheus.CounterVec
	sendsDropped      prometheus.Counter

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// Storage
	storeDuration *prometheus.HistogramVec
	circuitState  *prometheus.GaugeVec
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_connections_open",
			Help: "Number of open relay connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_connections_total",
			Help: "Total number of accepted relay connections",
		}),

		handshakeRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_handshakes_rejected_total",
			Help: "Rejected websocket handshakes by reason",
		}, []string{"reason"}),

		onlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_online_users",
			Help: "Identities currently online",
		}),

		presenceAnnounced: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_presence_announcements_total",
			Help: "Total number of online-users broadcasts",
		}),

		signalsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_signals_routed_total",
			Help: "Signaling envelopes routed by kind and outcome",
		}, []string{"kind", "outcome"}),

		sendsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relaychat_sends_dropped_total",
			Help: "Events that could not be queued on a connection",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relaychat_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relaychat_store_operation_duration_seconds",
			Help:    "Storage call latency by driver, operation and result",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"driver", "operation", "result"}),

		circuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaychat_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsOpen.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.connectionsOpen.Dec()
}

func (p *PrometheusCollector) HandshakeRejected(reason string) {
	p.handshakeRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) OnlineUsers(count int) {
	p.onlineUsers.Set(float64(count))
}

func (p *PrometheusCollector) PresenceAnnounced() {
	p.presenceAnnounced.Inc()
}

func (p *PrometheusCollector) SignalRouted(kind domain.SignalKind, outcome domain.RouteOutcome) {
	p.signalsRouted.WithLabelValues(kind.String(), outcome.String()).Inc()
}

func (p *PrometheusCollector) SendDropped() {
	p.sendsDropped.Inc()
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (p *PrometheusCollector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusCollector) ObserveStoreOperation(driver, operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.storeDuration.WithLabelValues(driver, operation, result).Observe(duration.Seconds())
}

func (p *PrometheusCollector) SetCircuitState(name string, state int) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
}
