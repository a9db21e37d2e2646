// Package metrics holds the Prometheus collectors of the POS service.  A
// nil *Metrics is valid and records nothing, so services and tests can
// run without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "buspos"

// Metrics is the set of collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	salesTotal         *prometheus.CounterVec
	salesAmount        *prometheus.CounterVec
	saleFailures       *prometheus.CounterVec
	seatLocks          *prometheus.CounterVec
	sessionsOpened     prometheus.Counter
	sessionsClosed     *prometheus.CounterVec
	cashDiscrepancies  prometheus.Counter
	locksSwept         prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.salesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sales_total",
		Help: "Tickets sold at POS terminals.",
	}, []string{"method"})
	m.salesAmount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sales_amount_total",
		Help: "Sum of sale amounts, in currency units.",
	}, []string{"method"})
	m.saleFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sale_failures_total",
		Help: "Rejected or failed sales by error code.",
	}, []string{"code"})
	m.seatLocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "seat_lock_attempts_total",
		Help: "Seat lock attempts by outcome.",
	}, []string{"result"})
	m.sessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "cash_sessions_opened_total",
		Help: "Cash sessions opened.",
	})
	m.sessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "cash_sessions_closed_total",
		Help: "Cash sessions closed by closure type.",
	}, []string{"closure_type"})
	m.cashDiscrepancies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "cash_discrepancies_total",
		Help: "Closes whose counted cash differed from the expected amount.",
	})
	m.locksSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "seat_locks_swept_total",
		Help: "Expired seat lock rows removed by the sweeper.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.httpRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.salesTotal, m.salesAmount, m.saleFailures, m.seatLocks,
		m.sessionsOpened, m.sessionsClosed, m.cashDiscrepancies, m.locksSwept,
		m.httpRequests, m.httpRequestSeconds,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SaleRecorded(method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(method).Inc()
	m.salesAmount.WithLabelValues(method).Add(amount.InexactFloat64())
}

func (m *Metrics) SaleFailed(code string) {
	if m == nil {
		return
	}
	m.saleFailures.WithLabelValues(code).Inc()
}

// SeatLockAttempt records "granted", "refreshed" or "conflict".
func (m *Metrics) SeatLockAttempt(result string) {
	if m == nil {
		return
	}
	m.seatLocks.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

func (m *Metrics) SessionClosed(closureType string, discrepancy bool) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(closureType).Inc()
	if discrepancy {
		m.cashDiscrepancies.Inc()
	}
}

func (m *Metrics) LocksSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.locksSwept.Add(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
