/*
Package metrics exposes Prometheus instruments for the ledger.

INSTRUMENTS:
  rentledger_http_requests_total{method,route,status}
  rentledger_http_request_duration_seconds{method,route}
  rentledger_bills_created_total{bill_type,method}
  rentledger_house_bill_payments_total{action}
  rentledger_occupancy_corrections_total
  rentledger_houses, rentledger_occupied_houses, rentledger_unpaid_bills,
  rentledger_outstanding_amount   (gauges fed from appstate snapshots)

All methods are safe on a nil *Metrics, so callers never need to check
whether metrics are enabled.

SEE ALSO:
  - api/server.go: Instrument middleware and /metrics route
  - appstate/state.go: Snapshot source for the gauges
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/rental-ledger/appstate"
)

const namespace = "rentledger"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	billsCreated    *prometheus.CounterVec
	payments        *prometheus.CounterVec
	corrections     prometheus.Counter

	houses         prometheus.Gauge
	occupiedHouses prometheus.Gauge
	unpaidBills    prometheus.Gauge
	outstanding    prometheus.Gauge
}

// New registers every instrument on a fresh registry. withRuntime adds the
// Go runtime and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		billsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_created_total",
			Help:      "Utility bills recorded, by utility and apportionment method.",
		}, []string{"bill_type", "method"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "house_bill_payments_total",
			Help:      "House bill payment state changes.",
		}, []string{"action"}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occupancy_corrections_total",
			Help:      "Houses whose occupied flag was corrected by reconciliation.",
		}),
		houses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "houses",
			Help:      "Houses across all buildings.",
		}),
		occupiedHouses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied_houses",
			Help:      "Houses with an active tenant.",
		}),
		unpaidBills: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unpaid_bills",
			Help:      "Utility bills not fully paid.",
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_amount",
			Help:      "Sum of unpaid house bills.",
		}),
	}
	reg.MustRegister(
		m.requests, m.requestDuration, m.billsCreated, m.payments, m.corrections,
		m.houses, m.occupiedHouses, m.unpaidBills, m.outstanding,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) BillCreated(billType, method string) {
	if m == nil {
		return
	}
	m.billsCreated.WithLabelValues(billType, method).Inc()
}

// Payment records a house bill moving to paid or back to unpaid.
func (m *Metrics) Payment(paid bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	action := "unpaid"
	if paid {
		action = "paid"
	}
	m.payments.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) OccupancyCorrected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.corrections.Add(float64(n))
}

// ObserveSnapshot sets the gauges. Subscribe it to appstate.State.
func (m *Metrics) ObserveSnapshot(s appstate.Snapshot) {
	if m == nil {
		return
	}
	m.houses.Set(float64(s.Houses))
	m.occupiedHouses.Set(float64(s.OccupiedHouses))
	m.unpaidBills.Set(float64(s.UnpaidBills))
	m.outstanding.Set(s.Outstanding.InexactFloat64())
}
