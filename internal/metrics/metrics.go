package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	visitCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softone",
			Name:      "visit_created_total",
			Help:      "Count of visit creates by outcome (remote or local fallback).",
		},
		[]string{"outcome"},
	)

	reconcileRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softone",
			Name:      "reconcile_records_total",
			Help:      "Count of records processed by reconciliation sweeps, by result.",
		},
		[]string{"result"},
	)

	visitTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softone",
			Name:      "visit_transition_total",
			Help:      "Count of visit lifecycle transitions by action.",
		},
		[]string{"action"},
	)

	geoOrigin = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softone",
			Name:      "geo_origin_total",
			Help:      "Count of origin resolutions by source (device, ip, default).",
		},
		[]string{"source"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softone",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(visitCreated, reconcileRecords, visitTransition, geoOrigin, httpRequests)
	})
}

func IncVisitCreated(outcome string) {
	visitCreated.WithLabelValues(outcome).Inc()
}

func AddReconcile(result string, n int) {
	reconcileRecords.WithLabelValues(result).Add(float64(n))
}

func IncTransition(action string) {
	visitTransition.WithLabelValues(action).Inc()
}

func IncGeoOrigin(source string) {
	geoOrigin.WithLabelValues(source).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
