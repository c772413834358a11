package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the marketplace collectors.
	Registry = prometheus.NewRegistry()

	ledgerOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bite",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger commands by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bite",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Time spent under the ledger lock per command.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14), // 50µs to ~400ms
		},
		[]string{"op"},
	)

	escrow = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bite",
			Subsystem: "ledger",
			Name:      "escrow",
			Help:      "Funds currently held in escrow.",
		},
	)

	replayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bite",
			Subsystem: "wal",
			Name:      "replayed_records_total",
			Help:      "Entry WAL records replayed at startup.",
		},
	)

	outboxPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bite",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Events acknowledged by the broker.",
		},
	)

	outboxFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bite",
			Subsystem: "outbox",
			Name:      "failed_total",
			Help:      "Event publish attempts that failed.",
		},
	)

	outboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bite",
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Events waiting to be published.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bite",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		ledgerOps,
		ledgerDuration,
		escrow,
		replayed,
		outboxPublished,
		outboxFailed,
		outboxPending,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one ledger command. outcome is "ok" or an error kind.
func RecordOperation(op, outcome string, d time.Duration) {
	ledgerOps.WithLabelValues(op, outcome).Inc()
	ledgerDuration.WithLabelValues(op).Observe(d.Seconds())
}

func SetEscrow(v uint64) {
	escrow.Set(float64(v))
}

func AddReplayed(n int) {
	replayed.Add(float64(n))
}

func RecordPublished() {
	outboxPublished.Inc()
}

func RecordPublishFailed() {
	outboxFailed.Inc()
}

func SetPending(n int) {
	outboxPending.Set(float64(n))
}

// InstrumentHandler is gorilla/mux middleware counting requests by route
// template, so ids in paths do not explode label cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(strings.ToUpper(r.Method), route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
