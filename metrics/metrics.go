// Package metrics exposes Prometheus counters for agreement activity,
// notification delivery, audit failures and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pactflow/notify"
)

// Collector records pactflow metrics. It satisfies the agreement service
// observer, notify.Observer and audit.FailureObserver.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	signatures    *prometheus.CounterVec
	completed     prometheus.Counter
	invitations   prometheus.Counter
	auditFailures *prometheus.CounterVec
	notifications *prometheus.CounterVec
	repairs       prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactflow_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pactflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactflow_signatures_total",
			Help: "Signatures recorded by kind.",
		}, []string{"kind"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactflow_agreements_completed_total",
			Help: "Agreements that reached completed.",
		}),
		invitations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactflow_invitations_total",
			Help: "Parties invited.",
		}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactflow_audit_failures_total",
			Help: "Audit entries that could not be written.",
		}, []string{"action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactflow_notifications_total",
			Help: "Notification delivery attempts by type and result.",
		}, []string{"type", "result"}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactflow_repairs_total",
			Help: "Agreement statuses corrected by the repair pass.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.signatures,
		c.completed,
		c.invitations,
		c.auditFailures,
		c.notifications,
		c.repairs,
	)

	return c
}

func (c *Collector) SignatureRecorded(kind string) {
	c.signatures.WithLabelValues(kind).Inc()
}

func (c *Collector) AgreementCompleted() {
	c.completed.Inc()
}

func (c *Collector) PartyInvited() {
	c.invitations.Inc()
}

func (c *Collector) StatusRepaired() {
	c.repairs.Inc()
}

func (c *Collector) AuditFailed(action string) {
	c.auditFailures.WithLabelValues(action).Inc()
}

func (c *Collector) NotificationDelivered(t notify.Type) {
	c.notifications.WithLabelValues(string(t), "sent").Inc()
}

func (c *Collector) NotificationFailed(t notify.Type, dead bool) {
	result := "retry"
	if dead {
		result = "dead"
	}
	c.notifications.WithLabelValues(string(t), result).Inc()
}

func (c *Collector) RecordHTTPRequest(route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware labels requests with the chi route pattern so ids in paths do
// not blow up label cardinality. Unmatched requests use "unmatched".
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		c.RecordHTTPRequest(route, status, time.Since(start))
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
