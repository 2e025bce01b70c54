package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service collectors. A nil *Recorder is valid and records
// nothing, so components can be built without metrics in tests.
type Recorder struct {
	gatherer prometheus.Gatherer

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	dispatches    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sessions      *prometheus.GaugeVec
	fleet         *prometheus.GaugeVec
	active        prometheus.Gauge
}

// New registers the collectors on reg. If reg is nil a fresh registry is
// used. Collectors that are already registered are reused.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{gatherer: reg}

	r.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	r.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Dispatch attempts by outcome",
	}, []string{"result"})
	r.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Realtime notifications by message type and delivery result",
	}, []string{"type", "result"})
	r.sessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_sessions",
		Help: "Open realtime sessions by role",
	}, []string{"role"})
	r.fleet = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_ambulances",
		Help: "Ambulances by operational status",
	}, []string{"status"})
	r.active = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_emergencies",
		Help: "Emergency calls in an active status",
	})

	var err error
	if r.requests, err = register(reg, r.requests); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, r.duration); err != nil {
		return nil, err
	}
	if r.dispatches, err = register(reg, r.dispatches); err != nil {
		return nil, err
	}
	if r.notifications, err = register(reg, r.notifications); err != nil {
		return nil, err
	}
	if r.sessions, err = register(reg, r.sessions); err != nil {
		return nil, err
	}
	if r.fleet, err = register(reg, r.fleet); err != nil {
		return nil, err
	}
	if r.active, err = register(reg, r.active); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request
func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// DispatchAttempt counts a dispatch by result, e.g. "ok" or "conflict"
func (r *Recorder) DispatchAttempt(result string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(result).Inc()
}

// Notification counts a routed notification
func (r *Recorder) Notification(msgType, result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(msgType, result).Inc()
}

// SessionOpened increments the open session gauge for role
func (r *Recorder) SessionOpened(role string) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(role).Inc()
}

// SessionClosed decrements the open session gauge for role
func (r *Recorder) SessionClosed(role string) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(role).Dec()
}

// SetFleet replaces the per-status ambulance counts. Statuses missing from
// counts are reset to zero.
func (r *Recorder) SetFleet(statuses []string, counts map[string]int) {
	if r == nil {
		return
	}
	for _, s := range statuses {
		r.fleet.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// SetActiveEmergencies sets the active call gauge
func (r *Recorder) SetActiveEmergencies(n int) {
	if r == nil {
		return
	}
	r.active.Set(float64(n))
}
