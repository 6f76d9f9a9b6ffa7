// Package metrics exports pantheon counters to Prometheus.
//
// A nil *Recorder is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pantheon"

// Recorder owns the pantheon collectors.
type Recorder struct {
	registry *prometheus.Registry

	turns            *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	councilMessages  *prometheus.CounterVec
	councilActive    prometheus.Gauge
	rituals          *prometheus.CounterVec
	sessionEvictions *prometheus.CounterVec
	storageRetries   prometheus.Counter
}

// New registers the collectors on reg. A nil reg gets a private registry
// that also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	r := &Recorder{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns answered, by persona and reply source.",
		}, []string{"persona", "source"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "Time to produce a persona reply, by reply source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		councilMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "council_messages_total",
			Help:      "Council messages appended, by emotion.",
		}, []string{"emotion"}),
		councilActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "council_active",
			Help:      "1 while a council session is running its turn loop.",
		}),
		rituals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rituals_completed_total",
			Help:      "Completed rituals, by ritual type and outcome.",
		}, []string{"type", "success"}),
		sessionEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_session_evictions_total",
			Help:      "Chat sessions removed by retention, by persona.",
		}, []string{"persona"}),
		storageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_retries_total",
			Help:      "SQLite writes retried after a busy or locked error.",
		}),
	}
	all := []prometheus.Collector{
		r.turns, r.turnDuration, r.councilMessages, r.councilActive,
		r.rituals, r.sessionEvictions, r.storageRetries,
	}
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return r, nil
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// RecordTurn counts one chat reply.
func (r *Recorder) RecordTurn(personaID, source string, d time.Duration) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(personaID, source).Inc()
	r.turnDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordCouncilMessage counts one council message.
func (r *Recorder) RecordCouncilMessage(emotion string) {
	if r == nil {
		return
	}
	r.councilMessages.WithLabelValues(emotion).Inc()
}

// SetCouncilActive flips the council gauge.
func (r *Recorder) SetCouncilActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.councilActive.Set(1)
		return
	}
	r.councilActive.Set(0)
}

// RecordRitual counts one completed ritual.
func (r *Recorder) RecordRitual(ritualType string, success bool) {
	if r == nil {
		return
	}
	r.rituals.WithLabelValues(ritualType, strconv.FormatBool(success)).Inc()
}

// RecordEvictions counts sessions dropped by retention.
func (r *Recorder) RecordEvictions(personaID string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.sessionEvictions.WithLabelValues(personaID).Add(float64(n))
}

// RecordStorageRetry counts one retried write.
func (r *Recorder) RecordStorageRetry() {
	if r == nil {
		return
	}
	r.storageRetries.Inc()
}
