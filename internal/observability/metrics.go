package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	callsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pipewright",
			Subsystem: "rpc",
			Name:      "calls_started_total",
			Help:      "Calls written to the driver.",
		},
	)
	callsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipewright",
			Subsystem: "rpc",
			Name:      "calls_settled_total",
			Help:      "Calls settled, by outcome.",
		},
		[]string{"outcome"},
	)
	eventsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pipewright",
			Subsystem: "rpc",
			Name:      "events_dispatched_total",
			Help:      "Driver events delivered to a live object.",
		},
	)
	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pipewright",
			Subsystem: "rpc",
			Name:      "events_dropped_total",
			Help:      "Driver events naming an already-disposed object.",
		},
	)
	objectsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pipewright",
			Subsystem: "rpc",
			Name:      "objects_live",
			Help:      "Remote objects currently registered.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsStarted, callsSettled, eventsDispatched, eventsDropped, objectsLive)
	})
}

func RecordCallStarted() {
	callsStarted.Inc()
}

func RecordCallSettled(outcome string) {
	callsSettled.WithLabelValues(outcome).Inc()
}

func RecordEventDispatched() {
	eventsDispatched.Inc()
}

func RecordEventDropped() {
	eventsDropped.Inc()
}

func SetObjectsLive(n int) {
	objectsLive.Set(float64(n))
}
