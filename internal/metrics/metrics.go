// Package metrics exposes Prometheus collectors for the dispatch core.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldlink"

// Dispatch outcomes used as the "result" label.
const (
	ResultAccepted          = "accepted"
	ResultValidation        = "validation_error"
	ResultTargetNotFound    = "target_not_found"
	ResultBrokerUnavailable = "broker_unavailable"
	ResultPartialPublish    = "partial_publish"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	dispatches        *prometheus.CounterVec
	framesPublished   prometheus.Counter
	responses         *prometheus.CounterVec
	malformed         prometheus.Counter
	brokerStatus      *prometheus.GaugeVec
	subscribers       prometheus.Gauge
	eventsDropped     *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
	usageWriteFailure prometheus.Counter
}

// New creates and registers every collector, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Dispatch requests by result",
		}, []string{"result"}),
		framesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Device command frames published to the broker",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_responses_total",
			Help:      "Decoded device responses by command code",
		}, []string{"command"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_responses_malformed_total",
			Help:      "Inbound payloads discarded as malformed",
		}),
		brokerStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_status",
			Help:      "1 for the current broker connection status, 0 otherwise",
		}, []string{"status"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_subscribers",
			Help:      "Open real-time subscriber connections",
		}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_dropped_total",
			Help:      "Events dropped because a subscriber queue was full",
		}, []string{"topic", "subscriber"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_handler_failures_total",
			Help:      "Event handler errors and panics",
		}, []string{"topic", "subscriber"}),
		usageWriteFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_write_failures_total",
			Help:      "Command usage records that could not be stored",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatches,
		m.framesPublished,
		m.responses,
		m.malformed,
		m.brokerStatus,
		m.subscribers,
		m.eventsDropped,
		m.handlerFailures,
		m.usageWriteFailure,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) DispatchResult(result string) { m.dispatches.WithLabelValues(result).Inc() }

func (m *Metrics) FramesPublished(n int) { m.framesPublished.Add(float64(n)) }

func (m *Metrics) ResponseDecoded(code int) {
	m.responses.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) ResponseMalformed() { m.malformed.Inc() }

// BrokerStatus sets the gauge for status to 1 and every other known status to 0.
func (m *Metrics) BrokerStatus(status string) {
	for _, s := range []string{"connected", "connecting", "disconnecting", "disconnected"} {
		v := 0.0
		if s == status {
			v = 1
		}
		m.brokerStatus.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) SubscriberCount(n int) { m.subscribers.Set(float64(n)) }

func (m *Metrics) EventDropped(topic, subscriber string) {
	m.eventsDropped.WithLabelValues(topic, subscriber).Inc()
}

func (m *Metrics) HandlerFailed(topic, subscriber string) {
	m.handlerFailures.WithLabelValues(topic, subscriber).Inc()
}

func (m *Metrics) UsageWriteFailed() { m.usageWriteFailure.Inc() }
