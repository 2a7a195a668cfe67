package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type NodeMetricer interface {
	RecordRPCClientRequest(method string) func(err error)
}

type nodeMetrics struct {
	rpcClientRequestsTotal          *prometheus.CounterVec
	rpcClientRequestDurationSeconds *prometheus.HistogramVec
	rpcClientResponsesTotal         *prometheus.CounterVec
}

func NewNodeMetrics(registry *prometheus.Registry, subsystem string) NodeMetricer {
	factory := With(registry)
	return &nodeMetrics{
		rpcClientRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total RPC requests initiated by the node client",
		}, []string{"method"}),
		rpcClientRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Buckets:   []float64{.005, .01, .02, .05, .1, .2, .5, 1, 5, 10},
			Help:      "Histogram of RPC client request durations",
		}, []string{"method"}),
		rpcClientResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "responses_total",
			Help:      "Total RPC request responses received by the node client",
		}, []string{"method", "error"}),
	}
}

func (m *nodeMetrics) RecordRPCClientRequest(method string) func(err error) {
	m.rpcClientRequestsTotal.WithLabelValues(method).Inc()
	timer := prometheus.NewTimer(m.rpcClientRequestDurationSeconds.WithLabelValues(method))
	return func(err error) {
		m.rpcClientResponsesTotal.WithLabelValues(method, errStr(err)).Inc()
		timer.ObserveDuration()
	}
}

func errStr(err error) string {
	if err != nil {
		return "true"
	}
	return "false"
}

func With(registry *prometheus.Registry) *Factory {
	return &Factory{registry}
}

// Factory registers metrics on construction so a typo'd collector fails fast
// at startup instead of silently never exporting.
type Factory struct {
	registry *prometheus.Registry
}

func (f *Factory) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(vec)
	return vec
}

func (f *Factory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	counter := prometheus.NewCounter(opts)
	f.registry.MustRegister(counter)
	return counter
}

func (f *Factory) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(opts, labels)
	f.registry.MustRegister(vec)
	return vec
}

func (f *Factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	gauge := prometheus.NewGauge(opts)
	f.registry.MustRegister(gauge)
	return gauge
}

func (f *Factory) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(vec)
	return vec
}
