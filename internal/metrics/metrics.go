// Package metrics exposes Environment lifecycle counters in Prometheus
// format. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rlbench_env"

// Metrics tracks simulator launches and task loads.
type Metrics struct {
	registry *prometheus.Registry

	launches       *prometheus.CounterVec
	shutdowns      prometheus.Counter
	taskLoads      *prometheus.CounterVec
	unloadFailures prometheus.Counter
	simulatorUp    prometheus.Gauge
}

// New creates the collectors on a private registry so several environments
// (and tests) never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Simulator launches by result",
			},
			[]string{"result"},
		),
		shutdowns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shutdowns_total",
				Help:      "Simulator shutdowns",
			},
		),
		taskLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_loads_total",
				Help:      "Task loads by task name and result",
			},
			[]string{"task", "result"},
		),
		unloadFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_unload_failures_total",
				Help:      "Previous-task unloads that returned an error",
			},
		),
		simulatorUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "simulator_up",
				Help:      "1 while a simulator is launched",
			},
		),
	}

	m.registry.MustRegister(m.launches, m.shutdowns, m.taskLoads, m.unloadFailures, m.simulatorUp)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveLaunch(err error) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.simulatorUp.Set(1)
	}
}

func (m *Metrics) ObserveShutdown() {
	if m == nil {
		return
	}
	m.shutdowns.Inc()
	m.simulatorUp.Set(0)
}

func (m *Metrics) ObserveTaskLoad(task string, err error) {
	if m == nil {
		return
	}
	m.taskLoads.WithLabelValues(task, result(err)).Inc()
}

func (m *Metrics) ObserveUnloadFailure() {
	if m == nil {
		return
	}
	m.unloadFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
