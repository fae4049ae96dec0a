// Package metrics exposes dashboard health as prometheus series.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/roadcams/conditions-dashboard/internal/pipeline"
	"github.com/roadcams/conditions-dashboard/internal/proxy"
	"github.com/roadcams/conditions-dashboard/internal/source"
)

const namespace = "roadcams"

type Metrics struct {
	registry      *prometheus.Registry
	refreshes     *prometheus.CounterVec
	connected     prometheus.Gauge
	lastSuccess   prometheus.Gauge
	cameras       *prometheus.GaugeVec
	proxyRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Conditions refreshes by result.",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 when the last conditions refresh succeeded.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		cameras: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cameras",
			Help:      "Cameras in the current snapshot by category.",
		}, []string{"level"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Conditions proxy requests by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.refreshes, m.connected, m.lastSuccess, m.cameras, m.proxyRequests)
	return m
}

// Handler serves the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorLog: log.Default()})
}

// OnState is an adapter listener.
func (m *Metrics) OnState(state source.State) {
	if !state.Connected {
		m.refreshes.WithLabelValues("failure").Inc()
		m.connected.Set(0)
		return
	}
	m.refreshes.WithLabelValues("success").Inc()
	m.connected.Set(1)
	m.lastSuccess.Set(float64(state.LastSuccess.Unix()))

	var stats model.Stats
	if state.Snapshot != nil {
		stats = pipeline.Count(state.Snapshot.Data)
	}
	m.cameras.WithLabelValues("total").Set(float64(stats.Total))
	m.cameras.WithLabelValues(string(model.SafetyLevelSafe)).Set(float64(stats.Safe))
	m.cameras.WithLabelValues(string(model.SafetyLevelCaution)).Set(float64(stats.Caution))
	m.cameras.WithLabelValues(string(model.SafetyLevelHazardous)).Set(float64(stats.Hazardous))
	m.cameras.WithLabelValues(model.StatusFailed).Set(float64(stats.Failed))
}

// ObserveProxy implements proxy.Observer.
func (m *Metrics) ObserveProxy(outcome proxy.Outcome) {
	m.proxyRequests.WithLabelValues(string(outcome)).Inc()
}
