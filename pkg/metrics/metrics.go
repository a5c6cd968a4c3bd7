// Package metrics exports store activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

const namespace = "homepanel"

// Metrics holds the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	Events        *prometheus.CounterVec
	DeviceUpdates *prometheus.CounterVec
	ScenesApplied *prometheus.CounterVec
	Commands      prometheus.Counter
	Errors        prometheus.Counter
	TokensSaved   prometheus.Counter
	LastRatio     prometheus.Gauge
	SecurityArmed prometheus.Gauge
}

// New creates Metrics with a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Store events by kind.",
		}, []string{"kind"}),
		DeviceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_updates_total",
			Help:      "Committed device updates by trigger and device type.",
		}, []string{"trigger", "type"}),
		ScenesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_applied_total",
			Help:      "Scenes applied to completion by trigger.",
		}, []string{"trigger"}),
		Commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_commands_total",
			Help:      "Natural-language commands that executed at least one action.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Errors recorded on the store.",
		}),
		TokensSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_saved_total",
			Help:      "Estimated prompt tokens saved by compression.",
		}),
		LastRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prompt_compression_ratio",
			Help:      "Compressed over original tokens for the last compressed prompt.",
		}),
		SecurityArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "security_armed",
			Help:      "1 while the security mode is armed or away.",
		}),
	}

	m.LastRatio.Set(1)
	m.registry.MustRegister(
		m.Events,
		m.DeviceUpdates,
		m.ScenesApplied,
		m.Commands,
		m.Errors,
		m.TokensSaved,
		m.LastRatio,
		m.SecurityArmed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Attach subscribes to store events and returns the unsubscribe function.
func (m *Metrics) Attach(store *home.Store) func() {
	return store.Subscribe(m.Observe)
}

// Observe updates the collectors for one event.
func (m *Metrics) Observe(e home.Event) {
	m.Events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case home.EventDeviceUpdated:
		if e.Device != nil {
			m.DeviceUpdates.WithLabelValues(string(e.Trigger), e.Device.Type).Inc()
		}
	case home.EventSceneApplied:
		m.ScenesApplied.WithLabelValues(string(e.Trigger)).Inc()
	case home.EventActivityAdded:
		if e.Activity != nil && e.Activity.ActionType == device.ActionAICommand {
			m.Commands.Inc()
		}
	case home.EventError:
		if e.Error != "" {
			m.Errors.Inc()
		}
	case home.EventTokenStats:
		if e.TokenStats != nil {
			if e.TokenStats.TokensSaved > 0 {
				m.TokensSaved.Add(float64(e.TokenStats.TokensSaved))
			}
			m.LastRatio.Set(e.TokenStats.CompressionRatio)
		}
	case home.EventSecurityChanged:
		if e.Security == device.SecurityArmed || e.Security == device.SecurityAway {
			m.SecurityArmed.Set(1)
		} else {
			m.SecurityArmed.Set(0)
		}
	}
}
