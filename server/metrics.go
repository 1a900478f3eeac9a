/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds the dev server's Prometheus metrics. Each Metrics owns its
// registry so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	compilesTotal   *prometheus.CounterVec
	compileDuration prometheus.Histogram
	updatesTotal    *prometheus.CounterVec
	updateDuration  prometheus.Histogram
	hookDuration    *prometheus.HistogramVec

	modules     prometheus.Gauge
	resources   prometheus.Gauge
	hmrClients  prometheus.Gauge
	hmrMessages *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		compilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_compiles_total",
				Help: "Total number of full compilations",
			},
			[]string{"status"},
		),
		compileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "farm_compile_duration_seconds",
				Help:    "Full compilation latency in seconds",
				Buckets: durationBuckets,
			},
		),
		updatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_updates_total",
				Help: "Total number of incremental updates",
			},
			[]string{"status"},
		),
		updateDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "farm_update_duration_seconds",
				Help:    "Incremental update latency in seconds",
				Buckets: durationBuckets,
			},
		),
		hookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "farm_plugin_hook_duration_seconds",
				Help:    "Plugin hook latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"hook", "plugin"},
		),
		modules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "farm_modules",
				Help: "Number of modules in the module graph",
			},
		),
		resources: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "farm_resources",
				Help: "Number of generated resources",
			},
		),
		hmrClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "farm_hmr_clients",
				Help: "Number of connected HMR clients",
			},
		),
		hmrMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farm_hmr_messages_total",
				Help: "Total number of HMR messages broadcast",
			},
			[]string{"type"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCompile records one full compilation.
func (m *Metrics) RecordCompile(elapsed time.Duration, err error) {
	m.compilesTotal.WithLabelValues(status(err)).Inc()
	m.compileDuration.Observe(elapsed.Seconds())
}

// RecordUpdate records one incremental update.
func (m *Metrics) RecordUpdate(elapsed time.Duration, err error) {
	m.updatesTotal.WithLabelValues(status(err)).Inc()
	m.updateDuration.Observe(elapsed.Seconds())
}

// ObserveHook matches the plugin driver's observer signature.
func (m *Metrics) ObserveHook(hook, plugin string, elapsed time.Duration) {
	m.hookDuration.WithLabelValues(hook, plugin).Observe(elapsed.Seconds())
}

// SetGraphSize records the current graph and output sizes.
func (m *Metrics) SetGraphSize(modules, resources int) {
	m.modules.Set(float64(modules))
	m.resources.Set(float64(resources))
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
