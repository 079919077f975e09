// Package exporter publishes sensor samples as Prometheus metrics.
package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/gopms/pkg/sample"
)

const namespace = "pms"

// Exporter holds the gauges for the most recent sample. It uses its own
// registry so that several exporters can coexist in one process.
type Exporter struct {
	registry *prometheus.Registry

	mass      *prometheus.GaugeVec
	particles *prometheus.GaugeVec
	aqi       prometheus.Gauge
	category  prometheus.Gauge
	timestamp prometheus.Gauge
	readings  prometheus.Counter
}

func newGaugeVec(name string, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGauge(name string, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// New creates an Exporter and registers its collectors together with the Go
// build info collector.
func New() *Exporter {
	e := &Exporter{
		registry:  prometheus.NewRegistry(),
		mass:      newGaugeVec("mass_concentration_ugm3", "Particulate mass concentration (units: µg/m³)", "size", "calibration"),
		particles: newGaugeVec("particle_count", "Particles beyond the given diameter per 0.1 L of air", "size"),
		aqi:       newGauge("aqi", "EPA Air Quality Index derived from PM2.5 standard-particle concentration"),
		category:  newGauge("aqi_category", "EPA AQI category (0 = good ... 5 = hazardous)"),
		timestamp: newGauge("last_reading_timestamp_seconds", "Unix time of the most recent reading"),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Number of readings observed",
		}),
	}

	e.registry.MustRegister(e.mass)
	e.registry.MustRegister(e.particles)
	e.registry.MustRegister(e.aqi)
	e.registry.MustRegister(e.category)
	e.registry.MustRegister(e.timestamp)
	e.registry.MustRegister(e.readings)
	e.registry.MustRegister(prometheus.NewBuildInfoCollector())

	return e
}

// Observe updates every gauge from s.
func (e *Exporter) Observe(s sample.Sample) {
	e.mass.WithLabelValues("pm1.0", "standard").Set(float64(s.PM1Std))
	e.mass.WithLabelValues("pm2.5", "standard").Set(float64(s.PM25Std))
	e.mass.WithLabelValues("pm10", "standard").Set(float64(s.PM10Std))
	e.mass.WithLabelValues("pm1.0", "environment").Set(float64(s.PM1Env))
	e.mass.WithLabelValues("pm2.5", "environment").Set(float64(s.PM25Env))
	e.mass.WithLabelValues("pm10", "environment").Set(float64(s.PM10Env))

	e.particles.WithLabelValues("0.3").Set(float64(s.Particles03))
	e.particles.WithLabelValues("0.5").Set(float64(s.Particles05))
	e.particles.WithLabelValues("1.0").Set(float64(s.Particles10))
	e.particles.WithLabelValues("2.5").Set(float64(s.Particles25))
	e.particles.WithLabelValues("5.0").Set(float64(s.Particles50))
	e.particles.WithLabelValues("10").Set(float64(s.Particles100))

	e.aqi.Set(float64(s.AQI))
	e.category.Set(float64(s.Category))
	if !s.Timestamp.IsZero() {
		e.timestamp.Set(float64(s.Timestamp.UnixNano()) / 1e9)
	}
	e.readings.Inc()
}

// Registry exposes the registry backing the exporter.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registered metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}
