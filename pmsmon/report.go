package main

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/exporter"
	"github.com/itohio/gopms/pkg/monitor"
	"github.com/itohio/gopms/pkg/sample"
)

// reporter publishes every update to the exporter and logs at most once per
// interval.
type reporter struct {
	metrics  *exporter.Exporter
	interval time.Duration

	mu      sync.Mutex
	lastLog time.Time
	now     func() time.Time
}

func newReporter(metrics *exporter.Exporter, interval time.Duration) *reporter {
	return &reporter{
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
	}
}

func (r *reporter) update(samples []sample.Sample, stats monitor.Stats) {
	if len(samples) == 0 {
		return
	}
	latest := samples[len(samples)-1]
	r.metrics.Observe(latest)

	if !r.shouldLog() {
		return
	}
	log.WithFields(log.Fields{
		"pm1":       latest.PM1Std,
		"pm25":      latest.PM25Std,
		"pm10":      latest.PM10Std,
		"aqi":       latest.AQI,
		"category":  latest.Category.String(),
		"window":    stats.Count,
		"max_aqi":   stats.MaxAQI,
		"mean_pm25": stats.MeanPM25,
	}).Info("Air quality")
}

func (r *reporter) shouldLog() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.lastLog.IsZero() && now.Sub(r.lastLog) < r.interval {
		return false
	}
	r.lastLog = now
	return true
}
