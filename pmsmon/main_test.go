package main

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopms/pkg/config"
	"github.com/itohio/gopms/pkg/exporter"
	"github.com/itohio/gopms/pkg/monitor"
	"github.com/itohio/gopms/pkg/pms"
	"github.com/itohio/gopms/pkg/sample"
)

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulator.FrameInterval = 5 * time.Millisecond
	cfg.Simulator.BasePM25 = 36
	cfg.Simulator.NoiseLevel = 0
	cfg.Sensor.PollInterval = time.Millisecond
	cfg.Report.Period = 20 * time.Millisecond
	return cfg
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, setupLogging("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	assert.Error(t, setupLogging("loud"))
}

func TestOpenDevice_Simulator(t *testing.T) {
	dev, err := openDevice(simConfig(), true)
	require.NoError(t, err)
	require.IsType(t, &pms.Simulator{}, dev)
	assert.NoError(t, dev.Close())
}

func TestStartChain_InvalidMode(t *testing.T) {
	cfg := simConfig()
	cfg.Sensor.Mode = "turbo"

	dev, err := openDevice(cfg, true)
	require.NoError(t, err)
	defer dev.Close()

	_, err = startChain(context.Background(), cfg, dev, monitor.New(time.Minute))
	assert.Error(t, err)
}

func TestChain_Simulator(t *testing.T) {
	tests := []struct {
		name         string
		mode         string
		sleepBetween bool
		average      int
	}{
		{"active", "active", false, 0},
		{"passive", "passive", false, 0},
		{"averaged", "active", false, 3},
		{"duty cycled", "active", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simConfig()
			cfg.Sensor.Mode = tt.mode
			cfg.Sensor.SleepBetween = tt.sleepBetween
			cfg.Sensor.Warmup = 5 * time.Millisecond
			cfg.Report.AverageSamples = tt.average

			dev, err := openDevice(cfg, true)
			require.NoError(t, err)
			sim := dev.(*pms.Simulator)

			mon := monitor.New(time.Minute)
			metrics := exporter.New()
			mon.OnUpdate(newReporter(metrics, time.Hour).update)

			chain, err := startChain(context.Background(), cfg, dev, mon)
			require.NoError(t, err)

			assert.Eventually(t, func() bool {
				return mon.Stats().Count >= 2
			}, 3*time.Second, 5*time.Millisecond)

			chain.close()

			latest, ok := mon.Latest()
			require.True(t, ok)
			assert.Equal(t, uint16(36), latest.PM25Std)
			assert.Equal(t, 102, latest.AQI)

			if tt.mode == "passive" || tt.sleepBetween {
				assert.Equal(t, pms.ModePassive, sim.Mode())
			}
			if tt.sleepBetween {
				assert.True(t, sim.Asleep())
			}
		})
	}
}

func TestChain_CloseNil(t *testing.T) {
	var c *measurementChain
	assert.NotPanics(t, c.close)
}

func TestReporter(t *testing.T) {
	metrics := exporter.New()
	r := newReporter(metrics, time.Minute)

	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	assert.True(t, r.shouldLog())
	assert.False(t, r.shouldLog())
	now = now.Add(time.Minute)
	assert.True(t, r.shouldLog())

	// an empty window is ignored
	r.update(nil, monitor.Stats{})

	s := sample.FromReading(pms.Reading{Timestamp: now, Measurement: pms.Measurement{PM25Std: 12}})
	r.update([]sample.Sample{s}, monitor.Stats{Count: 1, MaxAQI: s.AQI})

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var readings float64
	for _, mf := range families {
		if mf.GetName() == "pms_readings_total" {
			readings = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), readings)
}
