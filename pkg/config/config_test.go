package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "active", cfg.Sensor.Mode)
	assert.Equal(t, 30*time.Second, cfg.Sensor.Warmup)
	assert.Equal(t, time.Second, cfg.Sensor.ReadTimeout)
	assert.False(t, cfg.Sensor.SleepBetween)
	assert.Equal(t, 300*time.Second, cfg.Report.Period)
	assert.Equal(t, 0, cfg.Report.AverageSamples)
	assert.Equal(t, ":9113", cfg.Report.ListenAddress)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Simulator.FrameInterval)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyAMA0"
  baud_rate: 9600

sensor:
  mode: passive
  warmup: 10s
  read_timeout: 2s
  poll_interval: 5ms
  sleep_between: true

report:
  period: 1m
  average_samples: 5
  window: 30m
  listen_address: "127.0.0.1:9000"

log:
  level: debug

simulator:
  frame_interval: 500ms
  base_pm25: 40
  noise_level: 1.5
  corrupt_every: 3
  garbage_every: 4
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Port)
	assert.Equal(t, "passive", cfg.Sensor.Mode)
	assert.Equal(t, 10*time.Second, cfg.Sensor.Warmup)
	assert.Equal(t, 2*time.Second, cfg.Sensor.ReadTimeout)
	assert.Equal(t, 5*time.Millisecond, cfg.Sensor.PollInterval)
	assert.True(t, cfg.Sensor.SleepBetween)
	assert.Equal(t, time.Minute, cfg.Report.Period)
	assert.Equal(t, 5, cfg.Report.AverageSamples)
	assert.Equal(t, 30*time.Minute, cfg.Report.Window)
	assert.Equal(t, "127.0.0.1:9000", cfg.Report.ListenAddress)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulator.FrameInterval)
	assert.Equal(t, float64(40), cfg.Simulator.BasePM25)
	assert.Equal(t, 1.5, cfg.Simulator.NoiseLevel)
	assert.Equal(t, 3, cfg.Simulator.CorruptEvery)
	assert.Equal(t, 4, cfg.Simulator.GarbageEvery)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyS1"
sensor:
  mode: ""
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "active", cfg.Sensor.Mode)
	assert.Equal(t, 300*time.Second, cfg.Report.Period)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyACM0"
	cfg.Report.AverageSamples = 10
	cfg.Sensor.Mode = "passive"

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", loaded.Serial.Port)
	assert.Equal(t, 10, loaded.Report.AverageSamples)
	assert.Equal(t, "passive", loaded.Sensor.Mode)
	assert.Equal(t, cfg.Sensor.Warmup, loaded.Sensor.Warmup)
}
