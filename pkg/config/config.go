package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Report    ReportConfig    `yaml:"report"`
	Log       LogConfig       `yaml:"log"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// SensorConfig controls how the sensor is driven.
type SensorConfig struct {
	Mode         string        `yaml:"mode"`          // "active" or "passive"
	Warmup       time.Duration `yaml:"warmup"`        // Wait after wake up before trusting readings
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // How long a duty cycle waits for a frame
	PollInterval time.Duration `yaml:"poll_interval"` // Pause between empty polls
	SleepBetween bool          `yaml:"sleep_between"` // Put the sensor to sleep between reports
}

// ReportConfig contains reporting parameters.
type ReportConfig struct {
	Period         time.Duration `yaml:"period"`          // Time between duty-cycled reports
	AverageSamples int           `yaml:"average_samples"` // Rolling average length (0 = disabled)
	Window         time.Duration `yaml:"window"`          // In-memory history kept by the monitor
	ListenAddress  string        `yaml:"listen_address"`  // Prometheus endpoint, empty disables
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SimulatorConfig contains simulated sensor configuration.
type SimulatorConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval"` // Time between frames in active mode
	BasePM25      float64       `yaml:"base_pm25"`      // Mean PM2.5 (µg/m³)
	NoiseLevel    float64       `yaml:"noise_level"`    // Amplitude of the PM2.5 wobble (µg/m³)
	CorruptEvery  int           `yaml:"corrupt_every"`  // Every Nth frame gets a bad checksum (0 = never)
	GarbageEvery  int           `yaml:"garbage_every"`  // Every Nth frame is preceded by line noise (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 9600,
		},
		Sensor: SensorConfig{
			Mode:         "active",
			Warmup:       30 * time.Second,
			ReadTimeout:  time.Second,
			PollInterval: 20 * time.Millisecond,
			SleepBetween: false,
		},
		Report: ReportConfig{
			Period:         300 * time.Second,
			AverageSamples: 0,
			Window:         time.Hour,
			ListenAddress:  ":9113",
		},
		Log: LogConfig{
			Level: "info",
		},
		Simulator: SimulatorConfig{
			FrameInterval: time.Second,
			BasePM25:      12,
			NoiseLevel:    4,
			CorruptEvery:  0,
			GarbageEvery:  0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// ensureDefaults fills zero values that would leave the application unusable.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensor.Mode == "" {
		c.Sensor.Mode = def.Sensor.Mode
	}
	if c.Sensor.ReadTimeout == 0 {
		c.Sensor.ReadTimeout = def.Sensor.ReadTimeout
	}
	if c.Sensor.PollInterval == 0 {
		c.Sensor.PollInterval = def.Sensor.PollInterval
	}

	if c.Report.Period == 0 {
		c.Report.Period = def.Report.Period
	}
	if c.Report.Window == 0 {
		c.Report.Window = def.Report.Window
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Simulator.FrameInterval == 0 {
		c.Simulator.FrameInterval = def.Simulator.FrameInterval
	}
}
