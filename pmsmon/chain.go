package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/config"
	"github.com/itohio/gopms/pkg/monitor"
	"github.com/itohio/gopms/pkg/pms"
	"github.com/itohio/gopms/pkg/sample"
)

// device is an opened sensor connection.
type device interface {
	pms.Stream
	io.Closer
}

// openDevice opens the serial port, or starts a simulated sensor.
func openDevice(cfg *config.Config, useSimulator bool) (device, error) {
	if useSimulator {
		sim := pms.NewSimulator(&cfg.Simulator)
		if err := sim.Start(); err != nil {
			return nil, errors.Wrap(err, "failed to start simulator")
		}
		log.Info("Using simulated sensor")
		return sim, nil
	}

	stream := pms.NewSerialStream(cfg.Serial.Port, cfg.Serial.BaudRate)
	if err := stream.Open(); err != nil {
		return nil, err
	}
	return stream, nil
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	dev         device
	cancel      context.CancelFunc
	monitorDone chan struct{} // Closed when the monitor goroutine exits
}

// startChain configures the sensor and runs Source -> Converter -> [Averaging] -> Monitor.
func startChain(ctx context.Context, cfg *config.Config, dev device, mon *monitor.Monitor) (*measurementChain, error) {
	mode, err := pms.ParseMode(cfg.Sensor.Mode)
	if err != nil {
		return nil, err
	}

	drv := pms.New(dev)
	if !cfg.Sensor.SleepBetween {
		// The sensor may have been left asleep by a previous run.
		if err := drv.WakeUp(); err != nil {
			return nil, err
		}
	}
	if err := drv.SetMode(mode); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"mode":          drv.Mode(),
		"sleep_between": cfg.Sensor.SleepBetween,
		"period":        cfg.Report.Period,
	}).Info("Sensor configured")

	chainCtx, cancel := context.WithCancel(ctx)
	readings := sample.NewSource(drv, cfg.Sensor, cfg.Report, 100).Run(chainCtx)

	samples := sample.NewConverter(500)(readings)
	if cfg.Report.AverageSamples > 0 {
		samples = sample.NewAveragingConverter(cfg.Report.AverageSamples, 500)(samples)
	}

	mon.ResetShutdown()
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		mon.ProcessSamples(samples)
	}()

	return &measurementChain{
		dev:         dev,
		cancel:      cancel,
		monitorDone: monitorDone,
	}, nil
}

// close stops the source, waits for the pipeline to drain and closes the device.
func (c *measurementChain) close() {
	if c == nil {
		return
	}

	c.cancel()
	<-c.monitorDone

	if err := c.dev.Close(); err != nil {
		log.Warnf("Failed to close sensor: %v", err)
	}
}
