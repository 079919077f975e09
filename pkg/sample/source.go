package sample

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/config"
	"github.com/itohio/gopms/pkg/pms"
)

// Source turns a Driver into a stream of Readings. It drives the non-blocking
// Read in its own loop so that it can be cancelled, instead of calling the
// spinning ReadUntil.
//
// In continuous mode every decoded frame is emitted; in passive mode a frame
// is requested every Period. In duty-cycled mode (SleepBetween) the sensor is
// switched to passive mode, then every Period it is woken, warmed up, read
// once and put back to sleep.
type Source struct {
	drv *pms.Driver
	cfg config.SensorConfig

	period  time.Duration
	bufSize int
}

// NewSource creates a Source. The driver must not be used by anyone else while
// the Source runs.
func NewSource(drv *pms.Driver, sensor config.SensorConfig, report config.ReportConfig, bufSize int) *Source {
	if bufSize <= 0 {
		bufSize = 100
	}
	if sensor.PollInterval <= 0 {
		sensor.PollInterval = 20 * time.Millisecond
	}
	if sensor.ReadTimeout <= 0 {
		sensor.ReadTimeout = pms.DefaultTimeout
	}
	return &Source{
		drv:     drv,
		cfg:     sensor,
		period:  report.Period,
		bufSize: bufSize,
	}
}

// Run starts polling and returns the readings channel, which is closed when
// ctx is done.
func (s *Source) Run(ctx context.Context) <-chan pms.Reading {
	out := make(chan pms.Reading, s.bufSize)

	go func() {
		defer close(out)
		if s.cfg.SleepBetween {
			s.dutyCycle(ctx, out)
		} else {
			s.continuous(ctx, out)
		}
	}()

	return out
}

func (s *Source) continuous(ctx context.Context, out chan<- pms.Reading) {
	passive := s.drv.Mode() == pms.ModePassive
	var requested time.Time
	if passive {
		s.request()
		requested = time.Now()
	}

	var m pms.Measurement
	for {
		if s.drv.Read(&m) {
			if !s.emit(ctx, out, m) {
				return
			}
			if passive {
				if !wait(ctx, s.period) {
					return
				}
				s.request()
				requested = time.Now()
			}
			continue
		}
		// A lost answer would stall passive mode forever.
		if passive && time.Since(requested) > s.cfg.ReadTimeout {
			s.request()
			requested = time.Now()
		}
		if !wait(ctx, s.cfg.PollInterval) {
			return
		}
	}
}

func (s *Source) dutyCycle(ctx context.Context, out chan<- pms.Reading) {
	// In active mode the sensor would queue frames while warming up.
	if s.drv.Mode() != pms.ModePassive {
		if err := s.drv.PassiveMode(); err != nil {
			log.Errorf("failed to switch sensor to passive mode: %v", err)
		}
	}

	for {
		next := time.Now().Add(s.period)

		if m, ok := s.cycleOnce(ctx); ok {
			if !s.emit(ctx, out, m) {
				return
			}
		}

		if !wait(ctx, time.Until(next)) {
			return
		}
	}
}

// cycleOnce wakes the sensor, waits for the fan to settle, reads one frame and
// puts the sensor back to sleep.
func (s *Source) cycleOnce(ctx context.Context) (pms.Measurement, bool) {
	var m pms.Measurement

	if err := s.drv.WakeUp(); err != nil {
		log.Errorf("failed to wake sensor: %v", err)
		return m, false
	}
	defer func() {
		if err := s.drv.Sleep(); err != nil {
			log.Errorf("failed to put sensor to sleep: %v", err)
		}
	}()

	if !wait(ctx, s.cfg.Warmup) {
		return m, false
	}

	s.request()

	deadline := time.Now().Add(s.cfg.ReadTimeout)
	for {
		if s.drv.Read(&m) {
			return m, true
		}
		if time.Now().After(deadline) {
			log.Warnf("no frame from sensor within %v", s.cfg.ReadTimeout)
			return m, false
		}
		if !wait(ctx, s.cfg.PollInterval) {
			return m, false
		}
	}
}

func (s *Source) request() {
	if err := s.drv.RequestRead(); err != nil {
		log.Errorf("failed to request reading: %v", err)
	}
}

func (s *Source) emit(ctx context.Context, out chan<- pms.Reading, m pms.Measurement) bool {
	r := pms.Reading{Timestamp: time.Now(), Measurement: m}
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// wait sleeps for d or until ctx is done. It reports whether ctx is still live.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
