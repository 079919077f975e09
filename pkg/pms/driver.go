// Package pms implements the Plantower PMS5003 serial protocol.
//
// The Driver never blocks except in ReadUntil: Read performs a single poll of the
// stream and reports whether a complete, checksummed frame was decoded. Corrupt
// data is dropped silently and the parser resynchronizes one byte at a time.
// A Driver is not safe for concurrent use.
package pms

import (
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Mode is the reporting mode of the sensor.
type Mode int

const (
	// ModeActive: the sensor pushes frames on its own. Default after power up.
	ModeActive Mode = iota
	// ModePassive: the sensor sends a frame only after RequestRead.
	ModePassive
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModePassive:
		return "passive"
	default:
		return "unknown"
	}
}

// ParseMode converts "active" or "passive" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "active", "":
		return ModeActive, nil
	case "passive":
		return ModePassive, nil
	default:
		return ModeActive, errors.Errorf("unknown sensor mode %q", s)
	}
}

// Status is the result of the most recent poll.
type Status int

const (
	StatusWaiting Status = iota
	StatusOK
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "waiting"
}

// Driver talks to a PMS5003 over a Stream.
type Driver struct {
	stream Stream
	mode   Mode
	status Status
	buf    [FrameSize]byte

	now func() time.Time
}

// New creates a driver that owns stream. The mode starts as ModeActive, which
// is what the sensor does after power up.
func New(stream Stream) *Driver {
	return &Driver{
		stream: stream,
		mode:   ModeActive,
		status: StatusWaiting,
		now:    time.Now,
	}
}

// Mode returns the mode last set through ActiveMode or PassiveMode.
func (d *Driver) Mode() Mode { return d.mode }

// Status returns the outcome of the last poll.
func (d *Driver) Status() Status { return d.status }

// Sleep puts the sensor into standby. The fan stops and no frames are sent.
func (d *Driver) Sleep() error {
	return d.send(cmdSleep, "sleep")
}

// WakeUp brings the sensor back from standby. Readings are not stable until
// SteadyResponseTime has passed.
func (d *Driver) WakeUp() error {
	return d.send(cmdWakeUp, "wake up")
}

// ActiveMode switches the sensor to pushing frames on its own.
func (d *Driver) ActiveMode() error {
	if err := d.send(cmdActiveMode, "active mode"); err != nil {
		return err
	}
	d.mode = ModeActive
	return nil
}

// PassiveMode switches the sensor to sending frames only on request.
func (d *Driver) PassiveMode() error {
	if err := d.send(cmdPassiveMode, "passive mode"); err != nil {
		return err
	}
	d.mode = ModePassive
	return nil
}

// SetMode calls ActiveMode or PassiveMode.
func (d *Driver) SetMode(m Mode) error {
	if m == ModePassive {
		return d.PassiveMode()
	}
	return d.ActiveMode()
}

// RequestRead asks for one frame. It does nothing in active mode.
func (d *Driver) RequestRead() error {
	if d.mode != ModePassive {
		return nil
	}
	return d.send(cmdRequestRead, "request read")
}

func (d *Driver) send(cmd [commandSize]byte, name string) error {
	if _, err := d.stream.Write(cmd[:]); err != nil {
		return errors.Wrapf(err, "failed to send %s command", name)
	}
	return nil
}

// Read polls the stream once. It returns true only if a complete frame with a
// valid checksum was decoded during this call, in which case m is filled.
func (d *Driver) Read(m *Measurement) bool {
	d.poll(m)
	return d.status == StatusOK
}

// ReadUntil polls until a frame is decoded or timeout has elapsed. At least one
// poll is always made. It spins instead of sleeping; callers that need to be
// cancelled should loop over Read themselves.
func (d *Driver) ReadUntil(m *Measurement, timeout time.Duration) bool {
	start := d.now()
	for {
		d.poll(m)
		if d.status == StatusOK {
			return true
		}
		if d.now().Sub(start) >= timeout {
			return false
		}
	}
}

func (d *Driver) poll(m *Measurement) {
	d.status = StatusWaiting

	if d.stream.Available() == 0 {
		return
	}

	// Drop one byte at a time until a frame start is at the head.
	b, err := d.stream.Peek()
	if err != nil {
		log.Debugf("pms: peek failed: %v", err)
		return
	}
	if b != SyncByte {
		if _, err := d.stream.ReadByte(); err != nil {
			log.Debugf("pms: failed to drop byte: %v", err)
		}
		return
	}

	// Frames are consumed whole or not at all.
	if d.stream.Available() < FrameSize {
		return
	}
	if _, err := io.ReadFull(d.stream, d.buf[:]); err != nil {
		log.Debugf("pms: failed to read frame: %v", err)
		return
	}

	var got Measurement
	if !decodeFrame(&d.buf, &got) {
		log.Debugf("pms: dropped frame with bad checksum")
		return
	}

	d.status = StatusOK
	*m = got
}
