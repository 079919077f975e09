package pms

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/config"
)

// Simulator behaves like a PMS5003 on the other end of a Stream. It emits
// frames periodically in active mode, answers read requests in passive mode
// and goes silent while asleep. It understands the same 7-byte commands the
// Driver sends.
type Simulator struct {
	cfg *config.SimulatorConfig
	rx  *Buffer

	mu      sync.Mutex
	mode    Mode
	asleep  bool
	frames  int
	start   time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSimulator creates a simulated sensor. It starts awake and in active mode.
func NewSimulator(cfg *config.SimulatorConfig) *Simulator {
	if cfg == nil {
		cfg = &config.SimulatorConfig{
			FrameInterval: time.Second,
			BasePM25:      12,
			NoiseLevel:    4,
		}
	}
	return &Simulator{
		cfg:   cfg,
		rx:    &Buffer{},
		mode:  ModeActive,
		start: time.Now(),
	}
}

// Start begins emitting frames every FrameInterval while in active mode.
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("already running")
	}
	if s.cfg.FrameInterval <= 0 {
		return errors.Errorf("invalid frame interval %v", s.cfg.FrameInterval)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.running = true
	go s.run(s.ctx, s.done)
	return nil
}

// Close stops the frame generator and waits for it to exit. No frame is
// emitted by the ticker after Close returns.
func (s *Simulator) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

// Mode returns the reporting mode the simulator is in.
func (s *Simulator) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Asleep reports whether the simulator received a sleep command.
func (s *Simulator) Asleep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asleep
}

// Frames returns how many frames have been emitted.
func (s *Simulator) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Simulator) Available() int             { return s.rx.Available() }
func (s *Simulator) Peek() (byte, error)        { return s.rx.Peek() }
func (s *Simulator) ReadByte() (byte, error)    { return s.rx.ReadByte() }
func (s *Simulator) Read(p []byte) (int, error) { return s.rx.Read(p) }

// Write interprets p as a sequence of 7-byte commands. Malformed commands are
// ignored the way the real sensor ignores them.
func (s *Simulator) Write(p []byte) (int, error) {
	for off := 0; off+commandSize <= len(p); off += commandSize {
		s.handle(p[off : off+commandSize])
	}
	return len(p), nil
}

func (s *Simulator) handle(c []byte) {
	code, data, ok := parseCommand(c)
	if !ok {
		log.Debugf("simulator: ignoring malformed command % x", c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch code {
	case cmdCodeSleep:
		s.asleep = data == 0
	case cmdCodeMode:
		if data == 0 {
			s.mode = ModePassive
		} else {
			s.mode = ModeActive
		}
	case cmdCodeRead:
		if s.mode == ModePassive && !s.asleep {
			s.emitLocked(time.Now())
		}
	default:
		log.Debugf("simulator: unknown command 0x%02x", code)
	}
}

// Emit pushes one frame regardless of mode. Useful to drive the simulator
// without the ticker.
func (s *Simulator) Emit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(time.Now())
}

func (s *Simulator) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			if ctx.Err() == nil && s.mode == ModeActive && !s.asleep {
				s.emitLocked(now)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Simulator) emitLocked(now time.Time) {
	s.frames++

	if n := s.cfg.GarbageEvery; n > 0 && s.frames%n == 0 {
		// line noise between frames
		s.rx.Feed([]byte{0x00, 0xFF, 0x13})
	}

	frame := EncodeFrame(s.measurement(now))
	if n := s.cfg.CorruptEvery; n > 0 && s.frames%n == 0 {
		frame[FrameSize-1] ^= 0xFF
	}
	s.rx.Feed(frame[:])
}

// measurement builds a plausible reading around BasePM25.
func (s *Simulator) measurement(now time.Time) Measurement {
	t := now.Sub(s.start).Seconds()
	wobble := (math.Sin(t*0.31) + math.Cos(t*0.17)) * 0.5 * s.cfg.NoiseLevel
	pm25 := clampU16(s.cfg.BasePM25 + wobble)
	pm1 := clampU16(float64(pm25) * 0.7)
	pm10 := clampU16(float64(pm25) * 1.3)

	return Measurement{
		PM1Std:       pm1,
		PM25Std:      pm25,
		PM10Std:      pm10,
		PM1Env:       pm1,
		PM25Env:      pm25,
		PM10Env:      pm10,
		Particles03:  clampU16(float64(pm25) * 150),
		Particles05:  clampU16(float64(pm25) * 45),
		Particles10:  clampU16(float64(pm25) * 8),
		Particles25:  clampU16(float64(pm25) * 1.2),
		Particles50:  clampU16(float64(pm25) * 0.3),
		Particles100: clampU16(float64(pm25) * 0.1),
	}
}

func clampU16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v + 0.5)
	}
}
