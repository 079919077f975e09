package pms

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// readChunk is how many bytes are pulled from the port per read.
	readChunk = 64
	// portReadTimeout lets the reader goroutine notice Close.
	portReadTimeout = 100 * time.Millisecond
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports. USB adapters are described
// by product name and VID:PID.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Product
		if d.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s)", d.Product, d.VID, d.PID)
		}
		result = append(result, Port{
			Name:        d.Name,
			Description: desc,
		})
	}
	return result, nil
}

// SerialStream is a Stream backed by a serial port. A goroutine moves bytes
// from the port into an internal Buffer so that Available and Peek never block.
type SerialStream struct {
	port     string
	baudRate int

	rx *Buffer

	mu     sync.RWMutex
	conn   serial.Port
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSerialStream creates a stream for the named port. baudRate 0 means BaudRate.
func NewSerialStream(port string, baudRate int) *SerialStream {
	if baudRate == 0 {
		baudRate = BaudRate
	}
	return &SerialStream{
		port:     port,
		baudRate: baudRate,
		rx:       &Buffer{},
	}
}

// Open opens the port as 8N1 and starts the reader goroutine.
func (s *SerialStream) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("already open")
	}
	// Bytes left from a previous session are not part of this one.
	s.rx.Reset()

	if err := checkPortFree(s.port); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(s.port, mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", s.port)
	}
	if err := conn.SetReadTimeout(portReadTimeout); err != nil {
		conn.Close()
		return errors.Wrapf(err, "failed to set read timeout on %s", s.port)
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	go s.pump(s.ctx, conn, s.done)

	log.WithField("port", s.port).Infof("serial port open at %d baud", s.baudRate)
	return nil
}

// Close stops the reader goroutine and closes the port.
func (s *SerialStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.cancel()
	err := s.conn.Close()
	<-s.done
	s.conn = nil
	if err != nil {
		return errors.Wrapf(err, "failed to close serial port %s", s.port)
	}
	return nil
}

// IsOpen reports whether the port is open.
func (s *SerialStream) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Available returns the number of bytes received and not yet read.
func (s *SerialStream) Available() int { return s.rx.Available() }

// Peek returns the next received byte without consuming it.
func (s *SerialStream) Peek() (byte, error) { return s.rx.Peek() }

// ReadByte consumes one received byte.
func (s *SerialStream) ReadByte() (byte, error) { return s.rx.ReadByte() }

// Read consumes received bytes without blocking.
func (s *SerialStream) Read(p []byte) (int, error) { return s.rx.Read(p) }

// Write sends p to the port.
func (s *SerialStream) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return 0, errors.New("not open")
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, errors.Wrapf(err, "failed to write to %s", s.port)
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// pump copies bytes from the port into the receive buffer until ctx is done.
func (s *SerialStream) pump(ctx context.Context, conn serial.Port, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in serial reader: %v", r)
		}
	}()

	chunk := make([]byte, readChunk)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(chunk)
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				log.WithField("port", s.port).Errorf("error reading from serial port: %v", err)
			}
			return
		}
		if n > 0 {
			s.rx.Feed(chunk[:n])
		}
	}
}
