package pms

import (
	"io"
	"sync"
)

// Stream is the byte stream the driver talks to. It is usually a UART.
type Stream interface {
	io.Reader
	io.Writer
	io.ByteReader

	// Available returns the number of bytes that can be read without blocking.
	Available() int
	// Peek returns the next byte without consuming it.
	Peek() (byte, error)
}

// Ensure implementations satisfy Stream.
var (
	_ Stream = (*Buffer)(nil)
	_ Stream = (*SerialStream)(nil)
	_ Stream = (*Simulator)(nil)
)

// Buffer is an in-memory Stream. Bytes given to Feed become readable, bytes
// written are recorded and can be fetched with Sent.
// It is safe for one producer and one consumer goroutine.
type Buffer struct {
	mu sync.Mutex
	rx []byte
	tx []byte
}

// NewBuffer creates a Buffer with rx already readable.
func NewBuffer(rx []byte) *Buffer {
	b := &Buffer{}
	b.Feed(rx)
	return b
}

// Feed appends bytes to the readable side.
func (b *Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = append(b.rx, p...)
}

// Available returns the number of unread bytes.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rx)
}

// Peek returns the next unread byte or io.EOF.
func (b *Buffer) Peek() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.rx) == 0 {
		return 0, io.EOF
	}
	return b.rx[0], nil
}

// ReadByte consumes one byte or returns io.EOF.
func (b *Buffer) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.rx) == 0 {
		return 0, io.EOF
	}
	c := b.rx[0]
	b.rx = b.rx[1:]
	return c, nil
}

// Read consumes up to len(p) bytes. It never blocks; io.EOF means nothing is buffered.
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(p) == 0 {
		return 0, nil
	}
	if len(b.rx) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.rx)
	b.rx = b.rx[n:]
	return n, nil
}

// Write records p as sent.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tx = append(b.tx, p...)
	return len(p), nil
}

// Sent returns a copy of everything written so far.
func (b *Buffer) Sent() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.tx))
	copy(out, b.tx)
	return out
}

// Reset drops all buffered and recorded bytes.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = nil
	b.tx = nil
}
