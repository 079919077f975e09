package pms

import "time"

const (
	// FrameSize is the length of a report frame sent by the sensor.
	FrameSize = 32
	// SyncByte starts every frame and every command.
	SyncByte = 0x42
	// SyncByte2 is the second start byte.
	SyncByte2 = 0x4D

	frameWords   = 15 // big-endian words in bytes 2..31
	checksumSpan = 30 // bytes covered by the checksum
	frameLength  = 2*frameWords - 2
)

// Measurement is the payload of one validated report frame.
type Measurement struct {
	// PM1.0 concentration, µg/m³ (CF=1, standard particle)
	PM1Std uint16
	// PM2.5 concentration, µg/m³ (CF=1, standard particle)
	PM25Std uint16
	// PM10 concentration, µg/m³ (CF=1, standard particle)
	PM10Std uint16
	// PM1.0 concentration, µg/m³ (atmospheric environment)
	PM1Env uint16
	// PM2.5 concentration, µg/m³ (atmospheric environment)
	PM25Env uint16
	// PM10 concentration, µg/m³ (atmospheric environment)
	PM10Env uint16
	// Number of particles beyond 0.3 µm in 0.1 L of air
	Particles03 uint16
	// Number of particles beyond 0.5 µm in 0.1 L of air
	Particles05 uint16
	// Number of particles beyond 1.0 µm in 0.1 L of air
	Particles10 uint16
	// Number of particles beyond 2.5 µm in 0.1 L of air
	Particles25 uint16
	// Number of particles beyond 5.0 µm in 0.1 L of air
	Particles50 uint16
	// Number of particles beyond 10 µm in 0.1 L of air
	Particles100 uint16
}

// Reading is a Measurement stamped with the time it was decoded.
type Reading struct {
	Timestamp time.Time
	Measurement
}

// Fields returns pointers to the measurement fields in wire order.
func (m *Measurement) Fields() [12]*uint16 {
	return [12]*uint16{
		&m.PM1Std, &m.PM25Std, &m.PM10Std,
		&m.PM1Env, &m.PM25Env, &m.PM10Env,
		&m.Particles03, &m.Particles05, &m.Particles10,
		&m.Particles25, &m.Particles50, &m.Particles100,
	}
}

// checksum is the sensor's 16-bit wrapping byte sum over the first 30 bytes.
func checksum(frame *[FrameSize]byte) uint16 {
	var sum uint16
	for _, b := range frame[:checksumSpan] {
		sum += uint16(b)
	}
	return sum
}

// words decodes bytes 2..31 as big-endian words independent of host byte order.
func words(frame *[FrameSize]byte) [frameWords]uint16 {
	var w [frameWords]uint16
	for i := 0; i < frameWords; i++ {
		w[i] = uint16(frame[2+2*i])<<8 | uint16(frame[2+2*i+1])
	}
	return w
}

// decodeFrame validates frame and fills m. m is untouched when the checksum
// does not match.
func decodeFrame(frame *[FrameSize]byte, m *Measurement) bool {
	sum := checksum(frame)
	w := words(frame)
	if sum != w[frameWords-1] {
		return false
	}
	for i, f := range m.Fields() {
		*f = w[1+i]
	}
	return true
}

// DecodeFrame validates a raw frame and returns its measurement.
// The second return value is false when the sync byte or checksum is wrong.
func DecodeFrame(frame [FrameSize]byte) (Measurement, bool) {
	var m Measurement
	if frame[0] != SyncByte {
		return m, false
	}
	ok := decodeFrame(&frame, &m)
	return m, ok
}

// EncodeFrame builds the report frame the sensor would send for m.
func EncodeFrame(m Measurement) [FrameSize]byte {
	var frame [FrameSize]byte
	frame[0] = SyncByte
	frame[1] = SyncByte2
	putWord(&frame, 0, frameLength)
	for i, f := range m.Fields() {
		putWord(&frame, 1+i, *f)
	}
	// word 13 is reserved and stays zero
	putWord(&frame, frameWords-1, checksum(&frame))
	return frame
}

func putWord(frame *[FrameSize]byte, idx int, v uint16) {
	frame[2+2*idx] = byte(v >> 8)
	frame[2+2*idx+1] = byte(v)
}
