package pms

import "time"

const (
	// BaudRate is the fixed UART speed of the sensor (8N1).
	BaudRate = 9600

	// SingleResponseTime is how long a single frame may take to arrive.
	SingleResponseTime = time.Second
	// TotalResponseTime bounds the time until the sensor answers after power up.
	TotalResponseTime = 10 * time.Second
	// SteadyResponseTime is how long readings need to settle after WakeUp,
	// because the fan has to spin up.
	SteadyResponseTime = 30 * time.Second

	// DefaultTimeout is the ReadUntil timeout used by callers that have no better value.
	DefaultTimeout = SingleResponseTime
)

// Control commands. The checksum (last two bytes) is fixed because the
// command bytes never change.
var (
	cmdSleep       = [7]byte{0x42, 0x4D, 0xE4, 0x00, 0x00, 0x01, 0x73}
	cmdWakeUp      = [7]byte{0x42, 0x4D, 0xE4, 0x00, 0x01, 0x01, 0x74}
	cmdActiveMode  = [7]byte{0x42, 0x4D, 0xE1, 0x00, 0x01, 0x01, 0x71}
	cmdPassiveMode = [7]byte{0x42, 0x4D, 0xE1, 0x00, 0x00, 0x01, 0x70}
	cmdRequestRead = [7]byte{0x42, 0x4D, 0xE2, 0x00, 0x00, 0x01, 0x71}
)

const (
	commandSize = 7

	cmdCodeRead  = 0xE2
	cmdCodeMode  = 0xE1
	cmdCodeSleep = 0xE4
)

// parseCommand splits a 7-byte command into its code and data word.
// It reports false when the sync bytes or checksum do not match.
func parseCommand(c []byte) (code byte, data uint16, ok bool) {
	if len(c) != commandSize || c[0] != SyncByte || c[1] != SyncByte2 {
		return 0, 0, false
	}
	var sum uint16
	for _, b := range c[:5] {
		sum += uint16(b)
	}
	if sum != uint16(c[5])<<8|uint16(c[6]) {
		return 0, 0, false
	}
	return c[2], uint16(c[3])<<8 | uint16(c[4]), true
}
