// Package ps2 holds the wire contract shared by the host driver and the
// simulated keyboard: command bytes, LED argument bits, device status bytes
// and the scan codes the driver treats specially.
package ps2

// Host to keyboard commands.
const (
	CmdSetLEDs           byte = 0xED // followed by one LED argument byte
	CmdEcho              byte = 0xEE // keyboard answers with StatusEchoReply
	CmdSelectScanCodeSet byte = 0xF0
	CmdReadDeviceID      byte = 0xF2 // keyboard answers Ack followed by a 2 byte ID
	CmdResend            byte = 0xFE // keyboard repeats the last byte it sent
	CmdReset             byte = 0xFF // keyboard answers Ack and runs BAT
)

// NoArg is the argument sentinel meaning "command has no argument byte".
const NoArg byte = 0xFF

// LED argument bits for CmdSetLEDs.
const (
	LEDScrollLock byte = 0x01
	LEDNumLock    byte = 0x02
	LEDCapsLock   byte = 0x04
)

// Keyboard to host status bytes.
const (
	StatusBATPass   byte = 0xAA
	StatusEchoReply byte = 0xEE
	StatusAck       byte = 0xFA
	StatusBATFail   byte = 0xFC
	StatusBATFail2  byte = 0xFD
	StatusResend    byte = 0xFE
	StatusError     byte = 0xFF
)

// Scan codes (set 2) the classifier treats specially.
const (
	ScanBreak      byte = 0xF0
	ScanLeftShift  byte = 0x12
	ScanRightShift byte = 0x59
	ScanCapsLock   byte = 0x58
	ScanNumLock    byte = 0x77
)

// IsStatus reports whether b is one of the fixed device status bytes that
// are passed to the output unmodified.
func IsStatus(b byte) bool {
	switch b {
	case StatusBATPass, StatusEchoReply, StatusAck,
		StatusBATFail, StatusBATFail2, StatusResend, StatusError:
		return true
	}
	return false
}

// OddParity returns the parity bit that makes the total number of 1 bits
// across b and the parity bit odd.
func OddParity(b byte) bool {
	ones := 0
	for i := 0; i < 8; i++ {
		if b&(1<<i) != 0 {
			ones++
		}
	}
	return ones%2 == 0
}
