package ps2kbd

import (
	"io"

	"github.com/Alia5/ps2bridge/ps2"
)

// LEDState is the keyboard LED state last set by the host.
type LEDState struct {
	ScrollLock bool
	NumLock    bool
	CapsLock   bool
}

// UnmarshalBinary decodes a SetLEDs argument byte.
func (st *LEDState) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return io.ErrUnexpectedEOF
	}
	b := data[0]
	st.ScrollLock = b&ps2.LEDScrollLock != 0
	st.NumLock = b&ps2.LEDNumLock != 0
	st.CapsLock = b&ps2.LEDCapsLock != 0
	return nil
}

// MarshalBinary encodes st as a SetLEDs argument byte.
func (st LEDState) MarshalBinary() ([]byte, error) {
	return []byte{st.Byte()}, nil
}

// Byte returns the SetLEDs argument for st.
func (st LEDState) Byte() byte {
	var b byte
	if st.ScrollLock {
		b |= ps2.LEDScrollLock
	}
	if st.NumLock {
		b |= ps2.LEDNumLock
	}
	if st.CapsLock {
		b |= ps2.LEDCapsLock
	}
	return b
}

// Corruption deliberately breaks a transmitted frame.
type Corruption uint8

const (
	Intact Corruption = iota
	FlipParity
	BadStop
)

// frameBits lays out one device-to-host frame: start, 8 data bits LSB
// first, odd parity and stop.
func frameBits(b byte, c Corruption) [11]bool {
	var f [11]bool
	for i := 0; i < 8; i++ {
		f[1+i] = b&(1<<i) != 0
	}
	f[9] = ps2.OddParity(b)
	if c == FlipParity {
		f[9] = !f[9]
	}
	f[10] = c != BadStop
	return f
}
