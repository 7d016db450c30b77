package driver

import (
	"sync/atomic"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/Alia5/ps2bridge/ps2"
)

// RxState is the position of the receiver inside a device-to-host frame.
type RxState uint8

const (
	AwaitingStart RxState = iota
	ReceivingBits
	AwaitingParity
	AwaitingStop
)

func (s RxState) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting start"
	case ReceivingBits:
		return "receiving bits"
	case AwaitingParity:
		return "awaiting parity"
	case AwaitingStop:
		return "awaiting stop"
	default:
		return "invalid"
	}
}

// Receiver assembles frames one falling clock edge at a time. OnFallingEdge
// runs in the edge context and must stay short and allocation free; the
// working registers belong to that context alone. The completed scan code
// is handed to the foreground through one atomic slot holding the byte and
// its ready bit, so taking it clears the flag and reads the byte at once.
type Receiver struct {
	lines  bus.Lines
	faults *ps2.FaultRegister

	state  RxState
	bits   uint8
	parity uint8
	shift  uint8

	code   atomic.Uint32 // last completed code, kept for Peek
	slot   atomic.Uint32 // slotReady | code while unread
	frames atomic.Uint64
}

const slotReady = 1 << 8

// NewReceiver returns a receiver sampling the data line of lines.
func NewReceiver(lines bus.Lines, faults *ps2.FaultRegister) *Receiver {
	r := &Receiver{lines: lines, faults: faults}
	r.toStart()
	return r
}

func (r *Receiver) toStart() {
	r.state = AwaitingStart
	r.bits = 8
	r.parity = 0
	r.shift = 0
}

func (r *Receiver) fail(f ps2.Fault) {
	if r.faults != nil {
		r.faults.Record(f)
	}
	r.toStart()
}

// OnFallingEdge advances the frame state machine by one clock edge.
func (r *Receiver) OnFallingEdge() {
	high := r.lines.Read(bus.Data)

	switch r.state {
	case AwaitingStart:
		if high {
			return
		}
		r.bits = 8
		r.parity = 0
		r.state = ReceivingBits

	case ReceivingBits:
		r.shift >>= 1
		if high {
			r.shift |= 0x80
		}
		// Only bit 7 of the accumulator is meaningful: it is the XOR of
		// every data bit as it entered the top of the shift register.
		r.parity ^= r.shift
		r.bits--
		if r.bits == 0 {
			r.state = AwaitingParity
		}

	case AwaitingParity:
		if high {
			r.parity ^= 0x80
		}
		if r.parity&0x80 == 0 {
			r.fail(ps2.FaultParity)
			return
		}
		r.state = AwaitingStop

	case AwaitingStop:
		if !high {
			r.fail(ps2.FaultStopBit)
			return
		}
		r.code.Store(uint32(r.shift))
		r.slot.Store(slotReady | uint32(r.shift))
		r.frames.Add(1)
		r.toStart()

	default:
		r.fail(ps2.FaultInvalidReceiverState)
	}
}

// State returns the current frame position. Only meaningful while the edge
// callback is masked or from the edge context itself.
func (r *Receiver) State() RxState { return r.state }

// Reset forces the state machine back to AwaitingStart. Call it only while
// the edge callback is masked.
func (r *Receiver) Reset() { r.toStart() }

// Ready reports whether a completed scan code is waiting.
func (r *Receiver) Ready() bool { return r.slot.Load()&slotReady != 0 }

// Peek returns the last completed scan code without clearing ready.
func (r *Receiver) Peek() byte { return byte(r.code.Load()) }

// Take returns the completed scan code and clears the ready flag. ok is
// false if nothing was waiting.
func (r *Receiver) Take() (code byte, ok bool) {
	v := r.slot.Swap(0)
	if v&slotReady == 0 {
		return 0, false
	}
	return byte(v), true
}

// Frames returns how many frames were published since creation.
func (r *Receiver) Frames() uint64 { return r.frames.Load() }
