package ps2

import (
	"fmt"
	"sync/atomic"
)

// Fault identifies a recoverable driver fault. The zero value means no
// fault. Fault implements error so foreground operations can return it.
type Fault uint8

const (
	FaultNone Fault = iota
	FaultEchoHandshakeFailed
	FaultInvalidReceiverState
	FaultParity
	FaultStopBit
	FaultBufferOverflow
	FaultLockAckMissing
	// FaultTimedOut is only raised when a wait deadline is configured.
	FaultTimedOut
)

var faultNames = [...]string{
	FaultNone:                 "none",
	FaultEchoHandshakeFailed:  "echo handshake failed",
	FaultInvalidReceiverState: "invalid receiver state",
	FaultParity:               "parity error",
	FaultStopBit:              "stop bit error",
	FaultBufferOverflow:       "buffer overflow",
	FaultLockAckMissing:       "lock ack missing",
	FaultTimedOut:             "timed out",
}

func (f Fault) String() string {
	if int(f) < len(faultNames) {
		return faultNames[f]
	}
	return fmt.Sprintf("fault(%d)", uint8(f))
}

func (f Fault) Error() string {
	return "ps2: " + f.String()
}

// FaultRegister is the sticky "last error" register plus its error flag.
// It is written from the edge callback and from the foreground, so both
// fields are atomic.
type FaultRegister struct {
	last    atomic.Uint32
	pending atomic.Bool
}

// Record stores f as the last fault and raises the error flag.
func (r *FaultRegister) Record(f Fault) {
	if f == FaultNone {
		return
	}
	r.last.Store(uint32(f))
	r.pending.Store(true)
}

// Last returns the most recently recorded fault. It is not reset by Clear.
func (r *FaultRegister) Last() Fault {
	return Fault(r.last.Load())
}

// Pending reports whether the error flag is raised.
func (r *FaultRegister) Pending() bool {
	return r.pending.Load()
}

// Clear lowers the error flag and returns the last fault.
func (r *FaultRegister) Clear() Fault {
	r.pending.Store(false)
	return r.Last()
}
