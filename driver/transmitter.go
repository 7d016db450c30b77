package driver

import (
	"context"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/Alia5/ps2bridge/ps2"
)

// Bus timing of the host request-to-send, in microseconds.
const (
	rtsClockHold = 100
	rtsDataHold  = 20
)

// Transmitter bit-bangs host-to-device bytes. During a transfer the device
// generates the clock; the host only reacts to its transitions, so every
// step is a busy-wait on a line level.
//
// Callers must mask the receiver's edge callback for the whole transfer.
type Transmitter struct {
	lines bus.Lines
	// limit bounds each wait in polled microseconds; 0 waits forever.
	limit int
}

// NewTransmitter returns a transmitter on lines. A non-zero limit bounds
// each handshake wait and makes it fail with FaultTimedOut.
func NewTransmitter(lines bus.Lines, limit int) *Transmitter {
	return &Transmitter{lines: lines, limit: limit}
}

// waitFor spins until l reads high (or low). It polls once per microsecond
// so the device's clock can be followed within a fraction of its period.
func (t *Transmitter) waitFor(ctx context.Context, l bus.Line, high bool) error {
	done := ctx.Done()
	for spent := 0; t.lines.Read(l) != high; spent++ {
		if t.limit > 0 && spent >= t.limit {
			return ps2.FaultTimedOut
		}
		if done != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
		t.lines.DelayMicroseconds(1)
	}
	return nil
}

// RequestToSend inhibits the device and places the start bit: Clock low for
// at least 100 µs, Data low, then Clock released.
func (t *Transmitter) RequestToSend() {
	t.lines.DriveLow(bus.Clock)
	t.lines.DelayMicroseconds(rtsClockHold)
	t.lines.DriveLow(bus.Data)
	t.lines.DelayMicroseconds(rtsDataHold)
	t.lines.Release(bus.Clock)
}

// clockOut puts one bit on Data inside a device clock pulse.
func (t *Transmitter) clockOut(ctx context.Context, high bool) error {
	if err := t.waitFor(ctx, bus.Clock, false); err != nil {
		return err
	}
	bus.Set(t.lines, bus.Data, high)
	return t.waitFor(ctx, bus.Clock, true)
}

// WriteByte sends b after RequestToSend: 8 data bits LSB first, the odd
// parity bit and the stop bit, then waits for the device's ack handshake.
func (t *Transmitter) WriteByte(ctx context.Context, b byte) error {
	ones := 0
	for mask := byte(0x01); mask != 0; mask <<= 1 {
		bit := b&mask != 0
		if bit {
			ones++
		}
		if err := t.clockOut(ctx, bit); err != nil {
			return t.abort(err)
		}
	}
	if err := t.clockOut(ctx, ones%2 == 0); err != nil {
		return t.abort(err)
	}
	if err := t.clockOut(ctx, true); err != nil {
		return t.abort(err)
	}
	t.lines.Release(bus.Data)

	// Ack: Data low, Clock low, Clock high, Data high.
	for _, step := range [...]struct {
		line bus.Line
		high bool
	}{
		{bus.Data, false},
		{bus.Clock, false},
		{bus.Clock, true},
		{bus.Data, true},
	} {
		if err := t.waitFor(ctx, step.line, step.high); err != nil {
			return err
		}
	}
	return nil
}

// abort releases the lines after a failed wait so the bus returns to idle.
func (t *Transmitter) abort(err error) error {
	t.lines.Release(bus.Data)
	t.lines.Release(bus.Clock)
	return err
}

// Send transmits cmd and, unless arg is ps2.NoArg, the argument byte.
func (t *Transmitter) Send(ctx context.Context, cmd, arg byte) error {
	t.RequestToSend()
	if err := t.WriteByte(ctx, cmd); err != nil {
		return err
	}
	if arg == ps2.NoArg {
		return nil
	}
	t.RequestToSend()
	return t.WriteByte(ctx, arg)
}
