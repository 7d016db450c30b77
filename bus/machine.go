//go:build tinygo

package bus

import (
	"machine"
	"runtime/interrupt"
	"sync/atomic"
	"time"
)

// Pins drives the bus from two GPIO pins. Open drain is emulated by
// switching a pin between a low output and a pulled-up input.
type Pins struct {
	clock   machine.Pin
	data    machine.Pin
	handler func()
	enabled atomic.Bool
	pending atomic.Bool
}

// NewPins releases both lines and attaches the falling-edge interrupt to
// clock. The callback starts masked.
func NewPins(clock, data machine.Pin) (*Pins, error) {
	p := &Pins{clock: clock, data: data}
	p.Release(Clock)
	p.Release(Data)
	if err := clock.SetInterrupt(machine.PinFalling, p.onEdge); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pins) pin(l Line) machine.Pin {
	if l == Clock {
		return p.clock
	}
	return p.data
}

func (p *Pins) Read(l Line) bool { return p.pin(l).Get() }

func (p *Pins) DriveLow(l Line) {
	pin := p.pin(l)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
}

func (p *Pins) Release(l Line) {
	p.pin(l).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (p *Pins) DelayMicroseconds(n int) { SpinDelay(n, time.Now) }

func (p *Pins) onEdge(machine.Pin) {
	if !p.enabled.Load() || p.handler == nil {
		p.pending.Store(true)
		return
	}
	p.handler()
}

func (p *Pins) SetHandler(h func()) { p.handler = h }

func (p *Pins) Enable() {
	state := interrupt.Disable()
	p.enabled.Store(true)
	fire := p.pending.Swap(false)
	if fire && p.handler != nil {
		p.handler()
	}
	interrupt.Restore(state)
}

func (p *Pins) Disable() { p.enabled.Store(false) }

func (p *Pins) ClearPending() { p.pending.Store(false) }
