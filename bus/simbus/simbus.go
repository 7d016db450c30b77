// Package simbus simulates the two-wire open-drain bus so the driver can run
// against a modelled keyboard without hardware. Time only advances when the
// host delays (or a test calls Advance); every simulated microsecond ticks
// the attached device.
package simbus

import "github.com/Alia5/ps2bridge/bus"

// Device is the keyboard side of the bus.
type Device interface {
	// Tick advances the device by one microsecond.
	Tick(p *Port)
}

// Bus is the host side of the simulated bus. It implements bus.Bus.
// A Bus is not safe for concurrent use: the host, the edge handler and the
// device all run on the goroutine that advances time.
type Bus struct {
	hostLow [2]bool
	devLow  [2]bool
	clockHi bool

	handler func()
	enabled bool
	pending bool
	edges   uint64

	now    uint64
	device Device
	port   Port
}

var _ bus.Bus = (*Bus)(nil)

// New returns an idle bus with both lines released.
func New() *Bus {
	b := &Bus{clockHi: true}
	b.port.b = b
	return b
}

// Attach connects the device ticked on every simulated microsecond.
func (b *Bus) Attach(d Device) { b.device = d }

// Now returns the simulated time in microseconds.
func (b *Bus) Now() uint64 { return b.now }

// FallingEdges returns how many falling clock edges occurred so far.
func (b *Bus) FallingEdges() uint64 { return b.edges }

// Advance runs the simulation for n microseconds.
func (b *Bus) Advance(n int) {
	for i := 0; i < n; i++ {
		b.now++
		if b.device != nil {
			b.device.Tick(&b.port)
		}
	}
}

func (b *Bus) level(l bus.Line) bool {
	return !b.hostLow[l] && !b.devLow[l]
}

func (b *Bus) settle() {
	hi := b.level(bus.Clock)
	if b.clockHi && !hi {
		b.edges++
		if b.enabled && b.handler != nil {
			b.handler()
		} else {
			b.pending = true
		}
	}
	b.clockHi = hi
}

func (b *Bus) Read(l bus.Line) bool { return b.level(l) }

func (b *Bus) DriveLow(l bus.Line) {
	b.hostLow[l] = true
	b.settle()
}

func (b *Bus) Release(l bus.Line) {
	b.hostLow[l] = false
	b.settle()
}

func (b *Bus) DelayMicroseconds(n int) { b.Advance(n) }

func (b *Bus) SetHandler(h func()) { b.handler = h }

func (b *Bus) Enable() {
	b.enabled = true
	if b.pending && b.handler != nil {
		b.pending = false
		b.handler()
	}
}

func (b *Bus) Disable() { b.enabled = false }

func (b *Bus) ClearPending() { b.pending = false }

// Enabled reports whether the edge callback is unmasked.
func (b *Bus) Enabled() bool { return b.enabled }

// Pending reports whether an edge is latched.
func (b *Bus) Pending() bool { return b.pending }

// Port is the device side of the bus.
type Port struct {
	b *Bus
}

// Read returns the wire level of l.
func (p *Port) Read(l bus.Line) bool { return p.b.level(l) }

// DriveLow pulls l low from the device side.
func (p *Port) DriveLow(l bus.Line) {
	p.b.devLow[l] = true
	p.b.settle()
}

// Release stops driving l from the device side.
func (p *Port) Release(l bus.Line) {
	p.b.devLow[l] = false
	p.b.settle()
}

// Driving reports whether the device itself holds l low.
func (p *Port) Driving(l bus.Line) bool { return p.b.devLow[l] }

// Now returns the simulated time in microseconds.
func (p *Port) Now() uint64 { return p.b.now }
