// Package bus defines the primitives the PS/2 driver needs from the board:
// reading and driving the two open-drain lines, a microsecond delay, and a
// maskable falling-edge callback on the clock line.
package bus

// Line selects one of the two bus signals.
type Line uint8

const (
	Clock Line = iota
	Data
)

func (l Line) String() string {
	if l == Clock {
		return "clock"
	}
	return "data"
}

// Lines is open-drain access to the bus. Reading returns the wire level,
// which is low if any party drives it low.
type Lines interface {
	// Read returns true when the line is high.
	Read(l Line) bool
	// DriveLow pulls l low.
	DriveLow(l Line)
	// Release lets l float high through the pull-up.
	Release(l Line)
	// DelayMicroseconds busy-waits for at least n microseconds.
	DelayMicroseconds(n int)
}

// EdgeSource is the falling-edge event source of the clock line.
type EdgeSource interface {
	// SetHandler registers the callback invoked on every falling edge of
	// Clock while enabled. It does not change the enabled state.
	SetHandler(h func())
	// Enable unmasks the callback. A latched edge fires immediately.
	Enable()
	// Disable masks the callback; edges still latch the pending flag.
	Disable()
	// ClearPending drops a latched edge.
	ClearPending()
}

// Bus combines line access and the edge source.
type Bus interface {
	Lines
	EdgeSource
}

// Set drives l low when high is false and releases it otherwise.
func Set(b Lines, l Line, high bool) {
	if high {
		b.Release(l)
	} else {
		b.DriveLow(l)
	}
}
