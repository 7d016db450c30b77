package keymap

import "github.com/Alia5/ps2bridge/ps2"

// Lock names a latched lock key.
type Lock uint8

const (
	LockNone Lock = iota
	LockCaps
	LockNum
)

func (l Lock) String() string {
	switch l {
	case LockCaps:
		return "caps"
	case LockNum:
		return "num"
	default:
		return "none"
	}
}

func lockFor(code byte) Lock {
	switch code {
	case ps2.ScanCapsLock:
		return LockCaps
	case ps2.ScanNumLock:
		return LockNum
	}
	return LockNone
}

func isShift(code byte) bool {
	return code == ps2.ScanLeftShift || code == ps2.ScanRightShift
}

// Sink receives translated output bytes.
type Sink interface {
	Push(b byte)
}

// State is the modifier state carried between raw scan codes.
type State struct {
	Shift    bool
	CapsLock bool
	NumLock  bool
	// Discard counts raw bytes still to be swallowed from a break sequence.
	Discard uint8
	// Pending is a lock release waiting for the foreground lock handler.
	Pending Lock
	// Previous is the last raw byte fed.
	Previous byte
}

// Translator classifies raw scan codes one byte at a time and pushes the
// resulting characters to a Sink. It is owned by the foreground context.
type Translator struct {
	st  State
	out Sink
}

// NewTranslator returns a Translator writing into out with all modifiers clear.
func NewTranslator(out Sink) *Translator {
	return &Translator{out: out}
}

// State returns a copy of the current modifier state.
func (t *Translator) State() State { return t.st }

// Reset clears every modifier, latch and pending sequence.
func (t *Translator) Reset() { t.st = State{} }

// Feed processes one raw scan code. It reports whether a byte was pushed to
// the sink.
func (t *Translator) Feed(code byte) bool {
	t.st.Previous = code

	if ps2.IsStatus(code) {
		t.out.Push(code)
		return true
	}

	if code == ps2.ScanBreak {
		// The break prefix and the released key's code are both swallowed;
		// the prefix itself is consumed here.
		t.st.Discard = 1
		return false
	}

	if t.st.Discard > 0 {
		t.st.Discard--
		switch {
		case isShift(code):
			t.st.Shift = false
		case lockFor(code) != LockNone:
			// Lock state latches on release, not on press.
			t.st.Pending = lockFor(code)
		}
		return false
	}

	if lockFor(code) != LockNone {
		return false
	}
	if isShift(code) {
		t.st.Shift = true
		return false
	}

	c := Lookup(code, t.st.Shift)
	if t.st.CapsLock && c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	t.out.Push(c)
	return true
}

// PendingLock returns the lock toggle waiting for the lock handler.
func (t *Translator) PendingLock() Lock { return t.st.Pending }

// ToggleLock flips the latch of l, clears the pending toggle and returns the
// LED argument byte reflecting both latches.
func (t *Translator) ToggleLock(l Lock) byte {
	switch l {
	case LockCaps:
		t.st.CapsLock = !t.st.CapsLock
	case LockNum:
		t.st.NumLock = !t.st.NumLock
	}
	t.st.Pending = LockNone
	return t.LEDs()
}

// LEDs returns the SetLEDs argument for the current lock latches.
func (t *Translator) LEDs() byte {
	var leds byte
	if t.st.NumLock {
		leds |= ps2.LEDNumLock
	}
	if t.st.CapsLock {
		leds |= ps2.LEDCapsLock
	}
	return leds
}
