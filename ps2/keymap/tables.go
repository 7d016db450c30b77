// Package keymap translates PS/2 scan code set 2 into ASCII bytes and tracks
// the modifier state (shift, caps lock, num lock, pending break sequences)
// across successive raw codes.
package keymap

// Control characters placed in the tables.
const (
	Backspace = 0x08
	Tab       = 0x09
	Enter     = 0x0D
	CapsChar  = 0x11 // DC1
	Escape    = 0x1B
	LShift    = 0x12
	RShift    = 0x59
)

// Keys with no character are 0.
const (
	lctrl   = 0
	numLock = 0
	f1      = 0
	f2      = 0
	f3      = 0
	f4      = 0
	f5      = 0
	f6      = 0
	f7      = 0
	f8      = 0
	f9      = 0
	f10     = 0
	f11     = 0
	f12     = 0
)

// unshifted maps the low 7 bits of a scan code to its unshifted character.
var unshifted = [128]byte{
	0, f9, 0, f5, f1, f3, f2, f12,
	0, f10, f8, f6, f4, Tab, '`', 0,
	0, 0, LShift, 0, lctrl, 'q', '1', 0,
	0, 0, 'z', 's', 'a', 'w', '2', 0,
	0, 'c', 'x', 'd', 'e', '4', '3', 0,
	0, ' ', 'v', 'f', 't', 'r', '5', 0,
	0, 'n', 'b', 'h', 'g', 'y', '6', 0,
	0, 0, 'm', 'j', 'u', '7', '8', 0,
	0, ',', 'k', 'i', 'o', '0', '9', 0,
	0, '.', '/', 'l', ';', 'p', '-', 0,
	0, 0, '\'', 0, '[', '=', 0, 0,
	CapsChar, RShift, Enter, ']', 0, '\\', 0, 0,
	0, 0, 0, 0, 0, 0, Backspace, 0,
	0, '1', 0, '4', '7', 0, 0, 0,
	0, '.', '2', '5', '6', '8', Escape, numLock,
	f11, '+', '3', '-', '*', '9', 0, 0,
}

// shifted maps the low 7 bits of a scan code to its character with Shift held.
var shifted = [128]byte{
	0, f9, 0, f5, f1, f3, f2, f12,
	0, f10, f8, f6, f4, Tab, '~', 0,
	0, 0, LShift, 0, lctrl, 'Q', '!', 0,
	0, 0, 'Z', 'S', 'A', 'W', '@', 0,
	0, 'C', 'X', 'D', 'E', '$', '#', 0,
	0, ' ', 'V', 'F', 'T', 'R', '%', 0,
	0, 'N', 'B', 'H', 'G', 'Y', '^', 0,
	0, 0, 'M', 'J', 'U', '&', '*', 0,
	0, '<', 'K', 'I', 'O', ')', '(', 0,
	0, '>', '?', 'L', ':', 'P', '_', 0,
	0, 0, '"', 0, '{', '+', 0, 0,
	CapsChar, RShift, Enter, '}', 0, '|', 0, 0,
	0, 0, 0, 0, 0, 0, Backspace, 0,
	0, '1', 0, '4', '7', 0, 0, 0,
	0, '.', '2', '5', '6', '8', Escape, numLock,
	f11, '+', '3', '-', '*', '9', 0, 0,
}

// Lookup returns the table entry for code. Only the low 7 bits are used.
func Lookup(code byte, shift bool) byte {
	if shift {
		return shifted[code%128]
	}
	return unshifted[code%128]
}
