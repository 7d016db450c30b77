package keymap

import "github.com/Alia5/ps2bridge/ps2"

type keyRef struct {
	code  byte
	shift bool
}

// charToKey is the reverse of the tables, preferring the main block over the
// keypad for digits and symbols present in both.
var charToKey = buildCharToKey()

func buildCharToKey() map[byte]keyRef {
	m := make(map[byte]keyRef)
	for code := 127; code >= 0; code-- {
		if c := unshifted[code]; c >= ' ' && c < 0x7F {
			if _, dup := m[c]; !dup || code < 0x68 {
				m[c] = keyRef{code: byte(code)}
			}
		}
	}
	for code := 127; code >= 0; code-- {
		c := shifted[code]
		if c < ' ' || c >= 0x7F || unshifted[code] == c {
			continue
		}
		if _, dup := m[c]; !dup {
			m[c] = keyRef{code: byte(code), shift: true}
		}
	}
	for _, c := range []byte{Tab, Enter, Escape, Backspace} {
		for code := 0; code < 128; code++ {
			if unshifted[code] == c {
				m[c] = keyRef{code: byte(code)}
				break
			}
		}
	}
	m['\n'] = m[Enter]
	return m
}

// CharToScan returns the make code for c and whether Shift must be held.
// ok is false if c cannot be typed.
func CharToScan(c byte) (code byte, shift bool, ok bool) {
	k, ok := charToKey[c]
	return k.code, k.shift, ok
}

// Press returns the make sequence for a key.
func Press(code byte) []byte { return []byte{code} }

// Release returns the break sequence for a key.
func Release(code byte) []byte { return []byte{ps2.ScanBreak, code} }

// TypeChar returns the full press/release sequence for c, wrapping it in a
// left shift press and release when needed. Untypeable characters yield nil.
//
// Example:
//
//	TypeChar('A') // 12 1C F0 1C F0 12
func TypeChar(c byte) []byte {
	code, shift, ok := CharToScan(c)
	if !ok {
		return nil
	}
	var seq []byte
	if shift {
		seq = append(seq, Press(ps2.ScanLeftShift)...)
	}
	seq = append(seq, Press(code)...)
	seq = append(seq, Release(code)...)
	if shift {
		seq = append(seq, Release(ps2.ScanLeftShift)...)
	}
	return seq
}

// TypeString concatenates TypeChar for every byte of s.
func TypeString(s string) []byte {
	var seq []byte
	for i := 0; i < len(s); i++ {
		seq = append(seq, TypeChar(s[i])...)
	}
	return seq
}

// TapLock returns the press/release sequence of a lock key.
func TapLock(l Lock) []byte {
	code := byte(ps2.ScanCapsLock)
	if l == LockNum {
		code = ps2.ScanNumLock
	}
	return append(Press(code), Release(code)...)
}
