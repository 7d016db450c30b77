// Package terminal reads keys from a raw-mode terminal for the interactive
// simulator.
package terminal

import (
	"errors"
	"sync"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by Start when the descriptor is not a terminal.
var ErrNotTerminal = errors.New("terminal: not a terminal")

const ctrlC = 0x03

// Translate maps a raw terminal byte to the character typed on the
// simulated keyboard. quit is true for Ctrl-C.
func Translate(b byte) (c byte, quit bool) {
	switch b {
	case ctrlC:
		return 0, true
	case '\r':
		return '\n', false
	case 0x7F:
		return '\b', false
	}
	return b, false
}

// KeySource delivers translated keys from a terminal on a channel. The
// channel closes on Ctrl-C, on a read error or after Stop.
type KeySource struct {
	fd       int
	keys     chan byte
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
	oldState *term.State
	platform
}

// New returns a key source for fd, typically os.Stdin.Fd().
func New(fd int) *KeySource {
	return &KeySource{
		fd:     fd,
		keys:   make(chan byte, 64),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Keys returns the key channel.
func (k *KeySource) Keys() <-chan byte { return k.keys }

// Start switches the terminal to raw mode and begins reading.
func (k *KeySource) Start() error {
	if !term.IsTerminal(k.fd) {
		return ErrNotTerminal
	}
	old, err := term.MakeRaw(k.fd)
	if err != nil {
		return err
	}
	k.oldState = old
	if err := k.prepare(); err != nil {
		_ = term.Restore(k.fd, old)
		k.oldState = nil
		return err
	}
	go func() {
		defer close(k.done)
		defer close(k.keys)
		k.readLoop()
	}()
	return nil
}

// deliver forwards a raw byte and reports whether reading should go on.
func (k *KeySource) deliver(b byte) bool {
	c, quit := Translate(b)
	if quit {
		return false
	}
	select {
	case k.keys <- c:
		return true
	case <-k.stopCh:
		return false
	}
}

// Stop ends reading and restores the terminal.
func (k *KeySource) Stop() {
	k.stopped.Do(func() { close(k.stopCh) })
	if k.oldState == nil {
		return
	}
	k.wait()
	k.restore()
	_ = term.Restore(k.fd, k.oldState)
	k.oldState = nil
}
