//go:build unix

package terminal

import (
	"time"

	"golang.org/x/sys/unix"
)

type platform struct {
	nonblock bool
}

func (k *KeySource) prepare() error {
	if err := unix.SetNonblock(k.fd, true); err != nil {
		return err
	}
	k.nonblock = true
	return nil
}

func (k *KeySource) readLoop() {
	buf := make([]byte, 16)
	for {
		select {
		case <-k.stopCh:
			return
		default:
		}

		n, err := unix.Read(k.fd, buf)
		for _, b := range buf[:max(n, 0)] {
			if !k.deliver(b) {
				return
			}
		}
		if err == unix.EAGAIN || err == unix.EINTR || (err == nil && n == 0) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
	}
}

func (k *KeySource) wait() { <-k.done }

func (k *KeySource) restore() {
	if k.nonblock {
		_ = unix.SetNonblock(k.fd, false)
		k.nonblock = false
	}
}
