//go:build !unix

package terminal

import "os"

// Without non-blocking reads the reader goroutine stays parked in Read
// until the next key, so Stop does not wait for it.
type platform struct{}

func (k *KeySource) prepare() error { return nil }

func (k *KeySource) readLoop() {
	f := os.NewFile(uintptr(k.fd), "stdin")
	buf := make([]byte, 16)
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			if !k.deliver(b) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (k *KeySource) wait() {}

func (k *KeySource) restore() {}
