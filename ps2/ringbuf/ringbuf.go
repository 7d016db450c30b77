// Package ringbuf implements the fixed-capacity output buffer between the
// scan code translator (single producer) and the host consumer (single
// consumer). A full buffer is overwritten rather than blocked on.
package ringbuf

import "github.com/Alia5/ps2bridge/ps2"

// DefaultCapacity matches the output FIFO size of the firmware.
const DefaultCapacity = 512

// Buffer is a circular byte buffer. It is not safe for concurrent use; the
// producer and the consumer must run on the same goroutine.
type Buffer struct {
	buf       []byte
	head      int // next write
	tail      int // next read
	count     int
	overflows uint64
	faults    *ps2.FaultRegister
}

// New returns a Buffer with the given capacity. A capacity <= 0 selects
// DefaultCapacity. faults may be nil.
func New(capacity int, faults *ps2.FaultRegister) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]byte, capacity), faults: faults}
}

// Push writes b at head. When the buffer is already full the oldest unread
// byte is overwritten and a BufferOverflow fault is recorded.
func (r *Buffer) Push(b byte) {
	r.buf[r.head] = b
	r.head = (r.head + 1) % len(r.buf)
	if r.count == len(r.buf) {
		r.tail = r.head
		r.overflows++
		if r.faults != nil {
			r.faults.Record(ps2.FaultBufferOverflow)
		}
		return
	}
	r.count++
}

// Pop reads the oldest unread byte. ok is false if the buffer is empty.
func (r *Buffer) Pop() (b byte, ok bool) {
	if r.count == 0 {
		return 0, false
	}
	b = r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	return b, true
}

// Drain pops up to len(p) bytes into p and returns how many were copied.
func (r *Buffer) Drain(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := r.Pop()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// Len returns the number of unread bytes.
func (r *Buffer) Len() int { return r.count }

// Cap returns the capacity.
func (r *Buffer) Cap() int { return len(r.buf) }

// Overflows returns how many bytes were lost to overwrites.
func (r *Buffer) Overflows() uint64 { return r.overflows }

// Reset discards all unread bytes.
func (r *Buffer) Reset() {
	r.head, r.tail, r.count = 0, 0, 0
}
