package bus

import "time"

// SpinDelay busy-waits until now reports n microseconds have passed. A
// scheduler sleep can overshoot a PS/2 half clock on small targets, so
// hardware backends spin instead.
func SpinDelay(n int, now func() time.Time) {
	if n <= 0 {
		return
	}
	deadline := now().Add(time.Duration(n) * time.Microsecond)
	for now().Before(deadline) {
	}
}
