package bus_test

import (
	"testing"
	"time"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/stretchr/testify/assert"
)

// stepClock advances by step on every reading.
type stepClock struct {
	t     time.Time
	step  time.Duration
	reads int
}

func (c *stepClock) now() time.Time {
	c.reads++
	c.t = c.t.Add(c.step)
	return c.t
}

func TestSpinDelay(t *testing.T) {
	type testCase struct {
		name      string
		n         int
		step      time.Duration
		wantReads int
	}
	cases := []testCase{
		{name: "zero returns at once", n: 0, step: time.Microsecond, wantReads: 0},
		{name: "negative returns at once", n: -3, step: time.Microsecond, wantReads: 0},
		{name: "one microsecond per read", n: 40, step: time.Microsecond, wantReads: 41},
		{name: "coarse clock", n: 40, step: 10 * time.Microsecond, wantReads: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &stepClock{t: time.Unix(0, 0), step: tc.step}
			bus.SpinDelay(tc.n, c.now)
			assert.Equal(t, tc.wantReads, c.reads)
		})
	}
}

func TestSpinDelayWallClock(t *testing.T) {
	start := time.Now()
	bus.SpinDelay(200, time.Now)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Microsecond)
}
