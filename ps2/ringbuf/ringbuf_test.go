package ringbuf_test

import (
	"testing"

	"github.com/Alia5/ps2bridge/ps2"
	"github.com/Alia5/ps2bridge/ps2/ringbuf"
	"github.com/stretchr/testify/assert"
)

func TestPushPop(t *testing.T) {
	b := ringbuf.New(4, nil)
	_, ok := b.Pop()
	assert.False(t, ok)

	for _, c := range []byte("abc") {
		b.Push(c)
	}
	assert.Equal(t, 3, b.Len())

	got := make([]byte, 8)
	n := b.Drain(got)
	assert.Equal(t, "abc", string(got[:n]))
	assert.Equal(t, 0, b.Len())
}

func TestOverflow(t *testing.T) {
	type testCase struct {
		name      string
		capacity  int
		pushed    string
		want      string
		overflows uint64
	}

	cases := []testCase{
		{name: "exactly full", capacity: 4, pushed: "abcd", want: "abcd"},
		{name: "one over", capacity: 4, pushed: "abcde", want: "bcde", overflows: 1},
		{name: "wrapped twice", capacity: 3, pushed: "abcdefgh", want: "fgh", overflows: 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var faults ps2.FaultRegister
			b := ringbuf.New(tc.capacity, &faults)
			for i := 0; i < len(tc.pushed); i++ {
				b.Push(tc.pushed[i])
				assert.LessOrEqual(t, b.Len(), b.Cap())
			}

			assert.Equal(t, tc.overflows, b.Overflows())
			assert.Equal(t, tc.overflows > 0, faults.Pending())
			if tc.overflows > 0 {
				assert.Equal(t, ps2.FaultBufferOverflow, faults.Last())
			}

			got := make([]byte, tc.capacity)
			n := b.Drain(got)
			assert.Equal(t, tc.want, string(got[:n]))
		})
	}
}

func TestInterleaved(t *testing.T) {
	b := ringbuf.New(2, nil)
	var got []byte
	for _, c := range []byte("abcdef") {
		b.Push(c)
		v, ok := b.Pop()
		assert.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, "abcdef", string(got))
	assert.Zero(t, b.Overflows())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, ringbuf.DefaultCapacity, ringbuf.New(0, nil).Cap())

	b := ringbuf.New(2, nil)
	b.Push('x')
	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func BenchmarkPush(b *testing.B) {
	r := ringbuf.New(ringbuf.DefaultCapacity, nil)
	for b.Loop() {
		r.Push('a')
	}
}
