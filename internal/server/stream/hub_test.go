package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(s *Subscription) []byte {
	var out []byte
	for {
		select {
		case b := <-s.C:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(8)
	b := h.Subscribe(8)
	assert.Equal(t, 2, h.Subscribers())

	for _, c := range []byte("hey") {
		h.Publish(c)
	}
	assert.Equal(t, "hey", string(drain(a)))
	assert.Equal(t, "hey", string(drain(b)))
	assert.Zero(t, h.Dropped())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	type testCase struct {
		name        string
		backlog     int
		published   string
		want        string
		wantDropped uint64
	}

	cases := []testCase{
		{name: "within backlog", backlog: 4, published: "abcd", want: "abcd"},
		{name: "overflow keeps oldest", backlog: 2, published: "abcd", want: "ab", wantDropped: 2},
		{name: "zero backlog clamps to one", backlog: 0, published: "ab", want: "a", wantDropped: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHub()
			s := h.Subscribe(tc.backlog)
			for _, c := range []byte(tc.published) {
				h.Publish(c)
			}
			assert.Equal(t, tc.want, string(drain(s)))
			assert.Equal(t, tc.wantDropped, h.Dropped())
		})
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(4)
	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-s.C
	assert.False(t, ok)

	h.Publish('x')
	assert.Zero(t, h.Dropped())
}

func BenchmarkHubPublish(b *testing.B) {
	h := NewHub()
	s := h.Subscribe(1 << 16)
	for b.Loop() {
		h.Publish('a')
		<-s.C
	}
}
