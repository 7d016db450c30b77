package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	type testCase struct {
		name     string
		in       byte
		want     byte
		wantQuit bool
	}

	cases := []testCase{
		{name: "letter", in: 'a', want: 'a'},
		{name: "enter", in: '\r', want: '\n'},
		{name: "delete is backspace", in: 0x7F, want: '\b'},
		{name: "tab", in: '\t', want: '\t'},
		{name: "ctrl-c quits", in: 0x03, wantQuit: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, quit := Translate(tc.in)
			assert.Equal(t, tc.wantQuit, quit)
			if !tc.wantQuit {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDeliverStopsOnCtrlC(t *testing.T) {
	k := New(-1)
	assert.True(t, k.deliver('x'))
	assert.Equal(t, byte('x'), <-k.Keys())
	assert.False(t, k.deliver(0x03))
}

func TestDeliverAfterStopWithFullChannel(t *testing.T) {
	k := New(-1)
	for i := 0; i < cap(k.keys); i++ {
		assert.True(t, k.deliver('a'))
	}
	k.Stop()
	assert.False(t, k.deliver('b'))
}

func TestStartRejectsNonTerminal(t *testing.T) {
	k := New(-1)
	assert.ErrorIs(t, k.Start(), ErrNotTerminal)
	k.Stop()
}
