package ps2_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Alia5/ps2bridge/ps2"
	"github.com/stretchr/testify/assert"
)

func TestOddParity(t *testing.T) {
	type testCase struct {
		b    byte
		want bool
	}

	cases := []testCase{
		{b: 0x00, want: true},
		{b: 0x01, want: false},
		{b: 0x1C, want: false},
		{b: 0xF0, want: true},
		{b: 0xFF, want: true},
		{b: 0xEE, want: true},
		{b: 0x7F, want: false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("0x%02X", tc.b), func(t *testing.T) {
			assert.Equal(t, tc.want, ps2.OddParity(tc.b))
		})
	}
}

func TestIsStatus(t *testing.T) {
	for _, b := range []byte{0xAA, 0xEE, 0xFA, 0xFC, 0xFD, 0xFE, 0xFF} {
		assert.True(t, ps2.IsStatus(b), "0x%02X", b)
	}
	for _, b := range []byte{0x00, 0x1C, 0x58, 0xF0, 0x12} {
		assert.False(t, ps2.IsStatus(b), "0x%02X", b)
	}
}

func TestFaultRegister(t *testing.T) {
	var r ps2.FaultRegister
	assert.Equal(t, ps2.FaultNone, r.Last())
	assert.False(t, r.Pending())

	r.Record(ps2.FaultNone)
	assert.False(t, r.Pending())

	r.Record(ps2.FaultParity)
	r.Record(ps2.FaultStopBit)
	assert.True(t, r.Pending())
	assert.Equal(t, ps2.FaultStopBit, r.Last())

	assert.Equal(t, ps2.FaultStopBit, r.Clear())
	assert.False(t, r.Pending())
	assert.Equal(t, ps2.FaultStopBit, r.Last(), "last fault survives clear")
}

func TestFaultError(t *testing.T) {
	err := fmt.Errorf("send: %w", ps2.FaultTimedOut)
	assert.True(t, errors.Is(err, ps2.FaultTimedOut))
	assert.Equal(t, "ps2: parity error", ps2.FaultParity.Error())
	assert.Equal(t, "fault(42)", ps2.Fault(42).String())
}

func TestWireConstantsAreBytes(t *testing.T) {
	type testCase struct {
		name string
		v    any
	}
	cases := []testCase{
		{name: "command", v: ps2.CmdEcho},
		{name: "argument sentinel", v: ps2.NoArg},
		{name: "led bit", v: ps2.LEDCapsLock},
		{name: "status", v: ps2.StatusBATPass},
		{name: "scan code", v: ps2.ScanBreak},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.IsType(t, byte(0), tc.v)
		})
	}
}
