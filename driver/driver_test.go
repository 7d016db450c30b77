package driver_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Alia5/ps2bridge/bus/simbus"
	"github.com/Alia5/ps2bridge/device/ps2kbd"
	"github.com/Alia5/ps2bridge/driver"
	"github.com/Alia5/ps2bridge/ps2"
	"github.com/Alia5/ps2bridge/ps2/keymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	bus *simbus.Bus
	kb  *ps2kbd.Keyboard
	d   *driver.Driver
}

func newHarness(t *testing.T, cfg driver.Config) *harness {
	t.Helper()
	b := simbus.New()
	kb := ps2kbd.New()
	b.Attach(kb)
	return &harness{bus: b, kb: kb, d: driver.New(b, cfg, nil, nil)}
}

// pump runs the foreground until the keyboard has nothing left to send
// and returns every decoded byte.
func (h *harness) pump(t *testing.T) []byte {
	t.Helper()
	ctx := context.Background()
	var out []byte
	quiet := 0
	for i := 0; i < 200000 && quiet < 2000; i++ {
		handled, err := h.d.Poll(ctx)
		require.NoError(t, err)
		for {
			b, ok := h.d.Pop()
			if !ok {
				break
			}
			out = append(out, b)
		}
		if handled || !h.kb.Idle() {
			quiet = 0
		} else {
			quiet++
		}
		if !handled {
			h.d.Idle(1)
		}
	}
	return out
}

func TestInitEcho(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())

	require.NoError(t, h.d.Init(context.Background()))
	assert.Equal(t, []byte{ps2.CmdEcho}, h.kb.Received())
	assert.False(t, h.d.Faults().Pending())
	assert.Equal(t, driver.AwaitingStart, h.d.Receiver().State())
}

func TestEchoRetries(t *testing.T) {
	type testCase struct {
		name      string
		failures  int
		retries   int
		expectErr error
		attempts  int
	}

	cases := []testCase{
		{name: "second attempt", failures: 1, retries: 3, attempts: 2},
		{name: "last attempt", failures: 3, retries: 3, attempts: 4},
		{name: "exhausted", failures: 4, retries: 3, attempts: 4, expectErr: ps2.FaultEchoHandshakeFailed},
		{name: "no retries", failures: 1, retries: 0, attempts: 1, expectErr: ps2.FaultEchoHandshakeFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := driver.DefaultConfig()
			cfg.EchoRetries = tc.retries
			h := newHarness(t, cfg)
			h.kb.OverrideReply(ps2.CmdEcho, ps2.StatusResend, tc.failures)

			err := h.d.Init(context.Background())
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				assert.Equal(t, ps2.FaultEchoHandshakeFailed, h.d.Faults().Last())
			} else {
				assert.NoError(t, err)
				assert.False(t, h.d.Faults().Pending())
			}
			assert.Len(t, h.kb.Received(), tc.attempts)
		})
	}
}

func TestTypingDecodes(t *testing.T) {
	type testCase struct {
		name  string
		typed string
		want  string
	}

	cases := []testCase{
		{name: "lowercase", typed: "hello", want: "hello"},
		{name: "shifted", typed: "Hi!", want: "Hi!"},
		{name: "symbols", typed: "a-b=c;'\"", want: "a-b=c;'\""},
		{name: "digits and space", typed: "1 2 3", want: "1 2 3"},
		{name: "enter", typed: "ok\n", want: "ok\r"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, driver.DefaultConfig())
			require.NoError(t, h.d.Init(context.Background()))

			h.kb.Type(tc.typed)
			assert.Equal(t, tc.want, string(h.pump(t)))
			assert.False(t, h.d.Modifiers().Shift)
		})
	}
}

func TestCapsLockRoundTrip(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	var seen []ps2kbd.LEDState
	h.kb.SetLEDCallback(func(st ps2kbd.LEDState) { seen = append(seen, st) })
	require.NoError(t, h.d.Init(context.Background()))

	h.kb.Tap(ps2.ScanCapsLock)
	assert.Empty(t, h.pump(t))
	assert.True(t, h.d.Modifiers().CapsLock)
	assert.Equal(t, ps2kbd.LEDState{CapsLock: true}, h.kb.GetLEDState())
	assert.Equal(t, []byte{ps2.CmdEcho, ps2.CmdSetLEDs, 0x04}, h.kb.Received())

	h.kb.Type("ab")
	assert.Equal(t, "AB", string(h.pump(t)))

	h.kb.Tap(ps2.ScanCapsLock)
	h.kb.Type("a")
	assert.Equal(t, "a", string(h.pump(t)))
	assert.False(t, h.d.Modifiers().CapsLock)
	assert.Equal(t, []ps2kbd.LEDState{{CapsLock: true}, {}}, seen)
}

func TestNumLockSetsLED(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	require.NoError(t, h.d.Init(context.Background()))

	h.kb.Tap(ps2.ScanNumLock)
	h.pump(t)
	assert.True(t, h.d.Modifiers().NumLock)
	assert.Equal(t, ps2kbd.LEDState{NumLock: true}, h.kb.GetLEDState())
}

func TestLockAckMissing(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	require.NoError(t, h.d.Init(context.Background()))
	h.kb.OverrideReply(ps2.CmdSetLEDs, ps2.StatusResend, 1)

	h.kb.Tap(ps2.ScanCapsLock)
	h.pump(t)
	assert.Equal(t, ps2.FaultLockAckMissing, h.d.Faults().Last())
	// The local latch still toggled.
	assert.True(t, h.d.Modifiers().CapsLock)
}

func TestCorruptFrameIsDropped(t *testing.T) {
	type testCase struct {
		name       string
		corruption ps2kbd.Corruption
		want       ps2.Fault
	}

	cases := []testCase{
		{name: "parity", corruption: ps2kbd.FlipParity, want: ps2.FaultParity},
		{name: "stop", corruption: ps2kbd.BadStop, want: ps2.FaultStopBit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, driver.DefaultConfig())
			require.NoError(t, h.d.Init(context.Background()))

			h.kb.SendCorrupted(0x1C, tc.corruption)
			h.kb.Type("b")
			assert.Equal(t, "b", string(h.pump(t)))
			assert.Equal(t, tc.want, h.d.Faults().Last())
			assert.True(t, h.d.Faults().Pending())
			assert.Equal(t, tc.want, h.d.Faults().Clear())
			assert.False(t, h.d.Faults().Pending())
		})
	}
}

func TestBufferOverflow(t *testing.T) {
	cfg := driver.DefaultConfig()
	cfg.BufferSize = 4
	h := newHarness(t, cfg)
	require.NoError(t, h.d.Init(context.Background()))

	h.kb.Type("abcdef")
	ctx := context.Background()
	for i := 0; i < 100000 && !(h.kb.Idle() && !h.d.Receiver().Ready()); i++ {
		if handled, err := h.d.Poll(ctx); err != nil {
			t.Fatal(err)
		} else if !handled {
			h.d.Idle(1)
		}
	}

	st := h.d.Status()
	assert.Equal(t, 4, st.Buffered)
	assert.Equal(t, uint64(2), st.Overflows)
	assert.Equal(t, ps2.FaultBufferOverflow, st.Fault)

	var got []byte
	for {
		b, ok := h.d.Pop()
		if !ok {
			break
		}
		got = append(got, b)
	}
	assert.Equal(t, "cdef", string(got))
}

func TestReadIDAndReset(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	ctx := context.Background()
	require.NoError(t, h.d.Init(ctx))

	id, err := h.d.ReadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, ps2kbd.DeviceID, id)

	h.kb.Tap(ps2.ScanCapsLock)
	h.pump(t)
	require.True(t, h.d.Modifiers().CapsLock)

	require.NoError(t, h.d.Reset(ctx))
	assert.Equal(t, keymap.State{}, h.d.Modifiers())
	assert.Equal(t, ps2kbd.LEDState{}, h.kb.GetLEDState())
}

// settle yields bus time until the keyboard has answered and gone quiet.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 20000 && !h.kb.Idle(); i++ {
		h.d.Idle(1)
	}
	require.True(t, h.kb.Idle(), "keyboard still busy")
}

// The keyboard only records host bytes whose parity and stop bit check out,
// so Received matching what was sent covers the parity bit as well.
func TestSendEveryByte(t *testing.T) {
	type testCase struct {
		name string
		b    byte
	}
	var cases []testCase
	for v := 0; v < 256; v++ {
		cases = append(cases, testCase{name: fmt.Sprintf("0x%02X", v), b: byte(v)})
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, driver.DefaultConfig())
			h.d.Start()
			require.NoError(t, h.d.Send(context.Background(), tc.b, ps2.NoArg))
			h.settle(t)
			assert.Equal(t, []byte{tc.b}, h.kb.Received())
			assert.False(t, h.d.Faults().Pending())
		})
	}
}

func TestSendSequence(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	h.d.Start()
	ctx := context.Background()

	var sent []byte
	for v := 0; v < 256; v++ {
		if byte(v) == ps2.CmdSetLEDs {
			continue
		}
		require.NoError(t, h.d.Send(ctx, byte(v), ps2.NoArg), "0x%02X", v)
		sent = append(sent, byte(v))
		h.settle(t)
	}
	assert.Equal(t, sent, h.kb.Received())
}

func TestWaitTimeout(t *testing.T) {
	cfg := driver.DefaultConfig()
	cfg.WaitTimeout = 5 * time.Millisecond
	b := simbus.New()
	d := driver.New(b, cfg, nil, nil)

	start := b.Now()
	err := d.Init(context.Background())
	assert.ErrorIs(t, err, ps2.FaultTimedOut)
	assert.Equal(t, ps2.FaultTimedOut, d.Faults().Last())
	assert.Less(t, b.Now()-start, uint64(10000))
	assert.True(t, b.Enabled(), "receiver unmasked after a failed send")
}

func TestCancelledSend(t *testing.T) {
	b := simbus.New()
	d := driver.New(b, driver.DefaultConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Init(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotEqual(t, ps2.FaultTimedOut, d.Faults().Last())
}

func TestRunAndSubmit(t *testing.T) {
	h := newHarness(t, driver.DefaultConfig())
	require.NoError(t, h.d.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan byte, 64)
	errc := make(chan error, 1)
	go func() { errc <- h.d.Run(ctx, func(b byte) { out <- b }) }()

	h.kb.Type("ok")
	var got []byte
	for len(got) < 2 {
		select {
		case b := <-out:
			got = append(got, b)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for decoded bytes")
		}
	}
	assert.Equal(t, "ok", string(got))

	var id [2]byte
	err := h.d.Submit(ctx, func(ctx context.Context, d *driver.Driver) error {
		var err error
		id, err = d.ReadID(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, ps2kbd.DeviceID, id)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	err = h.d.Submit(context.Background(), func(context.Context, *driver.Driver) error { return nil })
	assert.ErrorIs(t, err, driver.ErrStopped)
}
