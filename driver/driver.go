// Package driver is the host side of a PS/2 keyboard link: the edge-driven
// frame receiver, the blocking command transmitter and the foreground
// dispatch that turns raw scan codes into buffered characters.
//
// Ownership follows two contexts. The Receiver's working registers belong to
// the edge callback. Everything else (modifier state, output buffer, the
// transmitter) belongs to the goroutine that calls Poll, Run or the command
// methods. The only hand-off between them is the completed scan code and
// its ready flag, and the only critical section is WithReceiverDisabled.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/Alia5/ps2bridge/internal/log"
	"github.com/Alia5/ps2bridge/ps2"
	"github.com/Alia5/ps2bridge/ps2/keymap"
	"github.com/Alia5/ps2bridge/ps2/ringbuf"
)

// Config tunes the driver.
type Config struct {
	BufferSize  int           `help:"Output ring buffer capacity in bytes" default:"512" env:"PS2BRIDGE_BUFFER_SIZE"`
	EchoRetries int           `help:"Extra echo attempts during the startup handshake" default:"3" env:"PS2BRIDGE_ECHO_RETRIES"`
	WaitTimeout time.Duration `help:"Bound on every handshake wait, measured in bus time (0 waits forever)" default:"0s" env:"PS2BRIDGE_WAIT_TIMEOUT"`
}

// DefaultConfig mirrors the firmware: 512 byte buffer, 4 echo attempts and
// no wait timeout.
func DefaultConfig() Config {
	return Config{BufferSize: ringbuf.DefaultCapacity, EchoRetries: 3}
}

// Driver owns the receiver, transmitter, translator and output buffer of
// one keyboard.
type Driver struct {
	bus     bus.Bus
	cfg     Config
	faults  ps2.FaultRegister
	rx      *Receiver
	tx      *Transmitter
	keys    *keymap.Translator
	out     *ringbuf.Buffer
	jobs    chan job
	stopped chan struct{}
	stop    sync.Once
	limit   int

	logger *slog.Logger
	raw    log.RawLogger
}

// New builds a driver on b. logger and raw may be nil.
func New(b bus.Bus, cfg Config, logger *slog.Logger, raw log.RawLogger) *Driver {
	if logger == nil {
		logger = log.Discard()
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	if cfg.EchoRetries < 0 {
		cfg.EchoRetries = 0
	}
	d := &Driver{
		bus:     b,
		cfg:     cfg,
		jobs:    make(chan job),
		stopped: make(chan struct{}),
		limit:   int(cfg.WaitTimeout / time.Microsecond),
		logger:  logger,
		raw:     raw,
	}
	d.rx = NewReceiver(b, &d.faults)
	d.tx = NewTransmitter(b, d.limit)
	d.out = ringbuf.New(cfg.BufferSize, &d.faults)
	d.keys = keymap.NewTranslator(d.out)
	return d
}

// Faults returns the sticky fault register.
func (d *Driver) Faults() *ps2.FaultRegister { return &d.faults }

// Receiver returns the frame receiver.
func (d *Driver) Receiver() *Receiver { return d.rx }

// Modifiers returns the current modifier state.
func (d *Driver) Modifiers() keymap.State { return d.keys.State() }

// Buffer returns the output ring buffer. Only the foreground may use it.
func (d *Driver) Buffer() *ringbuf.Buffer { return d.out }

// Pop removes the oldest decoded byte. ok is false when the buffer is empty.
func (d *Driver) Pop() (byte, bool) { return d.out.Pop() }

// Start resets the receiver, attaches it to the clock edge source and
// unmasks it. It does not talk to the keyboard.
func (d *Driver) Start() {
	d.bus.Disable()
	d.rx.Reset()
	d.bus.SetHandler(d.rx.OnFallingEdge)
	d.bus.ClearPending()
	d.bus.Enable()
}

// Init starts reception and runs the echo handshake.
func (d *Driver) Init(ctx context.Context) error {
	d.Start()
	return d.Echo(ctx)
}

// WithReceiverDisabled runs fn with the edge callback masked. Edges latched
// meanwhile are dropped and the receiver restarts from AwaitingStart, since
// any traffic seen during fn was host-driven.
func (d *Driver) WithReceiverDisabled(fn func() error) error {
	d.bus.Disable()
	defer func() {
		d.rx.Reset()
		d.bus.ClearPending()
		d.bus.Enable()
	}()
	return fn()
}

// Send transmits cmd and an optional argument (ps2.NoArg for none). It
// returns once the device acknowledged the last byte on the wire.
func (d *Driver) Send(ctx context.Context, cmd, arg byte) error {
	err := d.WithReceiverDisabled(func() error {
		return d.tx.Send(ctx, cmd, arg)
	})
	if arg == ps2.NoArg {
		d.raw.Log(false, []byte{cmd})
	} else {
		d.raw.Log(false, []byte{cmd, arg})
	}
	if err != nil {
		d.fail(err)
		return fmt.Errorf("send command 0x%02X: %w", cmd, err)
	}
	return nil
}

func (d *Driver) fail(err error) {
	if f, ok := err.(ps2.Fault); ok {
		d.faults.Record(f)
	}
}

// WaitScanCode busy-waits for the receiver to publish a byte and consumes
// it without translating it.
func (d *Driver) WaitScanCode(ctx context.Context) (byte, error) {
	done := ctx.Done()
	for spent := 0; ; spent++ {
		if code, ok := d.rx.Take(); ok {
			d.raw.Log(true, []byte{code})
			return code, nil
		}
		if d.limit > 0 && spent >= d.limit {
			d.faults.Record(ps2.FaultTimedOut)
			return 0, ps2.FaultTimedOut
		}
		if done != nil {
			select {
			case <-done:
				return 0, ctx.Err()
			default:
			}
		}
		d.bus.DelayMicroseconds(1)
	}
}

// Echo sends the echo command until the keyboard replies 0xEE, trying
// 1+EchoRetries times. Exhausting the attempts records and returns
// FaultEchoHandshakeFailed.
func (d *Driver) Echo(ctx context.Context) error {
	for attempt := 0; attempt <= d.cfg.EchoRetries; attempt++ {
		if err := d.Send(ctx, ps2.CmdEcho, ps2.NoArg); err != nil {
			return err
		}
		code, err := d.WaitScanCode(ctx)
		if err != nil {
			return err
		}
		if code == ps2.StatusEchoReply {
			d.logger.Debug("echo handshake ok", "attempt", attempt+1)
			return nil
		}
		d.logger.Debug("unexpected echo reply", "attempt", attempt+1, "code", fmt.Sprintf("0x%02X", code))
	}
	d.faults.Record(ps2.FaultEchoHandshakeFailed)
	d.logger.Warn("echo handshake failed", "attempts", d.cfg.EchoRetries+1)
	return ps2.FaultEchoHandshakeFailed
}

// SetLEDs sends the LED state and waits for the keyboard's ack byte. A
// reply other than 0xFA records and returns FaultLockAckMissing.
func (d *Driver) SetLEDs(ctx context.Context, leds byte) error {
	if err := d.Send(ctx, ps2.CmdSetLEDs, leds&0x07); err != nil {
		return err
	}
	code, err := d.WaitScanCode(ctx)
	if err != nil {
		return err
	}
	if code != ps2.StatusAck {
		d.faults.Record(ps2.FaultLockAckMissing)
		d.logger.Warn("keyboard did not ack LED state", "leds", leds, "reply", fmt.Sprintf("0x%02X", code))
		return ps2.FaultLockAckMissing
	}
	return nil
}

// expectAck consumes one byte and fails unless it is 0xFA.
func (d *Driver) expectAck(ctx context.Context, cmd byte) error {
	code, err := d.WaitScanCode(ctx)
	if err != nil {
		return err
	}
	if code != ps2.StatusAck {
		return fmt.Errorf("command 0x%02X: unexpected reply 0x%02X", cmd, code)
	}
	return nil
}

// Reset restarts the keyboard and waits for its self test result. The
// modifier state is cleared since the keyboard's LEDs go dark on reset.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.Send(ctx, ps2.CmdReset, ps2.NoArg); err != nil {
		return err
	}
	if err := d.expectAck(ctx, ps2.CmdReset); err != nil {
		return err
	}
	code, err := d.WaitScanCode(ctx)
	if err != nil {
		return err
	}
	d.keys.Reset()
	if code != ps2.StatusBATPass {
		return fmt.Errorf("keyboard self test failed: 0x%02X", code)
	}
	d.logger.Info("keyboard reset", "bat", fmt.Sprintf("0x%02X", code))
	return nil
}

// ReadID returns the two byte keyboard identifier.
func (d *Driver) ReadID(ctx context.Context) ([2]byte, error) {
	var id [2]byte
	if err := d.Send(ctx, ps2.CmdReadDeviceID, ps2.NoArg); err != nil {
		return id, err
	}
	if err := d.expectAck(ctx, ps2.CmdReadDeviceID); err != nil {
		return id, err
	}
	for i := range id {
		code, err := d.WaitScanCode(ctx)
		if err != nil {
			return id, err
		}
		id[i] = code
	}
	return id, nil
}

// Poll runs one foreground dispatch step: if a scan code is ready it is
// consumed, classified and translated, and a completed lock release is
// applied to the keyboard LEDs. It reports whether a code was consumed.
func (d *Driver) Poll(ctx context.Context) (bool, error) {
	code, ok := d.rx.Take()
	if !ok {
		return false, nil
	}
	d.raw.Log(true, []byte{code})
	d.keys.Feed(code)

	if l := d.keys.PendingLock(); l != keymap.LockNone {
		leds := d.keys.ToggleLock(l)
		d.logger.Info("lock toggled", "lock", l.String(), "leds", leds)
		if err := d.SetLEDs(ctx, leds); err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			d.logger.Warn("failed to update LEDs", "error", err)
		}
	}
	return true, nil
}

// Idle yields n microseconds of bus time to the keyboard.
func (d *Driver) Idle(n int) { d.bus.DelayMicroseconds(n) }

// Status is a diagnostics snapshot of the driver.
type Status struct {
	Fault        ps2.Fault
	FaultPending bool
	Buffered     int
	Capacity     int
	Overflows    uint64
	Frames       uint64
	Modifiers    keymap.State
}

// Status returns a snapshot. Call it from the foreground.
func (d *Driver) Status() Status {
	return Status{
		Fault:        d.faults.Last(),
		FaultPending: d.faults.Pending(),
		Buffered:     d.out.Len(),
		Capacity:     d.out.Cap(),
		Overflows:    d.out.Overflows(),
		Frames:       d.rx.Frames(),
		Modifiers:    d.keys.State(),
	}
}
