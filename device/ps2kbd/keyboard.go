// Package ps2kbd models a PS/2 keyboard on a simulated bus: it clocks
// scan code frames to the host, answers host commands with the usual
// status bytes and keeps the LED state the host sets.
package ps2kbd

import (
	"sync"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/Alia5/ps2bridge/bus/simbus"
	"github.com/Alia5/ps2bridge/ps2"
	"github.com/Alia5/ps2bridge/ps2/keymap"
)

// Bus timing in microseconds.
const (
	HalfPeriod    = 40  // clock low and high time
	DataSetup     = 20  // data valid before a clock edge
	InterByteGap  = 50  // idle time between two frames
	ResponseDelay = 100 // command received to first reply frame
	BATDelay      = 500 // reset to self test result
	rtsMinHold    = 50 // host inhibit long enough to be a request to send
)

// DeviceID is the identifier returned for ReadDeviceID (MF2 keyboard).
var DeviceID = [2]byte{0xAB, 0x83}

type phase uint8

const (
	phaseIdle phase = iota
	phaseSending
	phaseReceiving
)

type override struct {
	reply byte
	left  int
}

type outByte struct {
	b       byte
	at      uint64
	corrupt Corruption
}

// Keyboard implements simbus.Device. Its queues may be filled from any
// goroutine; Tick runs on the goroutine advancing the bus.
type Keyboard struct {
	mu        sync.Mutex
	responses []outByte
	keys      []outByte

	phase   phase
	step    int
	wait    int
	gap     int
	hostLow int

	frame    [11]bool
	current  *outByte
	response bool
	last     byte

	rxBits    [10]bool
	expectArg byte
	overrides map[byte]*override

	ledState    LEDState
	ledCallback func(LEDState)
	ledChanged  bool
	received    []byte
	sent        []byte
}

var _ simbus.Device = (*Keyboard)(nil)

// New returns an idle keyboard with all LEDs off.
func New() *Keyboard {
	return &Keyboard{}
}

// SetLEDCallback sets a callback invoked whenever the host changes the LEDs.
func (k *Keyboard) SetLEDCallback(f func(LEDState)) {
	k.mu.Lock()
	k.ledCallback = f
	k.mu.Unlock()
}

// GetLEDState returns the LED state last set by the host.
func (k *Keyboard) GetLEDState() LEDState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ledState
}

// PowerOn queues the self test pass byte a keyboard sends after power up.
func (k *Keyboard) PowerOn() {
	k.mu.Lock()
	k.responses = append(k.responses, outByte{b: ps2.StatusBATPass})
	k.mu.Unlock()
}

// Send queues raw scan code bytes.
func (k *Keyboard) Send(codes ...byte) {
	k.mu.Lock()
	for _, c := range codes {
		k.keys = append(k.keys, outByte{b: c})
	}
	k.mu.Unlock()
}

// SendCorrupted queues one byte whose frame is broken by c.
func (k *Keyboard) SendCorrupted(code byte, c Corruption) {
	k.mu.Lock()
	k.keys = append(k.keys, outByte{b: code, corrupt: c})
	k.mu.Unlock()
}

// Type queues the make/break sequences that type s.
func (k *Keyboard) Type(s string) { k.Send(keymap.TypeString(s)...) }

// Tap queues the press and release of key code.
func (k *Keyboard) Tap(code byte) {
	k.Send(append(keymap.Press(code), keymap.Release(code)...)...)
}

// OverrideReply makes the next n occurrences of cmd answer reply instead of
// the normal response. n <= 0 overrides until Reset is received.
func (k *Keyboard) OverrideReply(cmd, reply byte, n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.overrides == nil {
		k.overrides = make(map[byte]*override)
	}
	k.overrides[cmd] = &override{reply: reply, left: n}
}

// Received returns every byte the host transmitted, in order.
func (k *Keyboard) Received() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]byte(nil), k.received...)
}

// Sent returns every byte whose frame completed on the wire.
func (k *Keyboard) Sent() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]byte(nil), k.sent...)
}

// Idle reports whether the keyboard has nothing queued or in flight.
func (k *Keyboard) Idle() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.phase == phaseIdle && len(k.responses) == 0 && len(k.keys) == 0
}

// Tick advances the keyboard by one microsecond.
func (k *Keyboard) Tick(p *simbus.Port) {
	k.mu.Lock()
	switch k.phase {
	case phaseIdle:
		k.tickIdle(p)
	case phaseSending:
		k.tickSending(p)
	case phaseReceiving:
		k.tickReceiving(p)
	}
	cb, st := k.ledCallback, k.ledState
	changed := k.ledChanged
	k.ledChanged = false
	k.mu.Unlock()

	if changed && cb != nil {
		cb(st)
	}
}

func (k *Keyboard) tickIdle(p *simbus.Port) {
	if !p.Read(bus.Clock) {
		k.hostLow++
		return
	}
	if k.hostLow > 0 {
		held := k.hostLow
		k.hostLow = 0
		if held >= rtsMinHold && !p.Read(bus.Data) {
			k.phase = phaseReceiving
			k.step = 0
			k.wait = DataSetup
			return
		}
	}
	if k.gap > 0 {
		k.gap--
		return
	}
	if !p.Read(bus.Data) {
		return
	}

	var next outByte
	switch {
	case len(k.responses) > 0 && k.responses[0].at <= p.Now():
		next, k.response = k.responses[0], true
	case len(k.responses) == 0 && len(k.keys) > 0:
		next, k.response = k.keys[0], false
	default:
		return
	}
	item := next
	k.current = &item
	k.frame = frameBits(item.b, item.corrupt)
	k.phase = phaseSending
	k.step = 0
	k.wait = 0
}

// Per bit the sender sets data, waits DataSetup, pulls clock low for
// HalfPeriod and releases it for DataSetup before the next bit.
func (k *Keyboard) tickSending(p *simbus.Port) {
	if !p.Read(bus.Clock) && !p.Driving(bus.Clock) {
		k.abortSend(p)
		return
	}
	if k.wait > 0 {
		k.wait--
		return
	}

	bit, sub := k.step/3, k.step%3
	switch sub {
	case 0:
		if k.frame[bit] {
			p.Release(bus.Data)
		} else {
			p.DriveLow(bus.Data)
		}
		k.wait = DataSetup
	case 1:
		p.DriveLow(bus.Clock)
		k.wait = HalfPeriod
	case 2:
		p.Release(bus.Clock)
		k.wait = DataSetup
		if bit == len(k.frame)-1 {
			k.finishSend(p)
			return
		}
	}
	k.step++
}

func (k *Keyboard) finishSend(p *simbus.Port) {
	p.Release(bus.Data)
	b := k.current.b
	switch {
	case k.response && len(k.responses) > 0:
		k.responses = k.responses[1:]
	case !k.response && len(k.keys) > 0:
		k.keys = k.keys[1:]
	}
	if b != ps2.StatusResend {
		k.last = b
	}
	k.sent = append(k.sent, b)
	k.current = nil
	k.phase = phaseIdle
	k.gap = InterByteGap
}

// abortSend gives up the frame because the host inhibited the bus; the
// byte stays queued and is sent again later.
func (k *Keyboard) abortSend(p *simbus.Port) {
	p.Release(bus.Data)
	p.Release(bus.Clock)
	k.current = nil
	k.phase = phaseIdle
	k.hostLow = 1
}

// The receiver clocks 10 bits (8 data, parity, stop), sampling each on the
// rising edge, then runs the ack handshake.
func (k *Keyboard) tickReceiving(p *simbus.Port) {
	if k.wait > 0 {
		k.wait--
		return
	}

	const bits = len(k.rxBits)
	if k.step < 2*bits {
		bit, sub := k.step/2, k.step%2
		if sub == 0 {
			p.DriveLow(bus.Clock)
			k.wait = HalfPeriod
		} else {
			p.Release(bus.Clock)
			k.rxBits[bit] = p.Read(bus.Data)
			k.wait = HalfPeriod
		}
		k.step++
		return
	}

	switch k.step - 2*bits {
	case 0:
		p.DriveLow(bus.Data)
		k.wait = DataSetup
	case 1:
		p.DriveLow(bus.Clock)
		k.wait = HalfPeriod
	case 2:
		p.Release(bus.Clock)
		k.wait = DataSetup
	case 3:
		p.Release(bus.Data)
		k.phase = phaseIdle
		k.gap = InterByteGap
		k.handleHostByte(p.Now())
		return
	}
	k.step++
}

func (k *Keyboard) hostByte() (b byte, ok bool) {
	ones := 0
	for i := 0; i < 8; i++ {
		if k.rxBits[i] {
			b |= 1 << i
			ones++
		}
	}
	if k.rxBits[8] {
		ones++
	}
	return b, ones%2 == 1 && k.rxBits[9]
}

func (k *Keyboard) respond(now uint64, codes ...byte) {
	k.responses = k.responses[:0]
	for _, c := range codes {
		k.responses = append(k.responses, outByte{b: c, at: now + ResponseDelay})
	}
}

func (k *Keyboard) handleHostByte(now uint64) {
	b, ok := k.hostByte()
	if !ok {
		k.respond(now, ps2.StatusResend)
		return
	}
	k.received = append(k.received, b)

	if k.expectArg != 0 {
		cmd := k.expectArg
		k.expectArg = 0
		if cmd == ps2.CmdSetLEDs {
			_ = k.ledState.UnmarshalBinary([]byte{b})
			k.ledChanged = true
		}
		k.respond(now, ps2.StatusAck)
		return
	}

	if o, ok := k.overrides[b]; ok {
		if o.left > 0 {
			o.left--
			if o.left == 0 {
				delete(k.overrides, b)
			}
		}
		k.respond(now, o.reply)
		return
	}

	switch b {
	case ps2.CmdEcho:
		k.respond(now, ps2.StatusEchoReply)
	case ps2.CmdSetLEDs, ps2.CmdSelectScanCodeSet:
		k.expectArg = b
		k.respond(now, ps2.StatusAck)
	case ps2.CmdReadDeviceID:
		k.respond(now, ps2.StatusAck, DeviceID[0], DeviceID[1])
	case ps2.CmdResend:
		k.respond(now, k.last)
	case ps2.CmdReset:
		k.ledState = LEDState{}
		k.ledChanged = true
		k.overrides = nil
		k.keys = k.keys[:0]
		k.respond(now, ps2.StatusAck)
		k.responses = append(k.responses, outByte{b: ps2.StatusBATPass, at: now + BATDelay})
	default:
		k.respond(now, ps2.StatusResend)
	}
}
