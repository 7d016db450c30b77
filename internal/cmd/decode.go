package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Alia5/ps2bridge/ps2"
	"github.com/Alia5/ps2bridge/ps2/keymap"
	"github.com/Alia5/ps2bridge/ps2/ringbuf"
)

// Decode translates captured set 2 scan codes offline.
type Decode struct {
	Codes      []string `arg:"" optional:"" help:"Hex scan codes, e.g. 12 1C F0 1C F0 12"`
	File       string   `help:"Read hex scan codes from this file ('-' for stdin)" short:"f"`
	BufferSize int      `help:"Output ring buffer capacity in bytes" default:"512"`
	Hex        bool     `help:"Print output bytes as hex instead of text"`
}

// Run is called by Kong when the decode command is executed.
func (c *Decode) Run(logger *slog.Logger) error {
	var src io.Reader = strings.NewReader(strings.Join(c.Codes, " "))
	switch c.File {
	case "":
	case "-":
		src = os.Stdin
	default:
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	codes, err := ParseHexCodes(src)
	if err != nil {
		return err
	}
	res := DecodeCodes(codes, c.BufferSize)
	if res.Overflows > 0 {
		logger.Warn("output buffer overflowed", "lost", res.Overflows, "capacity", c.BufferSize)
	}
	for _, l := range res.Locks {
		logger.Info("lock toggled", "lock", l.String())
	}

	if c.Hex {
		parts := make([]string, len(res.Output))
		for i, b := range res.Output {
			parts[i] = fmt.Sprintf("%02x", b)
		}
		fmt.Println(strings.Join(parts, " "))
		return nil
	}
	fmt.Println(strings.ReplaceAll(string(res.Output), "\r", "\n"))
	return nil
}

// ParseHexCodes reads whitespace or comma separated hex bytes. A "0x"
// prefix is optional and '#' starts a comment running to the end of line.
func ParseHexCodes(r io.Reader) ([]byte, error) {
	var out []byte
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		for _, tok := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			tok = strings.TrimPrefix(strings.ToLower(tok), "0x")
			v, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid scan code %q", line, tok)
			}
			out = append(out, byte(v))
		}
	}
	return out, sc.Err()
}

// DecodeResult is the outcome of DecodeCodes.
type DecodeResult struct {
	Output    []byte
	Overflows uint64
	Locks     []keymap.Lock
	Modifiers keymap.State
}

// DecodeCodes feeds codes through the translator into a ring buffer of the
// given capacity and drains it once at the end, so more output than fits
// is lost the way it would be with a slow consumer. Lock releases toggle
// immediately since there is no keyboard to acknowledge them.
func DecodeCodes(codes []byte, capacity int) DecodeResult {
	var faults ps2.FaultRegister
	buf := ringbuf.New(capacity, &faults)
	tr := keymap.NewTranslator(buf)

	var res DecodeResult
	for _, code := range codes {
		tr.Feed(code)
		if l := tr.PendingLock(); l != keymap.LockNone {
			tr.ToggleLock(l)
			res.Locks = append(res.Locks, l)
		}
	}
	res.Output = make([]byte, buf.Len())
	buf.Drain(res.Output)
	res.Overflows = buf.Overflows()
	res.Modifiers = tr.State()
	return res
}
