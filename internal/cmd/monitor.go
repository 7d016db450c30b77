package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/ps2bridge/apiclient"
	"github.com/Alia5/ps2bridge/apitypes"
)

// Monitor connects to a running bridge and prints its character stream.
type Monitor struct {
	Addr        string        `help:"Stream API address" default:"localhost:3243" env:"PS2BRIDGE_MONITOR_ADDR"`
	Password    string        `help:"Stream API password" env:"PS2BRIDGE_MONITOR_PASSWORD"`
	DialTimeout time.Duration `help:"Dial timeout" default:"3s" env:"PS2BRIDGE_MONITOR_DIAL_TIMEOUT"`
	Leds        string        `help:"Set the LED mask (e.g. 0x04) before streaming"`
	Echo        bool          `help:"Run the echo handshake before streaming"`
	Reset       bool          `help:"Reset the keyboard before streaming"`
	ID          bool          `name:"id" help:"Print the keyboard device ID before streaming"`
	Status      bool          `help:"Print the driver status and exit"`
	NoStream    bool          `help:"Only run the requested commands"`
}

// Run is called by Kong when the monitor command is executed.
func (m *Monitor) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return m.StartMonitor(ctx, logger, os.Stdout)
}

// StartMonitor issues the requested commands, then copies the character
// stream to out until ctx ends or the server closes it.
func (m *Monitor) StartMonitor(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	c := apiclient.NewWithConfig(m.Addr, &apiclient.Config{
		DialTimeout:  m.DialTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Password:     m.Password,
	})

	if m.Status {
		st, err := c.StatusCtx(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "fault=%s pending=%t buffered=%d/%d overflows=%d frames=%d shift=%t caps=%t num=%t\n",
			st.Fault, st.FaultPending, st.Buffered, st.Capacity, st.Overflows, st.Frames, st.Shift, st.CapsLock, st.NumLock)
		return nil
	}
	if m.Reset {
		if _, err := c.ResetCtx(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		logger.Info("keyboard reset")
	}
	if m.Echo {
		if _, err := c.EchoCtx(ctx); err != nil {
			return fmt.Errorf("echo: %w", err)
		}
		logger.Info("echo ok")
	}
	if m.Leds != "" {
		mask, err := apitypes.ParseByteOrHex(m.Leds)
		if err != nil {
			return fmt.Errorf("invalid --leds: %w", err)
		}
		if _, err := c.SetLEDsCtx(ctx, mask); err != nil {
			return fmt.Errorf("set LEDs: %w", err)
		}
		logger.Info("LEDs set", "leds", mask)
	}
	if m.ID {
		id, err := c.ReadIDCtx(ctx)
		if err != nil {
			return fmt.Errorf("read ID: %w", err)
		}
		fmt.Fprintf(out, "device id: %s\n", id.ID)
	}
	if m.NoStream {
		return nil
	}

	s, err := c.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	logger.Info("streaming", "addr", m.Addr)

	chars, errs := s.StartReading(ctx, 256)
	w := &terminalWriter{w: out}
	for ch := range chars {
		w.WriteChar(ch)
	}
	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
