package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Alia5/ps2bridge/bus"
	"github.com/Alia5/ps2bridge/bus/simbus"
	"github.com/Alia5/ps2bridge/device/ps2kbd"
	"github.com/Alia5/ps2bridge/driver"
	"github.com/Alia5/ps2bridge/internal/configpaths"
	"github.com/Alia5/ps2bridge/internal/log"
	"github.com/Alia5/ps2bridge/internal/server/auth"
	"github.com/Alia5/ps2bridge/internal/server/stream"
	"github.com/Alia5/ps2bridge/internal/terminal"
)

const keyFileName = "ps2bridge.key.txt"

// Sim runs the driver against a simulated keyboard on a simulated bus.
type Sim struct {
	DriverConfig driver.Config       `embed:"" prefix:"driver."`
	StreamConfig stream.ServerConfig `embed:"" prefix:"stream."`
	Type         string              `help:"Type this text on the simulated keyboard instead of reading the terminal" env:"PS2BRIDGE_SIM_TYPE"`
	Linger       time.Duration       `help:"Keep running this long after --type text is decoded" default:"0s" env:"PS2BRIDGE_SIM_LINGER"`
	Realtime     bool                `help:"Pace simulated bus time to the wall clock" default:"true" negatable:"" env:"PS2BRIDGE_SIM_REALTIME"`
}

// Run is called by Kong when the sim command is executed.
func (s *Sim) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var keys <-chan byte
	if s.Type == "" {
		src := terminal.New(int(os.Stdin.Fd()))
		if err := src.Start(); err != nil {
			return fmt.Errorf("read keys from terminal (use --type for scripted input): %w", err)
		}
		defer src.Stop()
		keys = src.Keys()
	}
	return s.StartSim(ctx, logger, rawLogger, os.Stdout, keys)
}

// StartSim runs the simulation until ctx ends. Each key received on keys is
// typed on the simulated keyboard; a closed keys channel ends the session.
// With keys nil the --type text is typed and the session ends once it has
// been decoded.
func (s *Sim) StartSim(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger, out io.Writer, keys <-chan byte) error {
	sb := simbus.New()
	kb := ps2kbd.New()
	sb.Attach(kb)
	kb.SetLEDCallback(func(st ps2kbd.LEDState) {
		logger.Debug("keyboard LEDs", "caps", st.CapsLock, "num", st.NumLock, "scroll", st.ScrollLock)
	})

	var b bus.Bus = sb
	if s.Realtime {
		b = &pacedBus{Bus: sb, last: time.Now()}
	}
	d := driver.New(b, s.DriverConfig, logger, rawLogger)

	logger.Info("Starting simulated keyboard", "buffer", s.DriverConfig.BufferSize, "echoRetries", s.DriverConfig.EchoRetries)
	if err := d.Init(ctx); err != nil {
		return fmt.Errorf("keyboard handshake: %w", err)
	}
	logger.Info("Keyboard handshake ok")

	hub := stream.NewHub()
	var srv *stream.Server
	if s.StreamConfig.Addr != "" {
		var err error
		if srv, err = s.startStream(d, hub, logger); err != nil {
			return err
		}
		defer srv.Close()
	}

	term := &terminalWriter{w: out, raw: keys != nil}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- d.Run(runCtx, func(c byte) {
			term.WriteChar(c)
			hub.Publish(c)
		})
	}()

	if keys == nil {
		kb.Type(s.Type)
		if err := waitDecoded(runCtx, d, kb); err != nil {
			cancel()
			<-runErr
			return ignoreCanceled(err)
		}
		if s.Linger > 0 {
			select {
			case <-time.After(s.Linger):
			case <-runCtx.Done():
			}
		}
		cancel()
		return ignoreCanceled(<-runErr)
	}

	for {
		select {
		case c, ok := <-keys:
			if !ok {
				cancel()
				return ignoreCanceled(<-runErr)
			}
			kb.Type(string(c))
		case err := <-runErr:
			return ignoreCanceled(err)
		}
	}
}

func (s *Sim) startStream(d *driver.Driver, hub *stream.Hub, logger *slog.Logger) (*stream.Server, error) {
	cfg := s.StreamConfig
	if cfg.Password == "" && !cfg.NoAuth {
		dir, err := configpaths.DefaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve key file path: %w", err)
		}
		keyFilePath := filepath.Join(dir, keyFileName)
		pwd, created, err := auth.LoadOrCreatePassword(keyFilePath)
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info("Generated stream API password", "path", keyFilePath)
			logger.Info("-------------------------------------")
			logger.Info("Your ps2bridge stream API password is:")
			logger.Info("-------------------------------------")
			logger.Info(pwd)
			logger.Info("-------------------------------------")
			logger.Info("You can change this password at any time by editing the file")
		}
		cfg.Password = pwd
	}

	srv, err := stream.New(cfg, d, hub, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		logger.Error("failed to start stream API", "error", err)
		return nil, err
	}
	return srv, nil
}

// waitDecoded returns once the keyboard has sent everything queued and the
// driver has emitted it.
func waitDecoded(ctx context.Context, d *driver.Driver, kb *ps2kbd.Keyboard) error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if !kb.Idle() {
			continue
		}
		done := false
		err := d.Submit(ctx, func(_ context.Context, d *driver.Driver) error {
			done = !d.Receiver().Ready() && d.Buffer().Len() == 0
			return nil
		})
		if err != nil {
			return err
		}
		if done && kb.Idle() {
			return nil
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pacedBus sleeps so that simulated bus time does not run ahead of the wall
// clock by more than a millisecond.
type pacedBus struct {
	*simbus.Bus
	owed time.Duration
	last time.Time
}

func (p *pacedBus) DelayMicroseconds(n int) {
	p.Bus.DelayMicroseconds(n)
	p.owed += time.Duration(n) * time.Microsecond
	if p.owed < time.Millisecond {
		return
	}
	if ahead := p.owed - time.Since(p.last); ahead > 0 {
		time.Sleep(ahead)
	}
	p.owed = 0
	p.last = time.Now()
}

// terminalWriter prints decoded characters. In raw mode CR becomes CRLF and
// backspace erases the previous cell.
type terminalWriter struct {
	w   io.Writer
	raw bool
}

func (t *terminalWriter) WriteChar(c byte) {
	switch {
	case c == '\r' && t.raw:
		_, _ = io.WriteString(t.w, "\r\n")
	case c == '\r':
		_, _ = io.WriteString(t.w, "\n")
	case c == '\b' && t.raw:
		_, _ = io.WriteString(t.w, "\b \b")
	default:
		_, _ = t.w.Write([]byte{c})
	}
}
