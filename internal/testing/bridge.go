package testing

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Alia5/ps2bridge/bus/simbus"
	"github.com/Alia5/ps2bridge/device/ps2kbd"
	"github.com/Alia5/ps2bridge/driver"
	"github.com/Alia5/ps2bridge/internal/log"
	"github.com/Alia5/ps2bridge/internal/server/stream"
)

// Bridge is a simulated keyboard, its driver loop and a stream server on a
// loopback port.
type Bridge struct {
	Addr     string
	Keyboard *ps2kbd.Keyboard
	Hub      *stream.Hub
	Server   *stream.Server
}

// StartBridge runs a Bridge until the test ends. cfg.Addr is ignored.
func StartBridge(t *testing.T, cfg stream.ServerConfig) *Bridge {
	t.Helper()
	b := simbus.New()
	kb := ps2kbd.New()
	b.Attach(kb)
	d := driver.New(b, driver.DefaultConfig(), log.Discard(), nil)
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("keyboard handshake failed: %v", err)
	}

	hub := stream.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx, hub.Publish)
	}()

	cfg.Addr = "127.0.0.1:0"
	srv, err := stream.New(cfg, d, hub, log.Discard())
	if err != nil {
		cancel()
		t.Fatalf("stream server: %v", err)
	}
	if err := srv.Start(); err != nil {
		cancel()
		t.Fatalf("stream start failed: %v", err)
	}
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &Bridge{Addr: srv.Addr().String(), Keyboard: kb, Hub: hub, Server: srv}
}

// Do sends one unauthenticated request line and returns the raw response.
func Do(addr, line string) (string, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write([]byte(line + "\x00")); err != nil {
		return "", err
	}
	out, err := io.ReadAll(c)
	return string(out), err
}

// ExecCmd is Do failing the test on transport errors.
func ExecCmd(t *testing.T, addr, line string) string {
	t.Helper()
	out, err := Do(addr, line)
	if err != nil {
		t.Fatalf("request %q failed: %v", line, err)
	}
	return out
}
