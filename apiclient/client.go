package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apitypes "github.com/Alia5/ps2bridge/apitypes"
)

// Client provides a high-level interface to the ps2bridge stream API,
// handling request formatting, response parsing, and error handling.
type Client struct{ transport *Transport }

// New constructs a high-level API client using the internal low-level Transport.
// The addr parameter specifies the TCP address (host:port) of the stream API.
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithPassword constructs a client that authenticates with the given password.
func NewWithPassword(addr, password string) *Client {
	return &Client{transport: NewTransportWithPassword(addr, password)}
}

// NewWithConfig constructs a client with custom transport timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport constructs a Client using a custom Transport implementation.
// This is primarily useful for testing.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the version and identity of the server.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

// PingCtx is the context-aware version of Ping.
func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	return get[apitypes.PingResponse](ctx, c, "ping", nil)
}

// Status returns the driver diagnostics snapshot.
func (c *Client) Status() (*apitypes.StatusResponse, error) {
	return c.StatusCtx(context.Background())
}

func (c *Client) StatusCtx(ctx context.Context) (*apitypes.StatusResponse, error) {
	return get[apitypes.StatusResponse](ctx, c, "status", nil)
}

// ClearFaults clears the pending fault flag and returns the last fault.
func (c *Client) ClearFaults() (*apitypes.FaultClearResponse, error) {
	return c.ClearFaultsCtx(context.Background())
}

func (c *Client) ClearFaultsCtx(ctx context.Context) (*apitypes.FaultClearResponse, error) {
	return get[apitypes.FaultClearResponse](ctx, c, "faults/clear", nil)
}

// SetLEDs sends Set LEDs with the given mask (bit 0 scroll, 1 num, 2 caps).
func (c *Client) SetLEDs(mask uint8) (*apitypes.LEDResponse, error) {
	return c.SetLEDsCtx(context.Background(), mask)
}

func (c *Client) SetLEDsCtx(ctx context.Context, mask uint8) (*apitypes.LEDResponse, error) {
	return get[apitypes.LEDResponse](ctx, c, "leds", apitypes.LEDRequest{Leds: mask})
}

// Echo runs the echo handshake against the keyboard.
func (c *Client) Echo() (*apitypes.EchoResponse, error) {
	return c.EchoCtx(context.Background())
}

func (c *Client) EchoCtx(ctx context.Context) (*apitypes.EchoResponse, error) {
	return get[apitypes.EchoResponse](ctx, c, "echo", nil)
}

// Reset resets the keyboard and waits for its self test.
func (c *Client) Reset() (*apitypes.ResetResponse, error) {
	return c.ResetCtx(context.Background())
}

func (c *Client) ResetCtx(ctx context.Context) (*apitypes.ResetResponse, error) {
	return get[apitypes.ResetResponse](ctx, c, "reset", nil)
}

// ReadID returns the keyboard's two byte device ID as hex.
func (c *Client) ReadID() (*apitypes.DeviceIDResponse, error) {
	return c.ReadIDCtx(context.Background())
}

func (c *Client) ReadIDCtx(ctx context.Context) (*apitypes.DeviceIDResponse, error) {
	return get[apitypes.DeviceIDResponse](ctx, c, "id", nil)
}

func get[T any](ctx context.Context, c *Client, path string, payload any) (*T, error) {
	raw, err := c.transport.DoCtx(ctx, path, payload, nil)
	if err != nil {
		return nil, err
	}
	return parse[T](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
