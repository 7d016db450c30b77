package stream

import "time"

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultCommandTimeout = 2 * time.Second
	DefaultStreamBuffer   = 1024
)

// ServerConfig is the stream API section of the command line.
type ServerConfig struct {
	Addr           string        `help:"Stream API listen address (empty disables the API)" env:"PS2BRIDGE_STREAM_ADDR"`
	Password       string        `help:"Stream API password (empty reads or creates the key file)" env:"PS2BRIDGE_STREAM_PASSWORD"`
	NoAuth         bool          `help:"Accept clients without the auth handshake" default:"false" env:"PS2BRIDGE_STREAM_NO_AUTH"`
	RequestTimeout time.Duration `help:"Time allowed for a client to send its request" default:"5s" env:"PS2BRIDGE_STREAM_REQUEST_TIMEOUT"`
	CommandTimeout time.Duration `help:"Bound on a keyboard command issued through the API" default:"2s" env:"PS2BRIDGE_STREAM_COMMAND_TIMEOUT"`
	StreamBuffer   int           `help:"Per-subscriber character backlog before bytes are dropped" default:"1024" env:"PS2BRIDGE_STREAM_BUFFER"`
}

// withDefaults fills unset fields so a zero ServerConfig built outside kong
// behaves like the command line defaults.
func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	return c
}
