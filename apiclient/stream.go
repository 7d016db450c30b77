package apiclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// CharStream is an open connection on the decoded character stream.
type CharStream struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool

	readCancel context.CancelFunc
}

// OpenStream subscribes to the decoded character stream.
func (c *Client) OpenStream(ctx context.Context) (*CharStream, error) {
	if c.transport.mock != nil {
		return nil, fmt.Errorf("stream connections not supported with mock transport")
	}
	conn, err := c.transport.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte("stream\x00")); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return &CharStream{conn: conn}, nil
}

// Read receives decoded characters as they are typed.
func (s *CharStream) Read(buf []byte) (int, error) {
	if s.isClosed() {
		return 0, fmt.Errorf("stream closed")
	}
	return s.conn.Read(buf)
}

// StartReading delivers characters on a channel until ctx ends, the stream
// closes or a read fails. The error channel receives the reason once.
func (s *CharStream) StartReading(ctx context.Context, chSize int) (<-chan byte, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readCancel != nil {
		panic("StartReading called twice on the same stream")
	}

	out := make(chan byte, chSize)
	errCh := make(chan error, 1)
	readCtx, cancel := context.WithCancel(ctx)
	s.readCancel = cancel
	stop := context.AfterFunc(readCtx, func() { _ = s.conn.SetReadDeadline(time.Now()) })

	go func() {
		defer close(out)
		defer close(errCh)
		defer cancel()
		defer stop()

		buf := make([]byte, 256)
		for {
			n, err := s.conn.Read(buf)
			for _, b := range buf[:n] {
				select {
				case out <- b:
				case <-readCtx.Done():
					errCh <- readCtx.Err()
					return
				}
			}
			if err != nil {
				if readCtx.Err() != nil {
					err = readCtx.Err()
				}
				errCh <- err
				return
			}
		}
	}()
	return out, errCh
}

// SetReadDeadline sets the read deadline for the underlying connection.
func (s *CharStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *CharStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the stream connection and stops any background reading.
func (s *CharStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.readCancel != nil {
		s.readCancel()
	}
	s.mu.Unlock()
	return s.conn.Close()
}
