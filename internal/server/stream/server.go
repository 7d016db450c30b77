// Package stream serves the decoded character stream and keyboard commands
// over TCP.
//
// A request is an optional auth handshake followed by
// `<path>[ SP <payload>] \x00`. Request/response paths answer with one JSON
// line and close; stream paths take the connection over.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Alia5/ps2bridge/driver"
	"github.com/Alia5/ps2bridge/internal/server/apierror"
	"github.com/Alia5/ps2bridge/internal/server/auth"
)

// Foreground runs jobs on the goroutine that owns the driver.
type Foreground interface {
	Submit(ctx context.Context, fn driver.Job) error
}

var wsRegex = regexp.MustCompile(`\s`)

// Server is the stream API listener.
type Server struct {
	cfg    ServerConfig
	fg     Foreground
	hub    *Hub
	router *Router
	key    []byte
	logger *slog.Logger

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a server issuing commands through fg and streaming what is
// published on hub. A non-empty cfg.Password requires the auth handshake
// unless cfg.NoAuth is set.
func New(cfg ServerConfig, fg Foreground, hub *Hub, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	s := &Server{cfg: cfg, fg: fg, hub: hub, router: NewRouter(), logger: logger}
	if cfg.Password != "" && !cfg.NoAuth {
		key, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			return nil, err
		}
		s.key = key
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	registerRoutes(s)
	return s, nil
}

// Router returns the router so callers can register extra handlers.
func (s *Server) Router() *Router { return s.router }

// Addr returns the listen address once started.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start listens on cfg.Addr and serves connections in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("stream API listening", "addr", ln.Addr().String(), "auth", s.key != nil)
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Close stops accepting, ends open streams and waits for handlers.
func (s *Server) Close() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("stream API stopped")
				return
			}
			s.logger.Warn("stream API accept error", "error", err)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(c)
		}()
	}
}

func writeError(w io.Writer, err error) {
	problemJSON, _ := json.Marshal(apierror.WrapError(err))
	fmt.Fprintf(w, "%s\n", string(problemJSON))
}

func writeOK(w io.Writer, rest string) {
	fmt.Fprintf(w, "%s\n", rest)
}

// secure runs the auth handshake when required and returns the connection
// and reader all further traffic must use.
func (s *Server) secure(conn net.Conn, r *bufio.Reader) (net.Conn, *bufio.Reader, error) {
	isAuth, err := auth.IsAuthHandshake(r)
	if err != nil {
		return nil, nil, fmt.Errorf("peek request: %w", err)
	}
	switch {
	case !isAuth && s.key == nil:
		return conn, r, nil
	case !isAuth:
		return nil, nil, apierror.ErrUnauthorized("authentication required")
	case s.key == nil:
		return nil, nil, apierror.ErrBadRequest("authentication not enabled")
	}

	clientNonce, serverNonce, err := auth.ServerHandshake(r, conn, s.key)
	if err != nil {
		return nil, nil, err
	}
	sc, err := auth.WrapBuffered(conn, r, auth.DeriveSessionKey(s.key, serverNonce, clientNonce))
	if err != nil {
		return nil, nil, err
	}
	return sc, bufio.NewReader(sc), nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	if s.cfg.RequestTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
	}

	rw, r, err := s.secure(conn, bufio.NewReader(conn))
	if err != nil {
		logger.Warn("stream API handshake failed", "error", err)
		writeError(conn, err)
		return
	}

	reqData, err := r.ReadString('\x00')
	if err != nil {
		if err == io.EOF {
			logger.Error("stream API incomplete request (no null terminator)")
		} else {
			logger.Error("read stream API request", "error", err)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	reqData = strings.TrimSuffix(reqData, "\x00")
	if reqData == "" {
		writeError(rw, apierror.ErrBadRequest("empty request"))
		return
	}

	var path, payload string
	if loc := wsRegex.FindStringIndex(reqData); loc != nil {
		path, payload = reqData[:loc[0]], reqData[loc[1]:]
	} else {
		path = reqData
	}
	path = strings.ToLower(path)
	logger.Debug("stream API request", "path", path)

	if h, params := s.router.Match(path); h != nil {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		req := &Request{Ctx: ctx, Params: params, Payload: payload}
		res := &Response{}
		if err := h(req, res, logger); err != nil {
			logger.Warn("stream API handler error", "path", path, "error", err)
			writeError(rw, err)
			return
		}
		writeOK(rw, res.JSON)
		return
	}
	if sh, _ := s.router.MatchStream(path); sh != nil {
		logger.Info("stream begin", "path", path)
		if err := sh(s.ctx, rw, logger); err != nil {
			logger.Warn("stream handler error", "path", path, "error", err)
		}
		logger.Info("stream end", "path", path)
		return
	}
	writeError(rw, apierror.ErrNotFound(fmt.Sprintf("unknown path: %s", path)))
}
