package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/Alia5/ps2bridge/apitypes"
	"github.com/Alia5/ps2bridge/driver"
	"github.com/Alia5/ps2bridge/internal/server/apierror"
	"github.com/Alia5/ps2bridge/ps2"
)

// Version is reported by ping. It is set at link time.
var Version = "dev"

func registerRoutes(s *Server) {
	r := s.router
	r.Register("ping", Ping())
	r.Register("status", Status(s))
	r.Register("faults/clear", FaultsClear(s))
	r.Register("leds", LEDs(s))
	r.Register("echo", Echo(s))
	r.Register("reset", Reset(s))
	r.Register("id", ReadID(s))
	r.RegisterStream("stream", CharStream(s))
}

func respond(res *Response, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return apierror.ErrInternal(err.Error())
	}
	res.JSON = string(b)
	return nil
}

// submit runs fn on the foreground within the command timeout and maps
// driver errors to ApiErrors.
func (s *Server) submit(ctx context.Context, fn driver.Job) error {
	if s.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}
	err := s.fg.Submit(ctx, fn)
	var fault ps2.Fault
	switch {
	case err == nil:
		return nil
	case errors.Is(err, driver.ErrStopped):
		return apierror.ErrUnavailable("driver stopped")
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.ErrTimeout("keyboard did not answer in time")
	case errors.As(err, &fault):
		return apierror.ErrBadGateway(err.Error())
	default:
		return apierror.ErrInternal(err.Error())
	}
}

func Ping() HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		return respond(res, apitypes.PingResponse{Server: "ps2bridge", Version: Version})
	}
}

func Status(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		var st driver.Status
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			st = d.Status()
			return nil
		}); err != nil {
			return err
		}
		return respond(res, apitypes.StatusResponse{
			Fault:        st.Fault.String(),
			FaultPending: st.FaultPending,
			Buffered:     st.Buffered,
			Capacity:     st.Capacity,
			Overflows:    st.Overflows,
			Frames:       st.Frames,
			Shift:        st.Modifiers.Shift,
			CapsLock:     st.Modifiers.CapsLock,
			NumLock:      st.Modifiers.NumLock,
		})
	}
}

func FaultsClear(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		var f ps2.Fault
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			f = d.Faults().Clear()
			return nil
		}); err != nil {
			return err
		}
		return respond(res, apitypes.FaultClearResponse{Fault: f.String()})
	}
}

// parseLEDs accepts `{"leds": 4}`, `{"leds":"0x04"}` or a bare number.
func parseLEDs(payload string) (uint8, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, apierror.ErrBadRequest("missing LED mask")
	}
	if strings.HasPrefix(payload, "{") {
		var req apitypes.LEDRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return 0, apierror.ErrBadRequest(fmt.Sprintf("invalid LED request: %v", err))
		}
		return req.Leds, nil
	}
	v, err := apitypes.ParseByteOrHex(payload)
	if err != nil {
		return 0, apierror.ErrBadRequest(err.Error())
	}
	return v, nil
}

func LEDs(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		mask, err := parseLEDs(req.Payload)
		if err != nil {
			return err
		}
		if mask&^0x07 != 0 {
			return apierror.ErrBadRequest(fmt.Sprintf("LED mask 0x%02X has bits outside 0x07", mask))
		}
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			return d.SetLEDs(ctx, mask)
		}); err != nil {
			return err
		}
		logger.Info("LEDs set via API", "leds", mask)
		return respond(res, apitypes.LEDResponse{Leds: mask})
	}
}

func Echo(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			return d.Echo(ctx)
		}); err != nil {
			return err
		}
		return respond(res, apitypes.EchoResponse{Reply: fmt.Sprintf("%02x", ps2.StatusEchoReply)})
	}
}

func Reset(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			return d.Reset(ctx)
		}); err != nil {
			return err
		}
		return respond(res, apitypes.ResetResponse{BAT: fmt.Sprintf("%02x", ps2.StatusBATPass)})
	}
}

func ReadID(s *Server) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		var id [2]byte
		if err := s.submit(req.Ctx, func(ctx context.Context, d *driver.Driver) error {
			var err error
			id, err = d.ReadID(ctx)
			return err
		}); err != nil {
			return err
		}
		return respond(res, apitypes.DeviceIDResponse{ID: fmt.Sprintf("%02x%02x", id[0], id[1])})
	}
}

// CharStream writes every published character to the client until either
// side closes.
func CharStream(s *Server) StreamHandlerFunc {
	return func(ctx context.Context, conn net.Conn, logger *slog.Logger) error {
		sub := s.hub.Subscribe(s.cfg.StreamBuffer)
		defer sub.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			// Clients never send after the request; a read returning means
			// the peer went away.
			var b [1]byte
			_, _ = conn.Read(b[:])
			cancel()
		}()
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		buf := make([]byte, 0, 256)
		for {
			select {
			case <-ctx.Done():
				return nil
			case b, ok := <-sub.C:
				if !ok {
					return nil
				}
				buf = append(buf[:0], b)
			drain:
				for len(buf) < cap(buf) {
					select {
					case b, ok := <-sub.C:
						if !ok {
							break drain
						}
						buf = append(buf, b)
					default:
						break drain
					}
				}
				if _, err := conn.Write(buf); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("write stream: %w", err)
				}
			}
		}
	}
}
