package stream

import (
	"context"
	"log/slog"
	"net"
	"strings"
)

// Request contains route parameters and the payload following the path.
type Request struct {
	Ctx     context.Context
	Params  map[string]string
	Payload string
}

// Response holds the JSON string to return to the client.
type Response struct {
	JSON string
}

// HandlerFunc processes a request and populates the response. The logger is
// scoped to the connection.
type HandlerFunc func(req *Request, res *Response, logger *slog.Logger) error

// StreamHandlerFunc takes ownership of a long-lived connection and closes it
// when done.
type StreamHandlerFunc func(ctx context.Context, conn net.Conn, logger *slog.Logger) error

type route[H any] struct {
	parts   []string
	names   []string
	handler H
}

func newRoute[H any](pattern string, h H) route[H] {
	orig := strings.Split(pattern, "/")
	rt := route[H]{parts: strings.Split(strings.ToLower(pattern), "/"), names: make([]string, len(orig)), handler: h}
	for i, p := range orig {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			rt.names[i] = p[1 : len(p)-1]
		}
	}
	return rt
}

func (rt route[H]) match(parts []string) (map[string]string, bool) {
	if len(rt.parts) != len(parts) {
		return nil, false
	}
	params := map[string]string{}
	for i := range parts {
		if rt.names[i] != "" {
			params[rt.names[i]] = parts[i]
			continue
		}
		if rt.parts[i] != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// Router matches paths like "leds/{mask}" against registered patterns.
type Router struct {
	routes       []route[HandlerFunc]
	streamRoutes []route[StreamHandlerFunc]
}

// NewRouter returns an empty Router.
func NewRouter() *Router { return &Router{} }

// Register adds a request/response handler.
func (r *Router) Register(pattern string, h HandlerFunc) {
	r.routes = append(r.routes, newRoute(pattern, h))
}

// RegisterStream adds a handler that takes over the connection.
func (r *Router) RegisterStream(pattern string, h StreamHandlerFunc) {
	r.streamRoutes = append(r.streamRoutes, newRoute(pattern, h))
}

// Match returns the handler and params for path, or nil.
func (r *Router) Match(path string) (HandlerFunc, map[string]string) {
	parts := strings.Split(strings.ToLower(path), "/")
	for _, rt := range r.routes {
		if params, ok := rt.match(parts); ok {
			return rt.handler, params
		}
	}
	return nil, nil
}

// MatchStream returns the stream handler and params for path, or nil.
func (r *Router) MatchStream(path string) (StreamHandlerFunc, map[string]string) {
	parts := strings.Split(strings.ToLower(path), "/")
	for _, rt := range r.streamRoutes {
		if params, ok := rt.match(parts); ok {
			return rt.handler, params
		}
	}
	return nil, nil
}
