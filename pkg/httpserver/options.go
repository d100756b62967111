package httpserver

import (
	"log/slog"
	"net"
	"time"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	addr              string
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	onListen          []func(net.Addr)
	onShutdown        []func()
}

// WithAddr sets the listen address. Use ":0" to pick a free port and read it
// back with Server.Addr or WithListenHook. Empty values are ignored.
func WithAddr(addr string) Option {
	return func(o *options) {
		if addr != "" {
			o.addr = addr
		}
	}
}

// WithReadHeaderTimeout bounds reading request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readHeaderTimeout = d
		}
	}
}

// WithReadTimeout bounds reading the whole request.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithWriteTimeout bounds writing the response.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithIdleTimeout bounds keep-alive idle time.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithShutdownTimeout caps how long in-flight requests get to finish once
// the run context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithLogger sets the server logger. Nil keeps the discarding default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithListenHook registers fn to run once the listener is bound.
func WithListenHook(fn func(net.Addr)) Option {
	return func(o *options) {
		if fn != nil {
			o.onListen = append(o.onListen, fn)
		}
	}
}

// WithShutdownHook registers fn to run after the server has stopped.
func WithShutdownHook(fn func()) Option {
	return func(o *options) {
		if fn != nil {
			o.onShutdown = append(o.onShutdown, fn)
		}
	}
}
