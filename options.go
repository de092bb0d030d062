package mqttgo

import (
	"context"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxInFlightRequests bounds concurrently outstanding Subscribe and
// Unsubscribe calls by default (section 3 of the domain stack notes): with
// at most this many requests awaiting a SUBACK/UNSUBACK at once, a caller
// spinning up unbounded goroutines cannot exhaust the 65535 packet-id space.
const defaultMaxInFlightRequests = 64

// ConnectOptions configures one MQTT connection. KeepAlive is carried on
// the wire as whole seconds (MQTT-3.1.2-10); ServerTimeout is how long the
// engine waits for a PINGRESP before declaring the connection dead.
type ConnectOptions struct {
	// ClientID is the MQTT client identifier. If empty, Start generates one.
	ClientID string

	KeepAlive     time.Duration
	ServerTimeout time.Duration
}

// TransportOptions selects and configures the concrete Channel a Client
// dials. The marker method keeps this an exhaustive, closed set; external
// packages supply a Channel directly to Start's dialer override instead of
// implementing TransportOptions.
type TransportOptions interface {
	isTransportOptions()
}

// TCPTransport dials a plain TCP connection.
type TCPTransport struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
}

func (TCPTransport) isTransportOptions() {}

// WebSocketTransport dials an MQTT-over-WebSocket connection.
type WebSocketTransport struct {
	URL            string
	ConnectTimeout time.Duration
	Subprotocols   []string
}

func (WebSocketTransport) isTransportOptions() {}

// dialerFunc opens a Channel for the given transport options. Start's
// default dispatches to transport_tcp.go / transport_websocket.go;
// WithDialer overrides it, primarily for tests.
type dialerFunc func(ctx context.Context, opts TransportOptions) (Channel, error)

// clientConfig collects the ambient knobs Option closures adjust. It is
// unexported: callers only ever see the Option functions.
type clientConfig struct {
	logger              *slog.Logger
	dialer              dialerFunc
	updatesBuffer       int
	sessionStore        SessionStore
	netDialer           *net.Dialer
	maxInFlightRequests int64
	tcpSendRateLimit    *rate.Limiter
}

func defaultConfig() clientConfig {
	return clientConfig{
		logger:              slog.New(discardHandler{}),
		updatesBuffer:       16,
		sessionStore:        NopSessionStore{},
		netDialer:           &net.Dialer{},
		maxInFlightRequests: defaultMaxInFlightRequests,
	}
}

// Option configures a Client at Start time.
type Option func(*clientConfig)

// WithLogger attaches a structured logger. The engine logs at Debug for
// routine protocol traffic and Warn for every error that leads to a forced
// disconnect; a clean close of the channel by the peer is not logged at
// Warn.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithDialer overrides how a Channel is opened for a given TransportOptions.
// Tests use this to substitute a fake in-memory Channel.
func WithDialer(dialer func(ctx context.Context, opts TransportOptions) (Channel, error)) Option {
	return func(c *clientConfig) { c.dialer = dialer }
}

// WithUpdatesBuffer sets the buffer size of the channel returned by
// Client.Updates. The default is 16; a slow consumer beyond that applies
// backpressure to the engine goroutine.
func WithUpdatesBuffer(n int) Option {
	return func(c *clientConfig) { c.updatesBuffer = n }
}

// WithSessionStore attaches a SessionStore hook. The default,
// NopSessionStore, discards everything.
func WithSessionStore(store SessionStore) Option {
	return func(c *clientConfig) { c.sessionStore = store }
}

// WithNetDialer overrides the net.Dialer used by the TCP transport, e.g. to
// set a LocalAddr or Control hook.
func WithNetDialer(d *net.Dialer) Option {
	return func(c *clientConfig) { c.netDialer = d }
}

// WithMaxInFlightRequests bounds how many Subscribe/Unsubscribe calls may be
// awaiting their SUBACK/UNSUBACK at once. Additional callers block until a
// slot frees up rather than piling unbounded goroutines onto the engine's
// packet-id space.
func WithMaxInFlightRequests(n int64) Option {
	return func(c *clientConfig) { c.maxInFlightRequests = n }
}

// WithTCPSendRateLimit attaches a token-bucket limiter bounding how fast the
// TCP transport's Send may write to the wire, e.g. to protect a broker from
// a runaway publisher. Off by default (no limiter, unbounded). Has no effect
// on WebSocketTransport.
func WithTCPSendRateLimit(limiter *rate.Limiter) Option {
	return func(c *clientConfig) { c.tcpSendRateLimit = limiter }
}

// discardHandler is a slog.Handler that drops every record; it backs the
// default logger so a Client never requires one to be supplied.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler  { return discardHandler{} }
func (discardHandler) WithGroup(name string) slog.Handler        { return discardHandler{} }
