package mqttgo

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// Client is the public handle to one MQTT client engine: a single
// goroutine owning all connection state, reachable only through the
// request/reply methods below and the Updates() stream.
type Client struct {
	opts   ConnectOptions
	config clientConfig
	stats  ClientStats

	requests chan any
	updates  chan Update
	stopped  chan struct{}

	// inFlight bounds concurrently outstanding Subscribe/Unsubscribe calls
	// (see WithMaxInFlightRequests); Publish and Connect are unbounded since
	// they don't tie up the packet-id space the same way.
	inFlight *semaphore.Weighted
}

// Start launches a client engine for the given connect and transport
// options and returns a handle to it. The engine goroutine runs until
// Stop is called; it does not dial until Connect is called.
func Start(opts ConnectOptions, transport TransportOptions, options ...Option) *Client {
	config := defaultConfig()
	for _, opt := range options {
		opt(&config)
	}
	if config.dialer == nil {
		config.dialer = dialTransport(config.netDialer, config.tcpSendRateLimit)
	}
	if opts.ClientID == "" {
		opts.ClientID = defaultClientID()
	}

	c := &Client{
		opts:     opts,
		config:   config,
		requests: make(chan any),
		updates:  make(chan Update, config.updatesBuffer),
		stopped:  make(chan struct{}),
		inFlight: semaphore.NewWeighted(config.maxInFlightRequests),
	}

	e := &engine{
		client:    c,
		transport: transport,
		state:     stateNotConnected{},
		tables:    newRequestTables(),
	}
	go e.run()

	return c
}

// logger returns the configured logger, never nil.
func (c *Client) logger() *slog.Logger {
	return c.config.logger
}

// Connect dials the configured transport and performs the MQTT CONNECT /
// CONNACK handshake. It returns the server's session_present flag on
// success.
//
// If ctx is done before CONNACK arrives, Connect synthesizes its own
// error and asks the engine to disconnect — the engine does not watch ctx
// itself, since it is shared infrastructure with no notion of one
// caller's deadline (section 5).
func (c *Client) Connect(ctx context.Context) (bool, error) {
	reply := make(chan connectResult, 1)
	req := reqConnect{ctx: ctx, replyTo: reply}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return false, c.connectTimeoutErr(ctx)
	case <-c.stopped:
		return false, ErrKilled
	}

	select {
	case res := <-reply:
		return res.sessionPresent, res.err
	case <-ctx.Done():
		return false, c.connectTimeoutErr(ctx)
	case <-c.stopped:
		return false, ErrKilled
	}
}

// connectTimeoutErr asks the engine to abandon an in-flight connect and
// returns the error the caller should see for it.
func (c *Client) connectTimeoutErr(ctx context.Context) error {
	c.Disconnect()
	if ctx.Err() == context.DeadlineExceeded {
		return ErrConnectTimedOut
	}
	return ctx.Err()
}

// Publish sends a message and returns as soon as the bytes have been handed
// to the Channel — it does not wait for the QoS 1/2 acknowledgment
// handshake to complete, even when QoS is AtLeastOnce or ExactlyOnce.
func (c *Client) Publish(ctx context.Context, data PublishData) error {
	if err := validatePublishTopic(data.Message.Topic); err != nil {
		return err
	}

	reply := make(chan error, 1)
	req := reqPublish{data: data, replyTo: reply}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrKilled
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrKilled
	}
}

// Subscribe requests the given filters and returns the per-filter results
// in the same order the requests were given. It blocks until a slot under
// WithMaxInFlightRequests frees up if too many Subscribe/Unsubscribe calls
// are already outstanding.
func (c *Client) Subscribe(ctx context.Context, topics []SubscribeRequest) ([]SubscribeResult, error) {
	if len(topics) == 0 {
		return nil, ErrSubscribeFailed
	}
	for _, t := range topics {
		if err := validateSubscribeFilter(t.Filter); err != nil {
			return nil, err
		}
	}

	if err := c.inFlight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	defer c.inFlight.Release(1)

	reply := make(chan subscribeResult, 1)
	req := reqSubscribe{topics: topics, replyTo: reply}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, ctx.Err())
	case <-c.stopped:
		return nil, ErrKilled
	}

	select {
	case res := <-reply:
		return res.results, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, ctx.Err())
	case <-c.stopped:
		return nil, ErrKilled
	}
}

// Unsubscribe removes subscriptions for the given filters. It is subject to
// the same in-flight bound as Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, filters []string) error {
	if len(filters) == 0 {
		return ErrUnsubscribeFailed
	}

	if err := c.inFlight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	defer c.inFlight.Release(1)

	reply := make(chan error, 1)
	req := reqUnsubscribe{filters: filters, replyTo: reply}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, ctx.Err())
	case <-c.stopped:
		return ErrKilled
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, ctx.Err())
	case <-c.stopped:
		return ErrKilled
	}
}

// Disconnect requests a graceful (or, if still connecting, an aborting)
// disconnect. It is fire-and-forget: the resulting Disconnected update
// arrives on the Updates() stream.
func (c *Client) Disconnect() {
	select {
	case c.requests <- reqDisconnect{}:
	case <-c.stopped:
	}
}

// Updates returns the stream of connection-state and message updates. The
// channel is closed when Stop is called.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Stop disconnects if necessary and permanently terminates the engine
// goroutine. The Updates() channel is closed once it returns control; no
// further operations on this Client are valid afterward.
func (c *Client) Stop() {
	select {
	case c.requests <- reqStop{}:
	case <-c.stopped:
	}
	<-c.stopped
}
