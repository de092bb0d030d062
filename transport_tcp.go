package mqttgo

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// tcpChannel is the Channel implementation backing TCPTransport: one
// goroutine reads the socket and republishes chunks as IncomingData events;
// Send writes directly on the caller's goroutine, since the engine only
// ever has one send in flight at a time.
type tcpChannel struct {
	conn     net.Conn
	events   chan ChannelEvent
	limiter  *rate.Limiter
	shutdown chan struct{}
}

// dialTCP opens a TCPTransport connection and starts its read pump. limiter,
// set via WithTCPSendRateLimit, may be nil, in which case Send is unbounded.
func dialTCP(ctx context.Context, d *net.Dialer, opts TCPTransport, limiter *rate.Limiter) (Channel, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	dialCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	ch := &tcpChannel{
		conn:     conn,
		events:   make(chan ChannelEvent, 1),
		shutdown: make(chan struct{}),
		limiter:  limiter,
	}
	go ch.readLoop()
	return ch, nil
}

func (ch *tcpChannel) readLoop() {
	defer close(ch.events)
	buf := make([]byte, 4096)
	for {
		n, err := ch.conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case ch.events <- IncomingData{Data: chunk}:
			case <-ch.shutdown:
				return
			}
		}
		if err != nil {
			select {
			case <-ch.shutdown:
				ch.events <- ChannelClosed{}
			default:
				ch.events <- ChannelErrorEvent{Err: err}
			}
			return
		}
	}
}

func (ch *tcpChannel) Send(data []byte) error {
	if ch.limiter != nil {
		if err := ch.limiter.WaitN(context.Background(), len(data)); err != nil {
			return &SendFailedError{Err: err}
		}
	}
	if _, err := ch.conn.Write(data); err != nil {
		return &SendFailedError{Err: err}
	}
	return nil
}

func (ch *tcpChannel) Events() <-chan ChannelEvent {
	return ch.events
}

func (ch *tcpChannel) Shutdown() {
	select {
	case <-ch.shutdown:
		return
	default:
		close(ch.shutdown)
	}
	_ = ch.conn.Close()
}

// dialTransport is the default dialerFunc: it dispatches on the concrete
// TransportOptions type, using netDialer and tcpSendRateLimit for TCPTransport.
func dialTransport(netDialer *net.Dialer, tcpSendRateLimit *rate.Limiter) dialerFunc {
	return func(ctx context.Context, opts TransportOptions) (Channel, error) {
		switch t := opts.(type) {
		case TCPTransport:
			return dialTCP(ctx, netDialer, t, tcpSendRateLimit)
		case WebSocketTransport:
			return dialWebSocket(ctx, t)
		default:
			return nil, fmt.Errorf("mqttgo: unsupported transport options %T", opts)
		}
	}
}
