package mqttgo

import (
	"context"

	"github.com/gorilla/websocket"
)

// wsSubprotocol is the subprotocol name MQTT 3.1.1 over WebSocket expects
// servers to negotiate (OASIS MQTT-over-WebSocket transport profile).
const wsSubprotocol = "mqtt"

// webSocketChannel is the Channel implementation backing WebSocketTransport.
// gorilla/websocket delivers whole frames, not arbitrary byte chunks, but
// the encoded-channel accumulator treats a frame exactly like any other
// chunk of IncomingData: it only assumes ordering, never frame boundaries
// that line up with packet boundaries.
type webSocketChannel struct {
	conn     *websocket.Conn
	events   chan ChannelEvent
	shutdown chan struct{}
}

func dialWebSocket(ctx context.Context, opts WebSocketTransport) (Channel, error) {
	dialCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	subprotocols := opts.Subprotocols
	if len(subprotocols) == 0 {
		subprotocols = []string{wsSubprotocol}
	}

	dialer := websocket.Dialer{Subprotocols: subprotocols}
	conn, _, err := dialer.DialContext(dialCtx, opts.URL, nil)
	if err != nil {
		return nil, err
	}

	ch := &webSocketChannel{
		conn:     conn,
		events:   make(chan ChannelEvent, 1),
		shutdown: make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

func (ch *webSocketChannel) readLoop() {
	defer close(ch.events)
	for {
		msgType, data, err := ch.conn.ReadMessage()
		if err != nil {
			select {
			case <-ch.shutdown:
				ch.events <- ChannelClosed{}
			default:
				ch.events <- ChannelErrorEvent{Err: err}
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case ch.events <- IncomingData{Data: data}:
		case <-ch.shutdown:
			return
		}
	}
}

func (ch *webSocketChannel) Send(data []byte) error {
	if err := ch.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &SendFailedError{Err: err}
	}
	return nil
}

func (ch *webSocketChannel) Events() <-chan ChannelEvent {
	return ch.events
}

func (ch *webSocketChannel) Shutdown() {
	select {
	case <-ch.shutdown:
		return
	default:
		close(ch.shutdown)
	}
	_ = ch.conn.Close()
}
