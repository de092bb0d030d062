package mqttgo

import (
	"context"
	"sync"
)

// fakeChannel is an in-memory duplex Channel: Send appends to a buffer the
// test can inspect, and the test drives inbound traffic by calling deliver.
// It never touches a real socket, so engine tests run instantly and
// deterministically.
type fakeChannel struct {
	mu       sync.Mutex
	sent     [][]byte
	events   chan ChannelEvent
	shutdown chan struct{}
	sendErr  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		events:   make(chan ChannelEvent, 16),
		shutdown: make(chan struct{}),
	}
}

func (f *fakeChannel) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return &SendFailedError{Err: f.sendErr}
	}
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeChannel) Events() <-chan ChannelEvent {
	return f.events
}

func (f *fakeChannel) Shutdown() {
	select {
	case <-f.shutdown:
	default:
		close(f.shutdown)
	}
}

// deliver simulates the peer sending bytes to this side.
func (f *fakeChannel) deliver(data []byte) {
	f.events <- IncomingData{Data: data}
}

// sentBytes returns a snapshot of everything sent so far, concatenated.
func (f *fakeChannel) sentBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []byte
	for _, b := range f.sent {
		all = append(all, b...)
	}
	return all
}

// fakeDialer returns a WithDialer-compatible func that always hands back ch,
// regardless of the requested TransportOptions. Tests use this to splice a
// fakeChannel into a real Client/engine without touching the network.
func fakeDialer(ch *fakeChannel) func(ctx context.Context, opts TransportOptions) (Channel, error) {
	return func(ctx context.Context, opts TransportOptions) (Channel, error) {
		return ch, nil
	}
}
