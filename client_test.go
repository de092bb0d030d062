package mqttgo

import (
	"context"
	"testing"
	"time"

	"github.com/sbergen/mqttgo/internal/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestClient(t *testing.T, ch *fakeChannel, opts ConnectOptions, extra ...Option) *Client {
	t.Helper()
	options := append([]Option{WithDialer(fakeDialer(ch)), WithUpdatesBuffer(16)}, extra...)
	c := Start(opts, TCPTransport{Host: "localhost", Port: 1883}, options...)
	t.Cleanup(c.Stop)
	return c
}

func waitConnect(t *testing.T, ch *fakeChannel) *packets.ConnectPacket {
	t.Helper()
	require.Eventually(t, func() bool { return len(ch.sentBytes()) > 0 }, time.Second, time.Millisecond)
	pkts, _, err := packets.DecodeMany(ch.sentBytes())
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	connect, ok := pkts[0].(*packets.ConnectPacket)
	require.True(t, ok)
	return connect
}

// S1: Connect round-trip with an explicit client id and keep_alive, asserting
// exact CONNECT/CONNACK wire bytes.
func TestConnectRoundTrip(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{ClientID: "test-client-id", KeepAlive: 15 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var sessionPresent bool
	var connectErr error
	done := make(chan struct{})
	go func() {
		sessionPresent, connectErr = c.Connect(ctx)
		close(done)
	}()

	connect := waitConnect(t, ch)
	assert.Equal(t, "test-client-id", connect.ClientID)
	assert.Equal(t, uint16(15), connect.KeepAlive)

	expectedConnect := (&packets.ConnectPacket{ClientID: "test-client-id", KeepAlive: 15}).Encode(nil)
	assert.Equal(t, expectedConnect, ch.sentBytes())

	connack := (&packets.ConnackPacket{SessionPresent: false, ReturnCode: 0}).Encode(nil)
	ch.deliver(connack)

	<-done
	require.NoError(t, connectErr)
	assert.False(t, sessionPresent)

	select {
	case u := <-c.Updates():
		change, ok := u.(ConnectionStateChanged)
		require.True(t, ok)
		_, ok = change.State.(ConnectAccepted)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnectAccepted update")
	}
}

// S2: a rejected connect surfaces the mapped sentinel error and leaves the
// client able to retry a fresh Connect afterward.
func TestConnectRejectedThenRetry(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{ClientID: "retry-client", KeepAlive: 30 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx)
		done <- err
	}()

	waitConnect(t, ch)
	ch.deliver((&packets.ConnackPacket{ReturnCode: 4}).Encode(nil)) // bad username/password

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBadUsernameOrPassword)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejected connect")
	}

	select {
	case u := <-c.Updates():
		change := u.(ConnectionStateChanged)
		failed, ok := change.State.(ConnectFailed)
		require.True(t, ok)
		assert.ErrorIs(t, failed.Err, ErrBadUsernameOrPassword)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnectFailed update")
	}

	// retry against a fresh channel (simulating a new dial)
	ch2 := newFakeChannel()
	c.config.dialer = fakeDialer(ch2)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	done2 := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx2)
		done2 <- err
	}()

	waitConnect(t, ch2)
	ch2.deliver((&packets.ConnackPacket{ReturnCode: 0}).Encode(nil))

	select {
	case err := <-done2:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for successful reconnect")
	}
}

// S3: subscribing to three filters of increasing QoS, with the last denied.
func TestSubscribeResults(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{ClientID: "sub-client", KeepAlive: 30 * time.Second})
	connectAndAccept(t, c, ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reqs := []SubscribeRequest{
		{Filter: "topic0", QoS: AtMostOnce},
		{Filter: "topic1", QoS: AtLeastOnce},
		{Filter: "topic2", QoS: ExactlyOnce},
	}

	resultsCh := make(chan []SubscribeResult, 1)
	errCh := make(chan error, 1)
	go func() {
		results, err := c.Subscribe(ctx, reqs)
		resultsCh <- results
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		pkts, _, err := packets.DecodeMany(ch.sentBytes())
		return err == nil && len(pkts) == 2 // CONNECT + SUBSCRIBE
	}, time.Second, time.Millisecond)

	pkts, _, err := packets.DecodeMany(ch.sentBytes())
	require.NoError(t, err)
	sub, ok := pkts[1].(*packets.SubscribePacket)
	require.True(t, ok)
	require.Len(t, sub.Topics, 3)

	suback := (&packets.SubackPacket{
		PacketID:    sub.PacketID,
		ReturnCodes: []uint8{0x00, 0x01, 0x80},
	}).Encode(nil)
	ch.deliver(suback)

	require.NoError(t, <-errCh)
	results := <-resultsCh
	require.Len(t, results, 3)
	assert.Equal(t, SubscribeResult{Granted: AtMostOnce}, results[0])
	assert.Equal(t, SubscribeResult{Granted: AtLeastOnce}, results[1])
	assert.Equal(t, SubscribeResult{Failed: true}, results[2])
}

// S4: a QoS0 publish replies as soon as bytes reach the channel and produces
// the exact wire bytes for the given topic/payload.
func TestPublishQoS0WireBytes(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{ClientID: "pub-client", KeepAlive: 30 * time.Second})
	connectAndAccept(t, c, ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Publish(ctx, PublishData{Message: MessageData{Topic: "a/b", Payload: []byte("hi"), QoS: AtMostOnce}})
	require.NoError(t, err)

	pkts, _, decodeErr := packets.DecodeMany(ch.sentBytes())
	require.NoError(t, decodeErr)
	require.Len(t, pkts, 2) // CONNECT + PUBLISH
	publish, ok := pkts[1].(*packets.PublishPacket)
	require.True(t, ok)

	expected := (&packets.PublishPacket{Topic: "a/b", Payload: []byte("hi"), QoS: 0}).Encode(nil)
	gotEncoded := publish.Encode(nil)
	assert.Equal(t, expected, gotEncoded)
	assert.True(t, expected[0]&0xF0 == 0x30, "publish packet type nibble")
}

// S5: keep-alive sends a PINGREQ after the idle interval, and a PINGRESP
// clears the disconnect deadline.
func TestKeepAlivePingPong(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{
		ClientID:      "ping-client",
		KeepAlive:     200 * time.Millisecond,
		ServerTimeout: 50 * time.Millisecond,
	})
	connectAndAccept(t, c, ch)

	require.Eventually(t, func() bool {
		pkts, _, err := packets.DecodeMany(ch.sentBytes())
		if err != nil || len(pkts) < 2 {
			return false
		}
		_, ok := pkts[len(pkts)-1].(*packets.PingreqPacket)
		return ok
	}, time.Second, 5*time.Millisecond)

	ch.deliver((&packets.PingrespPacket{}).Encode(nil))

	// the pong must clear the pending disconnect deadline: wait past the
	// point where it would have fired (ServerTimeout after the PINGREQ), but
	// check well before the next keep-alive cycle starts a new one.
	time.Sleep(100 * time.Millisecond)
	select {
	case u := <-c.Updates():
		t.Fatalf("unexpected update after pingresp: %#v", u)
	default:
	}
}

// S5b: a missed PINGRESP forces a disconnect once server_timeout elapses.
func TestKeepAliveTimeoutForcesDisconnect(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{
		ClientID:      "timeout-client",
		KeepAlive:     20 * time.Millisecond,
		ServerTimeout: 30 * time.Millisecond,
	})
	connectAndAccept(t, c, ch)

	select {
	case u := <-c.Updates():
		change, ok := u.(ConnectionStateChanged)
		require.True(t, ok)
		_, ok = change.State.(Disconnected)
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forced disconnect")
	}
}

// S6: Disconnect called before CONNACK arrives aborts the pending connect.
func TestDisconnectAbortsPendingConnect(t *testing.T) {
	ch := newFakeChannel()
	c := startTestClient(t, ch, ConnectOptions{ClientID: "abort-client", KeepAlive: 30 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx)
		done <- err
	}()

	waitConnect(t, ch)
	c.Disconnect()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDisconnectRequested)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for aborted connect")
	}
}

// connectAndAccept drives a full successful handshake and drains the
// resulting ConnectAccepted update so later assertions in a test start from
// a clean Updates() channel.
func connectAndAccept(t *testing.T, c *Client, ch *fakeChannel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx)
		done <- err
	}()

	waitConnect(t, ch)
	ch.deliver((&packets.ConnackPacket{ReturnCode: 0}).Encode(nil))
	require.NoError(t, <-done)

	select {
	case <-c.Updates():
	case <-time.After(time.Second):
		t.Fatal("timed out draining ConnectAccepted update")
	}
}
