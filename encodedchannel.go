package mqttgo

import (
	"github.com/sbergen/mqttgo/internal/packets"
)

// EncodedPacketsEvent is delivered when the accumulator decoded zero or
// more whole packets from newly arrived bytes. A decode error mid-stream is
// reported via Err and is fatal: the caller must disconnect.
type EncodedPacketsEvent struct {
	Packets []packets.Packet
	Err     error
}

func (EncodedPacketsEvent) isChannelEvent() {}

// encodedChannel wraps a raw Channel, owns the inbound byte accumulator,
// and turns IncomingData events into decoded-packet-list events. Closed and
// error events pass through unchanged.
type encodedChannel struct {
	channel Channel
	events  chan ChannelEvent
	tail    []byte
}

func newEncodedChannel(channel Channel) *encodedChannel {
	ec := &encodedChannel{
		channel: channel,
		events:  make(chan ChannelEvent, 1),
	}
	go ec.pump()
	return ec
}

// pump translates the wrapped channel's events into this channel's events
// until the wrapped channel's stream ends.
func (ec *encodedChannel) pump() {
	defer close(ec.events)
	for ev := range ec.channel.Events() {
		switch e := ev.(type) {
		case IncomingData:
			ec.tail = append(ec.tail, e.Data...)
			decoded, leftover, err := packets.DecodeMany(ec.tail)
			ec.tail = leftover
			if err != nil {
				ec.events <- EncodedPacketsEvent{Err: err}
				return
			}
			if len(decoded) > 0 {
				ec.events <- EncodedPacketsEvent{Packets: decoded}
			}
		default:
			ec.events <- ev
			return
		}
	}
}

// send encodes pkt and forwards it to the underlying channel.
func (ec *encodedChannel) send(pkt packets.Packet) error {
	bufPtr := packets.GetBuffer()
	defer packets.PutBuffer(bufPtr)
	*bufPtr = pkt.Encode(*bufPtr)
	return ec.channel.Send(*bufPtr)
}

func (ec *encodedChannel) shutdown() {
	ec.channel.Shutdown()
}
