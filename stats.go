package mqttgo

import "sync/atomic"

// ClientStats are cumulative counters maintained for the lifetime of a
// Client, across reconnects. All fields are safe for concurrent reads while
// the client is running.
type ClientStats struct {
	PacketsSent     atomic.Uint64
	PacketsReceived atomic.Uint64
	MessagesSent    atomic.Uint64
	MessagesRecv    atomic.Uint64
	Reconnects      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters, safe to pass around or
// compare.
type StatsSnapshot struct {
	PacketsSent     uint64
	PacketsReceived uint64
	MessagesSent    uint64
	MessagesRecv    uint64
	Reconnects      uint64
}

// GetStats returns a snapshot of the client's cumulative counters.
func (c *Client) GetStats() StatsSnapshot {
	return StatsSnapshot{
		PacketsSent:     c.stats.PacketsSent.Load(),
		PacketsReceived: c.stats.PacketsReceived.Load(),
		MessagesSent:    c.stats.MessagesSent.Load(),
		MessagesRecv:    c.stats.MessagesRecv.Load(),
		Reconnects:      c.stats.Reconnects.Load(),
	}
}
