package mqttgo

import "time"

// connState is the connection's tagged state, modeled as an interface so
// each variant owns exactly the resources valid in that state: no channel
// while NotConnected, no timers while ConnectingToServer. "A timer is armed
// iff Connected" becomes a property of which struct is in play, not a
// runtime check against nil fields.
type connState interface {
	isConnState()
}

// stateNotConnected is the initial state and the state after any
// disconnect, requested or forced.
type stateNotConnected struct{}

func (stateNotConnected) isConnState() {}

// stateConnecting holds the channel and the pending Connect reply while
// waiting for CONNACK.
type stateConnecting struct {
	channel *encodedChannel
	replyTo chan connectResult
}

func (*stateConnecting) isConnState() {}

// stateConnected holds the channel and the keep-alive timer discipline.
// Exactly one of pingTimer / disconnectTimer is non-nil and armed at a
// time: pingTimer while waiting to send the next PINGREQ, disconnectTimer
// while waiting for its PINGRESP.
type stateConnected struct {
	channel         *encodedChannel
	pingTimer       *time.Timer
	disconnectTimer *time.Timer
}

func (*stateConnected) isConnState() {}

// connectResult is delivered to a Connect caller's reply channel.
type connectResult struct {
	sessionPresent bool
	err            error
}

// stopTimers cancels whichever timer is currently armed in a Connected
// state. Safe to call on a stateConnected with both nil.
func (s *stateConnected) stopTimers() {
	if s.pingTimer != nil {
		s.pingTimer.Stop()
		s.pingTimer = nil
	}
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
}
