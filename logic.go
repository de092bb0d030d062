package mqttgo

import (
	"context"
	"fmt"
	"time"

	"github.com/sbergen/mqttgo/internal/packets"
)

// Requests the engine accepts on its single inbox channel. Each carries its
// own reply channel (buffered by 1 so the engine never blocks handing back
// an answer) except reqDisconnect and reqStop, which are fire-and-forget.
type (
	reqConnect struct {
		ctx     context.Context
		replyTo chan connectResult
	}
	reqPublish struct {
		data    PublishData
		replyTo chan error
	}
	reqSubscribe struct {
		topics  []SubscribeRequest
		replyTo chan subscribeResult
	}
	reqUnsubscribe struct {
		filters []string
		replyTo chan error
	}
	reqDisconnect struct{}
	reqStop       struct{}
)

// engine is the single goroutine that owns all mutable connection state:
// the state machine, the pending-request tables, and the keep-alive
// timers. It is reached only through Client's channels, so it never needs
// a lock (section 5).
type engine struct {
	client    *Client
	transport TransportOptions
	state     connState
	tables    *requestTables

	// everConnected is set the first time a CONNACK is accepted; a later
	// accepted CONNACK counts toward ClientStats.Reconnects.
	everConnected bool
}

// run is the engine's select loop. It exits only when a reqStop request is
// processed.
func (e *engine) run() {
	defer func() {
		close(e.client.updates)
		close(e.client.stopped)
	}()

	for {
		var channelEvents <-chan ChannelEvent
		var pingC, disconnectC <-chan time.Time

		switch s := e.state.(type) {
		case *stateConnecting:
			channelEvents = s.channel.events
		case *stateConnected:
			channelEvents = s.channel.events
			if s.pingTimer != nil {
				pingC = s.pingTimer.C
			}
			if s.disconnectTimer != nil {
				disconnectC = s.disconnectTimer.C
			}
		}

		select {
		case req := <-e.client.requests:
			if !e.handleRequest(req) {
				return
			}
		case ev, ok := <-channelEvents:
			if ok {
				e.handleChannelEvent(ev)
			}
		case <-pingC:
			e.handlePingTimer()
		case <-disconnectC:
			e.handleDisconnectTimer()
		}
	}
}

// handleRequest dispatches one inbox request. It returns false when the
// engine should stop running.
func (e *engine) handleRequest(req any) bool {
	switch r := req.(type) {
	case reqConnect:
		e.handleConnect(r)
	case reqPublish:
		e.handlePublish(r)
	case reqSubscribe:
		e.handleSubscribe(r)
	case reqUnsubscribe:
		e.handleUnsubscribe(r)
	case reqDisconnect:
		e.handleDisconnectRequest()
	case reqStop:
		e.handleStop()
		return false
	}
	return true
}

func (e *engine) handleConnect(r reqConnect) {
	if _, ok := e.state.(stateNotConnected); !ok {
		r.replyTo <- connectResult{err: ErrAlreadyConnected}
		return
	}

	channel, err := e.client.config.dialer(r.ctx, e.transport)
	if err != nil {
		r.replyTo <- connectResult{err: err}
		return
	}

	ec := newEncodedChannel(channel)
	keepAliveSeconds := uint16(e.client.opts.KeepAlive / time.Second)
	connectPkt := &packets.ConnectPacket{
		ClientID:  e.client.opts.ClientID,
		KeepAlive: keepAliveSeconds,
	}
	if err := ec.send(connectPkt); err != nil {
		ec.shutdown()
		r.replyTo <- connectResult{err: err}
		return
	}
	e.client.stats.PacketsSent.Add(1)

	e.state = &stateConnecting{channel: ec, replyTo: r.replyTo}
	e.client.logger().Debug("connecting", "client_id", e.client.opts.ClientID)
}

// handlePublish encodes and forwards a Publish. Per section 4.4, the reply
// is Ok(()) as soon as the bytes reach the channel — not after the
// handshake completes.
func (e *engine) handlePublish(r reqPublish) {
	data := r.data
	pkt := &packets.PublishPacket{
		Topic:   data.Message.Topic,
		Payload: data.Message.Payload,
		Retain:  data.Message.Retain,
		Dup:     data.Dup,
	}
	if data.Message.QoS > AtMostOnce {
		pkt.QoS = uint8(data.Message.QoS)
		pkt.PacketID = e.tables.reserveID()
	}

	if err := e.sendAny(pkt); err != nil {
		r.replyTo <- &PublishError{Err: err}
		return
	}

	if pkt.QoS > 0 {
		e.tables.publishes[pkt.PacketID] = &pendingPublish{data: data}
		persisted := PersistedPublish{
			Topic:   data.Message.Topic,
			Payload: data.Message.Payload,
			QoS:     data.Message.QoS,
			Retain:  data.Message.Retain,
		}
		if err := e.client.config.sessionStore.SavePendingPublish(pkt.PacketID, persisted); err != nil {
			e.client.logger().Warn("failed to persist pending publish", "packet_id", pkt.PacketID, "error", err)
		}
	}

	e.client.stats.MessagesSent.Add(1)
	r.replyTo <- nil
}

func (e *engine) handleSubscribe(r reqSubscribe) {
	s, ok := e.state.(*stateConnected)
	if !ok {
		r.replyTo <- subscribeResult{err: ErrNotConnected}
		return
	}

	id := e.tables.reserveID()
	topics := make([]packets.SubscribeTopic, len(r.topics))
	for i, req := range r.topics {
		topics[i] = packets.SubscribeTopic{Filter: req.Filter, QoS: uint8(req.QoS)}
	}

	if err := e.sendConnected(s, &packets.SubscribePacket{PacketID: id, Topics: topics}); err != nil {
		r.replyTo <- subscribeResult{err: ErrSubscribeFailed}
		return
	}

	e.tables.subs[id] = &pendingSubscription{topics: r.topics, replyTo: r.replyTo}
}

func (e *engine) handleUnsubscribe(r reqUnsubscribe) {
	s, ok := e.state.(*stateConnected)
	if !ok {
		r.replyTo <- ErrNotConnected
		return
	}

	id := e.tables.reserveID()
	if err := e.sendConnected(s, &packets.UnsubscribePacket{PacketID: id, Filters: r.filters}); err != nil {
		r.replyTo <- ErrUnsubscribeFailed
		return
	}

	e.tables.unsubs[id] = &pendingUnsubscription{filters: r.filters, replyTo: r.replyTo}
}

func (e *engine) handleDisconnectRequest() {
	e.client.logger().Debug("disconnect requested")
	switch s := e.state.(type) {
	case *stateConnecting:
		s.replyTo <- connectResult{err: ErrDisconnectRequested}
		s.channel.shutdown()
		e.tables.failAll(ErrClientDisconnected)
		e.state = stateNotConnected{}
		e.emitUpdate(ConnectionStateChanged{State: Disconnected{}})
	case *stateConnected:
		_ = s.channel.send(&packets.DisconnectPacket{})
		s.stopTimers()
		s.channel.shutdown()
		e.tables.failAll(ErrClientDisconnected)
		e.state = stateNotConnected{}
		e.emitUpdate(ConnectionStateChanged{State: Disconnected{}})
	}
}

func (e *engine) handleStop() {
	e.client.logger().Debug("stopping")
	switch s := e.state.(type) {
	case *stateConnecting:
		s.channel.shutdown()
		s.replyTo <- connectResult{err: ErrKilled}
	case *stateConnected:
		s.stopTimers()
		s.channel.shutdown()
		e.emitUpdate(ConnectionStateChanged{State: Disconnected{}})
	}
	e.tables.failAll(ErrKilled)

	if err := e.client.config.sessionStore.ClearPendingPublishes(); err != nil {
		e.client.logger().Warn("failed to clear pending publishes", "error", err)
	}
	if err := e.client.config.sessionStore.ClearReceivedQoS2(); err != nil {
		e.client.logger().Warn("failed to clear received qos2 ids", "error", err)
	}
}

func (e *engine) handleChannelEvent(ev ChannelEvent) {
	switch ev := ev.(type) {
	case EncodedPacketsEvent:
		if ev.Err != nil {
			err := &ProtocolError{Op: "decode", Err: ev.Err}
			e.client.logger().Debug("codec error", "error", ev.Err)
			e.client.logger().Warn("decode error, disconnecting", "error", err)
			e.forceDisconnect(err)
			return
		}
		for _, pkt := range ev.Packets {
			e.handleIncomingPacket(pkt)
		}
	case ChannelClosed:
		e.forceDisconnect(nil)
	case ChannelErrorEvent:
		err := &ProtocolError{Op: "channel", Err: ev.Err}
		e.client.logger().Warn("channel error, disconnecting", "error", err)
		e.forceDisconnect(err)
	}
}

func (e *engine) handleIncomingPacket(pkt packets.Packet) {
	e.client.stats.PacketsReceived.Add(1)

	switch s := e.state.(type) {
	case *stateConnecting:
		e.handleConnectingPacket(s, pkt)
	case *stateConnected:
		e.handleConnectedPacket(s, pkt)
	}
}

func (e *engine) handleConnectingPacket(s *stateConnecting, pkt packets.Packet) {
	connack, ok := pkt.(*packets.ConnackPacket)
	if !ok {
		err := fmt.Errorf("mqttgo: unexpected %s while connecting", packets.PacketNames[pkt.Type()])
		perr := &ProtocolError{Op: "violation", Err: err}
		e.client.logger().Warn("protocol violation, disconnecting", "error", perr)
		e.forceDisconnect(perr)
		return
	}

	if err := connectErrorFromReturnCode(connack.ReturnCode); err != nil {
		s.replyTo <- connectResult{err: err}
		s.channel.shutdown()
		e.tables.failAll(ErrClientDisconnected)
		e.state = stateNotConnected{}
		e.emitUpdate(ConnectionStateChanged{State: ConnectFailed{Err: err}})
		return
	}

	s.replyTo <- connectResult{sessionPresent: connack.SessionPresent}
	if e.everConnected {
		e.client.stats.Reconnects.Add(1)
	}
	e.everConnected = true
	connected := &stateConnected{
		channel:   s.channel,
		pingTimer: time.NewTimer(e.client.opts.KeepAlive),
	}
	e.state = connected
	e.client.logger().Debug("connected", "session_present", connack.SessionPresent)
	e.emitUpdate(ConnectionStateChanged{State: ConnectAccepted{SessionPresent: connack.SessionPresent}})
	e.resumeSession(connected)
}

// resumeSession replays the client-side session state a SessionStore still
// remembers against a freshly accepted connection. clean_session=1
// (section 3.1.2.4) means the broker just discarded its own side, so any
// unacknowledged QoS>0 publish, undelivered QoS2 PUBREL, or subscription
// the store has on file is this client's sole remaining record of it; the
// default NopSessionStore has nothing on file and this is a no-op.
func (e *engine) resumeSession(s *stateConnected) {
	store := e.client.config.sessionStore

	pending, err := store.LoadPendingPublishes()
	if err != nil {
		e.client.logger().Warn("failed to load pending publishes", "error", err)
	}
	for id, pub := range pending {
		pkt := &packets.PublishPacket{
			PacketID: id,
			Topic:    pub.Topic,
			Payload:  pub.Payload,
			QoS:      uint8(pub.QoS),
			Retain:   pub.Retain,
			Dup:      true,
		}
		if err := e.sendConnected(s, pkt); err != nil {
			e.client.logger().Warn("failed to resend pending publish", "packet_id", id, "error", err)
			continue
		}
		e.tables.publishes[id] = &pendingPublish{data: PublishData{
			Message:  MessageData{Topic: pub.Topic, Payload: pub.Payload, QoS: pub.QoS, Retain: pub.Retain},
			Dup:      true,
			PacketID: id,
		}}
	}

	qos2ids, err := store.LoadReceivedQoS2()
	if err != nil {
		e.client.logger().Warn("failed to load received qos2 ids", "error", err)
	}
	for id := range qos2ids {
		e.tables.inboundQoS2[id] = struct{}{}
	}

	subs, err := store.LoadSubscriptions()
	if err != nil {
		e.client.logger().Warn("failed to load subscriptions", "error", err)
	}
	if len(subs) == 0 {
		return
	}
	topics := make([]packets.SubscribeTopic, 0, len(subs))
	requests := make([]SubscribeRequest, 0, len(subs))
	for filter, info := range subs {
		topics = append(topics, packets.SubscribeTopic{Filter: filter, QoS: uint8(info.QoS)})
		requests = append(requests, SubscribeRequest{Filter: filter, QoS: info.QoS})
	}
	id := e.tables.reserveID()
	if err := e.sendConnected(s, &packets.SubscribePacket{PacketID: id, Topics: topics}); err != nil {
		e.client.logger().Warn("failed to resubscribe", "error", err)
		return
	}
	e.tables.subs[id] = &pendingSubscription{topics: requests, replyTo: make(chan subscribeResult, 1)}
}

func (e *engine) handleConnectedPacket(s *stateConnected, pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		e.handleIncomingPublish(s, p)

	case *packets.PubackPacket:
		if _, ok := e.tables.publishes[p.PacketID]; ok {
			delete(e.tables.publishes, p.PacketID)
			if err := e.client.config.sessionStore.DeletePendingPublish(p.PacketID); err != nil {
				e.client.logger().Warn("failed to delete pending publish", "packet_id", p.PacketID, "error", err)
			}
		}

	case *packets.PubrecPacket:
		if pp, ok := e.tables.publishes[p.PacketID]; ok {
			pp.pubrelSent = true
			if err := e.sendConnected(s, &packets.PubrelPacket{PacketID: p.PacketID}); err != nil {
				e.client.logger().Warn("failed to send pubrel", "packet_id", p.PacketID, "error", err)
			}
		}

	case *packets.PubrelPacket:
		delete(e.tables.inboundQoS2, p.PacketID)
		if err := e.client.config.sessionStore.DeleteReceivedQoS2(p.PacketID); err != nil {
			e.client.logger().Warn("failed to delete received qos2 id", "packet_id", p.PacketID, "error", err)
		}
		if err := e.sendConnected(s, &packets.PubcompPacket{PacketID: p.PacketID}); err != nil {
			e.client.logger().Warn("failed to send pubcomp", "packet_id", p.PacketID, "error", err)
		}

	case *packets.PubcompPacket:
		if _, ok := e.tables.publishes[p.PacketID]; ok {
			delete(e.tables.publishes, p.PacketID)
			if err := e.client.config.sessionStore.DeletePendingPublish(p.PacketID); err != nil {
				e.client.logger().Warn("failed to delete pending publish", "packet_id", p.PacketID, "error", err)
			}
		}

	case *packets.SubackPacket:
		ps, ok := e.tables.subs[p.PacketID]
		if !ok {
			return
		}
		delete(e.tables.subs, p.PacketID)
		results, err := zipSubackResults(ps.topics, p.ReturnCodes)
		if err != nil {
			ps.replyTo <- subscribeResult{err: err}
			perr := &ProtocolError{Op: "violation", Err: err}
			e.client.logger().Warn("suback result count mismatch, disconnecting", "error", perr)
			e.forceDisconnect(perr)
			return
		}
		for i, req := range ps.topics {
			if results[i].Failed {
				continue
			}
			info := SubscriptionInfo{QoS: results[i].Granted}
			if err := e.client.config.sessionStore.SaveSubscription(req.Filter, info); err != nil {
				e.client.logger().Warn("failed to persist subscription", "filter", req.Filter, "error", err)
			}
		}
		ps.replyTo <- subscribeResult{results: results}

	case *packets.UnsubackPacket:
		if pu, ok := e.tables.unsubs[p.PacketID]; ok {
			delete(e.tables.unsubs, p.PacketID)
			for _, filter := range pu.filters {
				if err := e.client.config.sessionStore.DeleteSubscription(filter); err != nil {
					e.client.logger().Warn("failed to delete subscription", "filter", filter, "error", err)
				}
			}
			pu.replyTo <- nil
		}

	case *packets.PingrespPacket:
		if s.disconnectTimer != nil {
			s.disconnectTimer.Stop()
			s.disconnectTimer = nil
			s.pingTimer = time.NewTimer(e.client.opts.KeepAlive)
		}

	default:
		err := fmt.Errorf("mqttgo: unexpected %s while connected", packets.PacketNames[pkt.Type()])
		perr := &ProtocolError{Op: "violation", Err: err}
		e.client.logger().Warn("protocol violation, disconnecting", "error", perr)
		e.forceDisconnect(perr)
	}
}

func (e *engine) handleIncomingPublish(s *stateConnected, p *packets.PublishPacket) {
	qos := QoS(p.QoS)
	duplicateQoS2 := false

	switch qos {
	case AtLeastOnce:
		if err := e.sendConnected(s, &packets.PubackPacket{PacketID: p.PacketID}); err != nil {
			e.client.logger().Warn("failed to send puback", "packet_id", p.PacketID, "error", err)
		}
	case ExactlyOnce:
		if _, ok := e.tables.inboundQoS2[p.PacketID]; ok {
			duplicateQoS2 = true
		} else {
			e.tables.inboundQoS2[p.PacketID] = struct{}{}
			if err := e.client.config.sessionStore.SaveReceivedQoS2(p.PacketID); err != nil {
				e.client.logger().Warn("failed to persist received qos2 id", "packet_id", p.PacketID, "error", err)
			}
		}
		if err := e.sendConnected(s, &packets.PubrecPacket{PacketID: p.PacketID}); err != nil {
			e.client.logger().Warn("failed to send pubrec", "packet_id", p.PacketID, "error", err)
		}
	}

	if duplicateQoS2 {
		return
	}

	e.client.stats.MessagesRecv.Add(1)
	e.emitUpdate(ReceivedMessage{Topic: p.Topic, Payload: p.Payload, Retained: p.Retain})
}

func (e *engine) handlePingTimer() {
	e.client.logger().Debug("ping timer fired")
	s, ok := e.state.(*stateConnected)
	if !ok {
		return
	}

	if err := s.channel.send(&packets.PingreqPacket{}); err != nil {
		perr := &ProtocolError{Op: "channel", Err: err}
		e.client.logger().Warn("pingreq send failed, disconnecting", "error", perr)
		e.forceDisconnect(perr)
		return
	}
	e.client.stats.PacketsSent.Add(1)

	s.pingTimer = nil
	s.disconnectTimer = time.NewTimer(e.client.opts.ServerTimeout)
}

func (e *engine) handleDisconnectTimer() {
	e.client.logger().Debug("disconnect timer fired")
	err := &ProtocolError{Op: "keepalive", Err: fmt.Errorf("mqttgo: pingresp timeout")}
	e.client.logger().Warn("pingresp deadline exceeded, disconnecting", "error", err)
	e.forceDisconnect(err)
}

// forceDisconnect tears down the current connection (whatever state it is
// in) in response to a channel failure or protocol violation, rather than
// a user-requested disconnect.
func (e *engine) forceDisconnect(err error) {
	e.client.logger().Debug("forcing disconnect", "state", fmt.Sprintf("%T", e.state))
	switch s := e.state.(type) {
	case *stateConnecting:
		s.channel.shutdown()
		connectErr := err
		if connectErr == nil {
			connectErr = ErrClientDisconnected
		}
		s.replyTo <- connectResult{err: connectErr}
		e.tables.failAll(ErrClientDisconnected)
		e.state = stateNotConnected{}
		e.emitUpdate(ConnectionStateChanged{State: ConnectFailed{Err: connectErr}})
	case *stateConnected:
		s.stopTimers()
		s.channel.shutdown()
		e.tables.failAll(ErrClientDisconnected)
		e.state = stateNotConnected{}
		e.emitUpdate(ConnectionStateChanged{State: Disconnected{}})
	}
}

// sendAny sends pkt over whichever channel is active in Connecting or
// Connected state (Publish is valid in both per section 4.4); it resets
// the ping timer on success if currently Connected.
func (e *engine) sendAny(pkt packets.Packet) error {
	switch s := e.state.(type) {
	case *stateConnecting:
		if err := s.channel.send(pkt); err != nil {
			return err
		}
		e.client.stats.PacketsSent.Add(1)
		return nil
	case *stateConnected:
		return e.sendConnected(s, pkt)
	default:
		return ErrNotConnected
	}
}

// sendConnected sends pkt and resets the ping timer: any outbound packet
// postpones the next keep-alive ping.
func (e *engine) sendConnected(s *stateConnected, pkt packets.Packet) error {
	if err := s.channel.send(pkt); err != nil {
		return err
	}
	e.client.stats.PacketsSent.Add(1)
	if s.disconnectTimer == nil {
		if s.pingTimer != nil {
			s.pingTimer.Stop()
		}
		s.pingTimer = time.NewTimer(e.client.opts.KeepAlive)
	}
	return nil
}

// emitUpdate delivers u to the client's updates stream. It blocks if the
// consumer is behind the configured buffer, applying backpressure to the
// engine itself rather than dropping updates.
func (e *engine) emitUpdate(u Update) {
	e.client.updates <- u
}
