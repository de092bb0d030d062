package mqttgo

import "github.com/sbergen/mqttgo/internal/packets"

// pendingSubscription is what the engine remembers about an outstanding
// SUBSCRIBE while waiting for its SUBACK: the requests (to zip against the
// granted/failed results) and where to send the answer.
type pendingSubscription struct {
	topics  []SubscribeRequest
	replyTo chan subscribeResult
}

type subscribeResult struct {
	results []SubscribeResult
	err     error
}

// pendingUnsubscription is the UNSUBACK analog.
type pendingUnsubscription struct {
	filters []string
	replyTo chan error
}

// pendingPublish is what the engine remembers about an outstanding QoS>0
// publish while waiting for its PUBACK (QoS1) or PUBREC/PUBCOMP (QoS2).
// Publish itself already replied once the packet was handed to the
// channel (section 4.4); this table exists to hold the packet id and
// (for QoS2) track handshake progress, not to carry a reply.
type pendingPublish struct {
	data PublishData
	// pubrelSent is set once PUBREC has been answered with PUBREL.
	pubrelSent bool
}

// requestTables holds every packet-id-keyed table the engine consults when
// allocating a new id or tearing down the connection. It is owned
// exclusively by the engine goroutine — no locking needed.
type requestTables struct {
	ids         packetIDAllocator
	subs        map[uint16]*pendingSubscription
	unsubs      map[uint16]*pendingUnsubscription
	publishes   map[uint16]*pendingPublish
	inboundQoS2 map[uint16]struct{}
}

func newRequestTables() *requestTables {
	return &requestTables{
		subs:        make(map[uint16]*pendingSubscription),
		unsubs:      make(map[uint16]*pendingUnsubscription),
		publishes:   make(map[uint16]*pendingPublish),
		inboundQoS2: make(map[uint16]struct{}),
	}
}

// reserveID allocates a packet id unused by any pending table, satisfying
// the invariant that ids are unique across the union of all pending tables.
func (t *requestTables) reserveID() uint16 {
	return t.ids.reserve(func(id uint16) bool {
		if _, ok := t.subs[id]; ok {
			return true
		}
		if _, ok := t.unsubs[id]; ok {
			return true
		}
		if _, ok := t.publishes[id]; ok {
			return true
		}
		_, ok := t.inboundQoS2[id]
		return ok
	})
}

// failAll completes every pending subscribe/unsubscribe caller with err and
// clears every packet-id table. Called on any transition out of
// Connected/Connecting. Outstanding QoS>0 publishes have no waiting caller
// to notify — Publish already replied once the packet reached the channel
// — so their table entries are simply dropped.
func (t *requestTables) failAll(err error) {
	for id, p := range t.subs {
		p.replyTo <- subscribeResult{err: err}
		delete(t.subs, id)
	}
	for id, p := range t.unsubs {
		p.replyTo <- err
		delete(t.unsubs, id)
	}
	for id := range t.publishes {
		delete(t.publishes, id)
	}
	for id := range t.inboundQoS2 {
		delete(t.inboundQoS2, id)
	}
}

// zipSubackResults pairs SUBACK return codes with the originally requested
// filters, in order. A length mismatch is a protocol violation the caller
// must turn into a disconnect.
func zipSubackResults(requests []SubscribeRequest, codes []uint8) ([]SubscribeResult, error) {
	if len(requests) != len(codes) {
		return nil, ErrSubscribeFailed
	}
	results := make([]SubscribeResult, len(requests))
	for i, code := range codes {
		switch code {
		case packets.SubackFailure:
			results[i] = SubscribeResult{Failed: true}
		default:
			results[i] = SubscribeResult{Granted: QoS(code)}
		}
	}
	return results, nil
}
