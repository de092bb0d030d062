package mqttgo

// SessionStore is a hook for persisting client-side delivery and
// subscription state across process restarts — broker session state is
// never persisted, since this client always connects with clean_session=1
// (section 3.1.2.4), so the broker forgets its side on every reconnect
// regardless. What the store remembers instead is purely this client's own
// bookkeeping for honoring its delivery guarantees and re-establishing
// subscriptions the broker just discarded:
//
//   - Pending QoS>0 publishes awaiting PUBACK/PUBCOMP, so a process restart
//     doesn't silently drop an unacknowledged "at least once" message.
//   - Inbound QoS2 packet ids awaiting PUBREL, so a redelivered duplicate
//     is still recognized after a restart.
//   - The caller's active subscriptions, so the engine can transparently
//     re-subscribe after every connect (clean_session means the broker
//     never remembers them itself).
//
// All methods are called only from the engine goroutine and need not be
// safe for concurrent use. Save/Delete may persist asynchronously; Load
// methods are called once per successful connect and must return the
// actual data synchronously. NopSessionStore, the default, discards
// everything, so a Client works with zero persistence by default.
type SessionStore interface {
	// SavePendingPublish records an outbound QoS>0 publish awaiting
	// acknowledgment.
	SavePendingPublish(id uint16, pub PersistedPublish) error

	// DeletePendingPublish removes a publish once its handshake completes.
	DeletePendingPublish(id uint16) error

	// LoadPendingPublishes retrieves every publish saved (and not yet
	// deleted) by a previous process, called once right after a connect is
	// accepted so the engine can resend them.
	LoadPendingPublishes() (map[uint16]PersistedPublish, error)

	// ClearPendingPublishes removes every pending publish, called when the
	// client is permanently stopped rather than merely disconnected.
	ClearPendingPublishes() error

	// SaveSubscription records an active subscription, called once its
	// SUBACK grants it.
	SaveSubscription(filter string, sub SubscriptionInfo) error

	// DeleteSubscription removes a subscription, called once its UNSUBACK
	// arrives.
	DeleteSubscription(filter string) error

	// LoadSubscriptions retrieves every subscription saved by a previous
	// connect, called once right after a connect is accepted so the engine
	// can transparently re-subscribe.
	LoadSubscriptions() (map[string]SubscriptionInfo, error)

	// SaveReceivedQoS2 records an inbound QoS2 packet id awaiting PUBREL.
	SaveReceivedQoS2(id uint16) error

	// DeleteReceivedQoS2 removes an inbound QoS2 id once PUBREL arrives.
	DeleteReceivedQoS2(id uint16) error

	// LoadReceivedQoS2 retrieves every inbound QoS2 id saved by a previous
	// process, called once right after a connect is accepted.
	LoadReceivedQoS2() (map[uint16]struct{}, error)

	// ClearReceivedQoS2 removes every inbound QoS2 id, called when the
	// client is permanently stopped rather than merely disconnected.
	ClearReceivedQoS2() error
}

// PersistedPublish is the subset of PublishData a SessionStore needs to
// resend a publish after a restart.
type PersistedPublish struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

// SubscriptionInfo is the subset of a subscription a SessionStore needs to
// re-subscribe after a restart.
type SubscriptionInfo struct {
	QoS QoS
}

// NopSessionStore is the default SessionStore: every Save/Delete/Clear is a
// no-op that always succeeds, and every Load reports nothing saved.
type NopSessionStore struct{}

func (NopSessionStore) SavePendingPublish(uint16, PersistedPublish) error { return nil }
func (NopSessionStore) DeletePendingPublish(uint16) error                 { return nil }
func (NopSessionStore) LoadPendingPublishes() (map[uint16]PersistedPublish, error) {
	return nil, nil
}
func (NopSessionStore) ClearPendingPublishes() error { return nil }

func (NopSessionStore) SaveSubscription(string, SubscriptionInfo) error { return nil }
func (NopSessionStore) DeleteSubscription(string) error                 { return nil }
func (NopSessionStore) LoadSubscriptions() (map[string]SubscriptionInfo, error) {
	return nil, nil
}

func (NopSessionStore) SaveReceivedQoS2(uint16) error { return nil }
func (NopSessionStore) DeleteReceivedQoS2(uint16) error { return nil }
func (NopSessionStore) LoadReceivedQoS2() (map[uint16]struct{}, error) {
	return nil, nil
}
func (NopSessionStore) ClearReceivedQoS2() error { return nil }
