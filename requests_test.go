package mqttgo

import (
	"errors"
	"testing"

	"github.com/sbergen/mqttgo/internal/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipSubackResults(t *testing.T) {
	requests := []SubscribeRequest{
		{Filter: "a", QoS: AtMostOnce},
		{Filter: "b", QoS: AtLeastOnce},
		{Filter: "c", QoS: ExactlyOnce},
	}
	codes := []uint8{packets.SubackQoS0, packets.SubackQoS1, packets.SubackFailure}

	results, err := zipSubackResults(requests, codes)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, SubscribeResult{Granted: AtMostOnce}, results[0])
	assert.Equal(t, SubscribeResult{Granted: AtLeastOnce}, results[1])
	assert.Equal(t, SubscribeResult{Failed: true}, results[2])
}

func TestZipSubackResultsLengthMismatch(t *testing.T) {
	requests := []SubscribeRequest{{Filter: "a", QoS: AtMostOnce}}
	codes := []uint8{packets.SubackQoS0, packets.SubackQoS1}

	_, err := zipSubackResults(requests, codes)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
}

func TestRequestTablesReserveIDAvoidsAllTables(t *testing.T) {
	tables := newRequestTables()
	tables.ids.next = 0
	tables.subs[1] = &pendingSubscription{}
	tables.unsubs[2] = &pendingUnsubscription{}
	tables.publishes[3] = &pendingPublish{}
	tables.inboundQoS2[4] = struct{}{}

	id := tables.reserveID()
	assert.Equal(t, uint16(5), id)
}

func TestRequestTablesFailAllNotifiesPendingCallers(t *testing.T) {
	tables := newRequestTables()

	subReply := make(chan subscribeResult, 1)
	tables.subs[1] = &pendingSubscription{replyTo: subReply}

	unsubReply := make(chan error, 1)
	tables.unsubs[2] = &pendingUnsubscription{replyTo: unsubReply}

	tables.publishes[3] = &pendingPublish{}
	tables.inboundQoS2[4] = struct{}{}

	sentinel := errors.New("boom")
	tables.failAll(sentinel)

	select {
	case res := <-subReply:
		assert.ErrorIs(t, res.err, sentinel)
	default:
		t.Fatal("expected subscribe reply")
	}
	select {
	case err := <-unsubReply:
		assert.ErrorIs(t, err, sentinel)
	default:
		t.Fatal("expected unsubscribe reply")
	}

	assert.Empty(t, tables.subs)
	assert.Empty(t, tables.unsubs)
	assert.Empty(t, tables.publishes)
	assert.Empty(t, tables.inboundQoS2)
}
