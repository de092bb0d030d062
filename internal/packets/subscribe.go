package packets

import "encoding/binary"

// SubscribeTopic is one (filter, requested QoS) pair in a SUBSCRIBE payload.
type SubscribeTopic struct {
	Filter string
	QoS    uint8
}

// SubscribePacket represents an MQTT SUBSCRIBE control packet.
type SubscribePacket struct {
	PacketID uint16
	Topics   []SubscribeTopic
}

// Type returns the packet type.
func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

// Encode appends the SUBSCRIBE packet's wire encoding to dst. It does not
// reject an empty topic list; Client.Subscribe rejects one (with
// ErrSubscribeFailed) before a packet is ever built.
func (p *SubscribePacket) Encode(dst []byte) []byte {
	remainingLength := 2
	for _, t := range p.Topics {
		remainingLength += 2 + len(t.Filter) + 1
	}

	header := FixedHeader{PacketType: SUBSCRIBE, Flags: reservedFlags, RemainingLength: remainingLength}
	dst = header.appendBytes(dst)

	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	for _, t := range p.Topics {
		dst = appendString(dst, t.Filter)
		dst = append(dst, t.QoS)
	}
	return dst
}

// DecodeSubscribe decodes a SUBSCRIBE packet's variable header and payload.
func DecodeSubscribe(buf []byte) (*SubscribePacket, error) {
	if len(buf) < 2 {
		return nil, ErrInvalidData
	}
	pkt := &SubscribePacket{PacketID: binary.BigEndian.Uint16(buf[:2])}
	buf = buf[2:]

	for len(buf) > 0 {
		filter, n, err := decodeString(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		if len(buf) < 1 {
			return nil, ErrInvalidData
		}
		qos := buf[0]
		if qos > QoS2 {
			return nil, ErrInvalidData
		}
		buf = buf[1:]
		pkt.Topics = append(pkt.Topics, SubscribeTopic{Filter: filter, QoS: qos})
	}

	if len(pkt.Topics) == 0 {
		return nil, ErrInvalidData
	}
	return pkt, nil
}

// UnsubscribePacket represents an MQTT UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID uint16
	Filters  []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

// Encode appends the UNSUBSCRIBE packet's wire encoding to dst. It does not
// reject an empty filter list; Client.Unsubscribe rejects one (with
// ErrUnsubscribeFailed) before a packet is ever built.
func (p *UnsubscribePacket) Encode(dst []byte) []byte {
	remainingLength := 2
	for _, f := range p.Filters {
		remainingLength += 2 + len(f)
	}

	header := FixedHeader{PacketType: UNSUBSCRIBE, Flags: reservedFlags, RemainingLength: remainingLength}
	dst = header.appendBytes(dst)

	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	for _, f := range p.Filters {
		dst = appendString(dst, f)
	}
	return dst
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet's variable header and payload.
func DecodeUnsubscribe(buf []byte) (*UnsubscribePacket, error) {
	if len(buf) < 2 {
		return nil, ErrInvalidData
	}
	pkt := &UnsubscribePacket{PacketID: binary.BigEndian.Uint16(buf[:2])}
	buf = buf[2:]

	for len(buf) > 0 {
		filter, n, err := decodeString(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		pkt.Filters = append(pkt.Filters, filter)
	}

	if len(pkt.Filters) == 0 {
		return nil, ErrInvalidData
	}
	return pkt, nil
}
