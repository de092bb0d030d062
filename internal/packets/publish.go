package packets

import "encoding/binary"

// PublishPacket represents an MQTT PUBLISH control packet.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic    string
	PacketID uint16 // only present on the wire if QoS > 0

	Payload []byte
}

// Type returns the packet type.
func (p *PublishPacket) Type() uint8 { return PUBLISH }

// Encode appends the PUBLISH packet's wire encoding to dst.
func (p *PublishPacket) Encode(dst []byte) []byte {
	variableHeaderLen := 2 + len(p.Topic)
	if p.QoS > 0 {
		variableHeaderLen += 2
	}
	remainingLength := variableHeaderLen + len(p.Payload)

	var flags uint8
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := FixedHeader{PacketType: PUBLISH, Flags: flags, RemainingLength: remainingLength}
	dst = header.appendBytes(dst)

	dst = appendString(dst, p.Topic)
	if p.QoS > 0 {
		dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	}
	return append(dst, p.Payload...)
}

// DecodePublish decodes a PUBLISH packet's variable header and payload.
// flags are the fixed-header flags (DUP/QoS/RETAIN), taken from outside the
// remaining-length buffer since they live in the first fixed-header byte.
func DecodePublish(flags uint8, buf []byte) (*PublishPacket, error) {
	qos := (flags >> 1) & 0x03
	if qos == 0x03 {
		return nil, ErrInvalidData
	}

	pkt := &PublishPacket{
		Dup:    flags&0x08 != 0,
		QoS:    qos,
		Retain: flags&0x01 != 0,
	}

	topic, n, err := decodeString(buf)
	if err != nil {
		return nil, err
	}
	pkt.Topic = topic
	buf = buf[n:]

	if pkt.QoS > 0 {
		if len(buf) < 2 {
			return nil, ErrInvalidData
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf[:2])
		buf = buf[2:]
	}

	pkt.Payload = append([]byte(nil), buf...)
	return pkt, nil
}
