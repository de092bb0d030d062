package packets

import "encoding/binary"

// SubackPacket represents an MQTT SUBACK control packet.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8 // one of SubackQoS0/1/2 or SubackFailure per requested topic
}

// Type returns the packet type.
func (p *SubackPacket) Type() uint8 { return SUBACK }

// Encode appends the SUBACK packet's wire encoding to dst.
func (p *SubackPacket) Encode(dst []byte) []byte {
	header := FixedHeader{PacketType: SUBACK, RemainingLength: 2 + len(p.ReturnCodes)}
	dst = header.appendBytes(dst)
	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	return append(dst, p.ReturnCodes...)
}

// DecodeSuback decodes a SUBACK packet's variable header and payload. Every
// return code byte must be 0x00, 0x01, 0x02 or 0x80.
func DecodeSuback(buf []byte) (*SubackPacket, error) {
	if len(buf) < 2 {
		return nil, ErrInvalidData
	}
	pkt := &SubackPacket{PacketID: binary.BigEndian.Uint16(buf[:2])}
	codes := buf[2:]
	for _, c := range codes {
		if c != SubackQoS0 && c != SubackQoS1 && c != SubackQoS2 && c != SubackFailure {
			return nil, ErrInvalidData
		}
	}
	pkt.ReturnCodes = append([]byte(nil), codes...)
	return pkt, nil
}
