package packets

import "encoding/binary"

// PubackPacket, PubrecPacket, PubcompPacket and UnsubackPacket share the
// same wire shape: a fixed header with flags 0, followed by a single u16
// packet id and nothing else (sections 3.4, 3.5, 3.7, 3.11).

// PubackPacket represents an MQTT PUBACK control packet (QoS 1 step 2).
type PubackPacket struct{ PacketID uint16 }

// Type returns the packet type.
func (p *PubackPacket) Type() uint8 { return PUBACK }

// Encode appends the PUBACK packet's wire encoding to dst.
func (p *PubackPacket) Encode(dst []byte) []byte {
	return encodeIDOnlyPacket(dst, PUBACK, 0, p.PacketID)
}

// DecodePuback decodes a PUBACK packet's variable header.
func DecodePuback(buf []byte) (*PubackPacket, error) {
	id, err := decodeIDOnlyPacket(buf)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id}, nil
}

// PubrecPacket represents an MQTT PUBREC control packet (QoS 2 step 2).
type PubrecPacket struct{ PacketID uint16 }

// Type returns the packet type.
func (p *PubrecPacket) Type() uint8 { return PUBREC }

// Encode appends the PUBREC packet's wire encoding to dst.
func (p *PubrecPacket) Encode(dst []byte) []byte {
	return encodeIDOnlyPacket(dst, PUBREC, 0, p.PacketID)
}

// DecodePubrec decodes a PUBREC packet's variable header.
func DecodePubrec(buf []byte) (*PubrecPacket, error) {
	id, err := decodeIDOnlyPacket(buf)
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{PacketID: id}, nil
}

// PubrelPacket represents an MQTT PUBREL control packet (QoS 2 step 3).
// Its fixed-header flags are reserved to 0x02, unlike the other ack packets.
type PubrelPacket struct{ PacketID uint16 }

// Type returns the packet type.
func (p *PubrelPacket) Type() uint8 { return PUBREL }

// Encode appends the PUBREL packet's wire encoding to dst.
func (p *PubrelPacket) Encode(dst []byte) []byte {
	return encodeIDOnlyPacket(dst, PUBREL, reservedFlags, p.PacketID)
}

// DecodePubrel decodes a PUBREL packet's variable header.
func DecodePubrel(buf []byte) (*PubrelPacket, error) {
	id, err := decodeIDOnlyPacket(buf)
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{PacketID: id}, nil
}

// PubcompPacket represents an MQTT PUBCOMP control packet (QoS 2 step 4).
type PubcompPacket struct{ PacketID uint16 }

// Type returns the packet type.
func (p *PubcompPacket) Type() uint8 { return PUBCOMP }

// Encode appends the PUBCOMP packet's wire encoding to dst.
func (p *PubcompPacket) Encode(dst []byte) []byte {
	return encodeIDOnlyPacket(dst, PUBCOMP, 0, p.PacketID)
}

// DecodePubcomp decodes a PUBCOMP packet's variable header.
func DecodePubcomp(buf []byte) (*PubcompPacket, error) {
	id, err := decodeIDOnlyPacket(buf)
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{PacketID: id}, nil
}

// UnsubackPacket represents an MQTT UNSUBACK control packet.
type UnsubackPacket struct{ PacketID uint16 }

// Type returns the packet type.
func (p *UnsubackPacket) Type() uint8 { return UNSUBACK }

// Encode appends the UNSUBACK packet's wire encoding to dst.
func (p *UnsubackPacket) Encode(dst []byte) []byte {
	return encodeIDOnlyPacket(dst, UNSUBACK, 0, p.PacketID)
}

// DecodeUnsuback decodes an UNSUBACK packet's variable header.
func DecodeUnsuback(buf []byte) (*UnsubackPacket, error) {
	id, err := decodeIDOnlyPacket(buf)
	if err != nil {
		return nil, err
	}
	return &UnsubackPacket{PacketID: id}, nil
}

func encodeIDOnlyPacket(dst []byte, packetType, flags uint8, id uint16) []byte {
	header := FixedHeader{PacketType: packetType, Flags: flags, RemainingLength: 2}
	dst = header.appendBytes(dst)
	return binary.BigEndian.AppendUint16(dst, id)
}

func decodeIDOnlyPacket(buf []byte) (uint16, error) {
	if len(buf) != 2 {
		return 0, ErrInvalidData
	}
	return binary.BigEndian.Uint16(buf), nil
}
