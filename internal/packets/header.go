package packets

// FixedHeader is the fixed header present in every MQTT control packet:
// one byte of packet type + flags, followed by a 1-4 byte Variable Byte
// Integer giving the length of everything that follows (section 2.2).
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// appendBytes appends the encoded fixed header to dst.
func (h FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, (h.PacketType<<4)|(h.Flags&0x0F))
	return appendVarint(dst, h.RemainingLength)
}

// decodeFixedHeader decodes a fixed header from the front of buf. It
// returns the header and the number of bytes consumed. ErrDataTooShort
// means the caller should wait for more bytes; it is the only recoverable
// error DecodeMany lets pass through.
func decodeFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 1 {
		return FixedHeader{}, 0, ErrDataTooShort
	}
	first := buf[0]

	length, n, err := decodeVarint(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, err
	}

	return FixedHeader{
		PacketType:      first >> 4,
		Flags:           first & 0x0F,
		RemainingLength: length,
	}, 1 + n, nil
}
