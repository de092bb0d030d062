package packets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedHeaderRoundTrip(t *testing.T) {
	tests := []FixedHeader{
		{PacketType: CONNECT, Flags: 0, RemainingLength: 0},
		{PacketType: PUBLISH, Flags: 0x0B, RemainingLength: 127},
		{PacketType: SUBSCRIBE, Flags: reservedFlags, RemainingLength: 128},
		{PacketType: PUBLISH, Flags: 0, RemainingLength: maxVarint},
	}

	for _, h := range tests {
		encoded := h.appendBytes(nil)
		decoded, n, err := decodeFixedHeader(encoded)
		require.NoError(t, err)
		require.Equal(t, h, decoded)
		require.Equal(t, len(encoded), n)
	}
}

func TestDecodeFixedHeaderTooShort(t *testing.T) {
	_, _, err := decodeFixedHeader(nil)
	require.ErrorIs(t, err, ErrDataTooShort)

	_, _, err = decodeFixedHeader([]byte{byte(PUBLISH << 4), 0x80})
	require.ErrorIs(t, err, ErrDataTooShort)
}

func TestFixedHeaderPacketTypeAndFlagsPacking(t *testing.T) {
	h := FixedHeader{PacketType: SUBSCRIBE, Flags: reservedFlags, RemainingLength: 3}
	encoded := h.appendBytes(nil)
	require.Equal(t, byte(SUBSCRIBE<<4|reservedFlags), encoded[0])
}
