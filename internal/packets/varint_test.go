package packets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendVarint(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"127", 127, []byte{0x7F}},
		{"128", 128, []byte{0x80, 0x01}},
		{"16383", 16383, []byte{0xFF, 0x7F}},
		{"16384", 16384, []byte{0x80, 0x80, 0x01}},
		{"2097151", 2097151, []byte{0xFF, 0xFF, 0x7F}},
		{"2097152", 2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{"268435455", maxVarint, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, appendVarint(nil, tt.value))
		})
	}
}

func TestDecodeVarint(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    int
		wantN   int
		wantErr error
	}{
		{"zero", []byte{0x00}, 0, 1, nil},
		{"127", []byte{0x7F}, 127, 1, nil},
		{"128", []byte{0x80, 0x01}, 128, 2, nil},
		{"16383", []byte{0xFF, 0x7F}, 16383, 2, nil},
		{"16384", []byte{0x80, 0x80, 0x01}, 16384, 3, nil},
		{"2097151", []byte{0xFF, 0xFF, 0x7F}, 2097151, 3, nil},
		{"2097152", []byte{0x80, 0x80, 0x80, 0x01}, 2097152, 4, nil},
		{"268435455", []byte{0xFF, 0xFF, 0xFF, 0x7F}, maxVarint, 4, nil},
		{"fifth continuation byte", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}, 0, 0, ErrInvalidVarint},
		{"incomplete", []byte{0x80}, 0, 0, ErrDataTooShort},
		{"empty", nil, 0, 0, ErrDataTooShort},
		{"trailing bytes are leftover, not consumed", []byte{0x7F, 0xAA, 0xBB}, 127, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := decodeVarint(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantN, n)
		})
	}
}

// Varint encode/decode is a bijection on [0, 268_435_455].
func TestVarintRoundTrip(t *testing.T) {
	samples := []int{0, 1, 63, 127, 128, 129, 16383, 16384, 2097151, 2097152, maxVarint}
	for _, v := range samples {
		encoded := appendVarint(nil, v)
		require.LessOrEqual(t, len(encoded), 4)

		decoded, n, err := decodeVarint(encoded)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, len(encoded), n)
	}
}

func FuzzVarint(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0x7F})
	f.Add([]byte{0x80, 0x01})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0x7F})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	f.Add([]byte{0x80})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// decodeVarint must never panic, and any value it does accept must
		// round-trip through appendVarint to the same bytes it consumed.
		value, n, err := decodeVarint(data)
		if err != nil {
			return
		}
		require.GreaterOrEqual(t, value, 0)
		require.LessOrEqual(t, value, maxVarint)
		require.Equal(t, data[:n], appendVarint(nil, value))
	})
}
