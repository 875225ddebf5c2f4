package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		want    byte
		wantErr bool
	}{
		{name: "first", index: 0, want: 'A'},
		{name: "last upper", index: 25, want: 'Z'},
		{name: "first lower", index: 26, want: 'a'},
		{name: "first digit", index: 52, want: '0'},
		{name: "plus", index: 62, want: '+'},
		{name: "slash", index: 63, want: '/'},
		{name: "negative", index: -1, wantErr: true},
		{name: "past end", index: 64, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.index)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	for i := 0; i < Base; i++ {
		c, err := Encode(i)
		require.NoError(t, err)

		got, err := Decode(c)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestDecode_Unknown(t *testing.T) {
	_, err := Decode('!')
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = Decode(Terminator)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestDecodeSequence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		cap  int64
		mode Mode
		want int64
	}{
		{name: "empty", in: "", max: 32, want: 0},
		{name: "single zero", in: "A", max: 32, want: 0},
		{name: "single max digit", in: "/", max: 32, want: 63},
		{name: "two digits", in: "BA", max: 32, want: 64},
		{name: "msb first", in: "AB", max: 32, want: 1},
		{name: "truncated to maxLen", in: "BAAA", max: 2, want: 64},
		{name: "saturates at cap", in: "////////////", max: 32, cap: 1000, want: 1000},
		{name: "lenient skips junk", in: "B!A", max: 32, mode: Lenient, want: 64},
		{name: "terminator ends value", in: "BA=//", max: 32, want: 64},
		{name: "leading terminator", in: "=BA", max: 32, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSequence(tt.in, tt.max, tt.cap, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSequence_StrictRejectsJunk(t *testing.T) {
	_, err := DecodeSequence("B!A", 32, 0, Strict)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestDecodeSequence_DefaultCap(t *testing.T) {
	// A long run of max digits would overflow int64 without saturation.
	got, err := DecodeSequence("////////////////////////", 32, 0, Strict)
	require.NoError(t, err)
	assert.Equal(t, DefaultValueCap, got)
}

func TestDecodeSequence_RoundTrip(t *testing.T) {
	values := []int64{0, 1, 63, 64, 5000, 12345678, DefaultValueCap - 1}

	for _, want := range values {
		// Encode by repeated division, most-significant symbol first.
		var buf []byte
		v := want
		for {
			c, err := Encode(int(v % int64(Base)))
			require.NoError(t, err)
			buf = append([]byte{c}, buf...)
			v /= int64(Base)
			if v == 0 {
				break
			}
		}

		got, err := DecodeSequence(string(buf), 32, 0, Strict)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
