package address

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvale/chiagate/lib/chain/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var ph types.Bytes32
	for i := range ph {
		ph[i] = byte(i)
	}

	addr, err := Encode("xch", ph)
	require.NoError(t, err)
	assert.Equal(t, "xch1", addr[:4])

	got, err := Decode(addr, "xch")
	require.NoError(t, err)
	assert.Equal(t, ph, got)
}

func TestDecodeWrongPrefix(t *testing.T) {
	var ph types.Bytes32

	addr, err := Encode("txch", ph)
	require.NoError(t, err)

	_, err = Decode(addr, "xch")
	assert.ErrorIs(t, err, ErrWrongPrefix)
}

func TestDecodeGarbage(t *testing.T) {
	cases := []string{
		"",
		"not-an-address",
		"xch1qqqq", // too short, bad checksum
	}

	for _, c := range cases {
		_, err := Decode(c, "xch")
		assert.ErrorIs(t, err, ErrInvalidAddress, "input %q", c)
	}
}

func TestDecodeRejectsPlainBech32(t *testing.T) {
	// a bech32 (not bech32m) checksum must be rejected even when it parses
	var ph types.Bytes32

	data, err := bech32.ConvertBits(ph[:], 8, 5, true)
	require.NoError(t, err)

	addr, err := bech32.Encode("xch", data)
	require.NoError(t, err)

	_, err = Decode(addr, "xch")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
