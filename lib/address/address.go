// Package address converts between bech32m addresses and the 32-byte puzzle
// hashes the chain indexes coins by.
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/hashvale/chiagate/lib/chain/types"
)

// Errors returned to callers. Handlers map ErrInvalidAddress to a 400.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrWrongPrefix    = errors.New("address prefix does not match the chain")
)

// Decode parses a bech32m address, checks its prefix against the chain's and
// returns the puzzle hash it encodes.
func Decode(addr, prefix string) (types.Bytes32, error) {
	var ph types.Bytes32

	hrp, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return ph, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	if version != bech32.VersionM {
		return ph, fmt.Errorf("%w: not bech32m", ErrInvalidAddress)
	}

	if hrp != prefix {
		return ph, fmt.Errorf("%w: got %q, want %q", ErrWrongPrefix, hrp, prefix)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ph, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	if len(raw) != len(ph) {
		return ph, fmt.Errorf("%w: payload is %d bytes", ErrInvalidAddress, len(raw))
	}

	copy(ph[:], raw)

	return ph, nil
}

// Encode renders a puzzle hash as a bech32m address under the given prefix.
func Encode(prefix string, ph types.Bytes32) (string, error) {
	data, err := bech32.ConvertBits(ph[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	addr, err := bech32.EncodeM(prefix, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	return addr, nil
}
