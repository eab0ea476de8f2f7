package clvm

import (
	"encoding/hex"
	"fmt"
)

// Serialization constants. A leading byte 0x00..0x7f is a self-encoding
// one-byte atom, 0x80 is the empty atom, 0x81..0xfb start a size prefix of
// one to five bytes, 0xff marks a cons pair. 0xfc..0xfe are invalid.
const (
	consMarker = 0xff

	maxSize1 = 0x3f
	maxSize2 = 0x1fff
	maxSize3 = 0xfffff
	maxSize4 = 0x7ffffff
	maxSize5 = 0x3ffffffff
)

// decode op codes for the explicit parse stack.
const (
	parseTree = iota
	parseCons
)

// Decode parses one program from the front of b and returns it together with
// the number of bytes consumed. It fails with ErrMalformedEncoding on
// truncated input, invalid prefix bytes or oversized length prefixes. The
// parse uses an explicit stack: arbitrarily deep trees are fine.
func Decode(b []byte) (Program, int, error) {
	pos := 0

	var vals []Program

	ops := []int{parseTree}
	for len(ops) > 0 {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]

		switch op {
		case parseTree:
			if pos >= len(b) {
				return Program{}, 0, fmt.Errorf("%w: truncated at byte %d", ErrMalformedEncoding, pos)
			}

			c := b[pos]
			pos++

			if c == consMarker {
				// rest is parsed after first, cons runs last
				ops = append(ops, parseCons, parseTree, parseTree)

				continue
			}

			atom, n, err := decodeAtom(c, b[pos:])
			if err != nil {
				return Program{}, 0, err
			}

			pos += n
			vals = append(vals, atom)

		case parseCons:
			rest := vals[len(vals)-1]
			first := vals[len(vals)-2]
			vals = vals[:len(vals)-2]
			vals = append(vals, NewPair(first, rest))
		}
	}

	return vals[0], pos, nil
}

// decodeAtom parses an atom whose header byte c has already been consumed.
// It returns the atom and how many further bytes were used.
func decodeAtom(c byte, b []byte) (Program, int, error) {
	if c <= 0x7f {
		return Program{atom: []byte{c}}, 0, nil
	}

	if c == 0x80 {
		return Program{}, 0, nil
	}

	var prefixLen int

	var size uint64

	switch {
	case c < 0xc0:
		prefixLen, size = 0, uint64(c&0x3f)
	case c < 0xe0:
		prefixLen, size = 1, uint64(c&0x1f)
	case c < 0xf0:
		prefixLen, size = 2, uint64(c&0x0f)
	case c < 0xf8:
		prefixLen, size = 3, uint64(c&0x07)
	case c < 0xfc:
		prefixLen, size = 4, uint64(c&0x03)
	default: // 0xfc..0xfe
		return Program{}, 0, fmt.Errorf("%w: invalid prefix byte 0x%02x", ErrMalformedEncoding, c)
	}

	if len(b) < prefixLen {
		return Program{}, 0, fmt.Errorf("%w: truncated size prefix", ErrMalformedEncoding)
	}

	for i := 0; i < prefixLen; i++ {
		size = size<<8 | uint64(b[i])
	}

	if size > maxSize5 || size > uint64(len(b)-prefixLen) {
		return Program{}, 0, fmt.Errorf("%w: atom of %d bytes exceeds input", ErrMalformedEncoding, size)
	}

	atom := make([]byte, size)
	copy(atom, b[prefixLen:prefixLen+int(size)])

	return Program{atom: atom}, prefixLen + int(size), nil
}

// Encode returns the canonical serialization of p. Encoding is total and
// deterministic, and uses an explicit stack like Decode.
func (p Program) Encode() []byte {
	var out []byte

	stack := []Program{p}
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if q.IsPair() {
			out = append(out, consMarker)
			// first is emitted before rest
			stack = append(stack, q.Rest(), q.First())

			continue
		}

		out = appendAtom(out, q.atom)
	}

	return out
}

// Hex returns the canonical serialization of p as a hex string.
func (p Program) Hex() string {
	return hex.EncodeToString(p.Encode())
}

func appendAtom(out, atom []byte) []byte {
	n := uint64(len(atom))

	switch {
	case n == 0:
		return append(out, 0x80)
	case n == 1 && atom[0] <= 0x7f:
		return append(out, atom[0])
	case n <= maxSize1:
		out = append(out, 0x80|byte(n))
	case n <= maxSize2:
		out = append(out, 0xc0|byte(n>>8), byte(n))
	case n <= maxSize3:
		out = append(out, 0xe0|byte(n>>16), byte(n>>8), byte(n))
	case n <= maxSize4:
		out = append(out, 0xf0|byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		out = append(out, 0xf8|byte(n>>32), byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}

	return append(out, atom...)
}
