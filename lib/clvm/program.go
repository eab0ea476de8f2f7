// Package clvm implements the on-chain program format used by the full nodes:
// a binary cons-tree of byte atoms, its canonical serialization, a structural
// matcher for curried puzzles and a minimal evaluator. Programs are immutable
// value types, safe to share between goroutines.
package clvm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/hashvale/chiagate/lib/util"
)

// Errors returned by this package.
var (
	ErrMalformedEncoding   = errors.New("malformed program encoding")
	ErrUnsupportedOperator = errors.New("unsupported clvm operator")
	ErrEvalCostExceeded    = errors.New("evaluation cost limit exceeded")
	ErrPathIntoAtom        = errors.New("environment path into atom")
	ErrRaise               = errors.New("clvm raise")
	ErrNotAtom             = errors.New("operand is not an atom")
	ErrNotPair             = errors.New("operand is not a pair")
)

// Program is a node of a cons-tree: either an atom (byte leaf) or a pair.
// The zero value is the empty atom, which doubles as nil and the empty list.
type Program struct {
	atom []byte
	pair *[2]Program
}

// Nil returns the empty atom.
func Nil() Program {
	return Program{}
}

// NewAtom returns an atom holding a copy of b.
func NewAtom(b []byte) Program {
	if len(b) == 0 {
		return Program{}
	}
	a := make([]byte, len(b))
	copy(a, b)

	return Program{atom: a}
}

// NewPair returns the cons of first and rest.
func NewPair(first, rest Program) Program {
	return Program{pair: &[2]Program{first, rest}}
}

// NewList returns a proper list of the given items, terminated by nil.
func NewList(items ...Program) Program {
	p := Nil()
	for i := len(items) - 1; i >= 0; i-- {
		p = NewPair(items[i], p)
	}

	return p
}

// FromInt returns an atom holding the shortest two's-complement big-endian
// representation of v.
func FromInt(v int64) Program {
	return Program{atom: bigToAtom(big.NewInt(v))}
}

// FromBytes is like NewAtom but without copying. Callers must not modify b.
func FromBytes(b []byte) Program {
	if len(b) == 0 {
		return Program{}
	}

	return Program{atom: b}
}

// FromHex decodes a hex string (optionally 0x-prefixed) into a Program.
func FromHex(s string) (Program, error) {
	raw, err := hex.DecodeString(util.Strip0x(s))
	if err != nil {
		return Program{}, fmt.Errorf("%w: %s", ErrMalformedEncoding, err)
	}

	p, n, err := Decode(raw)
	if err != nil {
		return Program{}, err
	}

	if n != len(raw) {
		return Program{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, len(raw)-n)
	}

	return p, nil
}

// IsAtom returns true for atoms (pairs return false).
func (p Program) IsAtom() bool {
	return p.pair == nil
}

// IsPair returns true for cons pairs.
func (p Program) IsPair() bool {
	return p.pair != nil
}

// IsNil returns true for the empty atom.
func (p Program) IsNil() bool {
	return p.pair == nil && len(p.atom) == 0
}

// First returns the first of a pair, or nil for atoms.
func (p Program) First() Program {
	if p.pair == nil {
		return Program{}
	}

	return p.pair[0]
}

// Rest returns the rest of a pair, or nil for atoms.
func (p Program) Rest() Program {
	if p.pair == nil {
		return Program{}
	}

	return p.pair[1]
}

// Atom returns the raw bytes of an atom. Callers must not modify the result.
// Pairs return nil.
func (p Program) Atom() []byte {
	if p.pair != nil {
		return nil
	}

	return p.atom
}

// Int interprets an atom as a signed big-endian integer. It returns false for
// pairs and for atoms longer than 8 bytes.
func (p Program) Int() (int64, bool) {
	if p.pair != nil || len(p.atom) > 8 {
		return 0, false
	}

	return atomToBig(p.atom).Int64(), true
}

// ListItems returns the items of a proper list, or false if p is an improper
// list (one not terminated by nil).
func (p Program) ListItems() ([]Program, bool) {
	var items []Program

	for p.IsPair() {
		items = append(items, p.First())
		p = p.Rest()
	}

	return items, p.IsNil()
}

// Equal reports whether two trees are structurally identical.
func (p Program) Equal(q Program) bool {
	type frame struct{ a, b Program }

	stack := []frame{{p, q}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.a.IsAtom() != f.b.IsAtom() {
			return false
		}

		if f.a.IsAtom() {
			if !bytesEqual(f.a.atom, f.b.atom) {
				return false
			}

			continue
		}

		stack = append(stack, frame{f.a.First(), f.b.First()}, frame{f.a.Rest(), f.b.Rest()})
	}

	return true
}

// Tree hash domain prefixes.
const (
	hashPrefixAtom = 1
	hashPrefixPair = 2
)

// TreeHash returns the sha256 tree hash of the program: sha256(1 || atom) for
// atoms and sha256(2 || hash(first) || hash(rest)) for pairs. This is the hash
// the chain identifies puzzles by.
func (p Program) TreeHash() [32]byte {
	// post-order walk with an explicit stack so deep trees cannot overflow
	type frame struct {
		p       Program
		visited bool
	}

	var hashes [][32]byte

	stack := []frame{{p: p}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.p.IsAtom() {
			h := sha256.New()
			h.Write([]byte{hashPrefixAtom})
			h.Write(f.p.atom)

			var out [32]byte
			h.Sum(out[:0])
			hashes = append(hashes, out)

			continue
		}

		if !f.visited {
			stack = append(stack, frame{p: f.p, visited: true},
				frame{p: f.p.Rest()}, frame{p: f.p.First()})

			continue
		}

		rest := hashes[len(hashes)-1]
		first := hashes[len(hashes)-2]
		hashes = hashes[:len(hashes)-2]

		h := sha256.New()
		h.Write([]byte{hashPrefixPair})
		h.Write(first[:])
		h.Write(rest[:])

		var out [32]byte
		h.Sum(out[:0])
		hashes = append(hashes, out)
	}

	return hashes[0]
}

// String renders the tree in a compact list notation for logs and tests.
func (p Program) String() string {
	if p.IsAtom() {
		if p.IsNil() {
			return "()"
		}

		return "0x" + hex.EncodeToString(p.atom)
	}

	return "(" + p.First().String() + " . " + p.Rest().String() + ")"
}

// atomToBig interprets b as a signed big-endian integer.
func atomToBig(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}

	return v
}

// bigToAtom returns the shortest two's-complement big-endian form of v.
func bigToAtom(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}

	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}

		return b
	}

	// negative: smallest n with -2^(8n-1) <= v, then two's complement
	neg := new(big.Int).Neg(v)

	n := 1
	for new(big.Int).Lsh(big.NewInt(1), uint(8*n-1)).Cmp(neg) < 0 {
		n++
	}

	tc := new(big.Int).Add(v, new(big.Int).Lsh(big.NewInt(1), uint(8*n)))

	return tc.Bytes()
}

// IntToBytes returns the canonical atom form of a non-negative amount, as
// used when hashing coin identities.
func IntToBytes(v uint64) []byte {
	return bigToAtom(new(big.Int).SetUint64(v))
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
