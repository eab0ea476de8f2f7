package clvm

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntAtoms(t *testing.T) {
	cases := []struct {
		value int64
		atom  string
	}{
		{0, ""},
		{1, "01"},
		{127, "7f"},
		{128, "0080"}, // sign bit forces a leading zero
		{255, "00ff"},
		{-1, "ff"},
		{-10, "f6"},
		{-128, "80"},
		{-129, "ff7f"},
		{500, "01f4"},
		{65536, "010000"},
	}

	for _, c := range cases {
		p := FromInt(c.value)
		assert.Equal(t, c.atom, hex.EncodeToString(p.Atom()), "encoding of %d", c.value)

		v, ok := p.Int()
		require.True(t, ok)
		assert.Equal(t, c.value, v, "decoding of %s", c.atom)
	}
}

func TestIntOfPairFails(t *testing.T) {
	_, ok := NewPair(Nil(), Nil()).Int()
	assert.False(t, ok)
}

func TestListItems(t *testing.T) {
	items, ok := NewList(FromInt(1), FromInt(2), FromInt(3)).ListItems()
	require.True(t, ok)
	require.Len(t, items, 3)

	v, _ := items[2].Int()
	assert.Equal(t, int64(3), v)

	// improper list
	_, ok = NewPair(FromInt(1), FromInt(2)).ListItems()
	assert.False(t, ok)
}

func TestTreeHashAtom(t *testing.T) {
	// sha256(1 || atom)
	want := sha256.Sum256([]byte{1, 0xde, 0xad})
	assert.Equal(t, want, NewAtom([]byte{0xde, 0xad}).TreeHash())

	wantNil := sha256.Sum256([]byte{1})
	assert.Equal(t, wantNil, Nil().TreeHash())
}

func TestTreeHashPair(t *testing.T) {
	f := NewAtom([]byte{0x01})
	r := NewAtom([]byte{0x02})
	fh := f.TreeHash()
	rh := r.TreeHash()

	buf := append([]byte{2}, fh[:]...)
	buf = append(buf, rh[:]...)
	want := sha256.Sum256(buf)

	assert.Equal(t, want, NewPair(f, r).TreeHash())
}

func TestEqual(t *testing.T) {
	a := NewList(FromInt(1), NewPair(FromInt(2), FromInt(3)))
	b := NewList(FromInt(1), NewPair(FromInt(2), FromInt(3)))
	c := NewList(FromInt(1), NewPair(FromInt(2), FromInt(4)))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Nil()))
}

func TestIntToBytes(t *testing.T) {
	assert.Nil(t, IntToBytes(0))
	assert.Equal(t, []byte{0x01}, IntToBytes(1))
	assert.Equal(t, []byte{0x00, 0xfa}, IntToBytes(250))
	assert.Equal(t, []byte{0x03, 0xe8}, IntToBytes(1000))
}
