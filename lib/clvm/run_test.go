package clvm

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, prog, env Program) Program {
	t.Helper()

	out, err := Run(prog, env)
	require.NoError(t, err)

	return out
}

func TestRunQuote(t *testing.T) {
	// (q . (1 2)) ignores the environment
	prog := NewPair(FromInt(1), NewList(FromInt(1), FromInt(2)))
	out := run(t, prog, FromInt(99))
	assert.True(t, NewList(FromInt(1), FromInt(2)).Equal(out))
}

func TestRunEnvPaths(t *testing.T) {
	env := NewPair(FromInt(10), NewPair(FromInt(20), FromInt(30)))

	cases := []struct {
		path int64
		want Program
	}{
		{1, env},        // whole environment
		{2, FromInt(10)}, // first
		{3, NewPair(FromInt(20), FromInt(30))}, // rest
		{5, FromInt(20)}, // first of rest
		{7, FromInt(30)}, // rest of rest
	}

	for _, c := range cases {
		out := run(t, FromInt(c.path), env)
		assert.True(t, c.want.Equal(out), "path %d", c.path)
	}
}

func TestRunPathIntoAtomFails(t *testing.T) {
	_, err := Run(FromInt(4), FromInt(7))
	assert.ErrorIs(t, err, ErrPathIntoAtom)
}

func TestRunConsFirstRest(t *testing.T) {
	// (c (q . 1) (q . 2)) => (1 . 2)
	prog := NewList(FromInt(4),
		NewPair(FromInt(1), FromInt(1)),
		NewPair(FromInt(1), FromInt(2)))
	out := run(t, prog, Nil())
	assert.True(t, NewPair(FromInt(1), FromInt(2)).Equal(out))

	// (f 1) / (r 1) against a pair environment
	env := NewPair(FromInt(7), FromInt(8))
	assert.True(t, FromInt(7).Equal(run(t, NewList(FromInt(5), FromInt(1)), env)))
	assert.True(t, FromInt(8).Equal(run(t, NewList(FromInt(6), FromInt(1)), env)))
}

func TestRunIf(t *testing.T) {
	// (i cond (q . 10) (q . 20))
	mk := func(cond Program) Program {
		return NewList(FromInt(3),
			NewPair(FromInt(1), cond),
			NewPair(FromInt(1), FromInt(10)),
			NewPair(FromInt(1), FromInt(20)))
	}

	assert.True(t, FromInt(10).Equal(run(t, mk(FromInt(1)), Nil())))
	assert.True(t, FromInt(20).Equal(run(t, mk(Nil()), Nil())))
}

func TestRunApply(t *testing.T) {
	// (a (q . 2) (q . (42 . 0))) runs path 2 against a fresh environment
	prog := NewList(FromInt(2),
		NewPair(FromInt(1), FromInt(2)),
		NewPair(FromInt(1), NewPair(FromInt(42), Nil())))
	assert.True(t, FromInt(42).Equal(run(t, prog, Nil())))
}

func TestRunArithmeticAndEq(t *testing.T) {
	// (+ (q . 3) (q . 39))
	add := NewList(FromInt(16),
		NewPair(FromInt(1), FromInt(3)),
		NewPair(FromInt(1), FromInt(39)))
	assert.True(t, FromInt(42).Equal(run(t, add, Nil())))

	// (- (q . 3) (q . 10)) => -7
	sub := NewList(FromInt(17),
		NewPair(FromInt(1), FromInt(3)),
		NewPair(FromInt(1), FromInt(10)))
	assert.True(t, FromInt(-7).Equal(run(t, sub, Nil())))

	// (= (q . 5) (q . 5))
	eq := NewList(FromInt(9),
		NewPair(FromInt(1), FromInt(5)),
		NewPair(FromInt(1), FromInt(5)))
	assert.False(t, run(t, eq, Nil()).IsNil())
}

func TestRunSha256(t *testing.T) {
	prog := NewList(FromInt(11),
		NewPair(FromInt(1), NewAtom([]byte("foo"))),
		NewPair(FromInt(1), NewAtom([]byte("bar"))))
	want := sha256.Sum256([]byte("foobar"))
	assert.Equal(t, want[:], run(t, prog, Nil()).Atom())
}

func TestRunRaise(t *testing.T) {
	_, err := Run(NewList(FromInt(8)), Nil())
	assert.ErrorIs(t, err, ErrRaise)
}

func TestRunPointOpsAreNoOps(t *testing.T) {
	prog := NewList(FromInt(29), NewPair(FromInt(1), NewAtom([]byte{1, 2, 3})))
	assert.True(t, run(t, prog, Nil()).IsNil())
}

func TestRunUnknownOperator(t *testing.T) {
	_, err := Run(NewList(FromInt(99)), Nil())
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestRunCostLimit(t *testing.T) {
	// (a 1 1) applied to itself loops forever without a cost ceiling
	prog := NewList(FromInt(2), FromInt(1), FromInt(1))
	_, err := Run(prog, prog)
	assert.ErrorIs(t, err, ErrEvalCostExceeded)
}

func TestRunDepthLimit(t *testing.T) {
	// (+ (+ (+ ... (q . 1)))) nested past the depth ceiling must trip the
	// limit, not the goroutine stack
	prog := NewPair(FromInt(1), FromInt(1))
	for i := 0; i < evalDepthLimit+10; i++ {
		prog = NewList(FromInt(16), prog)
	}

	_, err := Run(prog, Nil())
	assert.ErrorIs(t, err, ErrEvalCostExceeded)
}
