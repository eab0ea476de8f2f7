package clvm

// Operator atoms used by the curry shape.
var (
	atomQuote = []byte{0x01}
	atomApply = []byte{0x02}
	atomCons  = []byte{0x04}
)

// Uncurry structurally matches the canonical curry shape
//
//	(a (q . MOD) (c (q . P1) (c (q . P2) ... 1)))
//
// and returns the inner mod together with the curried parameters in their
// original left-to-right order. No evaluation takes place; puzzles that do
// not have the shape return ok == false.
func (p Program) Uncurry() (mod Program, args []Program, ok bool) {
	if p.IsAtom() {
		return Program{}, nil, false
	}

	if !p.First().IsAtom() || !bytesEqual(p.First().Atom(), atomApply) {
		return Program{}, nil, false
	}

	rest := p.Rest()
	if rest.IsAtom() {
		return Program{}, nil, false
	}

	quotedMod := rest.First()
	if quotedMod.IsAtom() || !quotedMod.First().IsAtom() || !bytesEqual(quotedMod.First().Atom(), atomQuote) {
		return Program{}, nil, false
	}

	mod = quotedMod.Rest()

	tail := rest.Rest()
	if tail.IsAtom() || !tail.Rest().IsNil() {
		return Program{}, nil, false
	}

	core := tail.First()
	for core.IsPair() {
		// each layer is (c (q . arg) next)
		if !core.First().IsAtom() || !bytesEqual(core.First().Atom(), atomCons) {
			return Program{}, nil, false
		}

		inner := core.Rest()
		if inner.IsAtom() {
			return Program{}, nil, false
		}

		quotedArg := inner.First()
		if quotedArg.IsAtom() || !quotedArg.First().IsAtom() || !bytesEqual(quotedArg.First().Atom(), atomQuote) {
			return Program{}, nil, false
		}

		args = append(args, quotedArg.Rest())

		next := inner.Rest()
		if next.IsAtom() || !next.Rest().IsNil() {
			return Program{}, nil, false
		}

		core = next.First()
	}

	if !bytesEqual(core.Atom(), atomQuote) { // terminator is the atom 1
		return Program{}, nil, false
	}

	return mod, args, true
}

// Curry builds the canonical curry of mod with the given parameters. It is
// the inverse of Uncurry: Uncurry(Curry(mod, args...)) yields mod and args.
func Curry(mod Program, args ...Program) Program {
	core := NewAtom(atomQuote) // environment terminator, the atom 1
	for i := len(args) - 1; i >= 0; i-- {
		core = NewList(NewAtom(atomCons), NewPair(NewAtom(atomQuote), args[i]), core)
	}

	return NewList(NewAtom(atomApply), NewPair(NewAtom(atomQuote), mod), core)
}
