package clvm

import (
	"crypto/sha256"
	"fmt"
	"math/big"
)

// Operator codes of the minimal evaluator. BLS point operators are accepted
// but treated as opaque no-ops: this evaluator only needs to surface
// condition lists, not verify signatures.
const (
	opQuote        = 0x01
	opApply        = 0x02
	opIf           = 0x03
	opCons         = 0x04
	opFirst        = 0x05
	opRest         = 0x06
	opListp        = 0x07
	opRaise        = 0x08
	opEq           = 0x09
	opSha256       = 0x0b
	opAdd          = 0x10
	opSub          = 0x11
	opPointAdd     = 0x1d
	opPubkeyForExp = 0x1e
)

// evalCostLimit bounds the number of eval steps so a hostile program cannot
// spin a request forever. evalDepthLimit bounds the eval recursion so a
// deeply nested program trips the limit instead of the goroutine stack.
const (
	evalCostLimit  = 1 << 20
	evalDepthLimit = 1 << 13
)

// Run evaluates prog against the argument tree env and returns the result,
// typically a list of condition programs when prog is a puzzle and env its
// solution. Only the minimal operator set is implemented; anything else
// fails with ErrUnsupportedOperator so callers can fall back to structural
// matching.
func Run(prog, env Program) (Program, error) {
	cost := 0

	return eval(prog, env, &cost, 0)
}

func eval(prog, env Program, cost *int, depth int) (Program, error) {
	*cost++
	if *cost > evalCostLimit || depth > evalDepthLimit {
		return Program{}, ErrEvalCostExceeded
	}

	// an atom program is a path lookup into the environment
	if prog.IsAtom() {
		return envPath(prog.atom, env)
	}

	op := prog.First()
	if op.IsPair() {
		return Program{}, fmt.Errorf("%w: pair in operator position", ErrUnsupportedOperator)
	}

	opAtom := op.Atom()
	if len(opAtom) == 1 && opAtom[0] == opQuote {
		return prog.Rest(), nil
	}

	// evaluate the operand list
	var operands []Program

	for rest := prog.Rest(); rest.IsPair(); rest = rest.Rest() {
		v, err := eval(rest.First(), env, cost, depth+1)
		if err != nil {
			return Program{}, err
		}

		operands = append(operands, v)
	}

	if len(opAtom) != 1 {
		return Program{}, fmt.Errorf("%w: opcode 0x%x", ErrUnsupportedOperator, opAtom)
	}

	return apply(opAtom[0], operands, cost, depth)
}

func apply(op byte, operands []Program, cost *int, depth int) (Program, error) {
	switch op {
	case opApply:
		if len(operands) != 2 {
			return Program{}, fmt.Errorf("%w: apply takes 2 operands", ErrUnsupportedOperator)
		}

		return eval(operands[0], operands[1], cost, depth+1)

	case opIf:
		if len(operands) != 3 {
			return Program{}, fmt.Errorf("%w: if takes 3 operands", ErrUnsupportedOperator)
		}

		if operands[0].IsNil() {
			return operands[2], nil
		}

		return operands[1], nil

	case opCons:
		if len(operands) != 2 {
			return Program{}, fmt.Errorf("%w: cons takes 2 operands", ErrUnsupportedOperator)
		}

		return NewPair(operands[0], operands[1]), nil

	case opFirst, opRest:
		if len(operands) != 1 || operands[0].IsAtom() {
			return Program{}, fmt.Errorf("%w: first/rest of atom", ErrNotPair)
		}

		if op == opFirst {
			return operands[0].First(), nil
		}

		return operands[0].Rest(), nil

	case opListp:
		if len(operands) != 1 {
			return Program{}, fmt.Errorf("%w: listp takes 1 operand", ErrUnsupportedOperator)
		}

		if operands[0].IsPair() {
			return NewAtom([]byte{1}), nil
		}

		return Nil(), nil

	case opRaise:
		return Program{}, ErrRaise

	case opEq:
		if len(operands) != 2 || operands[0].IsPair() || operands[1].IsPair() {
			return Program{}, ErrNotAtom
		}

		if bytesEqual(operands[0].Atom(), operands[1].Atom()) {
			return NewAtom([]byte{1}), nil
		}

		return Nil(), nil

	case opSha256:
		h := sha256.New()

		for _, v := range operands {
			if v.IsPair() {
				return Program{}, ErrNotAtom
			}

			h.Write(v.Atom())
		}

		return NewAtom(h.Sum(nil)), nil

	case opAdd, opSub:
		sum := new(big.Int)

		for i, v := range operands {
			if v.IsPair() {
				return Program{}, ErrNotAtom
			}

			term := atomToBig(v.Atom())
			if op == opSub && i > 0 {
				sum.Sub(sum, term)
			} else {
				sum.Add(sum, term)
			}
		}

		return FromBytes(bigToAtom(sum)), nil

	case opPointAdd, opPubkeyForExp:
		// opaque no-op: BLS arithmetic is out of scope
		return Nil(), nil

	default:
		return Program{}, fmt.Errorf("%w: opcode 0x%02x", ErrUnsupportedOperator, op)
	}
}

// envPath walks the environment tree along a node path atom: the low bit of
// each step selects first (0) or rest (1), consumed least-significant first.
func envPath(path []byte, env Program) (Program, error) {
	n := new(big.Int).SetBytes(path)
	if n.Sign() == 0 {
		return Nil(), nil
	}

	one := big.NewInt(1)
	for n.Cmp(one) > 0 {
		if env.IsAtom() {
			return Program{}, ErrPathIntoAtom
		}

		if n.Bit(0) == 0 {
			env = env.First()
		} else {
			env = env.Rest()
		}

		n.Rsh(n, 1)
	}

	return env, nil
}
