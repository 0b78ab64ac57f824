package constfold

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// relMask is the bitmask over {Less=1, Equal=2, Greater=4} a comparison
// opcode represents once its operands are canonicalized (spec.md §4.4.1).
type relMask uint8

const (
	relLess    relMask = 1
	relEqual   relMask = 2
	relGreater relMask = 4
	relAll     relMask = relLess | relEqual | relGreater
)

func maskOf(op opcode.Opcode) relMask {
	switch op {
	case opcode.Less:
		return relLess
	case opcode.Equal:
		return relEqual
	case opcode.Greater:
		return relGreater
	case opcode.LessOrEq:
		return relLess | relEqual
	case opcode.GreaterOrEq:
		return relGreater | relEqual
	case opcode.NEqual:
		return relLess | relGreater
	default:
		return 0
	}
}

func opOfMask(m relMask) (opcode.Opcode, bool) {
	switch m {
	case relLess:
		return opcode.Less, true
	case relEqual:
		return opcode.Equal, true
	case relGreater:
		return opcode.Greater, true
	case relLess | relEqual:
		return opcode.LessOrEq, true
	case relGreater | relEqual:
		return opcode.GreaterOrEq, true
	case relLess | relGreater:
		return opcode.NEqual, true
	default:
		return 0, false
	}
}

type pairKey struct{ aHi, aLo, bHi, bLo uint64 }

type pairEntry[S scalar.Number] struct {
	a, b *tree.Node[S]
	mask relMask
}

// foldLogicGrouping implements a reduced ComparisonSet/AndLogic/OrLogic
// (§4.4.1): it merges comparison children that share an operand pair by
// combining their relationship masks (collapsing to a tautology/
// contradiction when the combined mask saturates to 7 or 0), and dedupes
// identical plain items. Only the And/Or variants exist: there is no Add
// variant, and no const_offset bookkeeping is done anywhere.
func foldLogicGrouping[S scalar.Number](f *Folder[S], n *tree.Node[S], isAnd bool) bool {
	pairs := map[pairKey]*pairEntry[S]{}
	order := []pairKey{}
	plain := map[[2]uint64][]*tree.Node[S]{}
	plainOrder := [][2]uint64{}

	isComparison := func(op opcode.Opcode) bool { return maskOf(op) != 0 }

	var rebuilt []*tree.Node[S]
	changed := false

	for _, p := range n.Params {
		if isComparison(p.Opcode) && len(p.Params) == 2 {
			a, b := p.Params[0], p.Params[1]
			m := maskOf(p.Opcode)
			if b.Hash.Less(a.Hash) {
				a, b = b, a
				m = flipMask(m)
			}
			key := pairKey{a.Hash.Hi, a.Hash.Lo, b.Hash.Hi, b.Hash.Lo}
			if e, ok := pairs[key]; ok {
				if isAnd {
					e.mask &= m
				} else {
					e.mask |= m
				}
				p.Release()
				changed = true
				continue
			}
			pairs[key] = &pairEntry[S]{a: a, b: b, mask: m}
			order = append(order, key)
			rebuilt = append(rebuilt, p)
			continue
		}

		k := [2]uint64{p.Hash.Hi, p.Hash.Lo}
		plain[k] = append(plain[k], p)
		if len(plain[k]) == 1 {
			plainOrder = append(plainOrder, k)
			rebuilt = append(rebuilt, p)
		} else {
			p.Release()
			changed = true
		}
	}

	for _, key := range order {
		e := pairs[key]
		if isAnd && e.mask == 0 {
			replaceAllParamsWith(n, rebuilt)
			n.SetImmed(f.Ops, 0)
			return true
		}
		if !isAnd && e.mask == relAll {
			replaceAllParamsWith(n, rebuilt)
			n.SetImmed(f.Ops, 1)
			return true
		}
	}

	if !changed {
		return false
	}

	final := make([]*tree.Node[S], 0, len(rebuilt))
	for _, p := range rebuilt {
		if isComparison(p.Opcode) && len(p.Params) == 2 {
			a, b := p.Params[0], p.Params[1]
			swapped := b.Hash.Less(a.Hash)
			if swapped {
				a, b = b, a
			}
			key := pairKey{a.Hash.Hi, a.Hash.Lo, b.Hash.Hi, b.Hash.Lo}
			if e, ok := pairs[key]; ok {
				mask := e.mask
				if swapped {
					mask = flipMask(mask)
				}
				if op, ok2 := opOfMask(mask); ok2 && op != p.Opcode {
					p = p.CopyOnWrite()
					p.SetOpcode(op)
				}
				delete(pairs, key)
			}
		}
		final = append(final, p)
	}

	n.SetParamsMove(final)
	return true
}

func flipMask(m relMask) relMask {
	out := m & relEqual
	if m&relLess != 0 {
		out |= relGreater
	}
	if m&relGreater != 0 {
		out |= relLess
	}
	return out
}

// replaceAllParamsWith releases every node in keep (n.Params already holds
// these plus possibly more that were already released during grouping) so
// the caller can immediately SetImmed without leaking the survivors.
func replaceAllParamsWith[S scalar.Number](n *tree.Node[S], keep []*tree.Node[S]) {
	for _, p := range keep {
		p.Release()
	}
	n.Params = nil
}
