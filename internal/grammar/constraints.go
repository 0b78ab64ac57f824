package grammar

import (
	"github.com/WarpRules/fpopt/internal/rangeanalysis"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

// testConstraints checks c against n using the range analyzer's proven
// facts, mirroring TestImmedConstraints. NonInteger is reduced to its
// directly-provable case (an immediate that isn't an integer): the range
// analyzer only proves "always an integer", never "always not an integer"
// for a general subtree, so anything short of a non-integer immediate is
// rejected here rather than risking a false match.
func (m *Matcher[S]) testConstraints(c Constraints, n *tree.Node[S]) bool {
	switch c.Value {
	case EvenInt:
		if m.RA.IsAlwaysParity(n) != rangeanalysis.Always {
			return false
		}
	case OddInt:
		if m.RA.IsAlwaysParity(n) != rangeanalysis.Never {
			return false
		}
	case IsInteger:
		if m.RA.IsAlwaysInteger(n) != rangeanalysis.Always {
			return false
		}
	case NonInteger:
		if !n.IsImmed() || m.Ops.IsInteger(n.Immed) {
			return false
		}
	case Logical:
		if !n.IsLogicalValue() {
			return false
		}
	}

	switch c.Sign {
	case Positive:
		if m.RA.IsAlwaysSigned(n) != rangeanalysis.Always {
			return false
		}
	case Negative:
		if m.RA.IsAlwaysSigned(n) != rangeanalysis.Never {
			return false
		}
	case NoIdea:
		if m.RA.IsAlwaysSigned(n) != rangeanalysis.Unknown {
			return false
		}
	}

	switch c.Oneness {
	case One:
		if !n.IsImmed() || !m.Ops.FPEqual(absS(n.Immed), S(1)) {
			return false
		}
	case NotOne:
		if !n.IsImmed() || m.Ops.FPEqual(absS(n.Immed), S(1)) {
			return false
		}
	}

	if c.ConstOnly && !n.IsImmed() {
		return false
	}
	return true
}

func absS[S scalar.Number](v S) S {
	if v < 0 {
		return -v
	}
	return v
}
