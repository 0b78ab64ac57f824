package expchain

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"modernc.org/mathutil"
)

// rootOp names a single step of a root-chain: an opcode to apply plus the
// cost (in roughly-comparable "cycles") that step adds, used by
// planRootChain to weigh a chain of sqrt/cbrt calls against plain Pow with
// a fractional exponent (spec.md §4.7.2).
type rootOp struct {
	op   opcode.Opcode
	cost int
}

var (
	sqrtOp = rootOp{opcode.Sqrt, 6}
	cbrtOp = rootOp{opcode.Cbrt, 8}
)

// rootPower is one entry of the exponent table planRootChain searches. num
// and den carry the exact exponent a chain of these ops produces starting
// from x^1 (always reduced to lowest terms via reduceRatio), so a target
// rational exponent can be matched exactly instead of by float epsilon.
type rootPower struct {
	num, den int64
	chain    []rootOp
}

// rootPowers enumerates every exponent reachable within four
// sqrt/cbrt-chain stages, least-separation-first, mirroring the original's
// table of roots it's willing to substitute for a literal fractional Pow.
var rootPowers = buildRootPowers()

func buildRootPowers() []rootPower {
	var out []rootPower
	bases := []rootOp{sqrtOp, cbrtOp}
	seen := make(map[[2]int64]bool)
	add := func(num, den int64, chain []rootOp) {
		key := [2]int64{num, den}
		if seen[key] {
			return
		}
		seen[key] = true
		cp := append([]rootOp(nil), chain...)
		out = append(out, rootPower{num: num, den: den, chain: cp})
	}
	add(1, 1, nil)

	var chain []rootOp
	var num, den int64 = 1, 1
	// Breadth-limited DFS over up to 4 combined root stages; 2 bases ^ 4
	// stages gives 16 combinations, comfortably under the table-of-20 the
	// original ships.
	var walk func(depth int)
	walk = func(depth int) {
		if depth == 4 || len(out) >= 20 {
			return
		}
		for _, b := range bases {
			vn, vd := applyRoot(num, den, b)
			chain = append(chain, b)
			add(vn, vd, chain)
			pn, pd := num, den
			num, den = vn, vd
			walk(depth + 1)
			num, den = pn, pd
			chain = chain[:len(chain)-1]
		}
	}
	walk(0)
	return out
}

// applyRoot divides the exponent num/den by 2 (sqrt) or 3 (cbrt) and
// reduces the result via reduceRatio's GCD step, so the table never
// accumulates an unreduced fraction across the DFS.
func applyRoot(num, den int64, op rootOp) (int64, int64) {
	switch op.op {
	case opcode.Sqrt:
		return reduceRatio(num, den*2)
	case opcode.Cbrt:
		return reduceRatio(num, den*3)
	}
	return num, den
}

// rationalize converts a float exponent into a reduced num/den pair exact
// enough to compare against the rootPowers table, giving up (ok=false)
// once the denominator would have to exceed what any four-stage
// sqrt/cbrt chain can produce (den is always some product of 2s and 3s,
// capped at 2^4*3^4 here).
func rationalize(v float64, maxDen int64) (num, den int64, ok bool) {
	for d := int64(1); d <= maxDen; d++ {
		n := v * float64(d)
		rounded := int64(n + signOf(n)*0.5)
		if float64(rounded) == n {
			num, den = reduceRatio(rounded, d)
			return num, den, true
		}
	}
	return 0, 0, false
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// planRootChain searches rootPowers for the cheapest chain whose resulting
// exponent matches target exactly, returning the chain and its cost, or
// ok=false if target isn't a rational this table can reach (or isn't
// rational at all, within float precision).
func planRootChain(target float64) (chain []rootOp, cost int, ok bool) {
	num, den, rOK := rationalize(target, 2*2*2*2*3*3*3*3)
	if !rOK {
		return nil, 0, false
	}
	bestCost := -1
	for _, rp := range rootPowers {
		if rp.num != num || rp.den != den {
			continue
		}
		c := chainCost(rp.chain)
		if bestCost < 0 || c < bestCost {
			bestCost = c
			chain = rp.chain
			ok = true
		}
	}
	cost = bestCost
	return chain, cost, ok
}

func chainCost(chain []rootOp) int {
	c := 0
	for _, s := range chain {
		c += s.cost
	}
	return c
}

// reduceRatio divides n and d by their GCD, so an exponent fraction is
// always carried in lowest terms (shared with combineNestedPow's integer
// exponent multiply).
func reduceRatio(n, d int64) (int64, int64) {
	un, ud := uint64(abs64Int(n)), uint64(abs64Int(d))
	g := mathutil.GCDUint64(un, ud)
	if g == 0 {
		return n, d
	}
	return n / int64(g), d / int64(g)
}

func abs64Int(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// directPowCost estimates the cost of emitting a plain Pow call, used as
// the threshold planRootChain's caller compares a root chain against
// (spec.md §4.7.2's divide-by-22 baseline for a generic call through libm).
const directPowCost = 22

// dupMulCost is the per-extra-multiplication cost a dup/mul integer-power
// sequence step adds (x^(3/2) == x*sqrt(x) would pay it once). Nothing in
// the package reads it: planRootChain only accepts exponents a root chain
// reaches exactly and never adds a multiply step to a plan.
const dupMulCost = 7
