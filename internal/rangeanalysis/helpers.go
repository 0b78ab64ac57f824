package rangeanalysis

import (
	"math"

	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func toF64[S scalar.Number](v S) float64 { return float64(v) }
func fromF64[S scalar.Number](v float64) S { return S(v) }

// monotoneEndpoint applies a monotonically increasing function endpoint-wise.
func (a *Analyzer[S]) monotoneEndpoint(c Range[S], f func(S) S) Range[S] {
	var r Range[S]
	if c.Min != nil {
		v := f(*c.Min)
		r.Min = &v
	}
	if c.Max != nil {
		v := f(*c.Max)
		r.Max = &v
	}
	return r
}

// monotoneEndpointFlip applies a monotonically decreasing function, so the
// child's min maps to the result's max and vice versa (used by Acos).
func (a *Analyzer[S]) monotoneEndpointFlip(c Range[S], f func(S) S) Range[S] {
	var r Range[S]
	if c.Max != nil {
		v := f(*c.Max)
		r.Min = &v
	}
	if c.Min != nil {
		v := f(*c.Min)
		r.Max = &v
	}
	return r
}

// monotoneLogLike applies log/log2/log10: monotone, but the lower bound is
// dropped (unknown) once the child's range dips below zero, since the real
// function is undefined there and the optimizer must not claim a bound it
// cannot prove.
func (a *Analyzer[S]) monotoneLogLike(child *tree.Node[S], f func(S) S) Range[S] {
	c := a.CalculateResultBoundaries(child)
	var zero S
	if c.Min == nil || *c.Min < zero {
		r := a.monotoneEndpoint(Range[S]{Min: c.Min, Max: c.Max}, f)
		r.Min = nil
		return r
	}
	return a.monotoneEndpoint(c, f)
}

func clamp[S scalar.Number](r Range[S], lo, hi S) Range[S] {
	if r.Min == nil || *r.Min < lo {
		r.Min = &lo
	}
	if r.Max == nil || *r.Max > hi {
		r.Max = &hi
	}
	return r
}

func clampLower[S scalar.Number](r Range[S], lo S) Range[S] {
	if r.Min == nil || *r.Min < lo {
		r.Min = &lo
	}
	return r
}

func absRange[S scalar.Number](c Range[S]) Range[S] {
	var zero S
	switch {
	case c.Min != nil && *c.Min >= zero:
		return c
	case c.Max != nil && *c.Max <= zero:
		negMax := -*c.Max
		var negMin *S
		if c.Min != nil {
			v := -*c.Min
			negMin = &v
		}
		return Range[S]{Min: &negMax, Max: negMin}
	default:
		min := zero
		if c.Min == nil || c.Max == nil {
			return Range[S]{Min: &min}
		}
		a1, a2 := absS(*c.Min), absS(*c.Max)
		max := a1
		if a2 > max {
			max = a2
		}
		return Range[S]{Min: &min, Max: &max}
	}
}

func absS[S scalar.Number](v S) S {
	if v < 0 {
		return -v
	}
	return v
}

func roundEndpoints[S scalar.Number](c Range[S], lower, upper func(S) S) Range[S] {
	var r Range[S]
	if c.Min != nil {
		v := lower(*c.Min)
		r.Min = &v
	}
	if c.Max != nil {
		v := upper(*c.Max)
		r.Max = &v
	}
	return r
}

func coshRange[S scalar.Number](c Range[S], ops scalar.Ops[S]) Range[S] {
	var zero S
	if c.Min == nil || c.Max == nil {
		one := S(1)
		return Range[S]{Min: &one}
	}
	if *c.Min <= zero && *c.Max >= zero {
		one := S(1)
		m := absS(*c.Min)
		if absS(*c.Max) > m {
			m = absS(*c.Max)
		}
		up := ops.Cosh(m)
		return Range[S]{Min: &one, Max: &up}
	}
	if *c.Min > zero {
		lo := ops.Cosh(*c.Min)
		hi := ops.Cosh(*c.Max)
		return Range[S]{Min: &lo, Max: &hi}
	}
	lo := ops.Cosh(*c.Max)
	hi := ops.Cosh(*c.Min)
	return Range[S]{Min: &lo, Max: &hi}
}

func union[S scalar.Number](a, b Range[S]) Range[S] {
	var r Range[S]
	if a.Min != nil && b.Min != nil {
		m := *a.Min
		if *b.Min < m {
			m = *b.Min
		}
		r.Min = &m
	}
	if a.Max != nil && b.Max != nil {
		m := *a.Max
		if *b.Max > m {
			m = *b.Max
		}
		r.Max = &m
	}
	return r
}

func (a *Analyzer[S]) minmax(children []*tree.Node[S], isMin bool) Range[S] {
	r := a.CalculateResultBoundaries(children[0])
	for _, c := range children[1:] {
		cr := a.CalculateResultBoundaries(c)
		if isMin {
			r = pointwise(r, cr, func(x, y S) S {
				if x < y {
					return x
				}
				return y
			}, func(x, y S) S {
				if x < y {
					return x
				}
				return y
			})
		} else {
			r = pointwise(r, cr, func(x, y S) S {
				if x > y {
					return x
				}
				return y
			}, func(x, y S) S {
				if x > y {
					return x
				}
				return y
			})
		}
	}
	return r
}

func pointwise[S scalar.Number](a, b Range[S], minF, maxF func(x, y S) S) Range[S] {
	var r Range[S]
	if a.Min != nil && b.Min != nil {
		v := minF(*a.Min, *b.Min)
		r.Min = &v
	}
	if a.Max != nil && b.Max != nil {
		v := maxF(*a.Max, *b.Max)
		r.Max = &v
	}
	return r
}

func (a *Analyzer[S]) addRange(children []*tree.Node[S]) Range[S] {
	r := a.CalculateResultBoundaries(children[0])
	for _, c := range children[1:] {
		cr := a.CalculateResultBoundaries(c)
		var sum Range[S]
		if r.Min != nil && cr.Min != nil {
			v := *r.Min + *cr.Min
			sum.Min = &v
		}
		if r.Max != nil && cr.Max != nil {
			v := *r.Max + *cr.Max
			sum.Max = &v
		}
		r = sum
	}
	return r
}

// mulSentinel turns a Range into (lo, hi) float64 endpoints with ±Inf
// standing in for an unknown side, so interval multiplication can take the
// min/max of the four corner products without special-casing unknowns.
func mulSentinel[S scalar.Number](r Range[S]) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if r.Min != nil {
		lo = toF64(*r.Min)
	}
	if r.Max != nil {
		hi = toF64(*r.Max)
	}
	return
}

func (a *Analyzer[S]) mulRange(children []*tree.Node[S]) Range[S] {
	lo, hi := mulSentinel(a.CalculateResultBoundaries(children[0]))
	for _, c := range children[1:] {
		clo, chi := mulSentinel(a.CalculateResultBoundaries(c))
		corners := [4]float64{lo * clo, lo * chi, hi * clo, hi * chi}
		nlo, nhi := corners[0], corners[0]
		for _, v := range corners[1:] {
			if math.IsNaN(v) {
				continue
			}
			if v < nlo {
				nlo = v
			}
			if v > nhi {
				nhi = v
			}
		}
		lo, hi = nlo, nhi
	}
	var r Range[S]
	if !math.IsInf(lo, -1) {
		v := fromF64[S](lo)
		r.Min = &v
	}
	if !math.IsInf(hi, 1) {
		v := fromF64[S](hi)
		r.Max = &v
	}
	return r
}

func modRange[S scalar.Number](x, y Range[S]) Range[S] {
	var zero S
	if y.Max == nil {
		return unbounded[S]()
	}
	if *y.Max >= zero {
		m := *y.Max
		negM := -m
		if x.Min != nil && *x.Min >= zero {
			return Range[S]{Min: &zero, Max: &m}
		}
		return Range[S]{Min: &negM, Max: &m}
	}
	m := *y.Max
	negM := -m
	if x.Min != nil && *x.Min >= zero {
		return Range[S]{Min: &zero, Max: &negM}
	}
	return Range[S]{Min: &m, Max: &negM}
}

func (a *Analyzer[S]) scaled(child *tree.Node[S], factor S) Range[S] {
	c := a.CalculateResultBoundaries(child)
	if factor >= 0 {
		return a.monotoneEndpoint(c, func(v S) S { return v * factor })
	}
	return a.monotoneEndpointFlip(c, func(v S) S { return v * factor })
}

// trig implements Sin/Cos range reduction (spec.md §4.3): if the child's
// range spans a full period, the result is the full [-1,1]; otherwise the
// endpoints are reduced mod 2π and the analyzer checks whether the
// reduced arc crosses the angle where the function peaks (π/2 for sin,
// 0/2π for cos) or troughs (3π/2 for sin, π for cos).
func (a *Analyzer[S]) trig(child *tree.Node[S], f func(S) S, isSin bool) Range[S] {
	c := a.CalculateResultBoundaries(child)
	if c.Min == nil || c.Max == nil {
		return interval[S](-1, 1)
	}
	lo64, hi64 := toF64(*c.Min), toF64(*c.Max)
	if hi64-lo64 >= 2*math.Pi {
		return interval[S](-1, 1)
	}
	peak := math.Pi / 2
	trough := 3 * math.Pi / 2
	if !isSin {
		peak = 0
		trough = math.Pi
	}
	minV, maxV := f(*c.Min), f(*c.Max)
	lo, hi := minV, maxV
	if lo > hi {
		lo, hi = hi, lo
	}
	if crossesMod2Pi(lo64, hi64, peak) {
		one := S(1)
		hi = one
	}
	if crossesMod2Pi(lo64, hi64, trough) {
		negOne := S(-1)
		lo = negOne
	}
	return Range[S]{Min: &lo, Max: &hi}
}

// crossesMod2Pi reports whether the arc [lo,hi] (not yet reduced) contains
// a point congruent to target modulo 2π.
func crossesMod2Pi(lo, hi, target float64) bool {
	twoPi := 2 * math.Pi
	k := math.Floor((lo - target) / twoPi)
	candidate := target + k*twoPi
	for candidate < hi+1e-12 {
		if candidate >= lo-1e-12 {
			return true
		}
		candidate += twoPi
	}
	return false
}

func hypotRange[S scalar.Number](x, y Range[S], ops scalar.Ops[S]) Range[S] {
	ax := absRange(x)
	ay := absRange(y)
	if ax.Max == nil || ay.Max == nil {
		var r Range[S]
		if ax.Min != nil && ay.Min != nil {
			v := ops.Hypot(*ax.Min, *ay.Min)
			r.Min = &v
		}
		return r
	}
	hi := ops.Hypot(*ax.Max, *ay.Max)
	var lo S
	if ax.Min != nil && ay.Min != nil {
		lo = ops.Hypot(*ax.Min, *ay.Min)
	}
	return Range[S]{Min: &lo, Max: &hi}
}

// powRange implements Pow's three-case precedence (spec.md §4.3).
func (a *Analyzer[S]) powRange(base, exp *tree.Node[S]) Range[S] {
	ops := a.Ops
	br := a.CalculateResultBoundaries(base)
	er := a.CalculateResultBoundaries(exp)

	var zero, one S = 0, 1
	if er.Min != nil && er.Max != nil && *er.Min == zero && *er.Max == zero {
		return point[S](one)
	}
	if br.Min != nil && br.Max != nil && *br.Min == zero && *br.Max == zero {
		return point[S](zero)
	}
	if br.Min != nil && br.Max != nil && *br.Min == one && *br.Max == one {
		return point[S](one)
	}
	// Both operands known exactly: the result is that single value (a NaN
	// result falls through to the cases below).
	if br.Min != nil && br.Max != nil && *br.Min == *br.Max &&
		er.Min != nil && er.Max != nil && *er.Min == *er.Max {
		if v := ops.Pow(*br.Min, *er.Min); v == v {
			return point[S](v)
		}
	}

	if exp.IsImmed() && ops.IsEvenInteger(exp.Immed) && exp.Immed > 0 {
		return a.powRangeEvenInt(br, exp.Immed)
	}

	return a.powRangeTruthTable(br, exp)
}

func (a *Analyzer[S]) powRangeImmedExp(base *tree.Node[S], expVal int) Range[S] {
	exp := immedOf[S](S(expVal))
	return a.powRange(base, exp)
}

func (a *Analyzer[S]) powRangeEvenInt(br Range[S], expImmed S) Range[S] {
	ops := a.Ops
	if br.Min == nil || br.Max == nil {
		var zero S
		return Range[S]{Min: &zero}
	}
	m := absS(*br.Min)
	if absS(*br.Max) > m {
		m = absS(*br.Max)
	}
	var lo S
	if *br.Min <= 0 && *br.Max >= 0 {
		lo = 0
	} else {
		mn := absS(*br.Min)
		if absS(*br.Max) < mn {
			mn = absS(*br.Max)
		}
		lo = ops.Pow(mn, expImmed)
	}
	hi := ops.Pow(m, expImmed)
	return Range[S]{Min: &lo, Max: &hi}
}

func (a *Analyzer[S]) powRangeTruthTable(br Range[S], exp *tree.Node[S]) Range[S] {
	var zero S
	baseSign := Unknown
	switch {
	case br.Min != nil && *br.Min >= zero:
		baseSign = Always // base >= 0
	case br.Max != nil && *br.Max < zero:
		baseSign = Never // base < 0
	}

	parity := Unknown
	if exp.IsImmed() {
		if a.Ops.IsEvenInteger(exp.Immed) {
			parity = Always // even
		} else if a.Ops.IsOddInteger(exp.Immed) {
			parity = Never // odd
		}
	}

	nonNegative := false
	switch {
	case baseSign == Always:
		nonNegative = true
	case baseSign == Never && parity == Never:
		nonNegative = false
	case baseSign == Never && parity == Always:
		nonNegative = true
	default:
		// unknown either way
	}

	if nonNegative {
		var lo S
		return Range[S]{Min: &lo}
	}
	return unbounded[S]()
}
