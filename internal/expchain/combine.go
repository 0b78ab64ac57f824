package expchain

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/tree"
)

// bigMulThreshold is the operand bit length past which combineExponents
// switches from big.Int's schoolbook multiply to bigfft's, mirroring how
// the original only bothers with an FFT-based multiply once the exponent
// chain's combined numerator/denominator actually gets large (deeply
// nested Pow towers, not the single-digit exponents most expressions use).
const bigMulThreshold = 2048

func bigMul(a, b *big.Int) *big.Int {
	if a.BitLen() > bigMulThreshold && b.BitLen() > bigMulThreshold {
		return bigfft.Mul(a, b)
	}
	return new(big.Int).Mul(a, b)
}

// combineNestedPow collapses Pow(Pow(x,a),b) into Pow(x,a*b) when both
// exponents are immediates, the way the recreation pass simplifies an
// exponent tower before deciding how to synthesize it (spec.md §4.7.2).
// Large combined exponents are multiplied via big.Int/bigfft rather than
// the host scalar type, so the reduction step never loses precision the
// way repeated float multiplication of two huge exponents would.
func (p *Planner[S]) combineNestedPow(n *tree.Node[S]) bool {
	if n.Opcode != opcode.Pow || len(n.Params) != 2 {
		return false
	}
	inner, outerExp := n.Params[0], n.Params[1]
	if inner.Opcode != opcode.Pow || len(inner.Params) != 2 {
		return false
	}
	if !inner.Params[1].IsImmed() || !outerExp.IsImmed() {
		return false
	}
	if !p.Ops.IsLongInteger(inner.Params[1].Immed) || !p.Ops.IsLongInteger(outerExp.Immed) {
		return false
	}

	a := big.NewInt(int64(inner.Params[1].Immed))
	b := big.NewInt(int64(outerExp.Immed))
	combined := bigMul(a, b)
	if !combined.IsInt64() {
		return false
	}

	base := inner.Params[0]
	base.Retain()
	exp := tree.NewImmed[S](p.Ops, S(combined.Int64()))
	repl := tree.New[S](opcode.Pow, base, exp)
	base.Release()
	exp.Release()
	n.Become(repl)
	repl.Release()
	return true
}
