package scalar

import (
	"math"
	"math/big"

	mewfloat "github.com/mewmew/float"
)

// Ext128 is a distinct scalar type carrying float64 bit patterns but
// evaluated at extended (128-bit) intermediate precision, standing in for
// the "f80/f128 analogue" scalar type spec.md's P1 testable property
// requires the optimizer be exercised against. Go generics requires an
// underlying float kind, so Ext128 is float64-shaped on the wire; its Ops
// implementation is what actually differs.
type Ext128 float64

const ext128Prec = 128

func bf(x Ext128) *big.Float {
	return new(big.Float).SetPrec(ext128Prec).SetFloat64(float64(x))
}

func unbf(x *big.Float) Ext128 {
	f, _ := x.Float64()
	return Ext128(f)
}

// Ext128Ops implements Ops[Ext128]. Pow with an integer exponent below 2^20
// in magnitude, Sqrt, RSqrt and Abs are carried through math/big at
// ext128Prec bits before rounding back to the float64 on-wire value; every
// other function (Log, Exp, the trig family, fractional Pow, ...) is
// evaluated in float64.
type Ext128Ops struct{}

var _ Ops[Ext128] = Ext128Ops{}

func (Ext128Ops) Pow(base, exp Ext128) Ext128 {
	// Integer exponents are evaluated by repeated extended-precision
	// multiplication; fractional exponents fall back to double precision
	// around the transcendental (big.Float has no built-in pow/log).
	if float64(exp) == math.Trunc(float64(exp)) && math.Abs(float64(exp)) < 1<<20 {
		k := int(exp)
		neg := k < 0
		if neg {
			k = -k
		}
		acc := new(big.Float).SetPrec(ext128Prec).SetInt64(1)
		b := bf(base)
		for k > 0 {
			if k&1 == 1 {
				acc.Mul(acc, b)
			}
			b = new(big.Float).SetPrec(ext128Prec).Mul(b, b)
			k >>= 1
		}
		if neg {
			one := new(big.Float).SetPrec(ext128Prec).SetInt64(1)
			acc.Quo(one, acc)
		}
		return unbf(acc)
	}
	return Ext128(math.Pow(float64(base), float64(exp)))
}

func (Ext128Ops) Log(x Ext128) Ext128     { return Ext128(math.Log(float64(x))) }
func (Ext128Ops) Log2(x Ext128) Ext128    { return Ext128(math.Log2(float64(x))) }
func (Ext128Ops) Log10(x Ext128) Ext128   { return Ext128(math.Log10(float64(x))) }
func (Ext128Ops) Exp(x Ext128) Ext128     { return Ext128(math.Exp(float64(x))) }
func (Ext128Ops) Exp2(x Ext128) Ext128    { return Ext128(math.Exp2(float64(x))) }
func (Ext128Ops) Sqrt(x Ext128) Ext128    { return unbf(new(big.Float).SetPrec(ext128Prec).Sqrt(bf(x))) }
func (Ext128Ops) Cbrt(x Ext128) Ext128    { return Ext128(math.Cbrt(float64(x))) }
func (Ext128Ops) RSqrt(x Ext128) Ext128 {
	root := new(big.Float).SetPrec(ext128Prec).Sqrt(bf(x))
	return unbf(new(big.Float).SetPrec(ext128Prec).Quo(big.NewFloat(1), root))
}
func (Ext128Ops) Sin(x Ext128) Ext128      { return Ext128(math.Sin(float64(x))) }
func (Ext128Ops) Cos(x Ext128) Ext128      { return Ext128(math.Cos(float64(x))) }
func (Ext128Ops) Tan(x Ext128) Ext128      { return Ext128(math.Tan(float64(x))) }
func (Ext128Ops) Asin(x Ext128) Ext128     { return Ext128(math.Asin(float64(x))) }
func (Ext128Ops) Acos(x Ext128) Ext128     { return Ext128(math.Acos(float64(x))) }
func (Ext128Ops) Atan(x Ext128) Ext128     { return Ext128(math.Atan(float64(x))) }
func (Ext128Ops) Atan2(y, x Ext128) Ext128 { return Ext128(math.Atan2(float64(y), float64(x))) }
func (Ext128Ops) Sinh(x Ext128) Ext128     { return Ext128(math.Sinh(float64(x))) }
func (Ext128Ops) Cosh(x Ext128) Ext128     { return Ext128(math.Cosh(float64(x))) }
func (Ext128Ops) Tanh(x Ext128) Ext128     { return Ext128(math.Tanh(float64(x))) }
func (Ext128Ops) Asinh(x Ext128) Ext128    { return Ext128(math.Asinh(float64(x))) }
func (Ext128Ops) Acosh(x Ext128) Ext128    { return Ext128(math.Acosh(float64(x))) }
func (Ext128Ops) Atanh(x Ext128) Ext128    { return Ext128(math.Atanh(float64(x))) }
func (Ext128Ops) Abs(x Ext128) Ext128      { return unbf(new(big.Float).SetPrec(ext128Prec).Abs(bf(x))) }
func (Ext128Ops) Floor(x Ext128) Ext128    { return Ext128(math.Floor(float64(x))) }
func (Ext128Ops) Ceil(x Ext128) Ext128     { return Ext128(math.Ceil(float64(x))) }
func (Ext128Ops) Trunc(x Ext128) Ext128    { return Ext128(math.Trunc(float64(x))) }
func (Ext128Ops) Mod(x, y Ext128) Ext128   { return Ext128(math.Mod(float64(x), float64(y))) }
func (Ext128Ops) Hypot(x, y Ext128) Ext128 { return Ext128(math.Hypot(float64(x), float64(y))) }

func (Ext128Ops) FPEqual(a, b Ext128) bool { return fpEqual(float64(a), float64(b), 1e-12) }
func (Ext128Ops) IsInteger(x Ext128) bool  { return float64(x) == math.Trunc(float64(x)) }
func (o Ext128Ops) IsLongInteger(x Ext128) bool {
	return o.IsInteger(x) && math.Abs(float64(x)) < 1<<53
}
func (o Ext128Ops) IsEvenInteger(x Ext128) bool {
	return o.IsLongInteger(x) && math.Mod(float64(x), 2) == 0
}
func (o Ext128Ops) IsOddInteger(x Ext128) bool {
	return o.IsLongInteger(x) && math.Mod(float64(x), 2) != 0
}

func (Ext128Ops) Pi() Ext128             { return Ext128(math.Pi) }
func (Ext128Ops) HalfPi() Ext128         { return Ext128(math.Pi / 2) }
func (Ext128Ops) TwoPi() Ext128          { return Ext128(2 * math.Pi) }
func (Ext128Ops) E() Ext128              { return Ext128(math.E) }
func (Ext128Ops) Ln10() Ext128           { return Ext128(math.Ln10) }
func (Ext128Ops) InvLn10() Ext128        { return Ext128(1 / math.Ln10) }
func (Ext128Ops) Ln2() Ext128            { return Ext128(math.Ln2) }
func (Ext128Ops) InvLn2() Ext128         { return Ext128(1 / math.Ln2) }
func (Ext128Ops) DegToRad() Ext128       { return Ext128(math.Pi / 180) }
func (Ext128Ops) RadToDeg() Ext128       { return Ext128(180 / math.Pi) }
func (Ext128Ops) NegZeroEpsilon() Ext128 { return Ext128(-1e-18) }

// Bytes encodes v through the IEEE-754 binary128 representation of its
// float64 value (rather than the on-wire float64 bits). An Ext128 holds only
// a float64 value, so two immediates with the same float64 value get the
// same bytes.
func (Ext128Ops) Bytes(v Ext128) []byte {
	big128 := bf(v)
	bits := mewfloat.Float128ToBits(big128)
	out := make([]byte, len(bits))
	copy(out, bits[:])
	return out
}
