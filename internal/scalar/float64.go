package scalar

import (
	"encoding/binary"
	"math"
)

// Float64Ops implements Ops[float64] over the standard library math package.
type Float64Ops struct{}

var _ Ops[float64] = Float64Ops{}

func (Float64Ops) Pow(base, exp float64) float64   { return math.Pow(base, exp) }
func (Float64Ops) Log(x float64) float64           { return math.Log(x) }
func (Float64Ops) Log2(x float64) float64          { return math.Log2(x) }
func (Float64Ops) Log10(x float64) float64         { return math.Log10(x) }
func (Float64Ops) Exp(x float64) float64           { return math.Exp(x) }
func (Float64Ops) Exp2(x float64) float64          { return math.Exp2(x) }
func (Float64Ops) Sqrt(x float64) float64          { return math.Sqrt(x) }
func (Float64Ops) Cbrt(x float64) float64          { return math.Cbrt(x) }
func (Float64Ops) RSqrt(x float64) float64         { return 1 / math.Sqrt(x) }
func (Float64Ops) Sin(x float64) float64           { return math.Sin(x) }
func (Float64Ops) Cos(x float64) float64           { return math.Cos(x) }
func (Float64Ops) Tan(x float64) float64           { return math.Tan(x) }
func (Float64Ops) Asin(x float64) float64          { return math.Asin(x) }
func (Float64Ops) Acos(x float64) float64          { return math.Acos(x) }
func (Float64Ops) Atan(x float64) float64          { return math.Atan(x) }
func (Float64Ops) Atan2(y, x float64) float64      { return math.Atan2(y, x) }
func (Float64Ops) Sinh(x float64) float64          { return math.Sinh(x) }
func (Float64Ops) Cosh(x float64) float64          { return math.Cosh(x) }
func (Float64Ops) Tanh(x float64) float64          { return math.Tanh(x) }
func (Float64Ops) Asinh(x float64) float64         { return math.Asinh(x) }
func (Float64Ops) Acosh(x float64) float64         { return math.Acosh(x) }
func (Float64Ops) Atanh(x float64) float64         { return math.Atanh(x) }
func (Float64Ops) Abs(x float64) float64           { return math.Abs(x) }
func (Float64Ops) Floor(x float64) float64         { return math.Floor(x) }
func (Float64Ops) Ceil(x float64) float64          { return math.Ceil(x) }
func (Float64Ops) Trunc(x float64) float64         { return math.Trunc(x) }
func (Float64Ops) Mod(x, y float64) float64        { return math.Mod(x, y) }
func (Float64Ops) Hypot(x, y float64) float64      { return math.Hypot(x, y) }

func (Float64Ops) FPEqual(a, b float64) bool { return fpEqual(a, b, fpTolerance) }

func (Float64Ops) IsInteger(x float64) bool { return x == math.Trunc(x) }

func (Float64Ops) IsLongInteger(x float64) bool {
	return x == math.Trunc(x) && math.Abs(x) < 1<<53
}

func (o Float64Ops) IsEvenInteger(x float64) bool {
	return o.IsLongInteger(x) && math.Mod(x, 2) == 0
}

func (o Float64Ops) IsOddInteger(x float64) bool {
	return o.IsLongInteger(x) && math.Mod(x, 2) != 0
}

func (Float64Ops) Pi() float64             { return math.Pi }
func (Float64Ops) HalfPi() float64         { return math.Pi / 2 }
func (Float64Ops) TwoPi() float64          { return 2 * math.Pi }
func (Float64Ops) E() float64              { return math.E }
func (Float64Ops) Ln10() float64           { return math.Ln10 }
func (Float64Ops) InvLn10() float64        { return 1 / math.Ln10 }
func (Float64Ops) Ln2() float64            { return math.Ln2 }
func (Float64Ops) InvLn2() float64         { return 1 / math.Ln2 }
func (Float64Ops) DegToRad() float64       { return math.Pi / 180 }
func (Float64Ops) RadToDeg() float64       { return 180 / math.Pi }
func (Float64Ops) NegZeroEpsilon() float64 { return -1e-14 }

func (Float64Ops) Bytes(v float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf[:]
}

// Float32Ops implements Ops[float32], promoting to float64 for the
// transcendental functions the standard library only provides in double
// precision and rounding back down — the same strategy fparser's own
// template instantiation for `float` uses via the C library.
type Float32Ops struct{}

var _ Ops[float32] = Float32Ops{}

func (Float32Ops) Pow(base, exp float32) float32 { return float32(math.Pow(float64(base), float64(exp))) }
func (Float32Ops) Log(x float32) float32         { return float32(math.Log(float64(x))) }
func (Float32Ops) Log2(x float32) float32        { return float32(math.Log2(float64(x))) }
func (Float32Ops) Log10(x float32) float32       { return float32(math.Log10(float64(x))) }
func (Float32Ops) Exp(x float32) float32         { return float32(math.Exp(float64(x))) }
func (Float32Ops) Exp2(x float32) float32        { return float32(math.Exp2(float64(x))) }
func (Float32Ops) Sqrt(x float32) float32        { return float32(math.Sqrt(float64(x))) }
func (Float32Ops) Cbrt(x float32) float32        { return float32(math.Cbrt(float64(x))) }
func (Float32Ops) RSqrt(x float32) float32       { return float32(1 / math.Sqrt(float64(x))) }
func (Float32Ops) Sin(x float32) float32         { return float32(math.Sin(float64(x))) }
func (Float32Ops) Cos(x float32) float32         { return float32(math.Cos(float64(x))) }
func (Float32Ops) Tan(x float32) float32         { return float32(math.Tan(float64(x))) }
func (Float32Ops) Asin(x float32) float32        { return float32(math.Asin(float64(x))) }
func (Float32Ops) Acos(x float32) float32        { return float32(math.Acos(float64(x))) }
func (Float32Ops) Atan(x float32) float32        { return float32(math.Atan(float64(x))) }
func (Float32Ops) Atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}
func (Float32Ops) Sinh(x float32) float32  { return float32(math.Sinh(float64(x))) }
func (Float32Ops) Cosh(x float32) float32  { return float32(math.Cosh(float64(x))) }
func (Float32Ops) Tanh(x float32) float32  { return float32(math.Tanh(float64(x))) }
func (Float32Ops) Asinh(x float32) float32 { return float32(math.Asinh(float64(x))) }
func (Float32Ops) Acosh(x float32) float32 { return float32(math.Acosh(float64(x))) }
func (Float32Ops) Atanh(x float32) float32 { return float32(math.Atanh(float64(x))) }
func (Float32Ops) Abs(x float32) float32   { return float32(math.Abs(float64(x))) }
func (Float32Ops) Floor(x float32) float32 { return float32(math.Floor(float64(x))) }
func (Float32Ops) Ceil(x float32) float32  { return float32(math.Ceil(float64(x))) }
func (Float32Ops) Trunc(x float32) float32 { return float32(math.Trunc(float64(x))) }
func (Float32Ops) Mod(x, y float32) float32 {
	return float32(math.Mod(float64(x), float64(y)))
}
func (Float32Ops) Hypot(x, y float32) float32 {
	return float32(math.Hypot(float64(x), float64(y)))
}

func (Float32Ops) FPEqual(a, b float32) bool {
	return fpEqual(float64(a), float64(b), 1e-6)
}

func (Float32Ops) IsInteger(x float32) bool { return x == float32(math.Trunc(float64(x))) }

func (o Float32Ops) IsLongInteger(x float32) bool {
	return o.IsInteger(x) && math.Abs(float64(x)) < 1<<24
}

func (o Float32Ops) IsEvenInteger(x float32) bool {
	return o.IsLongInteger(x) && math.Mod(float64(x), 2) == 0
}

func (o Float32Ops) IsOddInteger(x float32) bool {
	return o.IsLongInteger(x) && math.Mod(float64(x), 2) != 0
}

func (Float32Ops) Pi() float32             { return math.Pi }
func (Float32Ops) HalfPi() float32         { return math.Pi / 2 }
func (Float32Ops) TwoPi() float32          { return 2 * math.Pi }
func (Float32Ops) E() float32              { return math.E }
func (Float32Ops) Ln10() float32           { return math.Ln10 }
func (Float32Ops) InvLn10() float32        { return 1 / math.Ln10 }
func (Float32Ops) Ln2() float32            { return math.Ln2 }
func (Float32Ops) InvLn2() float32         { return 1 / math.Ln2 }
func (Float32Ops) DegToRad() float32       { return math.Pi / 180 }
func (Float32Ops) RadToDeg() float32       { return 180 / math.Pi }
func (Float32Ops) NegZeroEpsilon() float32 { return -1e-6 }

func (Float32Ops) Bytes(v float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return buf[:]
}
