package lowering

import (
	"testing"

	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/constfold"
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
	"github.com/WarpRules/fpopt/internal/tree"
)

func ops() scalar.Ops[float64] { return scalar.Float64Ops{} }

func v(k uint32) *tree.Node[float64] { return tree.NewVar[float64](k) }

func imm(x float64) *tree.Node[float64] { return tree.NewImmed[float64](ops(), x) }

func rehash(n *tree.Node[float64]) *tree.Node[float64] {
	f := constfold.New(ops())
	f.Rehash(n)
	return n
}

func decode(prog bytecode.Program[float64]) []opcode.Opcode {
	var out []opcode.Opcode
	i := 0
	for i < len(prog.Code) {
		op := bytecode.DecodeOp(prog.Code[i])
		out = append(out, op)
		switch op {
		case opcode.Fetch:
			i += 2
		case opcode.PopNMov:
			i += 3
		case opcode.If, opcode.AbsIf, opcode.Jump:
			i += 3
		case opcode.FCall, opcode.PCall:
			i += 2
		default:
			i++
		}
	}
	return out
}

func countOp(ops []opcode.Opcode, want opcode.Opcode) int {
	n := 0
	for _, o := range ops {
		if o == want {
			n++
		}
	}
	return n
}

func TestLowerLeafVar(t *testing.T) {
	prog := Lower[float64](v(0), ops(), DefaultOptions())
	decoded := decode(prog)
	if len(decoded) != 1 || decoded[0] != opcode.VarBegin {
		t.Fatalf("bare var: want a single VarBegin word, got %v", decoded)
	}
	if prog.PeakStack != 1 {
		t.Fatalf("bare var: want peak stack 1, got %d", prog.PeakStack)
	}
}

func TestLowerNaryAddChainsBinaryOps(t *testing.T) {
	n := tree.New[float64](opcode.Add, v(0), v(1), v(2))
	rehash(n)
	prog := Lower[float64](n, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.Add) != 2 {
		t.Fatalf("3-operand add: want 2 binary Add words, got %v", decoded)
	}
}

func TestLowerPowIntegerUsesPowiChain(t *testing.T) {
	n := tree.New[float64](opcode.Pow, v(0), imm(5))
	rehash(n)
	prog := Lower[float64](n, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.Pow) != 0 {
		t.Fatalf("x^5: want the powi dup/mul chain, not a direct Pow call, got %v", decoded)
	}
	if countOp(decoded, opcode.Mul) == 0 && countOp(decoded, opcode.Sqr) == 0 {
		t.Fatalf("x^5: want at least one multiply/square in the chain, got %v", decoded)
	}
}

func TestLowerPowIntegerFallsBackOverBudget(t *testing.T) {
	n := tree.New[float64](opcode.Pow, v(0), imm(255))
	rehash(n)
	tight := Options{MaxPowiBytecodeGrow: 1, MaxMuliBytecodeGrow: 3}
	prog := Lower[float64](n, ops(), tight)
	decoded := decode(prog)
	if countOp(decoded, opcode.Pow) != 1 {
		t.Fatalf("x^255 with a tiny budget: want a direct Pow call, got %v", decoded)
	}
}

func TestLowerMulByIntegerUsesMuliChain(t *testing.T) {
	n := tree.New[float64](opcode.Mul, v(0), imm(4))
	rehash(n)
	prog := Lower[float64](n, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.Mul) != 0 {
		t.Fatalf("x*4: want a muli dup/add chain instead of a real Mul, got %v", decoded)
	}
	if countOp(decoded, opcode.Add) == 0 {
		t.Fatalf("x*4: want at least one Add in the chain, got %v", decoded)
	}
}

func TestLowerSharedSubexpressionReusesValue(t *testing.T) {
	shared := tree.New[float64](opcode.Sin, v(0))
	rehash(shared)
	sum := tree.New[float64](opcode.Add, shared, shared)
	rehash(sum)

	prog := Lower[float64](sum, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.Sin) != 1 {
		t.Fatalf("sin(x)+sin(x): want sin computed exactly once, got %v", decoded)
	}
	if countOp(decoded, opcode.Dup)+countOp(decoded, opcode.Fetch) == 0 {
		t.Fatalf("sin(x)+sin(x): want the second use to come from a dup/fetch, got %v", decoded)
	}
}

func TestLowerSinCosSameArgumentFuses(t *testing.T) {
	x := v(0)
	sinNode := tree.New[float64](opcode.Sin, x)
	rehash(sinNode)
	cosNode := tree.New[float64](opcode.Cos, x)
	rehash(cosNode)
	sum := tree.New[float64](opcode.Add, sinNode, cosNode)
	rehash(sum)

	prog := Lower[float64](sum, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.SinCos) != 1 {
		t.Fatalf("sin(x)+cos(x): want a single fused SinCos, got %v", decoded)
	}
	if countOp(decoded, opcode.Sin) != 0 || countOp(decoded, opcode.Cos) != 0 {
		t.Fatalf("sin(x)+cos(x): want no separate Sin/Cos calls once fused, got %v", decoded)
	}
}

func TestLowerIfEmitsConditionJumpPair(t *testing.T) {
	cond := tree.New[float64](opcode.Greater, v(0), imm(0))
	rehash(cond)
	n := tree.New[float64](opcode.If, cond, v(1), v(2))
	rehash(n)

	prog := Lower[float64](n, ops(), DefaultOptions())
	decoded := decode(prog)
	if countOp(decoded, opcode.If) != 1 || countOp(decoded, opcode.Jump) != 1 {
		t.Fatalf("if(a>0,b,c): want exactly one If and one Jump, got %v", decoded)
	}
	ifPos, jumpPos := -1, -1
	for i, o := range decoded {
		if o == opcode.If {
			ifPos = i
		}
		if o == opcode.Jump {
			jumpPos = i
		}
	}
	if ifPos == -1 || jumpPos == -1 || jumpPos <= ifPos {
		t.Fatalf("if(a>0,b,c): want If before Jump in program order, got %v", decoded)
	}
}

func TestLowerProducesExactlyOneFinalValue(t *testing.T) {
	shared := tree.New[float64](opcode.Sin, v(0))
	rehash(shared)
	n := tree.New[float64](opcode.Add, shared, shared)
	rehash(n)
	n2 := tree.New[float64](opcode.Mul, n, shared)
	rehash(n2)

	prog := Lower[float64](n2, ops(), DefaultOptions())
	if prog.PeakStack < 1 {
		t.Fatalf("want a positive peak stack depth, got %d", prog.PeakStack)
	}
}
