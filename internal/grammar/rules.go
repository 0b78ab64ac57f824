package grammar

import "github.com/WarpRules/fpopt/internal/opcode"

// holder id 1 stands for the pattern's free operand in every rule below,
// and 2 for a second, unrelated holder (the exponent pair rule); none need
// more, since they're each isolated rewrites rather than the original's
// interdependent rule chains.
const (
	xHolder = 1
	cHolder = 2
)

func numConst(v float64) ParamSpec { return ParamSpec{Tag: NumConstantTag, Value: v} }

func holder(id int, v ValueConstraint) ParamSpec {
	return ParamSpec{Tag: ParamHolderTag, HolderID: id, Constraints: Constraints{Value: v}}
}

func holderConst(id int) ParamSpec {
	return ParamSpec{Tag: ParamHolderTag, HolderID: id, Constraints: Constraints{ConstOnly: true}}
}

// Rules is a deliberately small, representative rule table: one rule per
// ParamSpec/MatchType feature the matching and synthesis engine supports,
// not a port of the original's generated ~1000-rule grammar (see
// DESIGN.md).
var Rules = []Rule{
	// pow(x, 0) -> 1
	{
		Name: "pow(x,0)->1",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Pow, MatchType: PositionalParams,
			Params: []ParamSpec{holder(xHolder, AnyValue), numConst(0)},
		},
		Replacement: []ParamSpec{numConst(1)},
	},

	// pow(x, 1) -> x
	{
		Name: "pow(x,1)->x",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Pow, MatchType: PositionalParams,
			Params: []ParamSpec{holder(xHolder, AnyValue), numConst(1)},
		},
		Replacement: []ParamSpec{holder(xHolder, AnyValue)},
	},

	// x - x -> 0 (the same ParamHolder id bound twice, so the match only
	// succeeds when both operands are structurally identical).
	{
		Name: "x-x->0",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Sub, MatchType: PositionalParams,
			Params: []ParamSpec{holder(xHolder, AnyValue), holder(xHolder, AnyValue)},
		},
		Replacement: []ParamSpec{numConst(0)},
	},

	// sqrt(sqr(x)) -> abs(x) (a nested SubFunction pattern).
	{
		Name: "sqrt(sqr(x))->abs(x)",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Sqrt, MatchType: PositionalParams,
			Params: []ParamSpec{{
				Tag: SubFunctionTag, Opcode: opcode.Sqr, MatchType: PositionalParams,
				Params: []ParamSpec{holder(xHolder, AnyValue)},
			}},
		},
		Replacement: []ParamSpec{{
			Tag: SubFunctionTag, Opcode: opcode.Abs, MatchType: PositionalParams,
			Params: []ParamSpec{holder(xHolder, AnyValue)},
		}},
	},

	// pow(x, c) * pow(x, -c) -> 1: the second exponent is a plain immediate,
	// tested by synthesizing -c from the already-bound c holder and
	// comparing values (a GroupFunction), rather than naming the literal
	// constant up front.
	{
		Name: "pow(x,c)*pow(x,-c)->1",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Mul, MatchType: PositionalParams,
			Params: []ParamSpec{
				{
					Tag: SubFunctionTag, Opcode: opcode.Pow, MatchType: PositionalParams,
					Params: []ParamSpec{holder(xHolder, AnyValue), holderConst(cHolder)},
				},
				{
					Tag: SubFunctionTag, Opcode: opcode.Pow, MatchType: PositionalParams,
					Params: []ParamSpec{
						holder(xHolder, AnyValue),
						{
							Tag: GroupFunctionTag, Opcode: opcode.Neg,
							Params: []ParamSpec{holderConst(cHolder)},
						},
					},
				},
			},
		},
		Replacement: []ParamSpec{numConst(1)},
	},

	// x * 0 -> 0, with the operands tested in either order (SelectedParams:
	// a fixed-size commutative match, unlike AnyParams's open-ended scan).
	{
		Name: "x*0->0",
		Type: ProduceNewTree,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Mul, MatchType: SelectedParams,
			Params: []ParamSpec{holder(xHolder, AnyValue), numConst(0)},
		},
		Replacement: []ParamSpec{numConst(0)},
	},

	// x + x + rest -> 2*x + rest (AnyParams with a RestHolder capturing
	// whatever else the Add has, rewritten via ReplaceParams so the
	// surrounding Add keeps its other operands untouched).
	{
		Name: "x+x+rest->2*x+rest",
		Type: ReplaceParams,
		Match: ParamSpec{
			Tag: SubFunctionTag, Opcode: opcode.Add, MatchType: AnyParams, RestHolder: 2,
			Params: []ParamSpec{holder(xHolder, AnyValue), holder(xHolder, AnyValue)},
		},
		Replacement: []ParamSpec{
			{
				Tag: SubFunctionTag, Opcode: opcode.Mul, MatchType: PositionalParams,
				Params: []ParamSpec{numConst(2), holder(xHolder, AnyValue)},
			},
			{Tag: SubFunctionTag, Opcode: opcode.Add, MatchType: AnyParams, RestHolder: 2},
		},
	},
}

// DefaultGrammar is the one grammar pass ApplyGrammars runs: a generated
// fpoptimizer ships several ordered grammar passes (round1/round2/...);
// this module's representative table only needs one, since none of its
// rules depend on a prior pass having already run.
var DefaultGrammar = NewGrammar("default", Rules)
