// Package grammar implements G: pattern-based tree rewriting (spec.md
// §4.6), grounded on
// original_source/fpoptimizer/fpoptimizer_grammar.{cc,hh} (the rule data
// model) and fpoptimizer_optimize_{match,synth}.cc (the matching and
// synthesis engine).
package grammar

import "github.com/WarpRules/fpopt/internal/opcode"

// Tag identifies which of the four param-spec shapes a ParamSpec holds
// (spec.md §4.6.1); ImmedHolder and NamedHolder from the original's
// SpecialOpcode enum are unified into ParamHolderTag, since both describe
// "match/synthesize a node, keyed by holder id" and differ only in a
// constraint the Constraints field already expresses.
type Tag int

const (
	NumConstantTag Tag = iota
	ParamHolderTag
	SubFunctionTag
	GroupFunctionTag
)

// MatchType controls how a SubFunction's operand list is tested against a
// candidate tree's Params (spec.md §4.6.1).
type MatchType int

const (
	PositionalParams MatchType = iota
	SelectedParams
	AnyParams
)

// ValueConstraint narrows which values a matched node may take.
type ValueConstraint int

const (
	AnyValue ValueConstraint = iota
	EvenInt
	OddInt
	IsInteger
	NonInteger
	Logical
)

type SignConstraint int

const (
	AnySign SignConstraint = iota
	Positive
	Negative
	NoIdea
)

type OnenessConstraint int

const (
	AnyOneness OnenessConstraint = iota
	One
	NotOne
)

// Constraints is the original's packed bitmask (ValueMask/SignMask/
// OnenessMask/ConstnessMask), unpacked into named fields: nothing here
// needs C's byte-budget, and struct fields read better at call sites than
// mask arithmetic.
type Constraints struct {
	Value     ValueConstraint
	Sign      SignConstraint
	Oneness   OnenessConstraint
	ConstOnly bool
}

// ParamSpec is a pattern fragment: either something to match against an
// existing tree, or a template to synthesize a replacement from, depending
// on which list (Rule.Match vs Rule.Replacement) it appears in.
type ParamSpec struct {
	Tag Tag

	// NumConstantTag.
	Value float64

	// ParamHolderTag.
	HolderID    int
	Constraints Constraints

	// SubFunctionTag / GroupFunctionTag.
	Opcode     opcode.Opcode
	MatchType  MatchType // SubFunctionTag only
	Params     []ParamSpec
	RestHolder int // nonzero: AnyParams leftovers bind here
}

// ParamCount reports how many Params this spec's pattern names (not
// counting whatever a nonzero RestHolder captures).
func (p ParamSpec) ParamCount() int { return len(p.Params) }

// RuleType mirrors the original's: whether a rewrite replaces the whole
// matched node or only its matched operands.
type RuleType int

const (
	ProduceNewTree RuleType = iota
	ReplaceParams
)

// Rule pairs a match pattern with a replacement template. Name is purely
// diagnostic (debug-dump labeling); matching never consults it.
type Rule struct {
	Name        string
	Type        RuleType
	Match       ParamSpec // Tag must be SubFunctionTag
	Replacement []ParamSpec
}

// minParams is the pre-screen bound spec.md §4.6.1 calls
// n_minimum_params: the rule cannot match a tree with fewer Params than
// this, regardless of match type. Every pattern param, including a
// GroupFunction one, occupies exactly one tree operand slot.
func (r Rule) minParams() int { return len(r.Match.Params) }

// Grammar is an ordered set of rules, indexed by the root opcode they
// match so ApplyGrammar only scans relevant candidates (spec.md's
// equal-range on (opcode, n_minimum_params), simplified here to a plain
// map since Go doesn't need the original's sorted-array binary search to
// avoid an allocation).
type Grammar struct {
	Name  string
	Rules []Rule

	byOpcode map[opcode.Opcode][]Rule
}

// NewGrammar builds a Grammar and its opcode index.
func NewGrammar(name string, rules []Rule) *Grammar {
	g := &Grammar{Name: name, Rules: rules, byOpcode: make(map[opcode.Opcode][]Rule)}
	for _, r := range rules {
		g.byOpcode[r.Match.Opcode] = append(g.byOpcode[r.Match.Opcode], r)
	}
	return g
}

func (g *Grammar) candidates(op opcode.Opcode, paramCount int) []Rule {
	all := g.byOpcode[op]
	out := make([]Rule, 0, len(all))
	for _, r := range all {
		if paramCount < r.minParams() {
			continue
		}
		if r.Match.MatchType != AnyParams && paramCount != r.Match.ParamCount() {
			continue
		}
		out = append(out, r)
	}
	return out
}
