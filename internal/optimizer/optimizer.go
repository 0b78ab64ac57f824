// Package optimizer wires the pipeline spec.md §2 names end to end: lift
// bytecode to a tree (L), rewrite it against a grammar to a fixpoint (G),
// plan and apply powi/muli/root-chain recreation (X), then lower the result
// back to bytecode (B).
package optimizer

import (
	"github.com/WarpRules/fpopt/internal/bytecode"
	"github.com/WarpRules/fpopt/internal/debugdump"
	"github.com/WarpRules/fpopt/internal/expchain"
	"github.com/WarpRules/fpopt/internal/grammar"
	"github.com/WarpRules/fpopt/internal/lifter"
	"github.com/WarpRules/fpopt/internal/lowering"
	"github.com/WarpRules/fpopt/internal/scalar"
)

// Options configures one Optimize call, mirroring the teacher's
// Options-struct-over-flags convention (internal/compiler.Options).
type Options struct {
	// KeepPowi disables the Lifter's recognition of dup/mul and dup/add
	// chains as Pow/Mul nodes, leaving them as their literal unrolled
	// bytecode shape instead (spec.md §4.5.3).
	KeepPowi bool

	// MaxPowiWordBudget and MaxMuliWordBudget bound how many extra
	// bytecode words the powi/muli dup-chain idioms may add over a plain
	// Pow/Mul call (spec.md §4.7.1).
	MaxPowiWordBudget int
	MaxMuliWordBudget int

	// CombineExponents enables collapsing a nested Pow tower into a single
	// combined exponent before recreation runs (spec.md §4.7.2).
	CombineExponents bool

	// Grammars overrides the grammar passes ApplyGrammars runs, in order.
	// Nil means grammar.DefaultGrammar.
	Grammars []*grammar.Grammar

	// Debug, when non-nil, receives a log of what each stage did (spec.md
	// §6's debug surface). A nil Debug costs nothing.
	Debug *debugdump.Session
}

// DefaultOptions matches the original's defaults.
func DefaultOptions() Options {
	return Options{
		MaxPowiWordBudget: 15,
		MaxMuliWordBudget: 3,
		CombineExponents:  true,
	}
}

// Optimize runs the full L→G→X→B pipeline over prog and returns the
// rewritten program. The only failure seam is lifting malformed bytecode
// (spec.md §7); a well-formed program is never rejected.
func Optimize[S scalar.Number](prog bytecode.Program[S], ops scalar.Ops[S], fns bytecode.FnTable, opts Options) (bytecode.Program[S], error) {
	root, err := lifter.Lift(prog, ops, fns, opts.KeepPowi)
	if err != nil {
		return bytecode.Program[S]{}, err
	}
	defer root.Release()

	opts.Debug.LogLiftedTree(root)

	grammars := opts.Grammars
	if grammars == nil {
		grammars = []*grammar.Grammar{grammar.DefaultGrammar}
	}
	matcher := grammar.NewMatcher(ops)
	matcher.Debug = opts.Debug
	matcher.ApplyGrammars(grammars, root)

	planner := expchain.NewPlanner(ops)
	planner.MaxPowiBytecodeGrow = opts.MaxPowiWordBudget
	planner.MaxMuliBytecodeGrow = opts.MaxMuliWordBudget
	planner.CombineExponents = opts.CombineExponents
	planner.Debug = opts.Debug
	planner.Recreate(root)

	if opts.Debug != nil {
		opts.Debug.LogCSECandidates(candidateDumpInfo(lowering.BuildCandidates(root)))
	}

	lowerOpts := lowering.Options{
		MaxPowiBytecodeGrow: opts.MaxPowiWordBudget,
		MaxMuliBytecodeGrow: opts.MaxMuliWordBudget,
	}
	result := lowering.Lower(root, ops, lowerOpts)

	opts.Debug.Close()
	return result, nil
}

func candidateDumpInfo[S scalar.Number](cs *lowering.CandidateSet[S]) []debugdump.CandidateInfo {
	sorted := cs.Sorted()
	out := make([]debugdump.CandidateInfo, len(sorted))
	for i, c := range sorted {
		out[i] = debugdump.CandidateInfo{
			Count:  c.Count,
			Depth:  c.Depth,
			Score:  c.Score,
			HashHi: c.Node.Hash.Hi,
			HashLo: c.Node.Hash.Lo,
		}
	}
	return out
}
