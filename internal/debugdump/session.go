// Package debugdump implements the optional human-readable dump surface
// named in spec.md §6 ("Debug surface"): a running log of what the
// optimizer pipeline tried and did, for development-time inspection, never
// consulted by the optimizer itself.
package debugdump

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kr/pretty"
	"github.com/ncruces/go-strftime"
)

// Verbosity controls how much detail a Session records.
type Verbosity int

const (
	// VerbositySummary logs session start/end, rewrite counts and the
	// lifted tree.
	VerbositySummary Verbosity = iota
	// VerbosityDetail additionally logs every successful rule/chain match.
	VerbosityDetail
	// VerbosityTrace additionally logs failed match attempts, per
	// original_source/fpoptimizer_optimize_debug.cc — noisy, useful only
	// when tuning a new rule.
	VerbosityTrace
)

// Session is a correlated stream of dump lines for one Optimize call. A nil
// *Session is valid and every method on it is a no-op, so callers that pass
// optimizer.Options{Debug: nil} never pay a formatting cost.
type Session struct {
	w         io.Writer
	verbosity Verbosity
	id        uuid.UUID
	started   time.Time
	rewrites  int
}

// NewSession opens a dump session writing to w at the given verbosity and
// records a header line carrying a correlation id and start timestamp.
func NewSession(w io.Writer, v Verbosity) *Session {
	s := &Session{w: w, verbosity: v, id: uuid.New(), started: time.Now()}
	ts := strftime.Format("%Y-%m-%d %H:%M:%S", s.started)
	fmt.Fprintf(s.w, "=== fpopt dump session %s started %s ===\n", s.id, ts)
	return s
}

func (s *Session) active(min Verbosity) bool {
	return s != nil && s.verbosity >= min
}

// LogLiftedTree records the tree the Lifter produced from the input
// bytecode, before any grammar rewriting.
func (s *Session) LogLiftedTree(v any) {
	if !s.active(VerbositySummary) {
		return
	}
	fmt.Fprintf(s.w, "[lift] tree:\n%# v\n", pretty.Formatter(v))
}

// LogRuleApplied records a successful grammar rule match and the
// replacement it produced, at VerbosityDetail and above.
func (s *Session) LogRuleApplied(grammarName, ruleName string, before, after any) {
	if s == nil {
		return
	}
	s.rewrites++
	if !s.active(VerbosityDetail) {
		return
	}
	fmt.Fprintf(s.w, "[grammar %s] rule %q matched\n  before: %# v\n  after:  %# v\n",
		grammarName, ruleName, pretty.Formatter(before), pretty.Formatter(after))
}

// LogAttempt records a grammar rule tried against a node whether or not it
// matched. Only recorded at VerbosityTrace (original_source's debug dump
// logs attempts in addition to matches; spec.md's debug surface only
// requires successes).
func (s *Session) LogAttempt(grammarName, ruleName string, node any, matched bool) {
	if !s.active(VerbosityTrace) {
		return
	}
	verdict := "miss"
	if matched {
		verdict = "hit"
	}
	fmt.Fprintf(s.w, "[grammar %s] rule %q against %# v: %s\n",
		grammarName, ruleName, pretty.Formatter(node), verdict)
}

// LogRecreate records a Recreate-pass rewrite (negation/inversion/root-chain
// substitution), at VerbosityDetail and above.
func (s *Session) LogRecreate(description string, before, after any) {
	if s == nil {
		return
	}
	s.rewrites++
	if !s.active(VerbosityDetail) {
		return
	}
	fmt.Fprintf(s.w, "[recreate] %s\n  before: %# v\n  after:  %# v\n",
		description, pretty.Formatter(before), pretty.Formatter(after))
}

// LogCSECandidates records the common-subexpression candidates the Lowerer
// found, ranked highest-score first (spec.md §4.8.1).
func (s *Session) LogCSECandidates(candidates []CandidateInfo) {
	if !s.active(VerbosityDetail) {
		return
	}
	fmt.Fprintf(s.w, "[lower] %s CSE candidates found\n", humanize.Comma(int64(len(candidates))))
	for _, c := range candidates {
		fmt.Fprintf(s.w, "  count=%d depth=%d score=%d hash=%016x%016x\n",
			c.Count, c.Depth, c.Score, c.HashHi, c.HashLo)
	}
}

// CandidateInfo is the subset of internal/lowering.Candidate the dump
// surface needs, copied out rather than imported directly to avoid a
// debugdump->lowering dependency the other direction never needs.
type CandidateInfo struct {
	Count          int
	Depth          int
	Score          int
	HashHi, HashLo uint64
}

// Close writes a trailing summary line. Safe to call on a nil Session.
func (s *Session) Close() {
	if s == nil {
		return
	}
	elapsed := time.Since(s.started)
	fmt.Fprintf(s.w, "=== session %s done: %s rewrites in %s ===\n",
		s.id, humanize.Comma(int64(s.rewrites)), elapsed)
}
