package debugdump

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewSessionWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbositySummary)
	s.Close()
	out := buf.String()
	if !strings.Contains(out, "fpopt dump session") {
		t.Fatalf("want a session header line, got %q", out)
	}
	if !strings.Contains(out, "done: 0 rewrites") {
		t.Fatalf("want a zero-rewrite summary line, got %q", out)
	}
}

func TestSummaryVerbositySkipsRuleDetail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbositySummary)
	s.LogRuleApplied("default", "sqrt(sqr(x))", "before", "after")
	if strings.Contains(buf.String(), "matched") {
		t.Fatalf("want rule detail suppressed at VerbositySummary, got %q", buf.String())
	}
	if s.rewrites != 1 {
		t.Fatalf("want the rewrite counted even when not printed, got %d", s.rewrites)
	}
}

func TestDetailVerbosityLogsRuleApplied(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbosityDetail)
	s.LogRuleApplied("default", "sqrt(sqr(x))", "before", "after")
	if !strings.Contains(buf.String(), "sqrt(sqr(x))") {
		t.Fatalf("want the rule name in the log, got %q", buf.String())
	}
}

func TestTraceVerbosityLogsMisses(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbosityTrace)
	s.LogAttempt("default", "some-rule", "node", false)
	if !strings.Contains(buf.String(), "miss") {
		t.Fatalf("want a miss logged at VerbosityTrace, got %q", buf.String())
	}
}

func TestDetailVerbositySuppressesAttempts(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbosityDetail)
	s.LogAttempt("default", "some-rule", "node", false)
	if strings.Contains(buf.String(), "some-rule") {
		t.Fatalf("want attempts suppressed below VerbosityTrace, got %q", buf.String())
	}
}

func TestNilSessionIsNoOp(t *testing.T) {
	var s *Session
	s.LogLiftedTree("anything")
	s.LogRuleApplied("g", "r", 1, 2)
	s.LogAttempt("g", "r", 1, false)
	s.LogCSECandidates(nil)
	s.Close()
}

func TestLogCSECandidatesReportsCount(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf, VerbosityDetail)
	s.LogCSECandidates([]CandidateInfo{{Count: 3, Depth: 2, Score: 6, HashHi: 1, HashLo: 2}})
	if !strings.Contains(buf.String(), "1 CSE candidates") {
		t.Fatalf("want the candidate count reported, got %q", buf.String())
	}
}
