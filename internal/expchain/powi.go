package expchain

import (
	"github.com/WarpRules/fpopt/internal/opcode"
	"github.com/WarpRules/fpopt/internal/scalar"
)

const (
	powiTableSize  = 256
	powiWindowSize = 3
)

// powiTable[k], for 0<=k<256, gives one of the two halves a count of k
// should be split into (the other half is k-powiTable[k]), chosen ahead of
// time to minimize the dup/mul sequence length across the whole range.
// Reproduced verbatim from the original (it is a precomputed constant
// table, not a formula).
var powiTable = [powiTableSize]int{
	0, 1, 1, 1, 2, 1, 3, 1,
	4, 1, 5, 1, 6, 1, 7, 5,
	8, 1, 9, 1, 10, 1, 11, 1,
	12, 5, 13, 9, 14, 1, 15, 1,
	16, 1, 17, 1, 18, 1, 19, 13,
	20, 1, 21, 1, 22, 9, 1, 2,
	24, 1, 25, 17, 26, 1, 27, 11,
	28, 19, 29, 8, 30, 1, 31, 21,
	32, 1, 33, 1, 34, 1, 35, 1,
	36, 1, 37, 25, 38, 1, 39, 1,
	40, 9, 41, 1, 42, 17, 1, 29,
	44, 1, 45, 1, 46, 31, 47, 19,
	48, 1, 49, 33, 50, 1, 51, 1,
	52, 35, 53, 8, 54, 1, 55, 37,
	56, 1, 57, 16, 58, 13, 59, 17,
	60, 1, 61, 41, 62, 25, 63, 1,
	64, 1, 65, 1, 66, 1, 67, 45,
	68, 1, 69, 1, 70, 1, 71, 8,
	72, 1, 73, 49, 74, 1, 75, 1,
	76, 17, 1, 31, 78, 1, 79, 53,
	80, 1, 81, 1, 82, 33, 1, 2,
	84, 1, 85, 19, 86, 8, 87, 35,
	88, 1, 89, 1, 90, 1, 91, 61,
	92, 37, 93, 17, 94, 21, 95, 1,
	96, 1, 97, 65, 98, 1, 99, 1,
	100, 67, 101, 8, 102, 41, 103, 69,
	104, 1, 105, 16, 106, 71, 107, 1,
	108, 1, 109, 73, 110, 17, 111, 1,
	112, 45, 113, 32, 114, 1, 115, 33,
	116, 1, 117, 1, 118, 1, 119, 1,
	120, 1, 121, 81, 122, 49, 123, 19,
	124, 1, 125, 1, 126, 1, 127, 85,
}

func splitHalf(value int) (half, otherHalf int) {
	if value < powiTableSize {
		half = powiTable[value]
	} else if value&1 != 0 {
		half = value & ((1 << powiWindowSize) - 1)
	} else {
		half = value / 2
	}
	otherHalf = value - half
	if half > otherHalf || half < 0 {
		half, otherHalf = otherHalf, half
	}
	return half, otherHalf
}

// powiCache remembers, for intermediate powers needed more than once while
// assembling a count sequence, how many more uses remain (from the
// planning pass) and where the value currently sits on the synth's stack
// (from the emission pass), mirroring fpoptimizer_bytecodesynth.cc's
// PowiCache. The two passes use disjoint state: planned/needed exist only
// during planNeeds, stackPos only from start() onward.
type powiCache struct {
	planned  [powiTableSize]bool
	needed   [powiTableSize]int
	stackPos [powiTableSize]int // -1: not yet generated
}

func newPowiCache() *powiCache {
	c := &powiCache{}
	for i := range c.stackPos {
		c.stackPos[i] = -1
	}
	return c
}

// planAdd records that value is wanted count more times, returning true if
// its subdivision has already been walked (so the caller shouldn't recurse
// into it again).
func (c *powiCache) planAdd(value, count int) bool {
	if value >= powiTableSize {
		return false
	}
	c.needed[value] += count
	return c.planned[value]
}

func (c *powiCache) planHas(value int) {
	if value < powiTableSize {
		c.planned[value] = true
	}
}

// planNeeds walks the subdivision tree for value, marking every
// intermediate power that recurs so assemble's Find calls can reuse it.
// value==1 is the original operand, placed in the cache by start(); its
// uses are counted like any other value's so it stays available for reuse,
// but it is never itself subdivided.
func planNeeds(c *powiCache, value, needCount int) {
	if value < 1 {
		return
	}
	if value == 1 {
		c.planAdd(1, needCount)
		return
	}
	if c.planAdd(value, needCount) {
		return
	}
	half, otherHalf := splitHalf(value)
	if half == otherHalf {
		planNeeds(c, half, 2)
	} else {
		planNeeds(c, half, 1)
		abs := otherHalf
		if abs < 0 {
			abs = -abs
		}
		planNeeds(c, abs, 1)
	}
	c.planHas(value)
}

func (c *powiCache) start(basePos int) {
	for i := 2; i < powiTableSize; i++ {
		c.stackPos[i] = -1
	}
	c.remember(1, basePos)
}

func (c *powiCache) find(value int) int {
	if value >= 0 && value < powiTableSize {
		return c.stackPos[value]
	}
	return -1
}

func (c *powiCache) remember(value, pos int) {
	if value < powiTableSize {
		c.stackPos[value] = pos
	}
}

func (c *powiCache) useGetNeeded(value int) int {
	if value >= 0 && value < powiTableSize {
		c.needed[value]--
		return c.needed[value]
	}
	return 0
}

// subdivide emits the sequence needed to raise the cached base to value,
// returning the stack position holding the result, and recurses for each
// half (fpoptimizer_bytecodesynth.cc's AssembleSequence_Subdivide).
func subdivide[S scalar.Number](value int, c *powiCache, seq SequenceOpCode, synth Synth[S]) int {
	if pos := c.find(value); pos >= 0 {
		return pos
	}
	half, otherHalf := splitHalf(value)

	if half == otherHalf {
		halfPos := subdivide(half, c, seq, synth)
		combine(halfPos, half, halfPos, half, c, seq.OpNormal, seq.OpNormalFlip, synth)
	} else {
		part1, part2 := half, otherHalf
		abs2 := part2
		if abs2 < 0 {
			abs2 = -abs2
		}
		pos1 := subdivide(part1, c, seq, synth)
		pos2 := subdivide(abs2, c, seq, synth)
		op, opFlip := seq.OpInverse, seq.OpInverseFlip
		if part2 > 0 {
			op, opFlip = seq.OpNormal, seq.OpNormalFlip
		}
		combine(pos1, part1, pos2, abs2, c, op, opFlip, synth)
	}

	stackPos := synth.GetStackTop() - 1
	c.remember(value, stackPos)
	return stackPos
}

// combine emits the one cumulating operation for a subdivide step,
// duplicating either or both operands as needed to preserve copies the
// cache says are still wanted later (fpoptimizer_bytecodesynth.cc's
// Subdivide_Combine).
func combine[S scalar.Number](aPos int, aVal int, bPos int, bVal int, c *powiCache, op, opFlip opcode.Opcode, synth Synth[S]) {
	aNeeded := c.useGetNeeded(aVal)
	bNeeded := c.useGetNeeded(bVal)
	flipped := false

	top := func() int { return synth.GetStackTop() - 1 }

	dupBoth := func() {
		if aPos < bPos {
			aPos, bPos = bPos, aPos
			flipped = !flipped
		}
		synth.DoDup(aPos)
		bb := bPos
		if aPos == bPos {
			bb = top()
		}
		synth.DoDup(bb)
	}
	dupOne := func(p int) { synth.DoDup(p) }

	switch {
	case aNeeded > 0 && bNeeded > 0:
		dupBoth()
	case aNeeded > 0:
		if bPos != top() {
			dupBoth()
		} else {
			dupOne(aPos)
			flipped = !flipped
		}
	case bNeeded > 0:
		if aPos != top() {
			dupBoth()
		} else {
			dupOne(bPos)
		}
	default:
		switch {
		case aPos == bPos && aPos == top():
			dupOne(aPos)
		case aPos == top() && bPos == top()-1:
			flipped = !flipped
		case aPos == top()-1 && bPos == top():
			// already in the right order
		case aPos == top():
			dupOne(bPos)
		case bPos == top():
			dupOne(aPos)
			flipped = !flipped
		default:
			dupBoth()
		}
	}

	if flipped {
		synth.AddOperation(opFlip, 2)
	} else {
		synth.AddOperation(op, 2)
	}
}

// AssembleSequence emits count applications of seq's cumulation opcode
// against whatever's on top of synth's stack (spec.md §4.7.1), using a
// factor cache so repeated intermediate powers are computed once. A
// negative count appends seq.OpFlip at the end; a zero count leaves the
// operand in place and pushes seq.BaseValue on top of it.
func AssembleSequence[S scalar.Number](count int, seq SequenceOpCode, synth Synth[S]) {
	if count == 0 {
		synth.PushImmed(S(seq.BaseValue))
		return
	}

	negate := count < 0
	if negate {
		count = -count
	}

	if count > 1 {
		c := newPowiCache()
		planNeeds(c, count, 1)

		desiredTop := synth.GetStackTop()
		c.start(desiredTop - 1)

		resultPos := subdivide(count, c, seq, synth)

		excess := synth.GetStackTop() - desiredTop
		if excess > 0 || resultPos != desiredTop-1 {
			synth.DoPopNMov(desiredTop-1, resultPos)
		}
	}

	if negate {
		synth.AddOperation(seq.OpFlip, 1)
	}
}
