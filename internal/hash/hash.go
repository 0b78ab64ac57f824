// Package hash implements H: a pure, non-recursive structural digest over a
// tree node's opcode, leaf data, and its children's already-computed
// hashes (spec.md §4.1).
package hash

import (
	"encoding/binary"
	"hash/crc32"

	"golang.org/x/crypto/blake2b"

	"github.com/WarpRules/fpopt/internal/opcode"
)

// Hash128 is the node's structural digest: a quick-reject filter that must
// always be confirmed by a structural compare (identical ⇒ equal hash, not
// the converse, even though collisions are astronomically unlikely).
type Hash128 struct {
	Hi, Lo uint64
}

// Less gives Hash128 a total order, used as the secondary key of the
// canonical commutative-operand sort (primary key: depth, descending).
func (h Hash128) Less(o Hash128) bool {
	if h.Hi != o.Hi {
		return h.Hi < o.Hi
	}
	return h.Lo < o.Lo
}

func (h Hash128) Equal(o Hash128) bool { return h.Hi == o.Hi && h.Lo == o.Lo }

// Leaf computes the hash contribution of a leaf node: Immed mixes a CRC-32
// of the scalar's raw bytes, VarBegin+k mixes k, FCall/PCall additionally
// mix the function number.
func Leaf(op opcode.Opcode, immedBytes []byte, varOrFunc uint32) Hash128 {
	h, _ := blake2b.New(16, nil)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(op))
	h.Write(hdr[:])

	switch {
	case op == opcode.Immed:
		crc := crc32.ChecksumIEEE(immedBytes)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], crc)
		h.Write(b[:])
	default:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], varOrFunc)
		h.Write(b[:])
	}
	return sumToHash128(h.Sum(nil))
}

// Combine mixes a non-leaf node's opcode, optional function number (for
// FCall/PCall), and its children's hashes, in order, into the node's hash.
// It never recurses into the children's subtrees: it trusts their hash
// fields are already correct (the caller is responsible for calling this
// bottom-up, e.g. via fix_incomplete_hashes).
func Combine(op opcode.Opcode, varOrFunc uint32, children []Hash128) Hash128 {
	h, _ := blake2b.New(16, nil)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(op))
	h.Write(hdr[:])

	if op == opcode.FCall || op == opcode.PCall {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], varOrFunc)
		h.Write(b[:])
	}

	for _, c := range children {
		var b [16]byte
		binary.LittleEndian.PutUint64(b[0:8], c.Hi)
		binary.LittleEndian.PutUint64(b[8:16], c.Lo)
		h.Write(b[:])
	}
	return sumToHash128(h.Sum(nil))
}

func sumToHash128(sum []byte) Hash128 {
	return Hash128{
		Hi: binary.LittleEndian.Uint64(sum[0:8]),
		Lo: binary.LittleEndian.Uint64(sum[8:16]),
	}
}
