// Package schedule compiles a bit matrix into an ordered list of XOR
// operations that computes the matrix-vector product with fewer XORs than
// row-by-row evaluation. The compiler is a greedy common-subexpression
// search: the pair of slots shared by the most output rows is combined
// into a new intermediate slot, the affected rows are rewritten in terms
// of it, and the search repeats until no pair is shared; leftover rows are
// finished by plain chaining. Compilation is a one-time cost amortized
// over every later encode or decode call.
package schedule

import (
	"fmt"
	"sort"

	"github.com/Davincible/erasure/pkg/bitmatrix"
	"github.com/Davincible/erasure/pkg/galois"
)

// Op is one XOR step: slot[Dst] = slot[A] ^ slot[B]. Dst is always a
// fresh intermediate slot; A and B may be inputs or earlier intermediates.
type Op struct {
	Dst int
	A   int
	B   int
}

// Schedule is an immutable compiled program. Input slots are 0..NumIn-1,
// intermediates follow, and Out maps each output row to the slot holding
// its value (-1 for an all-zero row).
type Schedule struct {
	field    *galois.Field
	numIn    int
	numOut   int
	numSlots int
	ops      []Op
	out      []int
	naive    int
}

// Compile builds the XOR schedule for bm.
func Compile(bm *bitmatrix.BitMatrix) *Schedule {
	numIn := bm.Cols()
	numOut := bm.Rows()

	terms := make([][]int, numOut)
	naive := 0
	for r := 0; r < numOut; r++ {
		terms[r] = bm.Row(r)
		if w := len(terms[r]); w > 1 {
			naive += w - 1
		}
	}

	s := &Schedule{
		field:    bm.Field(),
		numIn:    numIn,
		numOut:   numOut,
		numSlots: numIn,
		out:      make([]int, numOut),
		naive:    naive,
	}

	// Substitute the most-shared slot pair until none is shared by two
	// rows. Pair counting restarts each round; the matrices involved are
	// small enough that the quadratic scan does not matter next to the
	// amortized savings.
	for {
		a, b, count := bestPair(terms)
		if count < 2 {
			break
		}
		dst := s.newSlot()
		s.ops = append(s.ops, Op{Dst: dst, A: a, B: b})
		for r := range terms {
			terms[r] = substitute(terms[r], a, b, dst)
		}
	}

	// Chain whatever each row still needs.
	for r := range terms {
		switch len(terms[r]) {
		case 0:
			s.out[r] = -1
		case 1:
			s.out[r] = terms[r][0]
		default:
			acc := terms[r][0]
			for _, t := range terms[r][1:] {
				dst := s.newSlot()
				s.ops = append(s.ops, Op{Dst: dst, A: acc, B: t})
				acc = dst
			}
			s.out[r] = acc
		}
	}
	return s
}

func (s *Schedule) newSlot() int {
	slot := s.numSlots
	s.numSlots++
	return slot
}

// bestPair finds the slot pair present in the most rows. Ties break
// toward the lowest first slot, then the lowest second, so compilation is
// deterministic.
func bestPair(terms [][]int) (a, b, count int) {
	pairCount := make(map[[2]int]int)
	for _, row := range terms {
		for i := 0; i < len(row); i++ {
			for j := i + 1; j < len(row); j++ {
				pairCount[[2]int{row[i], row[j]}]++
			}
		}
	}
	a, b, count = -1, -1, 0
	for pair, c := range pairCount {
		if c > count || (c == count && (pair[0] < a || (pair[0] == a && pair[1] < b))) {
			a, b, count = pair[0], pair[1], c
		}
	}
	return a, b, count
}

// substitute replaces the pair {a, b} by dst in a sorted term list. Rows
// holding only one of the two are left alone.
func substitute(row []int, a, b, dst int) []int {
	ia := sort.SearchInts(row, a)
	if ia == len(row) || row[ia] != a {
		return row
	}
	ib := sort.SearchInts(row, b)
	if ib == len(row) || row[ib] != b {
		return row
	}
	next := row[:0]
	for _, t := range row {
		if t != a && t != b {
			next = append(next, t)
		}
	}
	return append(next, dst) // dst is the highest slot so far, order holds
}

// Field returns the field of the source matrix.
func (s *Schedule) Field() *galois.Field { return s.field }

// NumIn returns the number of input bit slots.
func (s *Schedule) NumIn() int { return s.numIn }

// NumOut returns the number of output bit rows.
func (s *Schedule) NumOut() int { return s.numOut }

// Ops returns the operation list.
func (s *Schedule) Ops() []Op {
	ops := make([]Op, len(s.ops))
	copy(ops, s.ops)
	return ops
}

// OutputSlot returns the slot feeding output row r, or -1 when the row is
// all zero.
func (s *Schedule) OutputSlot(r int) int { return s.out[r] }

// XORCount returns the number of XOR operations in the schedule.
func (s *Schedule) XORCount() int { return len(s.ops) }

// NaiveXORCount returns the XOR count of direct row-by-row evaluation.
func (s *Schedule) NaiveXORCount() int { return s.naive }

// Apply runs the schedule over byte packets: in holds NumIn packets, out
// NumOut packets of the same length. Output packets for all-zero rows are
// cleared. Safe for concurrent use; all mutable state is call-local.
func (s *Schedule) Apply(in, out [][]byte) error {
	if len(in) != s.numIn {
		return fmt.Errorf("schedule needs %d input packets, got %d", s.numIn, len(in))
	}
	if len(out) != s.numOut {
		return fmt.Errorf("schedule needs %d output packets, got %d", s.numOut, len(out))
	}
	var packetLen int
	if s.numIn > 0 {
		packetLen = len(in[0])
	}
	for i, p := range in {
		if len(p) != packetLen {
			return fmt.Errorf("input packet %d has length %d, want %d", i, len(p), packetLen)
		}
	}
	for i, p := range out {
		if len(p) != packetLen {
			return fmt.Errorf("output packet %d has length %d, want %d", i, len(p), packetLen)
		}
	}

	slots := make([][]byte, s.numSlots)
	copy(slots, in)
	for _, op := range s.ops {
		dst := make([]byte, packetLen)
		copy(dst, slots[op.A])
		if err := galois.XorRegion(dst, slots[op.B]); err != nil {
			return err
		}
		slots[op.Dst] = dst
	}

	for r := 0; r < s.numOut; r++ {
		if s.out[r] < 0 {
			clear(out[r])
			continue
		}
		copy(out[r], slots[s.out[r]])
	}
	return nil
}

// EvalBits runs the schedule on a plain bit vector (one byte per bit),
// mirroring BitMatrix.VectorProduct for equivalence checks.
func (s *Schedule) EvalBits(in []byte) ([]byte, error) {
	packets := make([][]byte, s.numIn)
	for i := range packets {
		packets[i] = []byte{in[i]}
	}
	outPackets := make([][]byte, s.numOut)
	for i := range outPackets {
		outPackets[i] = []byte{0}
	}
	if err := s.Apply(packets, outPackets); err != nil {
		return nil, err
	}
	out := make([]byte, s.numOut)
	for i := range outPackets {
		out[i] = outPackets[i][0]
	}
	return out, nil
}
