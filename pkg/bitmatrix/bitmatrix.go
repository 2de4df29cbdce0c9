// Package bitmatrix expands a matrix over GF(2^w) into its equivalent
// binary matrix over GF(2), on which every operation is a plain XOR. Each
// field entry becomes a w×w block whose columns are the entry multiplied
// by successive powers of x, expressed as bit vectors.
package bitmatrix

import (
	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
)

// BitMatrix is an immutable (rows·w)×(cols·w) binary matrix derived from a
// field-element matrix. Bits are stored flat, one byte per bit, for
// cache-friendly row scans.
type BitMatrix struct {
	field *galois.Field
	rows  int // bit rows
	cols  int // bit columns
	bits  []byte
}

// New expands m into its binary representation.
func New(m *matrix.Matrix) *BitMatrix {
	f := m.Field()
	w := int(f.W())
	bm := &BitMatrix{
		field: f,
		rows:  m.Rows() * w,
		cols:  m.Cols() * w,
	}
	bm.bits = make([]byte, bm.rows*bm.cols)

	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			// Column c of the block is entry·x^c as a bit vector.
			v := m.At(i, j)
			for c := 0; c < w; c++ {
				for r := 0; r < w; r++ {
					if v&(1<<uint(r)) != 0 {
						bm.bits[(i*w+r)*bm.cols+j*w+c] = 1
					}
				}
				v = f.Multiply(v, 2)
			}
		}
	}
	return bm
}

// Field returns the field the source matrix lived in.
func (bm *BitMatrix) Field() *galois.Field { return bm.field }

// Rows returns the number of bit rows.
func (bm *BitMatrix) Rows() int { return bm.rows }

// Cols returns the number of bit columns.
func (bm *BitMatrix) Cols() int { return bm.cols }

// Bit returns the bit at (r, c).
func (bm *BitMatrix) Bit(r, c int) byte {
	return bm.bits[r*bm.cols+c]
}

// Row returns the support of bit row r: the column indices holding ones.
func (bm *BitMatrix) Row(r int) []int {
	var support []int
	base := r * bm.cols
	for c := 0; c < bm.cols; c++ {
		if bm.bits[base+c] != 0 {
			support = append(support, c)
		}
	}
	return support
}

// RowWeight counts the ones in bit row r.
func (bm *BitMatrix) RowWeight(r int) int {
	var weight int
	base := r * bm.cols
	for c := 0; c < bm.cols; c++ {
		weight += int(bm.bits[base+c])
	}
	return weight
}

// Weight counts all ones in the matrix.
func (bm *BitMatrix) Weight() int {
	var weight int
	for _, b := range bm.bits {
		weight += int(b)
	}
	return weight
}

// VectorProduct multiplies the bit matrix by a bit vector (one byte per
// bit, values 0/1) over GF(2). It is the reference evaluator the XOR
// schedule is verified against.
func (bm *BitMatrix) VectorProduct(in []byte) []byte {
	out := make([]byte, bm.rows)
	for r := 0; r < bm.rows; r++ {
		var acc byte
		base := r * bm.cols
		for c := 0; c < bm.cols; c++ {
			acc ^= bm.bits[base+c] & in[c]
		}
		out[r] = acc
	}
	return out
}

// ExpandWord turns a field word into its w-bit vector, least significant
// bit first.
func ExpandWord(f *galois.Field, v uint32) []byte {
	w := int(f.W())
	out := make([]byte, w)
	for i := 0; i < w; i++ {
		out[i] = byte(v >> uint(i) & 1)
	}
	return out
}

// CollapseWord reassembles a field word from its bit vector.
func CollapseWord(bitsVec []byte) uint32 {
	var v uint32
	for i, b := range bitsVec {
		if b != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}
