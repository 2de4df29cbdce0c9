package coding

import (
	"fmt"
	"math/bits"

	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
)

// CauchyBuilder builds a Cauchy coding matrix: entry (i,j) is the inverse
// of X[i] XOR Y[j] for disjoint point sets X (size m) and Y (size k). The
// Cauchy determinant identity makes every square submatrix nonsingular as
// long as the sets stay disjoint, so no invertibility search is needed.
//
// An improvement pass rescales columns and
// rows to cut the number of one bits in the eventual bit matrix, which
// directly shortens the XOR schedule. Diagonal rescaling preserves the
// MDS property.
type CauchyBuilder struct {
	// X and Y override the canonical point sets {0..m-1} and {m..m+k-1}.
	X, Y []uint32

	// NoImprove skips the bit-weight reduction pass.
	NoImprove bool
}

// Method returns MethodCauchy.
func (b *CauchyBuilder) Method() Method { return MethodCauchy }

// Build produces the [I; C] generator for the Cauchy parity block C.
func (b *CauchyBuilder) Build(f *galois.Field, k, m int) (*Matrix, error) {
	if err := checkShape(k, m); err != nil {
		return nil, err
	}
	// X and Y together need k+m distinct field values.
	if uint64(k)+uint64(m) > f.Order()+1 {
		return nil, fmt.Errorf("%w: k+m=%d exceeds 2^%d", ErrFieldTooSmall, k+m, f.W())
	}

	x, y, err := b.pointSets(f, k, m)
	if err != nil {
		return nil, err
	}

	coding, err := matrix.New(f, m, k)
	if err != nil {
		return nil, err
	}
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			// Subtraction is XOR in characteristic 2; disjoint sets keep
			// the difference nonzero.
			inv, err := f.Inverse(x[i] ^ y[j])
			if err != nil {
				return nil, err
			}
			coding.Set(i, j, inv)
		}
	}

	if !b.NoImprove {
		improveCoding(f, coding)
	}

	gen, err := stackIdentity(f, k, m, coding.At)
	if err != nil {
		return nil, err
	}
	return newCodingMatrix(f, k, m, MethodCauchy, gen)
}

func (b *CauchyBuilder) pointSets(f *galois.Field, k, m int) (x, y []uint32, err error) {
	x, y = b.X, b.Y
	if x == nil && y == nil {
		x = make([]uint32, m)
		for i := range x {
			x[i] = uint32(i)
		}
		y = make([]uint32, k)
		for j := range y {
			y[j] = uint32(m + j)
		}
		return x, y, nil
	}
	if len(x) != m || len(y) != k {
		return nil, nil, fmt.Errorf("%w: |X|=%d want %d, |Y|=%d want %d",
			matrix.ErrDimensionMismatch, len(x), m, len(y), k)
	}
	seen := make(map[uint32]bool, k+m)
	for _, v := range x {
		if !f.Contains(uint64(v)) {
			return nil, nil, fmt.Errorf("%w: %d exceeds GF(2^%d)", galois.ErrOutOfRange, v, f.W())
		}
		if seen[v] {
			return nil, nil, fmt.Errorf("%w: %d repeats in X", ErrDuplicatePoint, v)
		}
		seen[v] = true
	}
	for _, v := range y {
		if !f.Contains(uint64(v)) {
			return nil, nil, fmt.Errorf("%w: %d exceeds GF(2^%d)", galois.ErrOutOfRange, v, f.W())
		}
		if seen[v] {
			for _, xv := range x {
				if xv == v {
					return nil, nil, fmt.Errorf("%w: %d is in both X and Y", ErrOverlappingSets, v)
				}
			}
			return nil, nil, fmt.Errorf("%w: %d repeats in Y", ErrDuplicatePoint, v)
		}
		seen[v] = true
	}
	return x, y, nil
}

// NewCauchy builds a Cauchy coding matrix with the canonical point sets
// and the bit-weight improvement pass.
func NewCauchy(f *galois.Field, k, m int) (*Matrix, error) {
	return (&CauchyBuilder{}).Build(f, k, m)
}

// improveCoding rescales the parity block in place: first each column is
// divided by its top entry so row 0 becomes all ones, then every other row
// is divided by whichever of its own entries minimizes the row's total bit
// weight. Ties keep the earliest candidate for determinism.
func improveCoding(f *galois.Field, c *matrix.Matrix) {
	m, k := c.Rows(), c.Cols()

	for j := 0; j < k; j++ {
		inv, err := f.Inverse(c.At(0, j))
		if err != nil {
			continue
		}
		for i := 0; i < m; i++ {
			c.Set(i, j, f.Multiply(c.At(i, j), inv))
		}
	}

	for i := 1; i < m; i++ {
		best := rowBitWeight(f, c, i)
		bestDiv := uint32(1)
		for j := 0; j < k; j++ {
			div := c.At(i, j)
			if div == 0 || div == 1 {
				continue
			}
			inv, err := f.Inverse(div)
			if err != nil {
				continue
			}
			var weight int
			for jj := 0; jj < k; jj++ {
				weight += BitWeight(f, f.Multiply(c.At(i, jj), inv))
			}
			if weight < best {
				best = weight
				bestDiv = div
			}
		}
		if bestDiv != 1 {
			inv, _ := f.Inverse(bestDiv)
			for j := 0; j < k; j++ {
				c.Set(i, j, f.Multiply(c.At(i, j), inv))
			}
		}
	}
}

func rowBitWeight(f *galois.Field, c *matrix.Matrix, row int) int {
	var weight int
	for j := 0; j < c.Cols(); j++ {
		weight += BitWeight(f, c.At(row, j))
	}
	return weight
}

// BitWeight counts the one bits in the w×w binary representation of v's
// multiplication action, i.e. the XOR cost of multiplying by v bit-wise.
func BitWeight(f *galois.Field, v uint32) int {
	var weight int
	col := v
	for c := uint(0); c < f.W(); c++ {
		weight += bits.OnesCount32(col)
		col = f.Multiply(col, 2)
	}
	return weight
}
