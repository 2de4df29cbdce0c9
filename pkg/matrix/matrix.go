// Package matrix implements dense matrices over GF(2^w) with the
// operations erasure coding needs: multiplication, transposition,
// submatrix extraction and Gauss-Jordan inversion.
package matrix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Davincible/erasure/pkg/galois"
)

var (
	// ErrDimensionMismatch is returned when operand shapes are incompatible.
	ErrDimensionMismatch = errors.New("matrix dimension mismatch")

	// ErrSingular is returned by Invert when no nonzero pivot can be found.
	ErrSingular = errors.New("matrix is singular")

	// ErrNotSquare is returned by Invert for non-square matrices.
	ErrNotSquare = errors.New("matrix is not square")

	// ErrIndexOutOfRange is returned for out-of-range row/column indices.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Matrix is a rows×cols grid of field values stored row-major in a flat
// buffer. All entries belong to the same field.
type Matrix struct {
	field *galois.Field
	rows  int
	cols  int
	data  []uint32
}

// New returns a zero matrix of the given shape.
func New(f *galois.Field, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensionMismatch, rows, cols)
	}
	return &Matrix{
		field: f,
		rows:  rows,
		cols:  cols,
		data:  make([]uint32, rows*cols),
	}, nil
}

// NewFromEntries builds a matrix from row-major entries, validating each
// value against the field range.
func NewFromEntries(f *galois.Field, rows, cols int, entries []uint32) (*Matrix, error) {
	m, err := New(f, rows, cols)
	if err != nil {
		return nil, err
	}
	if len(entries) != rows*cols {
		return nil, fmt.Errorf("%w: %d entries for %dx%d matrix", ErrDimensionMismatch, len(entries), rows, cols)
	}
	for _, v := range entries {
		if !f.Contains(uint64(v)) {
			return nil, fmt.Errorf("%w: entry %d exceeds GF(2^%d)", galois.ErrOutOfRange, v, f.W())
		}
	}
	copy(m.data, entries)
	return m, nil
}

// Identity returns the size×size identity matrix.
func Identity(f *galois.Field, size int) (*Matrix, error) {
	m, err := New(f, size, size)
	if err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		m.data[i*size+i] = 1
	}
	return m, nil
}

// Field returns the field the entries live in.
func (m *Matrix) Field() *galois.Field { return m.field }

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the entry at (r, c).
func (m *Matrix) At(r, c int) uint32 {
	return m.data[r*m.cols+c]
}

// Set assigns the entry at (r, c).
func (m *Matrix) Set(r, c int, v uint32) {
	m.data[r*m.cols+c] = v
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]uint32, len(m.data))
	copy(data, m.data)
	return &Matrix{field: m.field, rows: m.rows, cols: m.cols, data: data}
}

// Equal reports whether two matrices have identical shape and entries.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Multiply returns m × right.
func (m *Matrix) Multiply(right *Matrix) (*Matrix, error) {
	if m.cols != right.rows {
		return nil, fmt.Errorf("%w: left is %dx%d, right is %dx%d",
			ErrDimensionMismatch, m.rows, m.cols, right.rows, right.cols)
	}
	result, err := New(m.field, m.rows, right.cols)
	if err != nil {
		return nil, err
	}
	f := m.field
	for r := 0; r < m.rows; r++ {
		for c := 0; c < right.cols; c++ {
			var acc uint32
			for i := 0; i < m.cols; i++ {
				acc ^= f.Multiply(m.At(r, i), right.At(i, c))
			}
			result.Set(r, c, acc)
		}
	}
	return result, nil
}

// MultiplyVector returns m × v for a column vector of length Cols.
func (m *Matrix) MultiplyVector(v []uint32) ([]uint32, error) {
	if len(v) != m.cols {
		return nil, fmt.Errorf("%w: vector length %d, matrix is %dx%d",
			ErrDimensionMismatch, len(v), m.rows, m.cols)
	}
	f := m.field
	out := make([]uint32, m.rows)
	for r := 0; r < m.rows; r++ {
		var acc uint32
		for c := 0; c < m.cols; c++ {
			acc ^= f.Multiply(m.At(r, c), v[c])
		}
		out[r] = acc
	}
	return out, nil
}

// Transpose returns the transposed matrix.
func (m *Matrix) Transpose() *Matrix {
	t, _ := New(m.field, m.cols, m.rows)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			t.Set(c, r, m.At(r, c))
		}
	}
	return t
}

// Submatrix copies out the intersection of the given rows and columns,
// leaving the source untouched.
func (m *Matrix) Submatrix(rowIdx, colIdx []int) (*Matrix, error) {
	for _, r := range rowIdx {
		if r < 0 || r >= m.rows {
			return nil, fmt.Errorf("%w: row %d of %d", ErrIndexOutOfRange, r, m.rows)
		}
	}
	for _, c := range colIdx {
		if c < 0 || c >= m.cols {
			return nil, fmt.Errorf("%w: column %d of %d", ErrIndexOutOfRange, c, m.cols)
		}
	}
	sub, err := New(m.field, len(rowIdx), len(colIdx))
	if err != nil {
		return nil, err
	}
	for i, r := range rowIdx {
		for j, c := range colIdx {
			sub.Set(i, j, m.At(r, c))
		}
	}
	return sub, nil
}

// SwapRows exchanges rows r1 and r2 in place.
func (m *Matrix) SwapRows(r1, r2 int) error {
	if r1 < 0 || r1 >= m.rows || r2 < 0 || r2 >= m.rows {
		return fmt.Errorf("%w: rows %d, %d of %d", ErrIndexOutOfRange, r1, r2, m.rows)
	}
	if r1 == r2 {
		return nil
	}
	a := m.data[r1*m.cols : (r1+1)*m.cols]
	b := m.data[r2*m.cols : (r2+1)*m.cols]
	for i := range a {
		a[i], b[i] = b[i], a[i]
	}
	return nil
}

// Invert returns the inverse computed by Gauss-Jordan elimination on the
// matrix augmented with the identity. A missing pivot means the matrix is
// singular; at decode time that signals an unusable survivor set.
func (m *Matrix) Invert() (*Matrix, error) {
	if m.rows != m.cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, m.rows, m.cols)
	}
	size := m.rows
	f := m.field

	work := m.Clone()
	inv, err := Identity(f, size)
	if err != nil {
		return nil, err
	}

	for r := 0; r < size; r++ {
		// Partial pivoting: find a nonzero pivot at or below the diagonal.
		if work.At(r, r) == 0 {
			for below := r + 1; below < size; below++ {
				if work.At(below, r) != 0 {
					work.SwapRows(r, below)
					inv.SwapRows(r, below)
					break
				}
			}
		}
		pivot := work.At(r, r)
		if pivot == 0 {
			return nil, fmt.Errorf("%w: no pivot in column %d", ErrSingular, r)
		}
		if pivot != 1 {
			scale, err := f.Inverse(pivot)
			if err != nil {
				return nil, err
			}
			for c := 0; c < size; c++ {
				work.Set(r, c, f.Multiply(work.At(r, c), scale))
				inv.Set(r, c, f.Multiply(inv.At(r, c), scale))
			}
		}
		for other := 0; other < size; other++ {
			if other == r || work.At(other, r) == 0 {
				continue
			}
			scale := work.At(other, r)
			for c := 0; c < size; c++ {
				work.Set(other, c, work.At(other, c)^f.Multiply(scale, work.At(r, c)))
				inv.Set(other, c, inv.At(other, c)^f.Multiply(scale, inv.At(r, c)))
			}
		}
	}
	return inv, nil
}

// IsIdentity reports whether m is a square identity matrix.
func (m *Matrix) IsIdentity() bool {
	if m.rows != m.cols {
		return false
	}
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			want := uint32(0)
			if r == c {
				want = 1
			}
			if m.At(r, c) != want {
				return false
			}
		}
	}
	return true
}

// String renders the matrix as nested lists, e.g. [[1, 0], [0, 1]].
func (m *Matrix) String() string {
	rowOut := make([]string, 0, m.rows)
	for r := 0; r < m.rows; r++ {
		colOut := make([]string, 0, m.cols)
		for c := 0; c < m.cols; c++ {
			colOut = append(colOut, strconv.FormatUint(uint64(m.At(r, c)), 10))
		}
		rowOut = append(rowOut, "["+strings.Join(colOut, ", ")+"]")
	}
	return "[" + strings.Join(rowOut, ", ") + "]"
}
