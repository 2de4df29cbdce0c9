package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/erasure/pkg/galois"
)

func field8(t *testing.T) *galois.Field {
	t.Helper()
	f, err := galois.NewField(8)
	require.NoError(t, err)
	return f
}

func TestNewAndEntries(t *testing.T) {
	f := field8(t)

	_, err := New(f, 0, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewFromEntries(f, 2, 2, []uint32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewFromEntries(f, 1, 2, []uint32{1, 300})
	assert.ErrorIs(t, err, galois.ErrOutOfRange)

	m, err := NewFromEntries(f, 2, 3, []uint32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, uint32(5), m.At(1, 1))
}

func TestIdentityMultiply(t *testing.T) {
	f := field8(t)

	m, err := NewFromEntries(f, 3, 3, []uint32{3, 1, 4, 1, 5, 9, 2, 6, 5})
	require.NoError(t, err)
	id, err := Identity(f, 3)
	require.NoError(t, err)

	left, err := id.Multiply(m)
	require.NoError(t, err)
	assert.True(t, left.Equal(m))

	right, err := m.Multiply(id)
	require.NoError(t, err)
	assert.True(t, right.Equal(m))
}

func TestMultiplyDimensionMismatch(t *testing.T) {
	f := field8(t)

	a, err := New(f, 2, 3)
	require.NoError(t, err)
	b, err := New(f, 2, 3)
	require.NoError(t, err)

	_, err = a.Multiply(b)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = a.MultiplyVector([]uint32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInvertRoundTrip(t *testing.T) {
	f := field8(t)

	tests := []struct {
		name    string
		rows    int
		entries []uint32
	}{
		{"2x2", 2, []uint32{1, 2, 3, 4}},
		{"3x3", 3, []uint32{1, 1, 1, 1, 2, 4, 1, 3, 9}},
		{"4x4 with zero diagonal", 4, []uint32{
			0, 1, 2, 3,
			4, 0, 5, 6,
			7, 8, 0, 9,
			10, 11, 12, 0,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFromEntries(f, tt.rows, tt.rows, tt.entries)
			require.NoError(t, err)

			inv, err := m.Invert()
			require.NoError(t, err)

			prod, err := m.Multiply(inv)
			require.NoError(t, err)
			assert.True(t, prod.IsIdentity(), "m * m^-1 = I, got %s", prod)

			prod2, err := inv.Multiply(m)
			require.NoError(t, err)
			assert.True(t, prod2.IsIdentity())
		})
	}
}

func TestInvertSingular(t *testing.T) {
	f := field8(t)

	// Row 2 = row 0 XOR row 1, so the rows are linearly dependent.
	m, err := NewFromEntries(f, 3, 3, []uint32{
		1, 2, 3,
		4, 5, 6,
		5, 7, 5,
	})
	require.NoError(t, err)

	_, err = m.Invert()
	assert.ErrorIs(t, err, ErrSingular)

	rect, err := New(f, 2, 3)
	require.NoError(t, err)
	_, err = rect.Invert()
	assert.ErrorIs(t, err, ErrNotSquare)
}

func TestTranspose(t *testing.T) {
	f := field8(t)

	m, err := NewFromEntries(f, 2, 3, []uint32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	tr := m.Transpose()
	assert.Equal(t, 3, tr.Rows())
	assert.Equal(t, 2, tr.Cols())
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			assert.Equal(t, m.At(r, c), tr.At(c, r))
		}
	}
	assert.True(t, tr.Transpose().Equal(m))
}

func TestSubmatrix(t *testing.T) {
	f := field8(t)

	m, err := NewFromEntries(f, 3, 3, []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)

	sub, err := m.Submatrix([]int{0, 2}, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), sub.At(0, 0))
	assert.Equal(t, uint32(3), sub.At(0, 1))
	assert.Equal(t, uint32(8), sub.At(1, 0))
	assert.Equal(t, uint32(9), sub.At(1, 1))

	// Mutating the copy must not touch the source.
	sub.Set(0, 0, 99)
	assert.Equal(t, uint32(2), m.At(0, 1))

	_, err = m.Submatrix([]int{3}, []int{0})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = m.Submatrix([]int{0}, []int{-1})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMultiplyVector(t *testing.T) {
	f := field8(t)

	m, err := NewFromEntries(f, 2, 2, []uint32{1, 2, 3, 4})
	require.NoError(t, err)

	v := []uint32{5, 6}
	out, err := m.MultiplyVector(v)
	require.NoError(t, err)

	want0 := f.Multiply(1, 5) ^ f.Multiply(2, 6)
	want1 := f.Multiply(3, 5) ^ f.Multiply(4, 6)
	assert.Equal(t, []uint32{want0, want1}, out)
}

func TestString(t *testing.T) {
	f := field8(t)
	m, err := NewFromEntries(f, 2, 2, []uint32{1, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, "[[1, 0], [0, 1]]", m.String())
}
