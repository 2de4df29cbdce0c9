package coding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
)

func field(t *testing.T, w uint) *galois.Field {
	t.Helper()
	f, err := galois.NewField(w)
	require.NoError(t, err)
	return f
}

func TestRegistry(t *testing.T) {
	for _, method := range []Method{MethodReedSolomon, MethodCauchy} {
		b, err := DefaultRegistry.Get(method)
		require.NoError(t, err)
		assert.Equal(t, method, b.Method())
	}

	_, err := DefaultRegistry.Get("liberation")
	assert.Error(t, err)

	assert.Len(t, DefaultRegistry.ListMethods(), 2)
}

func TestReedSolomonSystematic(t *testing.T) {
	f := field(t, 8)

	cm, err := NewReedSolomon(f, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, cm.K())
	assert.Equal(t, 2, cm.M())
	assert.Equal(t, MethodReedSolomon, cm.Method())

	gen := cm.Generator()
	assert.Equal(t, 6, gen.Rows())
	assert.Equal(t, 4, gen.Cols())

	top, err := gen.Submatrix([]int{0, 1, 2, 3}, []int{0, 1, 2, 3})
	require.NoError(t, err)
	assert.True(t, top.IsIdentity(), "systematic generator must start with the identity block")

	coding := cm.CodingRows()
	assert.Equal(t, 2, coding.Rows())
	assert.Equal(t, 4, coding.Cols())
}

func TestMDSProperty(t *testing.T) {
	shapes := []struct{ k, m int }{
		{2, 1}, {2, 2}, {3, 2}, {4, 2}, {4, 3}, {5, 3},
	}
	for _, w := range []uint{8, 16} {
		f := field(t, w)
		for _, s := range shapes {
			for _, method := range []Method{MethodReedSolomon, MethodCauchy} {
				t.Run(fmt.Sprintf("w%d_%s_k%d_m%d", w, method, s.k, s.m), func(t *testing.T) {
					cm, err := Build(f, method, s.k, s.m)
					require.NoError(t, err)
					assert.NoError(t, cm.Verify())
				})
			}
		}
	}
}

func TestReedSolomonNonSystematic(t *testing.T) {
	f := field(t, 8)

	b := &ReedSolomonBuilder{NonSystematic: true}
	cm, err := b.Build(f, 3, 2)
	require.NoError(t, err)
	require.NoError(t, cm.Verify())

	// Coding rows are raw powers of the points 3 and 4.
	coding := cm.CodingRows()
	for i, p := range []uint32{3, 4} {
		for j := 0; j < 3; j++ {
			assert.Equal(t, f.Power(p, uint64(j)), coding.At(i, j))
		}
	}
}

func TestReedSolomonFieldTooSmall(t *testing.T) {
	f := field(t, 8)

	_, err := NewReedSolomon(f, 200, 56)
	assert.ErrorIs(t, err, ErrFieldTooSmall)

	_, err = NewReedSolomon(f, 200, 55)
	assert.NoError(t, err)
}

func TestReedSolomonCustomPoints(t *testing.T) {
	f := field(t, 8)

	_, err := (&ReedSolomonBuilder{Points: []uint32{1, 2, 3, 2, 5}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, ErrDuplicatePoint)

	_, err = (&ReedSolomonBuilder{Points: []uint32{1, 2, 3}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	_, err = (&ReedSolomonBuilder{Points: []uint32{1, 2, 3, 4, 300}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, galois.ErrOutOfRange)

	cm, err := (&ReedSolomonBuilder{Points: []uint32{7, 11, 13, 17, 19}}).Build(f, 3, 2)
	require.NoError(t, err)
	assert.NoError(t, cm.Verify())
}

func TestCauchyPointSets(t *testing.T) {
	f := field(t, 8)

	_, err := (&CauchyBuilder{X: []uint32{1, 2}, Y: []uint32{2, 3, 4}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, ErrOverlappingSets)

	_, err = (&CauchyBuilder{X: []uint32{1, 1}, Y: []uint32{3, 4, 5}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, ErrDuplicatePoint)

	_, err = (&CauchyBuilder{X: []uint32{1, 2}, Y: []uint32{3, 4}}).Build(f, 3, 2)
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	cm, err := (&CauchyBuilder{X: []uint32{10, 20}, Y: []uint32{30, 40, 50}}).Build(f, 3, 2)
	require.NoError(t, err)
	assert.NoError(t, cm.Verify())
}

func TestCauchyFieldTooSmall(t *testing.T) {
	f := field(t, 8)

	_, err := NewCauchy(f, 200, 57)
	assert.ErrorIs(t, err, ErrFieldTooSmall)

	cm, err := NewCauchy(f, 200, 56)
	require.NoError(t, err)
	assert.Equal(t, 200, cm.K())
}

func TestCauchyImprovement(t *testing.T) {
	f := field(t, 8)
	k, m := 5, 3

	plain, err := (&CauchyBuilder{NoImprove: true}).Build(f, k, m)
	require.NoError(t, err)
	improved, err := NewCauchy(f, k, m)
	require.NoError(t, err)

	weight := func(cm *Matrix) int {
		var total int
		c := cm.CodingRows()
		for i := 0; i < c.Rows(); i++ {
			for j := 0; j < c.Cols(); j++ {
				total += BitWeight(f, c.At(i, j))
			}
		}
		return total
	}

	assert.LessOrEqual(t, weight(improved), weight(plain))

	// The column scaling puts ones across the first coding row.
	c := improved.CodingRows()
	for j := 0; j < k; j++ {
		assert.Equal(t, uint32(1), c.At(0, j))
	}

	// Rescaling must not break recoverability.
	assert.NoError(t, improved.Verify())
}

func TestRecoveryMatrix(t *testing.T) {
	f := field(t, 8)

	cm, err := NewReedSolomon(f, 3, 2)
	require.NoError(t, err)

	_, err = cm.RecoveryMatrix([]int{0, 1})
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	// Data rows only: recovery is the identity.
	rec, err := cm.RecoveryMatrix([]int{0, 1, 2})
	require.NoError(t, err)
	assert.True(t, rec.IsIdentity())

	// Mixed data and parity rows stay invertible.
	rec, err = cm.RecoveryMatrix([]int{0, 3, 4})
	require.NoError(t, err)
	_, err = rec.Invert()
	assert.NoError(t, err)
}

func TestBitWeight(t *testing.T) {
	f := field(t, 8)

	// Multiplying by 1 is the identity map: exactly w ones.
	assert.Equal(t, 8, BitWeight(f, 1))
	assert.Equal(t, 0, BitWeight(f, 0))
	assert.Greater(t, BitWeight(f, 2), 8)
}
