package coding

import (
	"fmt"

	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
)

// ReedSolomonBuilder builds a Reed-Solomon generator from a Vandermonde
// matrix. By default the full (k+m)×k power matrix is row-reduced into
// systematic form, G = V · (V_top)^-1, so the top block is the identity
// and any k rows of G stay invertible whenever any k rows of V are.
//
// With NonSystematic set, the raw power rows for points k..k+m-1 are
// stacked under an identity block instead. That layout is not MDS for
// every point choice, which is exactly what the explicit Verify pass
// catches.
type ReedSolomonBuilder struct {
	// NonSystematic skips the systematic normalization.
	NonSystematic bool

	// Points overrides the canonical evaluation points 0..k+m-1. Must
	// contain exactly k+m distinct field values.
	Points []uint32
}

// Method returns MethodReedSolomon.
func (b *ReedSolomonBuilder) Method() Method { return MethodReedSolomon }

// Build produces the generator, running the explicit MDS search for the
// non-systematic layout.
func (b *ReedSolomonBuilder) Build(f *galois.Field, k, m int) (*Matrix, error) {
	if err := checkShape(k, m); err != nil {
		return nil, err
	}
	n := k + m
	// Needs k+m distinct evaluation points, so the field must satisfy 2^w > k+m.
	if uint64(n) > f.Order() {
		return nil, fmt.Errorf("%w: k+m=%d needs 2^w > %d, have 2^%d", ErrFieldTooSmall, n, n, f.W())
	}

	points, err := b.evaluationPoints(f, n)
	if err != nil {
		return nil, err
	}

	// V[i][j] = points[i]^j.
	vand, err := matrix.New(f, n, k)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			vand.Set(i, j, f.Power(points[i], uint64(j)))
		}
	}

	var gen *matrix.Matrix
	if b.NonSystematic {
		gen, err = stackIdentity(f, k, m, func(i, j int) uint32 { return vand.At(k+i, j) })
		if err != nil {
			return nil, err
		}
	} else {
		top, err := vand.Submatrix(allIndices(k), allIndices(k))
		if err != nil {
			return nil, err
		}
		inv, err := top.Invert()
		if err != nil {
			return nil, fmt.Errorf("%w: top block: %v", ErrSingularGenerator, err)
		}
		gen, err = vand.Multiply(inv)
		if err != nil {
			return nil, err
		}
	}

	cm, err := newCodingMatrix(f, k, m, MethodReedSolomon, gen)
	if err != nil {
		return nil, err
	}
	if b.NonSystematic {
		// Distinct points make the systematic form MDS by the Vandermonde
		// determinant; the raw-row layout has no such guarantee and must
		// be searched explicitly.
		if err := cm.Verify(); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

func (b *ReedSolomonBuilder) evaluationPoints(f *galois.Field, n int) ([]uint32, error) {
	points := b.Points
	if points == nil {
		points = make([]uint32, n)
		for i := range points {
			points[i] = uint32(i)
		}
		return points, nil
	}
	if len(points) != n {
		return nil, fmt.Errorf("%w: %d evaluation points for %d fragments",
			matrix.ErrDimensionMismatch, len(points), n)
	}
	seen := make(map[uint32]bool, n)
	for _, p := range points {
		if !f.Contains(uint64(p)) {
			return nil, fmt.Errorf("%w: point %d exceeds GF(2^%d)", galois.ErrOutOfRange, p, f.W())
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePoint, p)
		}
		seen[p] = true
	}
	return points, nil
}

// NewReedSolomon builds a systematic Reed-Solomon coding matrix with the
// canonical evaluation points.
func NewReedSolomon(f *galois.Field, k, m int) (*Matrix, error) {
	return (&ReedSolomonBuilder{}).Build(f, k, m)
}

// stackIdentity assembles [I; C] where C[i][j] comes from the callback.
func stackIdentity(f *galois.Field, k, m int, at func(i, j int) uint32) (*matrix.Matrix, error) {
	gen, err := matrix.New(f, k+m, k)
	if err != nil {
		return nil, err
	}
	for i := 0; i < k; i++ {
		gen.Set(i, i, 1)
	}
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			gen.Set(k+i, j, at(i, j))
		}
	}
	return gen, nil
}
