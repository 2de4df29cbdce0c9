// Package coding builds MDS generator matrices for erasure codes. Two
// constructions are provided: Reed-Solomon (Vandermonde) and Cauchy. A
// generator is a (k+m)×k matrix over GF(2^w) whose top k rows address the
// data fragments and whose bottom m rows produce parity; the MDS property
// guarantees that any k of the k+m fragment rows form an invertible
// submatrix, so any k surviving fragments recover the originals.
package coding

import (
	"errors"
	"fmt"

	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
)

var (
	// ErrFieldTooSmall is returned when k+m exceeds what GF(2^w) can index.
	ErrFieldTooSmall = errors.New("field too small for k+m fragments")

	// ErrSingularGenerator is returned when the MDS check finds a
	// non-invertible k×k row submatrix.
	ErrSingularGenerator = errors.New("generator matrix is not MDS")

	// ErrOverlappingSets is returned when the Cauchy X and Y sets intersect.
	ErrOverlappingSets = errors.New("cauchy generator sets overlap")

	// ErrDuplicatePoint is returned for repeated evaluation points.
	ErrDuplicatePoint = errors.New("duplicate evaluation point")

	// ErrInvalidShape is returned for non-positive k or m.
	ErrInvalidShape = errors.New("k and m must be positive")
)

// Method identifies a coding matrix construction.
type Method string

const (
	// MethodReedSolomon is the Vandermonde-based Reed-Solomon construction.
	MethodReedSolomon Method = "reed-solomon"
	// MethodCauchy is the Cauchy-matrix construction.
	MethodCauchy Method = "cauchy"
)

// Builder produces a coding matrix for given field and dimensions.
type Builder interface {
	// Method returns the construction this builder implements.
	Method() Method

	// Build produces the (k+m)×k generator matrix.
	Build(f *galois.Field, k, m int) (*Matrix, error)
}

// BuilderRegistry maps methods to builder implementations.
type BuilderRegistry struct {
	builders map[Method]Builder
}

// NewRegistry creates an empty builder registry.
func NewRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: make(map[Method]Builder)}
}

// Register registers a builder for its method.
func (r *BuilderRegistry) Register(b Builder) {
	r.builders[b.Method()] = b
}

// Get retrieves the builder for a method.
func (r *BuilderRegistry) Get(method Method) (Builder, error) {
	b, exists := r.builders[method]
	if !exists {
		return nil, fmt.Errorf("unsupported coding method: %s", method)
	}
	return b, nil
}

// ListMethods returns all registered methods.
func (r *BuilderRegistry) ListMethods() []Method {
	methods := make([]Method, 0, len(r.builders))
	for m := range r.builders {
		methods = append(methods, m)
	}
	return methods
}

// DefaultRegistry holds the built-in constructions.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(&ReedSolomonBuilder{})
	DefaultRegistry.Register(&CauchyBuilder{})
}

// Build constructs a coding matrix using the default registry.
func Build(f *galois.Field, method Method, k, m int) (*Matrix, error) {
	b, err := DefaultRegistry.Get(method)
	if err != nil {
		return nil, err
	}
	return b.Build(f, k, m)
}

// Matrix is an immutable (k+m)×k generator matrix together with its code
// dimensions. The top k rows are the identity (data passes through); the
// bottom m rows are the parity coefficients.
type Matrix struct {
	field  *galois.Field
	k, m   int
	method Method
	gen    *matrix.Matrix
}

// Field returns the underlying field.
func (cm *Matrix) Field() *galois.Field { return cm.field }

// K returns the number of data fragments.
func (cm *Matrix) K() int { return cm.k }

// M returns the number of parity fragments.
func (cm *Matrix) M() int { return cm.m }

// Method returns the construction that produced the matrix.
func (cm *Matrix) Method() Method { return cm.method }

// Generator returns a copy of the full (k+m)×k generator.
func (cm *Matrix) Generator() *matrix.Matrix { return cm.gen.Clone() }

// CodingRows returns a copy of the bottom m×k parity block.
func (cm *Matrix) CodingRows() *matrix.Matrix {
	rows := make([]int, cm.m)
	for i := range rows {
		rows[i] = cm.k + i
	}
	cols := allIndices(cm.k)
	sub, _ := cm.gen.Submatrix(rows, cols)
	return sub
}

// RecoveryMatrix extracts the k×k generator submatrix for the given
// surviving fragment indices. Inverting it (matrix.Invert) yields the
// transform from surviving fragments back to the original data.
func (cm *Matrix) RecoveryMatrix(survivors []int) (*matrix.Matrix, error) {
	if len(survivors) != cm.k {
		return nil, fmt.Errorf("%w: need exactly %d survivors, got %d",
			matrix.ErrDimensionMismatch, cm.k, len(survivors))
	}
	return cm.gen.Submatrix(survivors, allIndices(cm.k))
}

// Verify checks the MDS property exhaustively: every k×k submatrix formed
// by choosing k of the k+m fragment rows must be invertible. The cost is
// combinatorial in k+m; it is a construction-time check, not a per-call one.
func (cm *Matrix) Verify() error {
	n := cm.k + cm.m
	cols := allIndices(cm.k)
	rows := allIndices(cm.k)
	for {
		sub, err := cm.gen.Submatrix(rows, cols)
		if err != nil {
			return err
		}
		if _, err := sub.Invert(); err != nil {
			return fmt.Errorf("%w: rows %v: %v", ErrSingularGenerator, rows, err)
		}
		if !nextCombination(rows, n) {
			return nil
		}
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// nextCombination advances idx to the next k-combination of 0..n-1 in
// lexicographic order, returning false after the last one.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	for i := k - 1; i >= 0; i-- {
		if idx[i] < n-k+i {
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
			return true
		}
	}
	return false
}

// newCodingMatrix wraps a generator after sanity-checking its shape.
func newCodingMatrix(f *galois.Field, k, m int, method Method, gen *matrix.Matrix) (*Matrix, error) {
	if gen.Rows() != k+m || gen.Cols() != k {
		return nil, fmt.Errorf("%w: generator is %dx%d, want %dx%d",
			matrix.ErrDimensionMismatch, gen.Rows(), gen.Cols(), k+m, k)
	}
	return &Matrix{field: f, k: k, m: m, method: method, gen: gen}, nil
}

func checkShape(k, m int) error {
	if k <= 0 || m <= 0 {
		return fmt.Errorf("%w: k=%d, m=%d", ErrInvalidShape, k, m)
	}
	return nil
}
