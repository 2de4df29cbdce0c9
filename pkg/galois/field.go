// Package galois implements arithmetic over the finite fields GF(2^8),
// GF(2^16) and GF(2^32). Addition is XOR; multiplication is table-driven
// for the 8- and 16-bit fields and carry-less shift-and-reduce for the
// 32-bit field, where full log tables would not fit in memory.
package galois

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedWordSize is returned for word sizes other than 8, 16, 32.
	ErrUnsupportedWordSize = errors.New("unsupported word size")

	// ErrNonPrimitivePolynomial is returned when the configured generator
	// polynomial does not generate the full multiplicative group.
	ErrNonPrimitivePolynomial = errors.New("generator polynomial is not primitive")

	// ErrDivisionByZero is returned by Divide and Inverse for a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrOutOfRange is returned when a value does not fit the field width.
	ErrOutOfRange = errors.New("value out of field range")

	// ErrFieldMismatch is returned when operands belong to different fields.
	ErrFieldMismatch = errors.New("elements belong to different fields")
)

// Default generator polynomials, without the implicit leading bit.
const (
	polyW8  = 0x11D    // x^8 + x^4 + x^3 + x^2 + 1
	polyW16 = 0x1100B  // x^16 + x^12 + x^3 + x + 1
	polyW32 = 0x400007 // x^32 + x^22 + x^2 + x + 1
)

// Field represents GF(2^w). It is immutable once built and safe for
// concurrent use by any number of callers.
type Field struct {
	w    uint
	poly uint64 // generator polynomial including the leading x^w term
	mask uint64 // 2^w - 1

	// log/antilog tables; nil for w=32.
	log []uint32
	exp []uint32
}

// NewField builds the field GF(2^w) for w in {8, 16, 32}.
func NewField(w uint) (*Field, error) {
	var poly uint64
	switch w {
	case 8:
		poly = polyW8
	case 16:
		poly = polyW16
	case 32:
		poly = polyW32
	default:
		return nil, fmt.Errorf("%w: %d (supported: 8, 16, 32)", ErrUnsupportedWordSize, w)
	}
	return newField(w, poly)
}

func newField(w uint, poly uint64) (*Field, error) {
	f := &Field{
		w:    w,
		poly: poly | 1<<w,
		mask: 1<<w - 1,
	}
	if w == 32 {
		// No tables: 2^32 entries would need 32 GiB. Multiplication falls
		// back to shift-and-reduce, inverse to exponentiation.
		return f, nil
	}
	if err := f.buildTables(); err != nil {
		return nil, err
	}
	return f, nil
}

// buildTables walks the powers of x and fills the log/antilog tables,
// verifying that x generates all 2^w-1 nonzero field values.
func (f *Field) buildTables() error {
	order := int(f.mask) // 2^w - 1
	f.log = make([]uint32, order+1)
	f.exp = make([]uint32, order)

	x := uint64(1)
	for i := 0; i < order; i++ {
		if x == 1 && i > 0 {
			// The cycle closed early: x has order < 2^w-1.
			return fmt.Errorf("%w: 0x%x", ErrNonPrimitivePolynomial, f.poly)
		}
		f.exp[i] = uint32(x)
		f.log[x] = uint32(i)
		x = f.xtimes(x)
	}
	if x != 1 {
		return fmt.Errorf("%w: 0x%x", ErrNonPrimitivePolynomial, f.poly)
	}
	return nil
}

// xtimes multiplies by x and reduces modulo the generator polynomial.
func (f *Field) xtimes(a uint64) uint64 {
	a <<= 1
	if a > f.mask {
		a ^= f.poly
	}
	return a
}

// W returns the field word size in bits.
func (f *Field) W() uint { return f.w }

// WordBytes returns the field word size in bytes.
func (f *Field) WordBytes() int { return int(f.w) / 8 }

// Order returns the size of the multiplicative group, 2^w - 1.
func (f *Field) Order() uint64 { return f.mask }

// Contains reports whether v is a valid value of this field.
func (f *Field) Contains(v uint64) bool { return v <= f.mask }

// Add returns a + b, which in characteristic 2 is XOR.
func (f *Field) Add(a, b uint32) uint32 { return a ^ b }

// Multiply returns a * b.
func (f *Field) Multiply(a, b uint32) uint32 {
	if a == 0 || b == 0 {
		return 0
	}
	if f.exp != nil {
		s := uint64(f.log[a]) + uint64(f.log[b])
		return f.exp[s%f.mask]
	}
	return f.mulShift(a, b)
}

// mulShift is the table-free carry-less multiply used for w=32.
func (f *Field) mulShift(a, b uint32) uint32 {
	var prod uint64
	aa := uint64(a)
	for b != 0 {
		if b&1 != 0 {
			prod ^= aa
		}
		b >>= 1
		aa = f.xtimes(aa)
	}
	return uint32(prod)
}

// Inverse returns the multiplicative inverse of a.
func (f *Field) Inverse(a uint32) (uint32, error) {
	if a == 0 {
		return 0, fmt.Errorf("%w: no inverse of 0 in GF(2^%d)", ErrDivisionByZero, f.w)
	}
	if f.exp != nil {
		return f.exp[(f.mask-uint64(f.log[a]))%f.mask], nil
	}
	// a^(2^w - 2) by square-and-multiply.
	result := uint32(1)
	base := a
	for n := f.mask - 1; n != 0; n >>= 1 {
		if n&1 != 0 {
			result = f.mulShift(result, base)
		}
		base = f.mulShift(base, base)
	}
	return result, nil
}

// Divide returns a / b.
func (f *Field) Divide(a, b uint32) (uint32, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return 0, err
	}
	return f.Multiply(a, inv), nil
}

// Power returns a^n via log-domain scalar multiplication where tables are
// available, and square-and-multiply otherwise.
func (f *Field) Power(a uint32, n uint64) uint32 {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	if f.exp != nil {
		e := (uint64(f.log[a]) % f.mask) * (n % f.mask) % f.mask
		return f.exp[e]
	}
	result := uint32(1)
	base := a
	for ; n != 0; n >>= 1 {
		if n&1 != 0 {
			result = f.mulShift(result, base)
		}
		base = f.mulShift(base, base)
	}
	return result
}
