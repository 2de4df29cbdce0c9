package galois

import "fmt"

// Element is a single field value bound to its Field. The zero Element is
// not usable; construct through NewElement so the range check runs.
type Element struct {
	field *Field
	value uint32
}

// NewElement wraps v as an element of f, rejecting out-of-range values.
func NewElement(f *Field, v uint64) (Element, error) {
	if !f.Contains(v) {
		return Element{}, fmt.Errorf("%w: %d does not fit GF(2^%d)", ErrOutOfRange, v, f.w)
	}
	return Element{field: f, value: uint32(v)}, nil
}

// Field returns the field the element belongs to.
func (e Element) Field() *Field { return e.field }

// Value returns the raw field value.
func (e Element) Value() uint32 { return e.value }

// IsZero reports whether the element is the additive identity.
func (e Element) IsZero() bool { return e.value == 0 }

func (e Element) sameField(o Element) error {
	if e.field != o.field {
		return fmt.Errorf("%w: GF(2^%d) vs GF(2^%d)", ErrFieldMismatch, e.field.w, o.field.w)
	}
	return nil
}

// Add returns e + o.
func (e Element) Add(o Element) (Element, error) {
	if err := e.sameField(o); err != nil {
		return Element{}, err
	}
	return Element{field: e.field, value: e.field.Add(e.value, o.value)}, nil
}

// Multiply returns e * o.
func (e Element) Multiply(o Element) (Element, error) {
	if err := e.sameField(o); err != nil {
		return Element{}, err
	}
	return Element{field: e.field, value: e.field.Multiply(e.value, o.value)}, nil
}

// Inverse returns the multiplicative inverse of e.
func (e Element) Inverse() (Element, error) {
	inv, err := e.field.Inverse(e.value)
	if err != nil {
		return Element{}, err
	}
	return Element{field: e.field, value: inv}, nil
}

func (e Element) String() string {
	return fmt.Sprintf("%d", e.value)
}
