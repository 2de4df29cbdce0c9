package galois

import (
	"encoding/binary"
	"fmt"
)

// Region operations work on byte buffers interpreted as sequences of field
// words (little-endian for the 16- and 32-bit fields). They are the hot
// path of the matrix-technique codec.

// XorRegion computes dst[i] ^= src[i]. Buffers must be the same length.
func XorRegion(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("region length mismatch: dst %d, src %d", len(dst), len(src))
	}
	i := 0
	for ; i+8 <= len(dst); i += 8 {
		d := binary.LittleEndian.Uint64(dst[i:])
		s := binary.LittleEndian.Uint64(src[i:])
		binary.LittleEndian.PutUint64(dst[i:], d^s)
	}
	for ; i < len(dst); i++ {
		dst[i] ^= src[i]
	}
	return nil
}

// MulRegionXor computes dst[i] ^= c * src[i] word-wise over f. Buffer
// lengths must match and be a multiple of the field word size.
func MulRegionXor(f *Field, dst, src []byte, c uint32) error {
	if len(dst) != len(src) {
		return fmt.Errorf("region length mismatch: dst %d, src %d", len(dst), len(src))
	}
	wb := f.WordBytes()
	if len(src)%wb != 0 {
		return fmt.Errorf("region length %d is not a multiple of word size %d", len(src), wb)
	}
	if c == 0 {
		return nil
	}
	if c == 1 {
		return XorRegion(dst, src)
	}
	switch f.w {
	case 8:
		for i := range src {
			dst[i] ^= byte(f.Multiply(c, uint32(src[i])))
		}
	case 16:
		for i := 0; i < len(src); i += 2 {
			v := f.Multiply(c, uint32(binary.LittleEndian.Uint16(src[i:])))
			binary.LittleEndian.PutUint16(dst[i:], binary.LittleEndian.Uint16(dst[i:])^uint16(v))
		}
	case 32:
		for i := 0; i < len(src); i += 4 {
			v := f.Multiply(c, binary.LittleEndian.Uint32(src[i:]))
			binary.LittleEndian.PutUint32(dst[i:], binary.LittleEndian.Uint32(dst[i:])^v)
		}
	}
	return nil
}
