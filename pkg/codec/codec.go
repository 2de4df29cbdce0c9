// Package codec drives erasure encoding and decoding over a coding
// matrix. A codec owns a generator built by pkg/coding and evaluates it
// with one of three techniques: direct field arithmetic on little-endian
// word regions, naive XOR evaluation of the binary expansion, or a
// compiled XOR schedule. The bit techniques split each fragment into w
// packets and evaluate the code bit-sliced across them, a byte layout
// that is not compatible with the word layout of the matrix technique,
// so fragments must be decoded with the technique that encoded them.
// The two bit techniques share one layout and emit identical bytes.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Davincible/erasure/pkg/bitmatrix"
	"github.com/Davincible/erasure/pkg/coding"
	"github.com/Davincible/erasure/pkg/galois"
	"github.com/Davincible/erasure/pkg/matrix"
	"github.com/Davincible/erasure/pkg/schedule"
)

// Technique selects how the codec evaluates its matrices.
type Technique string

const (
	// TechniqueMatrix does word-wise field multiplication per generator
	// entry.
	TechniqueMatrix Technique = "matrix"

	// TechniqueBitMatrix evaluates the binary expansion row by row with
	// plain XORs.
	TechniqueBitMatrix Technique = "bitmatrix"

	// TechniqueSchedule compiles the binary expansion into an XOR
	// program once and replays it. Decode programs are compiled per
	// erasure pattern and cached on the codec.
	TechniqueSchedule Technique = "schedule"
)

// Techniques lists the supported techniques.
func Techniques() []Technique {
	return []Technique{TechniqueMatrix, TechniqueBitMatrix, TechniqueSchedule}
}

var (
	ErrUnknownTechnique     = errors.New("unknown coding technique")
	ErrFragmentCount        = errors.New("wrong number of fragments")
	ErrBufferLengthMismatch = errors.New("fragment buffer length mismatch")
	ErrTooManyErasures      = errors.New("too many erasures to recover")
	ErrErasureIndex         = errors.New("erasure index out of range")
)

// Codec encodes k data fragments into m parity fragments and recovers
// erased fragments from any k survivors. It is immutable after New apart
// from the internal decode-schedule cache and safe for concurrent use.
type Codec struct {
	cm        *coding.Matrix
	field     *galois.Field
	technique Technique

	codingBits  *bitmatrix.BitMatrix
	encodeSched *schedule.Schedule

	mu          sync.Mutex
	decodeCache map[string]*schedule.Schedule
}

// New builds a codec around a coding matrix.
func New(cm *coding.Matrix, technique Technique) (*Codec, error) {
	c := &Codec{
		cm:        cm,
		field:     cm.Field(),
		technique: technique,
	}
	switch technique {
	case TechniqueMatrix:
	case TechniqueBitMatrix:
		c.codingBits = bitmatrix.New(cm.CodingRows())
	case TechniqueSchedule:
		c.codingBits = bitmatrix.New(cm.CodingRows())
		c.encodeSched = schedule.Compile(c.codingBits)
		c.decodeCache = make(map[string]*schedule.Schedule)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTechnique, technique)
	}
	return c, nil
}

// NewDefault builds a Reed-Solomon codec with the matrix technique, the
// configuration that needs no setup work beyond the generator itself.
func NewDefault(f *galois.Field, k, m int) (*Codec, error) {
	cm, err := coding.NewReedSolomon(f, k, m)
	if err != nil {
		return nil, err
	}
	return New(cm, TechniqueMatrix)
}

// Field returns the codec's field.
func (c *Codec) Field() *galois.Field { return c.field }

// K returns the data fragment count.
func (c *Codec) K() int { return c.cm.K() }

// M returns the parity fragment count.
func (c *Codec) M() int { return c.cm.M() }

// Technique returns the evaluation technique.
func (c *Codec) Technique() Technique { return c.technique }

// CodingMatrix returns the underlying coding matrix.
func (c *Codec) CodingMatrix() *coding.Matrix { return c.cm }

// FragmentAlignment returns the byte multiple every fragment length must
// satisfy: the word size for the matrix technique, w for the bit
// techniques (fragments split into w equal packets there).
func (c *Codec) FragmentAlignment() int {
	if c.technique == TechniqueMatrix {
		return c.field.WordBytes()
	}
	return int(c.field.W())
}

// Encode computes the m parity fragments for k data fragments. Data
// buffers must share one length aligned to FragmentAlignment.
func (c *Codec) Encode(data [][]byte) ([][]byte, error) {
	if len(data) != c.K() {
		return nil, fmt.Errorf("%w: got %d data fragments, want %d", ErrFragmentCount, len(data), c.K())
	}
	fragLen, err := c.checkLengths(data)
	if err != nil {
		return nil, err
	}

	parity := make([][]byte, c.M())
	for i := range parity {
		parity[i] = make([]byte, fragLen)
	}

	switch c.technique {
	case TechniqueMatrix:
		rows := c.cm.CodingRows()
		for i := 0; i < c.M(); i++ {
			for j := 0; j < c.K(); j++ {
				if err := galois.MulRegionXor(c.field, parity[i], data[j], rows.At(i, j)); err != nil {
					return nil, err
				}
			}
		}
	case TechniqueBitMatrix:
		if err := c.applyBits(c.codingBits, data, parity, fragLen); err != nil {
			return nil, err
		}
	case TechniqueSchedule:
		if err := c.encodeSched.Apply(toPackets(data, fragLen, int(c.field.W())),
			toPackets(parity, fragLen, int(c.field.W()))); err != nil {
			return nil, err
		}
	}
	return parity, nil
}

// Decode reconstructs erased fragments. fragments must hold all k+m
// slots; slots named in erasures are rebuilt in place (allocated when
// nil), every other slot must hold its surviving fragment. Data
// fragments are recovered from the lowest k survivors, then erased
// parity is recomputed from the recovered data. Returns the k original
// data fragments.
func (c *Codec) Decode(fragments [][]byte, erasures []int) ([][]byte, error) {
	n := c.K() + c.M()
	if len(fragments) != n {
		return nil, fmt.Errorf("%w: got %d fragment slots, want %d", ErrFragmentCount, len(fragments), n)
	}
	erased, err := c.normalizeErasures(erasures)
	if err != nil {
		return nil, err
	}

	fragLen, err := c.survivorLengths(fragments, erased)
	if err != nil {
		return nil, err
	}
	for idx := range erased {
		if len(fragments[idx]) != fragLen {
			fragments[idx] = make([]byte, fragLen)
		} else {
			clear(fragments[idx])
		}
	}

	survivors := c.pickSurvivors(erased)
	if err := c.recoverData(fragments, erased, survivors, fragLen); err != nil {
		return nil, err
	}
	if err := c.recoverParity(fragments, erased, fragLen); err != nil {
		return nil, err
	}
	return fragments[:c.K()], nil
}

// normalizeErasures bounds-checks and deduplicates the erasure list.
func (c *Codec) normalizeErasures(erasures []int) (map[int]bool, error) {
	n := c.K() + c.M()
	erased := make(map[int]bool, len(erasures))
	for _, e := range erasures {
		if e < 0 || e >= n {
			return nil, fmt.Errorf("%w: %d with %d fragments", ErrErasureIndex, e, n)
		}
		erased[e] = true
	}
	if len(erased) > c.M() {
		return nil, fmt.Errorf("%w: %d erased, at most %d recoverable", ErrTooManyErasures, len(erased), c.M())
	}
	return erased, nil
}

// pickSurvivors returns the lowest k surviving fragment indices.
func (c *Codec) pickSurvivors(erased map[int]bool) []int {
	survivors := make([]int, 0, c.K())
	for i := 0; i < c.K()+c.M() && len(survivors) < c.K(); i++ {
		if !erased[i] {
			survivors = append(survivors, i)
		}
	}
	return survivors
}

// recoverData rebuilds erased data fragments from the survivor set.
func (c *Codec) recoverData(fragments [][]byte, erased map[int]bool, survivors []int, fragLen int) error {
	var erasedData []int
	for idx := range erased {
		if idx < c.K() {
			erasedData = append(erasedData, idx)
		}
	}
	if len(erasedData) == 0 {
		return nil
	}
	sort.Ints(erasedData)

	rec, err := c.cm.RecoveryMatrix(survivors)
	if err != nil {
		return err
	}
	inv, err := rec.Invert()
	if err != nil {
		return err
	}
	// Only the rows for erased data fragments are evaluated.
	rows, err := inv.Submatrix(erasedData, allIndices(c.K()))
	if err != nil {
		return err
	}

	in := make([][]byte, c.K())
	for j, s := range survivors {
		in[j] = fragments[s]
	}
	out := make([][]byte, len(erasedData))
	for i, idx := range erasedData {
		out[i] = fragments[idx]
	}

	switch c.technique {
	case TechniqueMatrix:
		for i := range out {
			for j := range in {
				if err := galois.MulRegionXor(c.field, out[i], in[j], rows.At(i, j)); err != nil {
					return err
				}
			}
		}
		return nil
	case TechniqueBitMatrix:
		return c.applyBits(bitmatrix.New(rows), in, out, fragLen)
	case TechniqueSchedule:
		s := c.decodeSchedule(erasedData, survivors, rows)
		return s.Apply(toPackets(in, fragLen, int(c.field.W())), toPackets(out, fragLen, int(c.field.W())))
	}
	return fmt.Errorf("%w: %q", ErrUnknownTechnique, c.technique)
}

// recoverParity recomputes erased parity fragments from the (now
// complete) data fragments.
func (c *Codec) recoverParity(fragments [][]byte, erased map[int]bool, fragLen int) error {
	var erasedParity []int
	for idx := range erased {
		if idx >= c.K() {
			erasedParity = append(erasedParity, idx)
		}
	}
	if len(erasedParity) == 0 {
		return nil
	}
	sort.Ints(erasedParity)

	gen := c.cm.Generator()
	rowIdx := make([]int, len(erasedParity))
	for i, idx := range erasedParity {
		rowIdx[i] = idx
	}
	rows, err := gen.Submatrix(rowIdx, allIndices(c.K()))
	if err != nil {
		return err
	}

	data := fragments[:c.K()]
	out := make([][]byte, len(erasedParity))
	for i, idx := range erasedParity {
		out[i] = fragments[idx]
	}

	switch c.technique {
	case TechniqueMatrix:
		for i := range out {
			for j := range data {
				if err := galois.MulRegionXor(c.field, out[i], data[j], rows.At(i, j)); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		// Both bit techniques reuse the naive evaluator here; parity
		// repair is rare enough that compiling a schedule for it would
		// never pay off.
		return c.applyBits(bitmatrix.New(rows), data, out, fragLen)
	}
}

// decodeSchedule returns the compiled XOR program for an erasure pattern,
// compiling and caching it on first use.
func (c *Codec) decodeSchedule(erasedData, survivors []int, rows *matrix.Matrix) *schedule.Schedule {
	key := patternKey(erasedData, survivors)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.decodeCache[key]; ok {
		return s
	}
	s := schedule.Compile(bitmatrix.New(rows))
	c.decodeCache[key] = s
	return s
}

func patternKey(erasedData, survivors []int) string {
	return fmt.Sprintf("%v|%v", erasedData, survivors)
}

// applyBits evaluates a binary matrix naively over fragment packets.
func (c *Codec) applyBits(bm *bitmatrix.BitMatrix, in, out [][]byte, fragLen int) error {
	w := int(c.field.W())
	inPackets := toPackets(in, fragLen, w)
	outPackets := toPackets(out, fragLen, w)
	for r := 0; r < bm.Rows(); r++ {
		dst := outPackets[r]
		clear(dst)
		for _, col := range bm.Row(r) {
			if err := galois.XorRegion(dst, inPackets[col]); err != nil {
				return err
			}
		}
	}
	return nil
}

// toPackets splits each fragment into w equal packets. Bit column j*w+c
// maps to packet c of fragment j.
func toPackets(fragments [][]byte, fragLen, w int) [][]byte {
	packetLen := fragLen / w
	packets := make([][]byte, 0, len(fragments)*w)
	for _, frag := range fragments {
		for p := 0; p < w; p++ {
			packets = append(packets, frag[p*packetLen:(p+1)*packetLen])
		}
	}
	return packets
}

// checkLengths validates that all fragments share one aligned length.
func (c *Codec) checkLengths(fragments [][]byte) (int, error) {
	fragLen := len(fragments[0])
	for i, f := range fragments {
		if len(f) != fragLen {
			return 0, fmt.Errorf("%w: fragment %d has %d bytes, fragment 0 has %d",
				ErrBufferLengthMismatch, i, len(f), fragLen)
		}
	}
	if align := c.FragmentAlignment(); fragLen == 0 || fragLen%align != 0 {
		return 0, fmt.Errorf("%w: length %d is not a positive multiple of %d",
			ErrBufferLengthMismatch, fragLen, align)
	}
	return fragLen, nil
}

// survivorLengths validates the surviving fragments and returns their
// common length.
func (c *Codec) survivorLengths(fragments [][]byte, erased map[int]bool) (int, error) {
	fragLen := -1
	for i, f := range fragments {
		if erased[i] {
			continue
		}
		if fragLen < 0 {
			fragLen = len(f)
		}
		if len(f) != fragLen {
			return 0, fmt.Errorf("%w: fragment %d has %d bytes, want %d",
				ErrBufferLengthMismatch, i, len(f), fragLen)
		}
	}
	if align := c.FragmentAlignment(); fragLen <= 0 || fragLen%align != 0 {
		return 0, fmt.Errorf("%w: length %d is not a positive multiple of %d",
			ErrBufferLengthMismatch, fragLen, align)
	}
	return fragLen, nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
