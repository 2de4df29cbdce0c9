package codec

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/erasure/pkg/coding"
	"github.com/Davincible/erasure/pkg/galois"
)

func newCodec(t *testing.T, w uint, method coding.Method, k, m int, technique Technique) *Codec {
	t.Helper()
	f, err := galois.NewField(w)
	require.NoError(t, err)
	cm, err := coding.Build(f, method, k, m)
	require.NoError(t, err)
	c, err := New(cm, technique)
	require.NoError(t, err)
	return c
}

func randomFragments(rng *rand.Rand, k, fragLen int) [][]byte {
	data := make([][]byte, k)
	for i := range data {
		data[i] = make([]byte, fragLen)
		rng.Read(data[i])
	}
	return data
}

// subsets returns every subset of {0..n-1} with 1..max elements.
func subsets(n, max int) [][]int {
	var out [][]int
	var rec func(start int, cur []int)
	rec = func(start int, cur []int) {
		if len(cur) > 0 {
			out = append(out, append([]int(nil), cur...))
		}
		if len(cur) == max {
			return
		}
		for i := start; i < n; i++ {
			rec(i+1, append(cur, i))
		}
	}
	rec(0, nil)
	return out
}

// Every erasure pattern up to m losses must round-trip for every
// technique and coding method.
func TestRoundTripAllErasurePatterns(t *testing.T) {
	const k, m = 4, 2
	for _, w := range []uint{8, 16} {
		fragLen := 2 * int(w) // aligned for every technique
		for _, method := range []coding.Method{coding.MethodReedSolomon, coding.MethodCauchy} {
			for _, technique := range Techniques() {
				t.Run(fmt.Sprintf("w%d_%s_%s", w, method, technique), func(t *testing.T) {
					c := newCodec(t, w, method, k, m, technique)
					rng := rand.New(rand.NewSource(int64(w)))
					data := randomFragments(rng, k, fragLen)
					parity, err := c.Encode(data)
					require.NoError(t, err)

					for _, erasures := range subsets(k+m, m) {
						fragments := make([][]byte, k+m)
						for i := 0; i < k; i++ {
							fragments[i] = append([]byte(nil), data[i]...)
						}
						for i := 0; i < m; i++ {
							fragments[k+i] = append([]byte(nil), parity[i]...)
						}
						for _, e := range erasures {
							fragments[e] = nil
						}

						decoded, err := c.Decode(fragments, erasures)
						require.NoError(t, err, "erasures %v", erasures)
						for i := 0; i < k; i++ {
							assert.True(t, bytes.Equal(data[i], decoded[i]),
								"data fragment %d after erasing %v", i, erasures)
						}
						for i := 0; i < m; i++ {
							assert.True(t, bytes.Equal(parity[i], fragments[k+i]),
								"parity fragment %d after erasing %v", i, erasures)
						}
					}
				})
			}
		}
	}
}

// The two bit techniques evaluate the same binary expansion over the
// same packet layout and must emit identical parity. The matrix
// technique works on little-endian words instead, so its parity is a
// different byte layout of the same code, and every technique must be
// able to decode the parity it produced itself.
func TestParityLayoutPerTechnique(t *testing.T) {
	const k, m, fragLen = 5, 3, 48
	f, err := galois.NewField(8)
	require.NoError(t, err)
	cm, err := coding.NewCauchy(f, k, m)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	data := randomFragments(rng, k, fragLen)

	parities := make(map[Technique][][]byte)
	for _, technique := range Techniques() {
		c, err := New(cm, technique)
		require.NoError(t, err)
		parity, err := c.Encode(data)
		require.NoError(t, err)
		parities[technique] = parity
	}

	assert.Equal(t, parities[TechniqueBitMatrix], parities[TechniqueSchedule])
	assert.NotEqual(t, parities[TechniqueMatrix], parities[TechniqueBitMatrix],
		"word and packet layouts place parity bytes differently")

	for _, technique := range Techniques() {
		c, err := New(cm, technique)
		require.NoError(t, err)

		fragments := make([][]byte, k+m)
		for i := 0; i < k; i++ {
			fragments[i] = append([]byte(nil), data[i]...)
		}
		for i := 0; i < m; i++ {
			fragments[k+i] = append([]byte(nil), parities[technique][i]...)
		}
		fragments[0], fragments[k] = nil, nil

		decoded, err := c.Decode(fragments, []int{0, k})
		require.NoError(t, err, "technique %s", technique)
		for i := 0; i < k; i++ {
			assert.True(t, bytes.Equal(data[i], decoded[i]),
				"technique %s fragment %d", technique, i)
		}
		assert.Equal(t, parities[technique][0], fragments[k],
			"technique %s rebuilt parity", technique)
	}
}

// Hand-checked scenario: GF(2^8), k=4, m=2, data words 1,2,3,4. Parity is
// computed in the test straight from the coding rows, then two fragments
// are erased and recovered.
func TestKnownScenario(t *testing.T) {
	f, err := galois.NewField(8)
	require.NoError(t, err)
	cm, err := coding.NewReedSolomon(f, 4, 2)
	require.NoError(t, err)
	c, err := New(cm, TechniqueMatrix)
	require.NoError(t, err)

	data := [][]byte{{1}, {2}, {3}, {4}}
	parity, err := c.Encode(data)
	require.NoError(t, err)

	rows := cm.CodingRows()
	for i := 0; i < 2; i++ {
		var want uint32
		for j := 0; j < 4; j++ {
			want = f.Add(want, f.Multiply(rows.At(i, j), uint32(data[j][0])))
		}
		assert.Equal(t, byte(want), parity[i][0], "parity row %d", i)
	}

	fragments := [][]byte{nil, {2}, {3}, nil, parity[0], parity[1]}
	decoded, err := c.Decode(fragments, []int{0, 3})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {2}, {3}, {4}}, decoded)
}

func TestDegenerateData(t *testing.T) {
	const k, m, fragLen = 3, 2, 16
	for _, technique := range Techniques() {
		c := newCodec(t, 8, coding.MethodReedSolomon, k, m, technique)

		zero := make([][]byte, k)
		ones := make([][]byte, k)
		for i := 0; i < k; i++ {
			zero[i] = make([]byte, fragLen)
			ones[i] = bytes.Repeat([]byte{0xFF}, fragLen)
		}

		parity, err := c.Encode(zero)
		require.NoError(t, err)
		for _, p := range parity {
			assert.Equal(t, make([]byte, fragLen), p, "zero data must give zero parity")
		}

		parity, err = c.Encode(ones)
		require.NoError(t, err)
		fragments := [][]byte{nil, ones[1], nil, parity[0], parity[1]}
		decoded, err := c.Decode(fragments, []int{0, 2})
		require.NoError(t, err)
		assert.Equal(t, ones, decoded)
	}
}

func TestEncodeValidation(t *testing.T) {
	c := newCodec(t, 8, coding.MethodReedSolomon, 3, 2, TechniqueBitMatrix)

	_, err := c.Encode([][]byte{{1}, {2}})
	assert.ErrorIs(t, err, ErrFragmentCount)

	_, err = c.Encode([][]byte{make([]byte, 8), make([]byte, 8), make([]byte, 16)})
	assert.ErrorIs(t, err, ErrBufferLengthMismatch)

	// Bit techniques need the length to split into w packets.
	_, err = c.Encode([][]byte{make([]byte, 4), make([]byte, 4), make([]byte, 4)})
	assert.ErrorIs(t, err, ErrBufferLengthMismatch)

	_, err = c.Encode([][]byte{{}, {}, {}})
	assert.ErrorIs(t, err, ErrBufferLengthMismatch)
}

func TestDecodeValidation(t *testing.T) {
	c := newCodec(t, 8, coding.MethodReedSolomon, 3, 2, TechniqueMatrix)

	data := [][]byte{{1}, {2}, {3}}
	parity, err := c.Encode(data)
	require.NoError(t, err)
	full := func() [][]byte {
		return [][]byte{{1}, {2}, {3}, append([]byte(nil), parity[0]...), append([]byte(nil), parity[1]...)}
	}

	_, err = c.Decode(full()[:4], nil)
	assert.ErrorIs(t, err, ErrFragmentCount)

	_, err = c.Decode(full(), []int{0, 1, 2})
	assert.ErrorIs(t, err, ErrTooManyErasures)

	_, err = c.Decode(full(), []int{5})
	assert.ErrorIs(t, err, ErrErasureIndex)

	_, err = c.Decode(full(), []int{-1})
	assert.ErrorIs(t, err, ErrErasureIndex)

	// Duplicates collapse to one erasure.
	fragments := full()
	fragments[1] = nil
	decoded, err := c.Decode(fragments, []int{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, decoded[1])

	// No erasures is a no-op.
	decoded, err = c.Decode(full(), nil)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	mismatched := full()
	mismatched[2] = make([]byte, 9)
	_, err = c.Decode(mismatched, []int{0})
	assert.ErrorIs(t, err, ErrBufferLengthMismatch)
}

func TestUnknownTechnique(t *testing.T) {
	f, err := galois.NewField(8)
	require.NoError(t, err)
	cm, err := coding.NewReedSolomon(f, 3, 2)
	require.NoError(t, err)

	_, err = New(cm, Technique("liberation"))
	assert.ErrorIs(t, err, ErrUnknownTechnique)
}

// The schedule technique caches decode programs per erasure pattern;
// concurrent decoders must not race on the cache.
func TestConcurrentDecode(t *testing.T) {
	const k, m, fragLen = 4, 2, 32
	c := newCodec(t, 8, coding.MethodCauchy, k, m, TechniqueSchedule)

	rng := rand.New(rand.NewSource(11))
	data := randomFragments(rng, k, fragLen)
	parity, err := c.Encode(data)
	require.NoError(t, err)

	patterns := subsets(k+m, m)
	var wg sync.WaitGroup
	errs := make([]error, len(patterns)*4)
	for round := 0; round < 4; round++ {
		for p, erasures := range patterns {
			wg.Add(1)
			go func(slot int, erasures []int) {
				defer wg.Done()
				fragments := make([][]byte, k+m)
				for i := 0; i < k; i++ {
					fragments[i] = append([]byte(nil), data[i]...)
				}
				for i := 0; i < m; i++ {
					fragments[k+i] = append([]byte(nil), parity[i]...)
				}
				for _, e := range erasures {
					fragments[e] = nil
				}
				decoded, err := c.Decode(fragments, erasures)
				if err != nil {
					errs[slot] = err
					return
				}
				for i := 0; i < k; i++ {
					if !bytes.Equal(decoded[i], data[i]) {
						errs[slot] = fmt.Errorf("fragment %d corrupt after erasing %v", i, erasures)
						return
					}
				}
			}(round*len(patterns)+p, erasures)
		}
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
