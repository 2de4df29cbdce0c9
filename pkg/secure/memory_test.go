package secure

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	data := []byte("sensitive data to be zeroed")
	original := make([]byte, len(data))
	copy(original, data)

	Zero(data)

	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
	assert.NotEqual(t, original, data)
}

func TestRandomOverwrite(t *testing.T) {
	data := []byte("data to be overwritten")

	err := RandomOverwrite(data)
	require.NoError(t, err)

	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("test data")
	b := []byte("test data")
	c := []byte("different")
	d := []byte("test dat")

	assert.True(t, ConstantTimeCompare(a, b))
	assert.False(t, ConstantTimeCompare(a, c))
	assert.False(t, ConstantTimeCompare(a, d))
	assert.False(t, ConstantTimeCompare(a, []byte{}))
}

func TestConstantTimeCopy(t *testing.T) {
	src := []byte("source data")
	dst := make([]byte, len(src))

	ConstantTimeCopy(dst, src)
	assert.Equal(t, src, dst)

	assert.Panics(t, func() {
		ConstantTimeCopy(make([]byte, 5), src)
	})
}

func TestSecureRandom(t *testing.T) {
	sizes := []int{16, 32, 64, 128}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("size%d", size), func(t *testing.T) {
			data, err := SecureRandom(size)
			require.NoError(t, err)
			assert.Len(t, data, size)

			data2, err := SecureRandom(size)
			require.NoError(t, err)
			assert.NotEqual(t, data, data2, "Random data should be different")
		})
	}

	_, err := SecureRandom(0)
	assert.NoError(t, err)
}

func BenchmarkZero(b *testing.B) {
	data := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Zero(data)
	}
}

func BenchmarkConstantTimeCompare(b *testing.B) {
	a := bytes.Repeat([]byte{0x42}, 32)
	b1 := bytes.Repeat([]byte{0x42}, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ConstantTimeCompare(a, b1)
	}
}
