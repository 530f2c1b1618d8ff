package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferReadWrite(t *testing.T) {
	b := New(16)
	require.Equal(t, 16, b.Len())

	b.Write(0, []byte{1, 2, 3, 4})

	out := make([]byte, 4)
	b.Read(0, out)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestBufferGrow(t *testing.T) {
	b := New(4)
	b.Grow(32)
	assert.Equal(t, 32, b.Len())

	// growing to a smaller size is a no-op
	b.Grow(8)
	assert.Equal(t, 32, b.Len())
}

func TestBufferOutOfRangePanics(t *testing.T) {
	b := New(4)
	assert.Panics(t, func() {
		b.Write(0, make([]byte, 8))
	})
}
