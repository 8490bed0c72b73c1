package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortAllocatorRejectsOddMin(t *testing.T) {
	_, err := NewPortAllocator(20001, 20010, "127.0.0.1")
	assert.Error(t, err)
}

func TestPortAllocatorAllocateRelease(t *testing.T) {
	a, err := NewPortAllocator(30000, 30020, "127.0.0.1")
	require.NoError(t, err)

	rtp1, rtcp1, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, rtp1+1, rtcp1)
	assert.Equal(t, 0, rtp1%2)

	rtp2, _, err := a.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, rtp1, rtp2)

	a.Release(rtp1)
	rtp3, _, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, rtp1, rtp3, "releasing the first pair makes it reusable again")
}

func TestPortAllocatorExhausted(t *testing.T) {
	a, err := NewPortAllocator(30100, 30102, "127.0.0.1")
	require.NoError(t, err)

	_, _, err = a.Allocate()
	require.NoError(t, err)

	_, _, err = a.Allocate()
	assert.Error(t, err)
}
