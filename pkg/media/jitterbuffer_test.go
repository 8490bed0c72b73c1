package media

import (
	"testing"

	"github.com/arzzra/rtpaudio/pkg/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkt(seq uint16, ts uint32, payload string) *rtp.RtpPacket {
	return &rtp.RtpPacket{SequenceNumber: seq, Timestamp: ts, Payload: []byte(payload)}
}

func TestJitterBufferOrderedInsert(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0})
	require.NoError(t, err)

	pli, frame := b.Add(pkt(10, 100, "a"))
	assert.False(t, pli)
	assert.Nil(t, frame)

	pli, frame = b.Add(pkt(11, 200, "b"))
	assert.False(t, pli)
	require.NotNil(t, frame)
	assert.Equal(t, []byte("a"), frame.Data)
	assert.Equal(t, uint32(100), frame.Timestamp)
}

func TestJitterBufferUnorderedInsert(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0})
	require.NoError(t, err)

	_, _ = b.Add(pkt(10, 100, "a"))
	_, frame := b.Add(pkt(12, 300, "c"))
	assert.Nil(t, frame, "seq 11 still missing, no boundary reachable yet")

	_, frame = b.Add(pkt(11, 200, "b"))
	require.NotNil(t, frame)
	assert.Equal(t, []byte("a"), frame.Data)
}

func TestJitterBufferTooOldDrop(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 16, Prefetch: 0})
	require.NoError(t, err)

	_, _ = b.Add(pkt(100, 1000, "a"))
	pli, frame := b.Add(pkt(90, 900, "old"))
	assert.False(t, pli)
	assert.Nil(t, frame)
	assert.Equal(t, uint16(100), b.origin)
	assert.Nil(t, b.get(90))
}

func TestJitterBufferFarJumpResets(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0})
	require.NoError(t, err)

	_, _ = b.Add(pkt(10, 100, "a"))
	pli, frame := b.Add(pkt(10+4*16+1, 9999, "jump"))
	assert.False(t, pli, "non-video buffer never signals PLI")
	assert.Nil(t, frame)
	assert.Equal(t, uint16(10+4*16+1), b.origin)
	assert.Nil(t, b.get(10))
}

func TestJitterBufferTooHighAdvanceDiscards(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0, IsVideo: true})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 100, "0"))
	_, _ = b.Add(pkt(1, 100, "1"))
	_, _ = b.Add(pkt(2, 100, "2"))
	_, _ = b.Add(pkt(3, 200, "3"))

	pli, _ := b.Add(pkt(10, 300, "a"))
	assert.True(t, pli, "video buffer signals PLI when packets are discarded")
	assert.Nil(t, b.get(0))
	assert.Nil(t, b.get(1))
	assert.NotNil(t, b.get(10))
}

func TestJitterBufferTooHighAdvanceKeepsOnlyRetainedRun(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0, IsVideo: true})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 1234, "0"))
	_, _ = b.Add(pkt(2, 1234, "2"))
	_, _ = b.Add(pkt(3, 1235, "3"))

	pli, frame := b.Add(pkt(4, 1235, "4"))
	assert.True(t, pli)
	assert.Nil(t, frame, "run at seq 5 is still missing")
	assert.Equal(t, uint16(3), b.origin, "origin must land on an occupied slot, not an unfillable gap")
	assert.Nil(t, b.get(0))
	assert.Nil(t, b.get(2), "seq 2 belongs to an older, now-unrecoverable timestamp run")
	require.NotNil(t, b.get(3))
	require.NotNil(t, b.get(4))
}

func TestJitterBufferAudioPrefetch(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 16, Prefetch: 2})
	require.NoError(t, err)

	_, frame := b.Add(pkt(0, 100, "f0"))
	assert.Nil(t, frame)
	_, frame = b.Add(pkt(1, 200, "f1"))
	assert.Nil(t, frame, "only one boundary seen so far, prefetch wants two")
	_, frame = b.Add(pkt(2, 300, "f2"))
	require.NotNil(t, frame, "second boundary reached, head now emits")
	assert.Equal(t, []byte("f0"), frame.Data)
}

func TestJitterBufferVideoFrameConcatenation(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 128, Prefetch: 0, IsVideo: true})
	require.NoError(t, err)

	_, frame := b.Add(pkt(0, 1000, "aaa"))
	assert.Nil(t, frame)
	_, frame = b.Add(pkt(1, 1000, "bbb"))
	assert.Nil(t, frame)
	_, frame = b.Add(pkt(2, 1000, "ccc"))
	assert.Nil(t, frame, "run is not known complete until a differing-timestamp packet arrives")
	_, frame = b.Add(pkt(3, 2000, "next"))
	require.NotNil(t, frame)
	assert.Equal(t, []byte("aaabbbccc"), frame.Data)
	assert.Equal(t, uint32(1000), frame.Timestamp)
}

func TestJitterBufferSkipAudioGaps(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 16, Prefetch: 1, SkipAudioGaps: true, MaxAudioGap: 3})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 100, "f0"))
	// seq 1 lost
	_, frame := b.Add(pkt(2, 200, "f2"))
	require.NotNil(t, frame, "single gap within MaxAudioGap still reaches the prefetch boundary")
	assert.Equal(t, []byte("f0"), frame.Data)
}

func TestJitterBufferRemove(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 100, "a"))
	_, _ = b.Add(pkt(1, 200, "b"))
	b.Remove(1)
	assert.Nil(t, b.get(0))
	assert.Equal(t, uint16(1), b.origin)
}

func TestJitterBufferSmartRemove(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 100, "a"))
	_, _ = b.Add(pkt(2, 300, "c"))
	b.SmartRemove(1)
	assert.Equal(t, uint16(2), b.origin, "smart remove skips over the empty slot left by the loss")
}

func TestJitterBufferPLIFlagNonVideo(t *testing.T) {
	b, err := NewJitterBuffer(JitterBufferConfig{Capacity: 4, Prefetch: 0, IsVideo: false})
	require.NoError(t, err)

	_, _ = b.Add(pkt(0, 100, "a"))
	_, _ = b.Add(pkt(1, 100, "b"))
	_, _ = b.Add(pkt(2, 100, "c"))
	_, _ = b.Add(pkt(3, 200, "d"))

	pli, _ := b.Add(pkt(10, 300, "a"))
	assert.False(t, pli, "only video buffers ever request a PLI")
}
