package media

import (
	"testing"
	"time"

	"github.com/arzzra/rtpaudio/pkg/rtp"
	"github.com/stretchr/testify/assert"
)

func TestStreamStatisticsBasic(t *testing.T) {
	s := NewStreamStatistics(8000)
	base := time.Unix(1000, 0)

	s.Add(&rtp.RtpPacket{SequenceNumber: 100, Timestamp: 1000}, base)
	s.Add(&rtp.RtpPacket{SequenceNumber: 101, Timestamp: 1160}, base.Add(20*time.Millisecond))
	s.Add(&rtp.RtpPacket{SequenceNumber: 102, Timestamp: 1320}, base.Add(40*time.Millisecond))

	assert.Equal(t, uint64(3), s.PacketsReceived)
	assert.Equal(t, uint16(100), s.BaseSeq())
	assert.Equal(t, uint16(102), s.MaxSeq())
	assert.Equal(t, int64(3), s.PacketsExpected())
	assert.Equal(t, int32(0), s.PacketsLost())
}

func TestStreamStatisticsWraparound(t *testing.T) {
	s := NewStreamStatistics(8000)
	now := time.Unix(1000, 0)

	s.Add(&rtp.RtpPacket{SequenceNumber: 65534, Timestamp: 0}, now)
	s.Add(&rtp.RtpPacket{SequenceNumber: 65535, Timestamp: 160}, now)
	s.Add(&rtp.RtpPacket{SequenceNumber: 0, Timestamp: 320}, now)
	s.Add(&rtp.RtpPacket{SequenceNumber: 1, Timestamp: 480}, now)

	assert.Equal(t, uint16(1), s.MaxSeq())
	assert.Equal(t, int64(4), s.PacketsExpected())
}

func TestStreamStatisticsPacketsLostWithGap(t *testing.T) {
	s := NewStreamStatistics(8000)
	now := time.Unix(1000, 0)

	s.Add(&rtp.RtpPacket{SequenceNumber: 0, Timestamp: 0}, now)
	s.Add(&rtp.RtpPacket{SequenceNumber: 5, Timestamp: 800}, now)

	assert.Equal(t, int64(6), s.PacketsExpected())
	assert.Equal(t, int32(4), s.PacketsLost())
}

func TestStreamStatisticsFractionLostStateful(t *testing.T) {
	s := NewStreamStatistics(8000)
	now := time.Unix(1000, 0)

	s.Add(&rtp.RtpPacket{SequenceNumber: 0, Timestamp: 0}, now)
	assert.Equal(t, uint8(0), s.FractionLost())

	s.Add(&rtp.RtpPacket{SequenceNumber: 3, Timestamp: 480}, now)
	// expected_interval=3, received_interval=1 -> lost=2 -> (2<<8)/3 = 170
	assert.Equal(t, uint8(170), s.FractionLost())

	assert.Equal(t, uint8(0), s.FractionLost(), "no change since previous call means zero loss")
}

func TestStreamStatisticsJitterAccumulates(t *testing.T) {
	s := NewStreamStatistics(8000)
	now := time.Unix(1000, 0)

	s.Add(&rtp.RtpPacket{SequenceNumber: 0, Timestamp: 0}, now)
	s.Add(&rtp.RtpPacket{SequenceNumber: 1, Timestamp: 160}, now.Add(25*time.Millisecond))
	assert.Greater(t, s.Jitter(), uint32(0))
}

func TestNackGeneratorDetectsGap(t *testing.T) {
	n := NewNackGenerator()

	assert.False(t, n.Add(0))
	assert.True(t, n.Add(3), "seqs 1 and 2 are newly missing")
	assert.ElementsMatch(t, []uint16{1, 2}, n.Missing())
}

func TestNackGeneratorFillsGapLater(t *testing.T) {
	n := NewNackGenerator()

	n.Add(0)
	n.Add(3)
	assert.False(t, n.Add(1), "seq 1 arriving late is not newly missing, it fills a gap")
	assert.ElementsMatch(t, []uint16{2}, n.Missing())
}

func TestNackGeneratorTruncatesWindow(t *testing.T) {
	n := NewNackGenerator()
	n.Add(0)
	n.Add(uint16(RTPHistorySize + 100))
	for _, s := range n.Missing() {
		assert.True(t, inWindow(s, rtp.SeqAdd(n.maxSeq, -(RTPHistorySize-1)), n.maxSeq))
	}
}
