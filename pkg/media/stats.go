package media

import (
	"sort"
	"time"

	"github.com/arzzra/rtpaudio/pkg/rtp"
)

// RTPHistorySize bounds how many recently-missing sequence numbers a
// NackGenerator remembers before truncating its window, matching RFC
// 4585's recommendation to keep NACK state bounded.
const RTPHistorySize = 2000

// StreamStatistics accumulates RFC 3550 receiver-side counters for one
// incoming SSRC: sequence cycles, interarrival jitter (section A.8),
// and the stateful fraction-lost figure RTCP receiver reports carry.
type StreamStatistics struct {
	ClockRate uint32

	PacketsReceived uint64

	hasBase bool
	baseSeq uint16
	maxSeq  uint16
	cycles  uint32

	hasPrev       bool
	lastTimestamp uint32
	lastArrival   int64
	jitterQ4      uint32

	expectedPrior uint32
	receivedPrior uint64
}

// NewStreamStatistics returns an empty StreamStatistics for a stream
// sampled at clockRate Hz.
func NewStreamStatistics(clockRate uint32) *StreamStatistics {
	return &StreamStatistics{ClockRate: clockRate}
}

// Add folds one received packet into the running statistics. now is
// the local arrival time, used for the RFC 3550 jitter estimate.
func (s *StreamStatistics) Add(p *rtp.RtpPacket, now time.Time) {
	s.PacketsReceived++

	if !s.hasBase {
		s.hasBase = true
		s.baseSeq = p.SequenceNumber
		s.maxSeq = p.SequenceNumber
	} else if rtp.SeqGreater(p.SequenceNumber, s.maxSeq) {
		if p.SequenceNumber < s.maxSeq {
			s.cycles += 1 << 16
		}
		s.maxSeq = p.SequenceNumber
	}

	arrival := arrivalSamples(now, s.ClockRate)
	if s.hasPrev && p.Timestamp != s.lastTimestamp {
		d := (arrival - s.lastArrival) - int64(int32(p.Timestamp)-int32(s.lastTimestamp))
		if d < 0 {
			d = -d
		}
		s.jitterQ4 += uint32(d) - ((s.jitterQ4 + 8) >> 4)
	}
	s.lastTimestamp = p.Timestamp
	s.lastArrival = arrival
	s.hasPrev = true
}

func arrivalSamples(now time.Time, clockRate uint32) int64 {
	return now.Unix()*int64(clockRate) + int64(now.Nanosecond())*int64(clockRate)/1e9
}

// Jitter returns the RFC 3550 section A.8 interarrival jitter estimate
// in timestamp units, rounded down from the internal Q4 accumulator.
func (s *StreamStatistics) Jitter() uint32 {
	return s.jitterQ4 >> 4
}

// PacketsExpected returns cycles + max_seq - base_seq + 1.
func (s *StreamStatistics) PacketsExpected() int64 {
	if !s.hasBase {
		return 0
	}
	return int64(s.cycles) + int64(s.maxSeq) - int64(s.baseSeq) + 1
}

// PacketsLost returns the clamped signed 24-bit cumulative loss count.
func (s *StreamStatistics) PacketsLost() int32 {
	return rtp.ClampPacketsLost(s.PacketsExpected() - int64(s.PacketsReceived))
}

// BaseSeq and MaxSeq expose the raw sequence bookkeeping for SR/RR
// construction.
func (s *StreamStatistics) BaseSeq() uint16 { return s.baseSeq }
func (s *StreamStatistics) MaxSeq() uint16  { return s.maxSeq }

// FractionLost computes the interval loss fraction since the previous
// call, as an 8-bit fixed-point value suitable for an RTCP receiver
// report, and updates the interval bookkeeping.
func (s *StreamStatistics) FractionLost() uint8 {
	expected := s.PacketsExpected()
	expectedInterval := uint32(expected) - s.expectedPrior
	receivedInterval := s.PacketsReceived - s.receivedPrior
	s.expectedPrior = uint32(expected)
	s.receivedPrior = s.PacketsReceived

	lostInterval := int64(expectedInterval) - int64(receivedInterval)
	if expectedInterval == 0 || lostInterval <= 0 {
		return 0
	}
	return uint8((lostInterval << 8) / int64(expectedInterval))
}

// NackGenerator tracks which sequence numbers in the recent window
// have been received, so a generic NACK (RFC 4585) can be formed from
// whatever remains missing.
type NackGenerator struct {
	hasMax  bool
	maxSeq  uint16
	missing map[uint16]struct{}
}

// NewNackGenerator returns an empty NackGenerator.
func NewNackGenerator() *NackGenerator {
	return &NackGenerator{missing: make(map[uint16]struct{})}
}

// Add folds a newly-received sequence number into the tracker and
// reports whether at least one new gap was detected.
func (n *NackGenerator) Add(seq uint16) bool {
	newlyMissing := false

	if !n.hasMax {
		n.hasMax = true
		n.maxSeq = seq
	} else if rtp.SeqGreater(seq, n.maxSeq) {
		for s := rtp.SeqAdd(n.maxSeq, 1); s != seq; s = rtp.SeqAdd(s, 1) {
			n.missing[s] = struct{}{}
			newlyMissing = true
		}
		n.maxSeq = seq
	} else {
		delete(n.missing, seq)
	}

	n.truncate()
	return newlyMissing
}

func (n *NackGenerator) truncate() {
	low := rtp.SeqAdd(n.maxSeq, -(RTPHistorySize - 1))
	for s := range n.missing {
		if !inWindow(s, low, n.maxSeq) {
			delete(n.missing, s)
		}
	}
}

func inWindow(s, low, high uint16) bool {
	return rtp.SeqDiff(s, low) >= 0 && rtp.SeqDiff(high, s) >= 0
}

// Missing returns the currently-missing sequence numbers in ascending
// modular order starting from the low end of the retained window.
func (n *NackGenerator) Missing() []uint16 {
	out := make([]uint16, 0, len(n.missing))
	for s := range n.missing {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return rtp.SeqDiff(out[i], n.maxSeq) < rtp.SeqDiff(out[j], n.maxSeq)
	})
	return out
}
