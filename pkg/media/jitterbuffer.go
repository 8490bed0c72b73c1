package media

import (
	"fmt"

	"github.com/arzzra/rtpaudio/pkg/rtp"
)

// DefaultMaxAudioGap is the largest run of consecutive missing packets
// skip_audio_gaps will scan past before giving up on the current frame
// boundary.
const DefaultMaxAudioGap = 3

// JitterFrame is one decoded-ready unit handed to the application: a
// single packet's payload for audio, or the concatenated payloads of a
// contiguous same-timestamp run for video.
type JitterFrame struct {
	Data      []byte
	Timestamp uint32
}

// JitterBufferConfig configures a JitterBuffer. Capacity is the number
// of RTP sequence-number slots held at once; it must be a small power
// of two for audio (e.g. 16) and large enough to span a GOP for video
// (e.g. 128+).
type JitterBufferConfig struct {
	Capacity      int
	Prefetch      int
	IsVideo       bool
	SkipAudioGaps bool
	MaxAudioGap   int
}

// JitterBuffer reorders RTP packets into timestamp-ordered frames,
// dropping stale duplicates and resetting on large forward or backward
// sequence jumps (a suspected stream restart).
type JitterBuffer struct {
	capacity      int
	prefetch      int
	isVideo       bool
	skipAudioGaps bool
	maxAudioGap   int

	hasOrigin bool
	origin    uint16
	slots     []*rtp.RtpPacket
}

// NewJitterBuffer validates cfg and returns an empty buffer.
func NewJitterBuffer(cfg JitterBufferConfig) (*JitterBuffer, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("media: jitter buffer capacity must be positive")
	}
	if cfg.MaxAudioGap == 0 {
		cfg.MaxAudioGap = DefaultMaxAudioGap
	}
	return &JitterBuffer{
		capacity:      cfg.Capacity,
		prefetch:      cfg.Prefetch,
		isVideo:       cfg.IsVideo,
		skipAudioGaps: cfg.SkipAudioGaps,
		maxAudioGap:   cfg.MaxAudioGap,
		slots:         make([]*rtp.RtpPacket, cfg.Capacity),
	}, nil
}

func (b *JitterBuffer) slotFor(seq uint16) int {
	return int(seq) % b.capacity
}

func (b *JitterBuffer) set(p *rtp.RtpPacket) {
	b.slots[b.slotFor(p.SequenceNumber)] = p
}

func (b *JitterBuffer) get(seq uint16) *rtp.RtpPacket {
	p := b.slots[b.slotFor(seq)]
	if p != nil && p.SequenceNumber == seq {
		return p
	}
	return nil
}

func (b *JitterBuffer) clearAll() {
	for i := range b.slots {
		b.slots[i] = nil
	}
}

// Add inserts a received packet and reports whether a picture-loss
// indication should be requested (video only, on discard) along with
// any frame that became ready for delivery as a result.
func (b *JitterBuffer) Add(p *rtp.RtpPacket) (pliNeeded bool, frame *JitterFrame) {
	if !b.hasOrigin {
		b.hasOrigin = true
		b.origin = p.SequenceNumber
		b.set(p)
		return false, b.tryEmit()
	}

	d := rtp.SeqDiff(p.SequenceNumber, b.origin)
	resetThreshold := int32(b.capacity) * 16

	if d > resetThreshold || d < -resetThreshold {
		b.clearAll()
		b.origin = p.SequenceNumber
		b.set(p)
		return b.isVideo, nil
	}

	if d < 0 {
		tooSmallToReset := int32(b.capacity) < 128
		if tooSmallToReset || -d < int32(b.capacity) {
			return false, nil // drop silently, too old but within recent history
		}
		// Large-enough backward jump for a wide (video) window that the
		// new packet cannot coexist with the current window: treat the
		// same as a forward reset.
		b.clearAll()
		b.origin = p.SequenceNumber
		b.set(p)
		return b.isVideo, nil
	}

	if d >= int32(b.capacity) {
		b.set(p)

		// Find the true retained floor by walking backward from the new
		// packet through slots that are still sequence-contiguous (and,
		// for video, share its timestamp run). Anything older is either
		// unreachable or belongs to a now-unrecoverable partial frame;
		// a blind `seq-capacity+1` floor can park origin on a slot that
		// was never (and can never be) filled, stalling emission forever.
		retainFloor := p.SequenceNumber
		lastTimestamp := p.Timestamp
		for i := int32(1); i < int32(b.capacity); i++ {
			candidate := rtp.SeqAdd(p.SequenceNumber, -i)
			pkt := b.get(candidate)
			if pkt == nil {
				break
			}
			if b.isVideo && pkt.Timestamp != lastTimestamp {
				break
			}
			retainFloor = candidate
			lastTimestamp = pkt.Timestamp
		}

		discarded := false
		for _, s := range b.slots {
			if s == nil {
				continue
			}
			rel := rtp.SeqDiff(s.SequenceNumber, retainFloor)
			if rel < 0 || rel >= int32(b.capacity) {
				b.slots[b.slotFor(s.SequenceNumber)] = nil
				discarded = true
			}
		}
		b.origin = retainFloor
		return b.isVideo && discarded, b.tryEmit()
	}

	b.set(p)
	return false, b.tryEmit()
}

func (b *JitterBuffer) tryEmit() *JitterFrame {
	if b.isVideo {
		return b.tryEmitVideo()
	}
	return b.tryEmitAudio()
}

// tryEmitAudio emits the head packet as soon as `prefetch` subsequent
// frame boundaries have been observed, per spec.md 4.2. The first
// boundary after the head is always waited for, so a prefetch of 0
// behaves like a prefetch of 1 unless the whole window shares the
// head's timestamp.
func (b *JitterBuffer) tryEmitAudio() *JitterFrame {
	head := b.get(b.origin)
	if head == nil {
		if !b.skipAudioGaps {
			return nil
		}
		return b.skipAudioGap()
	}

	boundaries := 0
	prevTs := head.Timestamp
	consecutiveGap := 0

	for i := 1; i < b.capacity; i++ {
		seq := rtp.SeqAdd(b.origin, int32(i))
		pkt := b.get(seq)
		if pkt == nil {
			if !b.skipAudioGaps {
				return nil
			}
			consecutiveGap++
			if consecutiveGap > b.maxAudioGap {
				return nil
			}
			continue
		}
		if pkt.Timestamp != prevTs {
			boundaries++
			prevTs = pkt.Timestamp
			consecutiveGap = 0
			if boundaries >= b.prefetch {
				break
			}
			continue
		}
		consecutiveGap = 0
	}

	if boundaries < b.prefetch {
		return nil
	}

	frame := &JitterFrame{Data: head.Payload, Timestamp: head.Timestamp}
	b.slots[b.slotFor(b.origin)] = nil
	b.origin = rtp.SeqAdd(b.origin, 1)
	return frame
}

// skipAudioGap handles the head slot itself being missing: scan
// forward for the next present packet (bounded by maxAudioGap) and, if
// found, treat the gap as the frame boundary that lets the *previous*
// logical head region be skipped. Because the head is empty there is
// nothing to emit yet; advance origin past the gap so future inserts
// do not keep re-scanning it.
func (b *JitterBuffer) skipAudioGap() *JitterFrame {
	for i := 1; i <= b.maxAudioGap+1 && i < b.capacity; i++ {
		seq := rtp.SeqAdd(b.origin, int32(i))
		if b.get(seq) != nil {
			b.origin = seq
			return nil
		}
	}
	return nil
}

// tryEmitVideo emits the contiguous same-timestamp run starting at
// origin, concatenating payloads in sequence order, terminated by the
// first slot with a different timestamp. A missing packet before that
// slot blocks emission.
func (b *JitterBuffer) tryEmitVideo() *JitterFrame {
	head := b.get(b.origin)
	if head == nil {
		return nil
	}

	var data []byte
	last := b.origin
	for i := 0; i < b.capacity; i++ {
		seq := rtp.SeqAdd(b.origin, int32(i))
		pkt := b.get(seq)
		if pkt == nil {
			return nil // missing packet inside the run blocks emission
		}
		if pkt.Timestamp != head.Timestamp {
			break
		}
		data = append(data, pkt.Payload...)
		last = seq
	}
	if len(data) == 0 {
		return nil
	}

	// Only emit once the run is known to be complete: the slot after
	// `last` must either be empty (nothing beyond yet) or carry a
	// different timestamp.
	next := b.get(rtp.SeqAdd(last, 1))
	if next != nil && next.Timestamp == head.Timestamp {
		return nil
	}

	frame := &JitterFrame{Data: data, Timestamp: head.Timestamp}
	b.smartRemoveLocked(int(rtp.SeqDiff(last, b.origin)) + 1)
	return frame
}

// Remove clears the first n slots and advances origin by n.
func (b *JitterBuffer) Remove(n int) {
	for i := 0; i < n; i++ {
		b.slots[b.slotFor(b.origin)] = nil
		b.origin = rtp.SeqAdd(b.origin, 1)
	}
}

// SmartRemove advances origin past n packets and any trailing empty
// slots representing losses, as used after a frame emission.
func (b *JitterBuffer) SmartRemove(n int) {
	b.smartRemoveLocked(n)
}

func (b *JitterBuffer) smartRemoveLocked(n int) {
	b.Remove(n)
	for i := 0; i < b.capacity && b.get(b.origin) == nil; i++ {
		b.origin = rtp.SeqAdd(b.origin, 1)
	}
}
