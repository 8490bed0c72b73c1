//go:build opus

package media

import (
	"fmt"

	"github.com/pion/opus"
)

// PayloadTypeOpus is the conventional dynamic payload type this
// package assigns Opus when the opus build tag is compiled in; callers
// negotiating a different dynamic PT re-register under that value.
const PayloadTypeOpus = 111

// OpusCodec decodes Opus payloads with pion/opus, a pure-Go decoder.
// pion/opus ships no encoder, so Encode degrades to an error: callers
// that need to originate Opus must supply payloads already encoded
// upstream (e.g. from a hardware or cgo encoder) and send them as raw
// frames rather than through this codec's Encode path.
type OpusCodec struct {
	decoder *opus.Decoder
}

// NewOpusCodec returns an Opus codec at the standard 48kHz clock rate.
func NewOpusCodec() *OpusCodec {
	d := opus.NewDecoder()
	return &OpusCodec{decoder: &d}
}

func (c *OpusCodec) ClockRate() uint32 { return 48000 }

func (c *OpusCodec) Encode([]int16) ([]byte, error) {
	return nil, fmt.Errorf("media: opus encoding is not supported by the pure-Go decoder-only codec")
}

func (c *OpusCodec) Decode(payload []byte) ([]int16, error) {
	// 5760 samples is the max frame size at 48kHz/120ms (RFC 6716);
	// stereo output interleaves two channels per sample, hence *2*2 bytes.
	out := make([]byte, 5760*2*2)
	_, isStereo, err := c.decoder.Decode(payload, out)
	if err != nil {
		return nil, fmt.Errorf("media: opus decode: %w", err)
	}

	sampleCount := len(out) / 2
	if isStereo {
		sampleCount /= 2
	}
	samples := make([]int16, sampleCount)
	for i := range samples {
		samples[i] = int16(out[i*2]) | int16(out[i*2+1])<<8
	}
	return samples, nil
}

func init() {
	RegisterCodec(PayloadTypeOpus, func() Codec { return NewOpusCodec() })
}
