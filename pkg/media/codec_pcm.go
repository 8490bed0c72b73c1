package media

import "encoding/binary"

// L16Codec implements RFC 3551 L16: linear PCM carried big-endian on
// the wire, native int16 once decoded. No third-party library covers
// this — it is a direct byte-order swap, not a codec in any meaningful
// sense, so encoding/binary is the right tool rather than a dependency.
type L16Codec struct {
	clockRate uint32
}

// NewL16Codec returns an L16 codec for the given clock rate.
func NewL16Codec(clockRate uint32) *L16Codec {
	return &L16Codec{clockRate: clockRate}
}

func (c *L16Codec) ClockRate() uint32 { return c.clockRate }

func (c *L16Codec) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.BigEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

func (c *L16Codec) Decode(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(payload[i*2:]))
	}
	return out, nil
}
