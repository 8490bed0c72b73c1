package media

import "github.com/zaf/g711"

// PCMUCodec implements RFC 3551 PCMU (G.711 mu-law) at 8kHz.
type PCMUCodec struct{}

// NewPCMUCodec returns a ready-to-use mu-law codec.
func NewPCMUCodec() *PCMUCodec { return &PCMUCodec{} }

func (c *PCMUCodec) ClockRate() uint32 { return 8000 }

func (c *PCMUCodec) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = g711.EncodeUlawFrame(s)
	}
	return out, nil
}

func (c *PCMUCodec) Decode(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = g711.DecodeUlawFrame(b)
	}
	return out, nil
}

// PCMACodec implements RFC 3551 PCMA (G.711 A-law) at 8kHz.
type PCMACodec struct{}

// NewPCMACodec returns a ready-to-use A-law codec.
func NewPCMACodec() *PCMACodec { return &PCMACodec{} }

func (c *PCMACodec) ClockRate() uint32 { return 8000 }

func (c *PCMACodec) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = g711.EncodeAlawFrame(s)
	}
	return out, nil
}

func (c *PCMACodec) Decode(payload []byte) ([]int16, error) {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = g711.DecodeAlawFrame(b)
	}
	return out, nil
}
