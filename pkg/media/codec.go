package media

import "fmt"

// Codec converts between wire payload bytes and linear PCM samples
// (signed 16-bit, native endianness once decoded) for one RTP payload
// type.
type Codec interface {
	// Encode converts linear PCM samples to wire bytes.
	Encode(pcm []int16) ([]byte, error)
	// Decode converts wire bytes back to linear PCM samples.
	Decode(payload []byte) ([]int16, error)
	// ClockRate is the RTP clock rate associated with this codec, in Hz.
	ClockRate() uint32
}

var registry = map[uint8]func() Codec{}

// RegisterCodec adds a codec constructor to the default registry under
// a payload type: static RFC 3551 types for the built-in codecs, a
// dynamic type for codecs compiled in behind a build tag (e.g. Opus at
// 111), which call this from their own init().
func RegisterCodec(payloadType uint8, ctor func() Codec) {
	registry[payloadType] = ctor
}

// CodecForPayloadType looks up a registered codec constructor and
// instantiates it, or reports an error if none is registered.
func CodecForPayloadType(pt uint8) (Codec, error) {
	ctor, ok := registry[pt]
	if !ok {
		return nil, fmt.Errorf("media: no codec registered for payload type %d", pt)
	}
	return ctor(), nil
}

func init() {
	RegisterCodec(PayloadTypePCMU, func() Codec { return NewPCMUCodec() })
	RegisterCodec(PayloadTypePCMA, func() Codec { return NewPCMACodec() })
	RegisterCodec(PayloadTypeL16, func() Codec { return NewL16Codec(8000) })
}

// RFC 3551 static payload type assignments this package ships codecs for.
const (
	PayloadTypePCMU = 0
	PayloadTypePCMA = 8
	PayloadTypeL16  = 11
)
