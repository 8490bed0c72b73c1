package rtp

import "fmt"

// Well-known RFC 8285 header extension URIs that HeaderExtensions gives
// typed access to once the corresponding local id is registered with an
// ExtensionMap.
const (
	URIAudioLevel              = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"
	URITransmissionOffset      = "urn:ietf:params:rtp-hdrext:toffset"
	URIAbsSendTime             = "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"
	URITransportSequenceNumber = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
	URIMID                     = "urn:ietf:params:rtp-hdrext:sdes:mid"
	URIVideoRotation           = "urn:3gpp:video-orientation"
	URIPlayoutDelay            = "http://www.webrtc.org/experiments/rtp-hdrext/playout-delay"
	URIRtpStreamID             = "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id"
	URIRepairedRtpStreamID     = "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id"

	oneByteProfile = 0xBEDE
)

// isTwoByteProfile reports whether profile falls in the RFC 8285
// two-byte-form range 0x1000-0x100F.
func isTwoByteProfile(profile uint16) bool {
	return profile&0xFFF0 == 0x1000
}

// RawExtension is a single (local id, value) pair as it appears on the
// wire, before any semantic interpretation.
type RawExtension struct {
	ID    uint8
	Value []byte
}

// ExtensionMap assigns well-known extension URIs to the local ids a
// particular session negotiated, mirroring the original aiortp
// HeaderExtensionsMap. An unconfigured id is preserved verbatim as an
// opaque RawExtension in HeaderExtensions.Extra.
type ExtensionMap struct {
	idToURI map[uint8]string
	uriToID map[string]uint8
}

// NewExtensionMap returns an empty map.
func NewExtensionMap() *ExtensionMap {
	return &ExtensionMap{idToURI: map[uint8]string{}, uriToID: map[string]uint8{}}
}

// Configure registers one (local id, URI) pairing. Call once per
// negotiated extension.
func (m *ExtensionMap) Configure(id uint8, uri string) {
	m.idToURI[id] = uri
	m.uriToID[uri] = id
}

// AudioLevelExtension carries the RFC 6464 client-to-mixer audio level.
type AudioLevelExtension struct {
	Voice bool
	Level uint8 // 0-127, -dBov
}

// PlayoutDelayExtension carries the two 12-bit delay bounds of the
// abs-playout-delay extension, in units of 10ms.
type PlayoutDelayExtension struct {
	Min uint16
	Max uint16
}

// HeaderExtensions is the typed view of an RTP packet's RFC 8285
// extensions: well-known URIs get a named field, everything else is
// preserved in Extra for lossless round-tripping.
type HeaderExtensions struct {
	AudioLevel              *AudioLevelExtension
	TransmissionOffset      *int32
	AbsSendTime             *uint32
	TransportSequenceNumber *uint16
	VideoRotation           *uint8
	PlayoutDelay            *PlayoutDelayExtension
	MID                     string
	RtpStreamID             string
	RepairedRtpStreamID     string
	Extra                   []RawExtension
}

// Empty reports whether no extension of any kind is present.
func (h HeaderExtensions) Empty() bool {
	return h.AudioLevel == nil && h.TransmissionOffset == nil && h.AbsSendTime == nil &&
		h.TransportSequenceNumber == nil && h.VideoRotation == nil && h.PlayoutDelay == nil &&
		h.MID == "" && h.RtpStreamID == "" && h.RepairedRtpStreamID == "" && len(h.Extra) == 0
}

// unpackHeaderExtensions splits the raw extension block of an RTP
// packet into (id, value) pairs, following the RFC 8285 one-byte
// (profile 0xBEDE) or two-byte (profile 0x1000-0x100F) encoding. A
// profile of 0 (no extension present) yields an empty, error-free
// result.
func unpackHeaderExtensions(profile uint16, data []byte) ([]RawExtension, error) {
	var out []RawExtension
	switch {
	case profile == 0:
		return nil, nil
	case profile == oneByteProfile:
		i := 0
		for i < len(data) {
			b := data[i]
			if b == 0 {
				i++
				continue
			}
			id := b >> 4
			length := int(b&0x0F) + 1
			i++
			if id == 15 {
				break
			}
			if i+length > len(data) {
				return nil, fmt.Errorf("%w: one-byte header extension value is truncated", ErrTruncatedExtension)
			}
			out = append(out, RawExtension{ID: id, Value: data[i : i+length]})
			i += length
		}
		return out, nil
	case isTwoByteProfile(profile):
		i := 0
		for i < len(data) {
			if data[i] == 0 {
				i++
				continue
			}
			if i+2 > len(data) {
				return nil, fmt.Errorf("%w: two-byte header extension is truncated", ErrTruncatedExtension)
			}
			id := data[i]
			length := int(data[i+1])
			i += 2
			if i+length > len(data) {
				return nil, fmt.Errorf("%w: two-byte header extension value is truncated", ErrTruncatedExtension)
			}
			out = append(out, RawExtension{ID: id, Value: data[i : i+length]})
			i += length
		}
		return out, nil
	default:
		return nil, nil
	}
}

// packHeaderExtensions encodes a list of (id, value) pairs back into an
// RFC 8285 extension block, choosing the one-byte form unless any id
// exceeds 14 or any value exceeds 16 bytes, in which case the two-byte
// form is used. The body is zero-padded to a 4-byte boundary.
func packHeaderExtensions(pairs []RawExtension) (uint16, []byte) {
	if len(pairs) == 0 {
		return 0, nil
	}

	twoByte := false
	for _, p := range pairs {
		if p.ID > 14 || len(p.Value) > 16 {
			twoByte = true
			break
		}
	}

	var body []byte
	if twoByte {
		for _, p := range pairs {
			body = append(body, p.ID, byte(len(p.Value)))
			body = append(body, p.Value...)
		}
	} else {
		for _, p := range pairs {
			body = append(body, (p.ID<<4)|byte(len(p.Value)-1))
			body = append(body, p.Value...)
		}
	}
	for len(body)%4 != 0 {
		body = append(body, 0)
	}

	if twoByte {
		return 0x1000, body
	}
	return oneByteProfile, body
}

// decodeExtensions applies an ExtensionMap to raw (id, value) pairs,
// populating the typed fields of HeaderExtensions and leaving anything
// unmapped in Extra.
func decodeExtensions(raw []RawExtension, m *ExtensionMap) HeaderExtensions {
	var h HeaderExtensions
	for _, r := range raw {
		uri := ""
		if m != nil {
			uri = m.idToURI[r.ID]
		}
		switch uri {
		case URIAudioLevel:
			if len(r.Value) >= 1 {
				h.AudioLevel = &AudioLevelExtension{Voice: r.Value[0]&0x80 != 0, Level: r.Value[0] & 0x7F}
			}
		case URITransmissionOffset:
			if len(r.Value) >= 3 {
				v := UnpackPacketsLost([3]byte{r.Value[0], r.Value[1], r.Value[2]})
				h.TransmissionOffset = &v
			}
		case URIAbsSendTime:
			if len(r.Value) >= 3 {
				v := uint32(r.Value[0])<<16 | uint32(r.Value[1])<<8 | uint32(r.Value[2])
				h.AbsSendTime = &v
			}
		case URITransportSequenceNumber:
			if len(r.Value) >= 2 {
				v := uint16(r.Value[0])<<8 | uint16(r.Value[1])
				h.TransportSequenceNumber = &v
			}
		case URIVideoRotation:
			if len(r.Value) >= 1 {
				v := r.Value[0]
				h.VideoRotation = &v
			}
		case URIPlayoutDelay:
			if len(r.Value) >= 3 {
				min12 := uint16(r.Value[0])<<4 | uint16(r.Value[1]>>4)
				max12 := uint16(r.Value[1]&0x0F)<<8 | uint16(r.Value[2])
				h.PlayoutDelay = &PlayoutDelayExtension{Min: min12, Max: max12}
			}
		case URIMID:
			h.MID = string(r.Value)
		case URIRtpStreamID:
			h.RtpStreamID = string(r.Value)
		case URIRepairedRtpStreamID:
			h.RepairedRtpStreamID = string(r.Value)
		default:
			h.Extra = append(h.Extra, r)
		}
	}
	return h
}

// encodeExtensions is the inverse of decodeExtensions: it turns the
// typed fields of h back into raw (id, value) pairs using m to look up
// each URI's negotiated local id. Typed fields whose URI was never
// configured in m are silently dropped, matching the aiortp behavior
// that an application cannot emit an extension it never negotiated.
func encodeExtensions(h HeaderExtensions, m *ExtensionMap) []RawExtension {
	out := append([]RawExtension(nil), h.Extra...)
	if m == nil {
		return out
	}
	add := func(uri string, value []byte) {
		if id, ok := m.uriToID[uri]; ok {
			out = append(out, RawExtension{ID: id, Value: value})
		}
	}
	if h.AudioLevel != nil {
		b := h.AudioLevel.Level & 0x7F
		if h.AudioLevel.Voice {
			b |= 0x80
		}
		add(URIAudioLevel, []byte{b})
	}
	if h.TransmissionOffset != nil {
		b := PackPacketsLost(*h.TransmissionOffset)
		add(URITransmissionOffset, b[:])
	}
	if h.AbsSendTime != nil {
		v := *h.AbsSendTime
		add(URIAbsSendTime, []byte{byte(v >> 16), byte(v >> 8), byte(v)})
	}
	if h.TransportSequenceNumber != nil {
		v := *h.TransportSequenceNumber
		add(URITransportSequenceNumber, []byte{byte(v >> 8), byte(v)})
	}
	if h.VideoRotation != nil {
		add(URIVideoRotation, []byte{*h.VideoRotation})
	}
	if h.PlayoutDelay != nil {
		min12, max12 := h.PlayoutDelay.Min&0x0FFF, h.PlayoutDelay.Max&0x0FFF
		add(URIPlayoutDelay, []byte{byte(min12 >> 4), byte(min12<<4) | byte(max12>>8), byte(max12)})
	}
	if h.MID != "" {
		add(URIMID, []byte(h.MID))
	}
	if h.RtpStreamID != "" {
		add(URIRtpStreamID, []byte(h.RtpStreamID))
	}
	if h.RepairedRtpStreamID != "" {
		add(URIRepairedRtpStreamID, []byte(h.RepairedRtpStreamID))
	}
	return out
}
