package rtp

import (
	"encoding/binary"
	"fmt"
)

// RtpPacket is a single RFC 3550 RTP packet, decoded with the CSRC list
// and RFC 8285 header extensions resolved into HeaderExtensions.
type RtpPacket struct {
	Version        uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Extensions     HeaderExtensions
	Payload        []byte

	// PaddingSize is the number of padding bytes present on the wire,
	// as reported by the trailing padding-count byte. It is kept
	// separate from Payload so that padding-only keepalive packets
	// (RFC 3550 section 5.1) round-trip byte for byte.
	PaddingSize uint8
}

// ParseRTPPacket decodes an RTP packet. m resolves header-extension
// local ids to well-known URIs; pass nil to leave every extension
// unmapped (still recoverable via Extensions.Extra).
func ParseRTPPacket(data []byte, m *ExtensionMap) (*RtpPacket, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: RTP packet length is less than 12 bytes", ErrTruncatedPacket)
	}

	version := data[0] >> 6
	if version != 2 {
		return nil, fmt.Errorf("%w: RTP packet has invalid version", ErrBadVersion)
	}
	hasPadding := data[0]&0x20 != 0
	hasExtension := data[0]&0x10 != 0
	csrcCount := int(data[0] & 0x0F)

	pkt := &RtpPacket{
		Version:        version,
		Marker:         data[1]&0x80 != 0,
		PayloadType:    data[1] & 0x7F,
		SequenceNumber: binary.BigEndian.Uint16(data[2:4]),
		Timestamp:      binary.BigEndian.Uint32(data[4:8]),
		SSRC:           binary.BigEndian.Uint32(data[8:12]),
	}

	pos := 12
	if len(data) < pos+csrcCount*4 {
		return nil, fmt.Errorf("%w: RTP packet has truncated CSRC", ErrTruncatedCSRC)
	}
	for i := 0; i < csrcCount; i++ {
		pkt.CSRC = append(pkt.CSRC, binary.BigEndian.Uint32(data[pos:pos+4]))
		pos += 4
	}

	if hasExtension {
		if len(data) < pos+4 {
			return nil, fmt.Errorf("%w: RTP packet has truncated extension profile / length", ErrTruncatedExtension)
		}
		profile := binary.BigEndian.Uint16(data[pos : pos+2])
		words := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		pos += 4
		extLen := words * 4
		if len(data) < pos+extLen {
			return nil, fmt.Errorf("%w: RTP packet has truncated extension value", ErrTruncatedExtension)
		}
		raw, err := unpackHeaderExtensions(profile, data[pos:pos+extLen])
		if err != nil {
			return nil, err
		}
		pkt.Extensions = decodeExtensions(raw, m)
		pos += extLen
	}

	if hasPadding {
		if pos >= len(data) {
			return nil, fmt.Errorf("%w: RTP packet padding length is invalid", ErrInvalidPadding)
		}
		padLen := int(data[len(data)-1])
		if padLen == 0 || padLen > len(data)-pos {
			return nil, fmt.Errorf("%w: RTP packet padding length is invalid", ErrInvalidPadding)
		}
		pkt.PaddingSize = uint8(padLen)
		pkt.Payload = data[pos : len(data)-padLen]
	} else {
		pkt.Payload = data[pos:]
	}

	return pkt, nil
}

// Serialize encodes the packet back to wire format. m must be the same
// ExtensionMap (or an equivalent one) used at parse time so typed
// extension fields are re-encoded under the right local id.
func (p *RtpPacket) Serialize(m *ExtensionMap) []byte {
	hasExtension := !p.Extensions.Empty()
	hasPadding := p.PaddingSize > 0

	b := make([]byte, 0, 12+len(p.CSRC)*4+len(p.Payload)+int(p.PaddingSize))

	first := byte(p.Version << 6)
	if hasPadding {
		first |= 0x20
	}
	if hasExtension {
		first |= 0x10
	}
	first |= byte(len(p.CSRC) & 0x0F)
	b = append(b, first)

	second := p.PayloadType & 0x7F
	if p.Marker {
		second |= 0x80
	}
	b = append(b, second)

	var tmp [4]byte
	binary.BigEndian.PutUint16(tmp[:2], p.SequenceNumber)
	b = append(b, tmp[:2]...)
	binary.BigEndian.PutUint32(tmp[:4], p.Timestamp)
	b = append(b, tmp[:4]...)
	binary.BigEndian.PutUint32(tmp[:4], p.SSRC)
	b = append(b, tmp[:4]...)

	for _, c := range p.CSRC {
		binary.BigEndian.PutUint32(tmp[:4], c)
		b = append(b, tmp[:4]...)
	}

	if hasExtension {
		profile, body := packHeaderExtensions(encodeExtensions(p.Extensions, m))
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[:2], profile)
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(body)/4))
		b = append(b, hdr[:]...)
		b = append(b, body...)
	}

	b = append(b, p.Payload...)

	if hasPadding {
		for i := uint8(0); i < p.PaddingSize-1; i++ {
			b = append(b, 0)
		}
		b = append(b, p.PaddingSize)
	}

	return b
}

// IsRTCP reports whether buf looks like a compound RTCP packet rather
// than an RTP packet, using the payload-type byte masked range
// [64, 95] shared by every RTCP packet type this package knows about
// (SR=200, RR=201, SDES=202, BYE=203, APP=204, RTPFB=205, PSFB=206 all
// mask down into that window: byte&0x7F).
func IsRTCP(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	mask := buf[1] & 0x7F
	return mask >= 64 && mask <= 95
}
