package rtp

import (
	"encoding/binary"
	"fmt"
)

// RTCP packet type identifiers, RFC 3550 section 12.1 plus the
// RFC 4585 feedback types this package supports.
const (
	rtcpTypeSR    = 200
	rtcpTypeRR    = 201
	rtcpTypeSDES  = 202
	rtcpTypeBye   = 203
	rtcpTypeApp   = 204
	rtcpTypeRTPFB = 205
	rtcpTypePSFB  = 206

	sdesCNAME = 1

	// RTCPFmtGenericNack is the RTPFB "fmt" value for the generic NACK
	// feedback message (RFC 4585 section 6.2.1).
	RTCPFmtGenericNack = 1
	// RTCPFmtPLI is the PSFB "fmt" value for picture loss indication
	// (RFC 4585 section 6.3.1).
	RTCPFmtPLI = 1
)

// RTCPPacket is implemented by every concrete RTCP packet type this
// package parses: SenderReport, ReceiverReport, SourceDescription,
// Bye, Rtpfb and Psfb.
type RTCPPacket interface {
	// Marshal serializes the packet, including its own RTCP header.
	Marshal() []byte
}

// ReportBlock is one RFC 3550 section 6.4.1 reception report block.
type ReportBlock struct {
	SSRC            uint32
	FractionLost    uint8
	PacketsLost     int32 // signed 24-bit cumulative count
	HighestSequence uint32
	Jitter          uint32
	LSR             uint32
	DLSR            uint32
}

func (r ReportBlock) marshal() []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[0:4], r.SSRC)
	b[4] = r.FractionLost
	lost := PackPacketsLost(r.PacketsLost)
	copy(b[5:8], lost[:])
	binary.BigEndian.PutUint32(b[8:12], r.HighestSequence)
	binary.BigEndian.PutUint32(b[12:16], r.Jitter)
	binary.BigEndian.PutUint32(b[16:20], r.LSR)
	binary.BigEndian.PutUint32(b[20:24], r.DLSR)
	return b
}

func parseReportBlock(b []byte) ReportBlock {
	return ReportBlock{
		SSRC:            binary.BigEndian.Uint32(b[0:4]),
		FractionLost:    b[4],
		PacketsLost:     UnpackPacketsLost([3]byte{b[5], b[6], b[7]}),
		HighestSequence: binary.BigEndian.Uint32(b[8:12]),
		Jitter:          binary.BigEndian.Uint32(b[12:16]),
		LSR:             binary.BigEndian.Uint32(b[16:20]),
		DLSR:            binary.BigEndian.Uint32(b[20:24]),
	}
}

// SenderInfo is the RFC 3550 section 6.4.1 sender-info block of a
// SenderReport.
type SenderInfo struct {
	NTPTimestamp uint64
	RTPTimestamp uint32
	PacketCount  uint32
	OctetCount   uint32
}

func (s SenderInfo) marshal() []byte {
	b := make([]byte, 20)
	binary.BigEndian.PutUint64(b[0:8], s.NTPTimestamp)
	binary.BigEndian.PutUint32(b[8:12], s.RTPTimestamp)
	binary.BigEndian.PutUint32(b[12:16], s.PacketCount)
	binary.BigEndian.PutUint32(b[16:20], s.OctetCount)
	return b
}

// SenderReport is an RFC 3550 section 6.4.1 SR packet.
type SenderReport struct {
	SSRC       uint32
	SenderInfo SenderInfo
	Reports    []ReportBlock
}

func (p *SenderReport) Marshal() []byte {
	body := make([]byte, 4, 4+20+len(p.Reports)*24)
	binary.BigEndian.PutUint32(body[0:4], p.SSRC)
	body = append(body, p.SenderInfo.marshal()...)
	for _, r := range p.Reports {
		body = append(body, r.marshal()...)
	}
	return packRTCPHeader(rtcpTypeSR, len(p.Reports), body)
}

// ReceiverReport is an RFC 3550 section 6.4.2 RR packet.
type ReceiverReport struct {
	SSRC    uint32
	Reports []ReportBlock
}

func (p *ReceiverReport) Marshal() []byte {
	body := make([]byte, 4, 4+len(p.Reports)*24)
	binary.BigEndian.PutUint32(body[0:4], p.SSRC)
	for _, r := range p.Reports {
		body = append(body, r.marshal()...)
	}
	return packRTCPHeader(rtcpTypeRR, len(p.Reports), body)
}

// SDESChunk is one RFC 3550 section 6.5 per-source SDES chunk. Items
// are kept as (type, value) pairs; type 1 is CNAME.
type SDESChunk struct {
	SSRC  uint32
	Items []SDESItem
}

// SDESItem is one SDES item within a chunk.
type SDESItem struct {
	Type  uint8
	Value []byte
}

func (c SDESChunk) marshal() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, c.SSRC)
	for _, it := range c.Items {
		b = append(b, it.Type, uint8(len(it.Value)))
		b = append(b, it.Value...)
	}
	b = append(b, 0) // end-of-items marker
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// SourceDescription is an RFC 3550 section 6.5 SDES packet.
type SourceDescription struct {
	Chunks []SDESChunk
}

func (p *SourceDescription) Marshal() []byte {
	var body []byte
	for _, c := range p.Chunks {
		body = append(body, c.marshal()...)
	}
	return packRTCPHeader(rtcpTypeSDES, len(p.Chunks), body)
}

// Bye is an RFC 3550 section 6.6 BYE packet.
type Bye struct {
	Sources []uint32
	Reason  string
}

func (p *Bye) Marshal() []byte {
	body := make([]byte, 0, len(p.Sources)*4+1+len(p.Reason))
	for _, s := range p.Sources {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], s)
		body = append(body, b[:]...)
	}
	if p.Reason != "" {
		body = append(body, uint8(len(p.Reason)))
		body = append(body, p.Reason...)
		for len(body)%4 != 0 {
			body = append(body, 0)
		}
	}
	return packRTCPHeader(rtcpTypeBye, len(p.Sources), body)
}

// Rtpfb is an RFC 4585 section 6.2.1 generic NACK transport-layer
// feedback packet. Lost holds the fully expanded sequence numbers
// recovered from the packet-id + bitmask pairs.
type Rtpfb struct {
	Fmt       uint8
	SSRC      uint32
	MediaSSRC uint32
	Lost      []uint16
}

func (p *Rtpfb) Marshal() []byte {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], p.SSRC)
	binary.BigEndian.PutUint32(body[4:8], p.MediaSSRC)
	body = append(body, packNackPairs(p.Lost)...)
	return packRTCPHeaderFmt(rtcpTypeRTPFB, p.Fmt, body)
}

// Psfb is an RFC 4585 section 6.3 payload-specific feedback packet
// (only PLI's empty FCI is modeled, matching the spec's scope).
type Psfb struct {
	Fmt       uint8
	SSRC      uint32
	MediaSSRC uint32
	FCI       []byte
}

func (p *Psfb) Marshal() []byte {
	body := make([]byte, 8, 8+len(p.FCI))
	binary.BigEndian.PutUint32(body[0:4], p.SSRC)
	binary.BigEndian.PutUint32(body[4:8], p.MediaSSRC)
	body = append(body, p.FCI...)
	return packRTCPHeaderFmt(rtcpTypePSFB, p.Fmt, body)
}

func packRTCPHeader(pt uint8, count int, body []byte) []byte {
	return packRTCPHeaderFmt(pt, uint8(count), body)
}

func packRTCPHeaderFmt(pt uint8, countOrFmt uint8, body []byte) []byte {
	words := len(body)/4 + 1
	hdr := [4]byte{0x80 | (countOrFmt & 0x1F), pt, 0, 0}
	binary.BigEndian.PutUint16(hdr[2:4], uint16(words-1))
	return append(hdr[:], body...)
}

// packNackPairs compresses a sorted set of lost sequence numbers into
// RFC 4585 (PID, BLP) pairs: PID is the first lost sequence of a run,
// BLP is a 16-bit bitmask of the following 16 sequence numbers also
// lost.
func packNackPairs(lost []uint16) []byte {
	var out []byte
	i := 0
	for i < len(lost) {
		pid := lost[i]
		var blp uint16
		j := i + 1
		for j < len(lost) {
			d := int(lost[j]) - int(pid)
			if d < 1 || d > 16 {
				break
			}
			blp |= 1 << uint(d-1)
			j++
		}
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], pid)
		binary.BigEndian.PutUint16(b[2:4], blp)
		out = append(out, b[:]...)
		i = j
	}
	return out
}

func unpackNackPairs(body []byte) []uint16 {
	var out []uint16
	for i := 0; i+4 <= len(body); i += 4 {
		pid := binary.BigEndian.Uint16(body[i : i+2])
		blp := binary.BigEndian.Uint16(body[i+2 : i+4])
		out = append(out, pid)
		for bit := 0; bit < 16; bit++ {
			if blp&(1<<uint(bit)) != 0 {
				out = append(out, SeqAdd(pid, int32(bit+1)))
			}
		}
	}
	return out
}

// ParseRTCP decodes a compound RTCP packet (RFC 3550 section 6.1) into
// its constituent subpackets.
func ParseRTCP(data []byte) ([]RTCPPacket, error) {
	var out []RTCPPacket
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: RTCP packet length is less than 4 bytes", ErrTruncatedPacket)
		}
		if data[0]>>6 != 2 {
			return nil, fmt.Errorf("%w: RTCP packet has invalid version", ErrBadVersion)
		}
		hasPadding := data[0]&0x20 != 0
		countOrFmt := data[0] & 0x1F
		pt := data[1]
		words := binary.BigEndian.Uint16(data[2:4])
		totalLen := (int(words) + 1) * 4
		if len(data) < totalLen {
			return nil, fmt.Errorf("%w: RTCP packet is truncated", ErrTruncatedPacket)
		}

		body := data[4:totalLen]
		if hasPadding {
			if len(body) == 0 {
				return nil, fmt.Errorf("%w: RTCP packet padding length is invalid", ErrInvalidPadding)
			}
			padLen := int(body[len(body)-1])
			if padLen == 0 || padLen > len(body) {
				return nil, fmt.Errorf("%w: RTCP packet padding length is invalid", ErrInvalidPadding)
			}
			body = body[:len(body)-padLen]
		}

		pkt, err := parseRTCPBody(pt, countOrFmt, body)
		if err != nil {
			return nil, err
		}
		out = append(out, pkt)
		data = data[totalLen:]
	}
	return out, nil
}

func parseRTCPBody(pt, countOrFmt uint8, body []byte) (RTCPPacket, error) {
	switch pt {
	case rtcpTypeSR:
		if len(body) < 24 || (len(body)-24)%24 != 0 || (len(body)-24)/24 != int(countOrFmt) {
			return nil, fmt.Errorf("%w: RTCP sender report length is invalid", ErrInvalidSRLength)
		}
		sr := &SenderReport{SSRC: binary.BigEndian.Uint32(body[0:4])}
		sr.SenderInfo = SenderInfo{
			NTPTimestamp: binary.BigEndian.Uint64(body[4:12]),
			RTPTimestamp: binary.BigEndian.Uint32(body[12:16]),
			PacketCount:  binary.BigEndian.Uint32(body[16:20]),
			OctetCount:   binary.BigEndian.Uint32(body[20:24]),
		}
		for off := 24; off < len(body); off += 24 {
			sr.Reports = append(sr.Reports, parseReportBlock(body[off:off+24]))
		}
		return sr, nil

	case rtcpTypeRR:
		if len(body) < 4 || (len(body)-4)%24 != 0 || (len(body)-4)/24 != int(countOrFmt) {
			return nil, fmt.Errorf("%w: RTCP receiver report length is invalid", ErrInvalidRRLength)
		}
		rr := &ReceiverReport{SSRC: binary.BigEndian.Uint32(body[0:4])}
		for off := 4; off < len(body); off += 24 {
			rr.Reports = append(rr.Reports, parseReportBlock(body[off:off+24]))
		}
		return rr, nil

	case rtcpTypeSDES:
		sdes := &SourceDescription{}
		off := 0
		for c := 0; c < int(countOrFmt); c++ {
			if off+4 > len(body) {
				return nil, fmt.Errorf("%w: RTCP SDES source is truncated", ErrTruncatedSource)
			}
			chunk := SDESChunk{SSRC: binary.BigEndian.Uint32(body[off : off+4])}
			off += 4
			for {
				if off >= len(body) {
					return nil, fmt.Errorf("%w: RTCP SDES source is truncated", ErrTruncatedSource)
				}
				itemType := body[off]
				if itemType == 0 {
					off++
					break
				}
				if off+1 >= len(body) {
					return nil, fmt.Errorf("%w: RTCP SDES item is truncated", ErrTruncatedItem)
				}
				itemLen := int(body[off+1])
				if off+2+itemLen > len(body) {
					return nil, fmt.Errorf("%w: RTCP SDES item is truncated", ErrTruncatedItem)
				}
				chunk.Items = append(chunk.Items, SDESItem{Type: itemType, Value: body[off+2 : off+2+itemLen]})
				off += 2 + itemLen
			}
			for off%4 != 0 && off < len(body) {
				off++
			}
			sdes.Chunks = append(sdes.Chunks, chunk)
		}
		return sdes, nil

	case rtcpTypeBye:
		n := int(countOrFmt)
		if len(body) < n*4 {
			return nil, fmt.Errorf("%w: RTCP bye length is invalid", ErrTruncatedPacket)
		}
		bye := &Bye{}
		off := 0
		for i := 0; i < n; i++ {
			bye.Sources = append(bye.Sources, binary.BigEndian.Uint32(body[off:off+4]))
			off += 4
		}
		if off < len(body) {
			reasonLen := int(body[off])
			if off+1+reasonLen <= len(body) {
				bye.Reason = string(body[off+1 : off+1+reasonLen])
			}
		}
		return bye, nil

	case rtcpTypeRTPFB:
		if len(body) < 8 || (len(body)-8)%4 != 0 {
			return nil, fmt.Errorf("%w: RTCP RTP feedback length is invalid", ErrInvalidRTPFBLength)
		}
		return &Rtpfb{
			Fmt:       countOrFmt,
			SSRC:      binary.BigEndian.Uint32(body[0:4]),
			MediaSSRC: binary.BigEndian.Uint32(body[4:8]),
			Lost:      unpackNackPairs(body[8:]),
		}, nil

	case rtcpTypePSFB:
		if len(body) < 8 {
			return nil, fmt.Errorf("%w: RTCP payload-specific feedback length is invalid", ErrInvalidPSFBLength)
		}
		return &Psfb{
			Fmt:       countOrFmt,
			SSRC:      binary.BigEndian.Uint32(body[0:4]),
			MediaSSRC: binary.BigEndian.Uint32(body[4:8]),
			FCI:       body[8:],
		}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRTCPType, pt)
	}
}

// MarshalCompound concatenates multiple RTCP packets into a single
// compound packet, as required by RFC 3550 section 6.1 (every compound
// packet sent by a participant must start with an SR or RR).
func MarshalCompound(packets ...RTCPPacket) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, p.Marshal()...)
	}
	return out
}
