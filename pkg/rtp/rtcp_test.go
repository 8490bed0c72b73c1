package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderReportRoundTrip(t *testing.T) {
	sr := &SenderReport{
		SSRC: 1831097322,
		SenderInfo: SenderInfo{
			NTPTimestamp: 16016567581311369308,
			RTPTimestamp: 1722342718,
			PacketCount:  269,
			OctetCount:   13557,
		},
		Reports: []ReportBlock{{
			SSRC:            2398654957,
			HighestSequence: 246,
			Jitter:          127,
		}},
	}
	data := sr.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	got, ok := pkts[0].(*SenderReport)
	require.True(t, ok)
	assert.Equal(t, sr.SSRC, got.SSRC)
	assert.Equal(t, sr.SenderInfo, got.SenderInfo)
	assert.Equal(t, sr.Reports, got.Reports)
	assert.Equal(t, data, got.Marshal())
}

func TestReceiverReportRoundTrip(t *testing.T) {
	rr := &ReceiverReport{
		SSRC: 817267719,
		Reports: []ReportBlock{{
			SSRC:            1200895919,
			HighestSequence: 630,
			Jitter:          1906,
		}},
	}
	data := rr.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*ReceiverReport)
	assert.Equal(t, rr.SSRC, got.SSRC)
	assert.Equal(t, rr.Reports, got.Reports)
	assert.Equal(t, data, got.Marshal())
}

func TestReceiverReportInvalidLength(t *testing.T) {
	rr := &ReceiverReport{SSRC: 1, Reports: []ReportBlock{{SSRC: 2}}}
	data := rr.Marshal()
	// lie about the report count in the header
	data[0] = 0x80 | 2
	_, err := ParseRTCP(data)
	require.ErrorIs(t, err, ErrInvalidRRLength)
}

func TestRTCPTruncated(t *testing.T) {
	rr := (&ReceiverReport{SSRC: 1, Reports: []ReportBlock{{SSRC: 2}}}).Marshal()

	for l := 1; l < 4; l++ {
		_, err := ParseRTCP(rr[:l])
		require.ErrorIs(t, err, ErrTruncatedPacket)
	}
	for l := 4; l < len(rr); l++ {
		_, err := ParseRTCP(rr[:l])
		require.Error(t, err)
	}
}

func TestRTCPBadVersion(t *testing.T) {
	data := (&ReceiverReport{SSRC: 1}).Marshal()
	data[0] = 0xC0
	_, err := ParseRTCP(data)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestSDESRoundTrip(t *testing.T) {
	sdes := &SourceDescription{Chunks: []SDESChunk{{
		SSRC:  1831097322,
		Items: []SDESItem{{Type: sdesCNAME, Value: []byte("{63f459ea-41fe-4474-9d33-9707c9ee79d1}")}},
	}}}
	data := sdes.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*SourceDescription)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, sdes.Chunks[0].SSRC, got.Chunks[0].SSRC)
	assert.Equal(t, sdes.Chunks[0].Items, got.Chunks[0].Items)
}

func TestByeRoundTrip(t *testing.T) {
	bye := &Bye{Sources: []uint32{2924645187}}
	data := bye.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*Bye)
	assert.Equal(t, bye.Sources, got.Sources)
	assert.Equal(t, data, got.Marshal())
}

func TestByeNoSources(t *testing.T) {
	bye := &Bye{}
	data := bye.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*Bye)
	assert.Empty(t, got.Sources)
}

func TestPsfbPLIRoundTrip(t *testing.T) {
	p := &Psfb{Fmt: RTCPFmtPLI, SSRC: 1414554213, MediaSSRC: 587284409}
	data := p.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*Psfb)
	assert.Equal(t, uint8(1), got.Fmt)
	assert.Equal(t, p.SSRC, got.SSRC)
	assert.Equal(t, p.MediaSSRC, got.MediaSSRC)
	assert.Empty(t, got.FCI)
	assert.Equal(t, data, got.Marshal())
}

func TestRtpfbNackRoundTrip(t *testing.T) {
	lost := []uint16{12, 32, 39, 54, 76, 110, 123, 142, 183, 187, 223, 236, 271, 292}
	p := &Rtpfb{Fmt: RTCPFmtGenericNack, SSRC: 2336520123, MediaSSRC: 4145934052, Lost: lost}
	data := p.Marshal()
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	got := pkts[0].(*Rtpfb)
	assert.Equal(t, lost, got.Lost)
	assert.Equal(t, data, got.Marshal())
}

func TestCompoundRTCP(t *testing.T) {
	sr := &SenderReport{SSRC: 1}
	sdes := &SourceDescription{Chunks: []SDESChunk{{SSRC: 1, Items: []SDESItem{{Type: sdesCNAME, Value: []byte("x")}}}}}
	data := MarshalCompound(sr, sdes)
	pkts, err := ParseRTCP(data)
	require.NoError(t, err)
	require.Len(t, pkts, 2)
	_, ok0 := pkts[0].(*SenderReport)
	_, ok1 := pkts[1].(*SourceDescription)
	assert.True(t, ok0)
	assert.True(t, ok1)
}
