package rtp

import "errors"

// Parse errors returned by ParseRTPPacket, ParseRTCP and ParseSTUNMessage.
// Callers that need to distinguish a failure kind should use errors.Is.
var (
	ErrTruncatedPacket     = errors.New("rtp: packet shorter than fixed header")
	ErrBadVersion          = errors.New("rtp: unsupported protocol version")
	ErrInvalidPadding      = errors.New("rtp: invalid padding")
	ErrTruncatedCSRC       = errors.New("rtp: packet truncated in CSRC list")
	ErrTruncatedExtension  = errors.New("rtp: packet truncated in header extension")
	ErrInvalidSRLength     = errors.New("rtcp: invalid sender report length")
	ErrInvalidRRLength     = errors.New("rtcp: invalid receiver report length")
	ErrInvalidRTPFBLength  = errors.New("rtcp: invalid RTPFB length")
	ErrInvalidPSFBLength   = errors.New("rtcp: invalid PSFB length")
	ErrTruncatedItem       = errors.New("rtcp: packet truncated in SDES item")
	ErrTruncatedSource     = errors.New("rtcp: packet truncated in SDES chunk")
	ErrUnknownRTCPType     = errors.New("rtcp: unknown packet type")
	ErrTruncatedSTUN       = errors.New("stun: message shorter than fixed header")
	ErrNotSTUN             = errors.New("stun: magic cookie mismatch")
	ErrTruncatedAttribute  = errors.New("stun: truncated attribute")
)
