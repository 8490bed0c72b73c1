// Package rtp implements the wire formats used by an RTP/RTCP audio
// endpoint: RTP packet framing (RFC 3550), RFC 8285 header extensions,
// compound RTCP (RFC 3550 sender/receiver reports, SDES, BYE, plus the
// RFC 4585 generic NACK and picture-loss-indication feedback packets),
// and STUN Binding demultiplexing (RFC 5389) on the same 5-tuple.
//
// The codec is hand-written against encoding/binary rather than wrapping
// a third-party RTP/RTCP library: see DESIGN.md for why.
//
// Кодек реализован вручную поверх encoding/binary — без внешних
// RTP/RTCP библиотек, см. DESIGN.md.
package rtp
