package rtp

import (
	"encoding/binary"
	"fmt"
)

// STUN magic cookie and message types used for RFC 5389 Binding
// transactions on the RTP 5-tuple (ICE-lite style keepalive/connectivity
// check support, not full ICE).
const (
	stunMagicCookie = 0x2112A442

	STUNBindingRequest  = 0x0001
	STUNBindingResponse = 0x0101
	STUNBindingError    = 0x0111

	stunAttrXorMappedAddress = 0x0020
	stunAttrMappedAddress    = 0x0001

	stunFamilyIPv4 = 0x01
	stunFamilyIPv6 = 0x02
)

// STUNMessage is a minimal RFC 5389 STUN message: header plus raw
// attributes, with typed helpers for the one attribute this package
// produces (XOR-MAPPED-ADDRESS).
type STUNMessage struct {
	Type          uint16
	TransactionID [12]byte
	Attributes    []STUNAttribute
}

// STUNAttribute is a single (type, value) TLV from a STUN message.
type STUNAttribute struct {
	Type  uint16
	Value []byte
}

// LooksLikeSTUN performs the cheap demultiplexing test a UDP receive
// loop runs before attempting a full STUN parse: the magic cookie at
// bytes 4-8 must match, and the leading two bits of the type must be 0
// (STUN message types never set them, RTP/RTCP versions always do).
func LooksLikeSTUN(buf []byte) bool {
	if len(buf) < 20 {
		return false
	}
	if buf[0]&0xC0 != 0 {
		return false
	}
	return binary.BigEndian.Uint32(buf[4:8]) == stunMagicCookie
}

// ParseSTUNMessage decodes a STUN message header and its attributes.
func ParseSTUNMessage(data []byte) (*STUNMessage, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("%w: message shorter than fixed header", ErrTruncatedSTUN)
	}
	if binary.BigEndian.Uint32(data[4:8]) != stunMagicCookie {
		return nil, ErrNotSTUN
	}

	msg := &STUNMessage{Type: binary.BigEndian.Uint16(data[0:2])}
	copy(msg.TransactionID[:], data[8:20])

	length := int(binary.BigEndian.Uint16(data[2:4]))
	body := data[20:]
	if len(body) < length {
		return nil, fmt.Errorf("%w: declared length exceeds message", ErrTruncatedSTUN)
	}
	body = body[:length]

	for len(body) >= 4 {
		attrType := binary.BigEndian.Uint16(body[0:2])
		attrLen := int(binary.BigEndian.Uint16(body[2:4]))
		if len(body) < 4+attrLen {
			return nil, fmt.Errorf("%w: attribute value truncated", ErrTruncatedAttribute)
		}
		msg.Attributes = append(msg.Attributes, STUNAttribute{Type: attrType, Value: body[4 : 4+attrLen]})
		padded := (attrLen + 3) &^ 3
		body = body[4+padded:]
	}

	return msg, nil
}

// Marshal serializes the message back to wire format.
func (m *STUNMessage) Marshal() []byte {
	var body []byte
	for _, a := range m.Attributes {
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], a.Type)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(a.Value)))
		body = append(body, hdr[:]...)
		body = append(body, a.Value...)
		for len(body)%4 != 0 {
			body = append(body, 0)
		}
	}

	out := make([]byte, 20, 20+len(body))
	binary.BigEndian.PutUint16(out[0:2], m.Type)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	binary.BigEndian.PutUint32(out[4:8], stunMagicCookie)
	copy(out[8:20], m.TransactionID[:])
	return append(out, body...)
}

// NewBindingResponse builds a Binding Success Response to req carrying
// addr (the 5-tuple source address of the request) XOR-encoded per
// RFC 5389 section 15.2.
func NewBindingResponse(req *STUNMessage, ip []byte, port uint16) *STUNMessage {
	resp := &STUNMessage{Type: STUNBindingResponse, TransactionID: req.TransactionID}

	var value []byte
	if len(ip) == 4 {
		value = make([]byte, 8)
		value[1] = stunFamilyIPv4
		binary.BigEndian.PutUint16(value[2:4], port^uint16(stunMagicCookie>>16))
		for i := 0; i < 4; i++ {
			value[4+i] = ip[i] ^ byte(stunMagicCookie>>uint(24-8*i))
		}
	} else {
		value = make([]byte, 20)
		value[1] = stunFamilyIPv6
		binary.BigEndian.PutUint16(value[2:4], port^uint16(stunMagicCookie>>16))
		xorKey := make([]byte, 16)
		binary.BigEndian.PutUint32(xorKey[0:4], stunMagicCookie)
		copy(xorKey[4:16], req.TransactionID[:])
		for i := 0; i < 16; i++ {
			value[4+i] = ip[i] ^ xorKey[i]
		}
	}

	resp.Attributes = append(resp.Attributes, STUNAttribute{Type: stunAttrXorMappedAddress, Value: value})
	return resp
}

// IsBindingRequest reports whether the message is a Binding Request
// that a session should auto-reply to.
func (m *STUNMessage) IsBindingRequest() bool {
	return m.Type == STUNBindingRequest
}
