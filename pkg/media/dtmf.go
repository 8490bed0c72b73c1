package media

import "encoding/binary"

// DTMFEndRepeats is how many redundant end=true packets RFC 4733
// recommends emitting so a single lost packet does not drop the
// digit's end notification.
const DTMFEndRepeats = 3

// DTMFPacket is one RFC 4733 telephone-event payload ready to be
// stamped onto an RTP packet sharing the digit's starting timestamp.
type DTMFPacket struct {
	Timestamp uint32
	Marker    bool
	Payload   []byte
}

// dtmfVolume is the event volume Session stamps on every generated
// packet (attenuation in dB, 0 meaning loudest).
const dtmfVolume = 10

// BuildDTMFPackets returns the full RFC 4733 packet sequence for one
// DTMF digit: 20ms progress packets with end=false, followed by
// DTMFEndRepeats packets with end=true, per spec.md 4.5.
func BuildDTMFPackets(event uint8, durationMs int, clockRate uint32, startTimestamp uint32) []DTMFPacket {
	stepSamples := 20 * int(clockRate) / 1000
	durationSamples := durationMs * int(clockRate) / 1000
	if stepSamples <= 0 || durationSamples <= 0 {
		return nil
	}

	var out []DTMFPacket
	for elapsed := stepSamples; elapsed < durationSamples; elapsed += stepSamples {
		out = append(out, DTMFPacket{
			Timestamp: startTimestamp,
			Marker:    false,
			Payload:   encodeDTMFEvent(event, false, uint16(elapsed)),
		})
	}

	for i := 0; i < DTMFEndRepeats; i++ {
		out = append(out, DTMFPacket{
			Timestamp: startTimestamp,
			Marker:    i == 0,
			Payload:   encodeDTMFEvent(event, true, uint16(durationSamples)),
		})
	}
	return out
}

func encodeDTMFEvent(event uint8, end bool, duration uint16) []byte {
	b := make([]byte, 4)
	b[0] = event
	if end {
		b[1] = 0x80 | dtmfVolume
	} else {
		b[1] = dtmfVolume
	}
	binary.BigEndian.PutUint16(b[2:], duration)
	return b
}

// DTMFDigit is the decoded result of one RFC 4733 telephone event.
type DTMFDigit struct {
	Event    uint8
	Duration uint16
}

// DTMFReceiver tracks the in-progress digit across a run of telephone
// event packets sharing one RTP timestamp, delivering the digit
// exactly once when its end is first observed, per spec.md 4.5.
type DTMFReceiver struct {
	hasCurrent       bool
	currentEvent     uint8
	currentTimestamp uint32
	endSeen          bool
}

// NewDTMFReceiver returns an empty receiver.
func NewDTMFReceiver() *DTMFReceiver {
	return &DTMFReceiver{}
}

// Add folds one telephone-event payload (at the given RTP timestamp)
// into the state machine and reports the digit if this packet is the
// first end=true packet seen for the current timestamp.
func (r *DTMFReceiver) Add(payload []byte, timestamp uint32) (DTMFDigit, bool) {
	if len(payload) < 4 {
		return DTMFDigit{}, false
	}
	event := payload[0]
	end := payload[1]&0x80 != 0
	duration := binary.BigEndian.Uint16(payload[2:4])

	if !r.hasCurrent || timestamp != r.currentTimestamp {
		r.hasCurrent = true
		r.currentEvent = event
		r.currentTimestamp = timestamp
		r.endSeen = false
	}

	if !end {
		return DTMFDigit{}, false
	}
	if r.endSeen {
		return DTMFDigit{}, false
	}
	r.endSeen = true
	return DTMFDigit{Event: r.currentEvent, Duration: duration}, true
}
