package media

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/arzzra/rtpaudio/pkg/rtp"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

// Session states per spec.md 4.5: Created -> Bound -> Active ->
// Closing -> Closed.
const (
	StateCreated = "created"
	StateBound   = "bound"
	StateActive  = "active"
	StateClosing = "closing"
	StateClosed  = "closed"
)

// AudioCallback receives one decoded (or raw, if no codec is
// configured) audio frame along with its RTP timestamp.
type AudioCallback func(payload []byte, timestamp uint32)

// DTMFCallback receives one completed DTMF digit and its duration in
// RTP clock units.
type DTMFCallback func(digit uint8, durationSamples uint16)

// SessionConfig configures a Session's ports, SSRC, codec and DTMF
// wiring, and RTCP behavior.
type SessionConfig struct {
	LocalAddr    string
	LocalRTPPort int // 0 for OS-assigned

	RemoteHost         string
	RemoteRTPPort      int
	RemoteRTCPOverride int // 0 to default to RemoteRTPPort+1

	SSRC uint32

	PayloadType uint8
	ClockRate   uint32
	Codec       Codec // optional; nil leaves payloads undecoded

	DTMFPayloadType uint8
	HasDTMF         bool

	JitterBuffer JitterBufferConfig

	RTCPIntervalSeconds float64 // defaults to 5s if zero

	OnAudio AudioCallback
	OnDTMF  DTMFCallback

	Metrics *Metrics // optional; nil disables metrics recording
}

// Session is the single entry point applications use to send and
// receive one RTP/RTCP audio stream. It owns both UDP sockets, runs
// the periodic RTCP timer, and guards its mutable send and receive
// state with mu. It has no event-loop goroutine of its own: receive
// handlers run on the per-socket reader goroutines and sends run on
// the caller's goroutine.
type Session struct {
	cfg SessionConfig

	transport *transport
	extMap    *rtp.ExtensionMap

	fsm *fsm.FSM

	mu sync.Mutex // guards the send counters and the receive state (jitterBuffer, stats, dtmfRecv) below

	sequenceNumber uint16
	packetsSent    uint64
	octetsSent     uint64

	jitterBuffer *JitterBuffer
	stats        *StreamStatistics
	dtmfRecv     *DTMFReceiver

	closeOnce sync.Once
	closed    chan struct{}
	cancel    context.CancelFunc
}

// NewSession allocates both sockets, configures the remote endpoint,
// and returns a Session in the Bound state. Call Start to begin
// dispatching callbacks and the RTCP timer (transitioning to Active).
func NewSession(cfg SessionConfig) (*Session, error) {
	tr, err := newTransport(cfg.LocalAddr, cfg.LocalRTPPort)
	if err != nil {
		return nil, fmt.Errorf("media: new session: %w", err)
	}
	tr.setRemote(cfg.RemoteHost, cfg.RemoteRTPPort, cfg.RemoteRTCPOverride)

	jb, err := NewJitterBuffer(cfg.JitterBuffer)
	if err != nil {
		tr.close()
		return nil, fmt.Errorf("media: new session: %w", err)
	}

	s := &Session{
		cfg:          cfg,
		transport:    tr,
		extMap:       rtp.NewExtensionMap(),
		jitterBuffer: jb,
		dtmfRecv:     NewDTMFReceiver(),
		closed:       make(chan struct{}),
	}
	s.fsm = newSessionFSM()
	_ = s.fsm.Event(context.Background(), "bind")
	return s, nil
}

func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: "bind", Src: []string{StateCreated}, Dst: StateBound},
			{Name: "activate", Src: []string{StateBound}, Dst: StateActive},
			{Name: "close", Src: []string{StateBound, StateActive}, Dst: StateClosing},
			{Name: "shutdown", Src: []string{StateClosing}, Dst: StateClosed},
		},
		fsm.Callbacks{},
	)
}

// RTPPort and RTCPPort return the bound local ports, useful when
// LocalRTPPort was 0 (OS-assigned).
func (s *Session) RTPPort() int  { return s.transport.rtpPort }
func (s *Session) RTCPPort() int { return s.transport.rtcpPort }

// Start transitions the session to Active, launching its receive
// loops and RTCP timer on background goroutines.
func (s *Session) Start(ctx context.Context) error {
	if err := s.fsm.Event(ctx, "activate"); err != nil {
		return fmt.Errorf("media: start session: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.transport.readRTPLoop(s.handleRTP)
	go s.transport.readRTCPLoop(s.handleRTCP)
	go s.rtcpTimerLoop(loopCtx)

	return nil
}

func (s *Session) isActive() bool {
	return s.fsm.Current() == StateActive
}

// SendFrame stamps payload with the current SSRC and next sequence
// number and transmits it as a single RTP packet, per spec.md 4.5
// "Send path". Calls outside the Active state are silently dropped.
func (s *Session) SendFrame(payload []byte, ts uint32, marker bool) {
	if !s.isActive() {
		return
	}

	s.mu.Lock()
	seq := s.sequenceNumber
	s.sequenceNumber++
	s.packetsSent++
	s.octetsSent += uint64(len(payload))
	s.mu.Unlock()

	pkt := &rtp.RtpPacket{
		Version:        2,
		Marker:         marker,
		PayloadType:    s.cfg.PayloadType,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           s.cfg.SSRC,
		Payload:        payload,
	}
	s.transport.sendRTP(pkt.Serialize(s.extMap))

	if m := s.cfg.Metrics; m != nil {
		m.PacketsSent.Inc()
		m.OctetsSent.Add(float64(len(payload)))
	}
}

// SendPCM encodes pcm through the configured codec and sends the
// result as one RTP frame.
func (s *Session) SendPCM(pcm []int16, ts uint32, marker bool) error {
	if s.cfg.Codec == nil {
		return fmt.Errorf("media: send_pcm requires a configured codec")
	}
	wire, err := s.cfg.Codec.Encode(pcm)
	if err != nil {
		return fmt.Errorf("media: encode: %w", err)
	}
	s.SendFrame(wire, ts, marker)
	return nil
}

// SendDTMF emits the full RFC 4733 packet sequence for one digit
// (progress packets then three redundant end packets), per spec.md
// 4.5 "DTMF send". startTS is the RTP timestamp shared by every packet
// in the digit.
func (s *Session) SendDTMF(event uint8, durationMs int, startTS uint32) {
	if !s.isActive() || !s.cfg.HasDTMF {
		return
	}

	packets := BuildDTMFPackets(event, durationMs, s.cfg.ClockRate, startTS)
	for _, p := range packets {
		s.mu.Lock()
		seq := s.sequenceNumber
		s.sequenceNumber++
		s.packetsSent++
		s.octetsSent += uint64(len(p.Payload))
		s.mu.Unlock()

		pkt := &rtp.RtpPacket{
			Version:        2,
			Marker:         p.Marker,
			PayloadType:    s.cfg.DTMFPayloadType,
			SequenceNumber: seq,
			Timestamp:      p.Timestamp,
			SSRC:           s.cfg.SSRC,
			Payload:        p.Payload,
		}
		s.transport.sendRTP(pkt.Serialize(s.extMap))

		if m := s.cfg.Metrics; m != nil {
			m.PacketsSent.Inc()
			m.OctetsSent.Add(float64(len(p.Payload)))
		}
	}
}

// handleRTP is the datagram callback passed to transport.readRTPLoop;
// it implements spec.md 4.5 "Receive path". Receive statistics are
// created on the first non-DTMF packet with cfg.ClockRate, whatever
// that packet's payload type.
func (s *Session) handleRTP(data []byte, _ *net.UDPAddr) {
	pkt, err := rtp.ParseRTPPacket(data, s.extMap)
	if err != nil {
		log.Warn().Err(err).Msg("media: dropping unparseable RTP packet")
		return
	}

	if s.cfg.HasDTMF && pkt.PayloadType == s.cfg.DTMFPayloadType {
		if len(pkt.Payload) < 4 {
			log.Warn().Msg("media: dropping short telephone-event payload")
			return
		}
		s.mu.Lock()
		digit, ok := s.dtmfRecv.Add(pkt.Payload, pkt.Timestamp)
		cb := s.cfg.OnDTMF
		s.mu.Unlock()
		if ok && cb != nil {
			cb(digit.Event, digit.Duration)
		}
		return
	}

	s.mu.Lock()
	if s.stats == nil {
		s.stats = NewStreamStatistics(s.cfg.ClockRate)
	}
	s.stats.Add(pkt, time.Now())
	lost := s.stats.PacketsLost()
	jitter := s.stats.Jitter()
	_, frame := s.jitterBuffer.Add(pkt)
	cb := s.cfg.OnAudio
	codec := s.cfg.Codec
	s.mu.Unlock()

	if m := s.cfg.Metrics; m != nil {
		m.PacketsReceived.Inc()
		m.PacketsLost.Set(float64(lost))
		m.Jitter.Set(float64(jitter))
	}

	if frame == nil || cb == nil {
		return
	}

	out := frame.Data
	if codec != nil {
		pcm, err := decodeFrame(codec, frame.Data)
		if err != nil {
			log.Error().Err(err).Msg("media: audio decode failed")
			return
		}
		out = int16ToBytes(pcm)
	}
	cb(out, frame.Timestamp)
}

func decodeFrame(codec Codec, data []byte) (pcm []int16, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("media: codec panicked decoding frame: %v", r)
		}
	}()
	return codec.Decode(data)
}

func int16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func (s *Session) handleRTCP(data []byte) {
	pkts, err := rtp.ParseRTCP(data)
	if err != nil {
		log.Warn().Err(err).Msg("media: dropping unparseable RTCP packet")
		return
	}
	for _, p := range pkts {
		if _, ok := p.(*rtp.Bye); ok {
			log.Info().Msg("media: received RTCP BYE from remote")
		}
	}
}

// rtcpTimerLoop sends a compound SR+SDES packet on a randomized
// interval per spec.md 4.5 "RTCP emission", exiting when ctx is
// cancelled.
func (s *Session) rtcpTimerLoop(ctx context.Context) {
	interval := s.cfg.RTCPIntervalSeconds
	if interval <= 0 {
		interval = 5
	}

	for {
		wait := time.Duration(interval * (0.5 + rand.Float64()) * float64(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		s.sendCompoundReport()
	}
}

func (s *Session) sendCompoundReport() {
	s.mu.Lock()
	sent := s.packetsSent
	octets := s.octetsSent
	s.mu.Unlock()

	sr := &rtp.SenderReport{
		SSRC: s.cfg.SSRC,
		SenderInfo: rtp.SenderInfo{
			NTPTimestamp: rtp.NTPTimestamp(time.Now()),
			RTPTimestamp: 0,
			PacketCount:  uint32(sent),
			OctetCount:   uint32(octets),
		},
	}
	sdes := &rtp.SourceDescription{Chunks: []rtp.SDESChunk{{
		SSRC:  s.cfg.SSRC,
		Items: []rtp.SDESItem{{Type: 1, Value: []byte(fmt.Sprintf("session-%d", s.cfg.SSRC))}},
	}}}

	s.transport.sendRTCP(rtp.MarshalCompound(sr, sdes))
}

// Close cancels the RTCP timer, sends a standalone BYE, yields once to
// let the datagram drain, then closes both transports. Idempotent, per
// spec.md 4.5 "close()".
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		_ = s.fsm.Event(ctx, "close")
		if s.cancel != nil {
			s.cancel()
		}

		bye := &rtp.Bye{Sources: []uint32{s.cfg.SSRC}}
		s.transport.sendRTCP(bye.Marshal())

		runtime.Gosched()

		s.transport.close()
		_ = s.fsm.Event(ctx, "shutdown")
		close(s.closed)
	})
}

// Done returns a channel closed once Close has fully completed.
func (s *Session) Done() <-chan struct{} { return s.closed }
