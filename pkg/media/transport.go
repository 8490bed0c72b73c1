package media

import (
	"fmt"
	"net"

	"github.com/arzzra/rtpaudio/pkg/rtp"
	"github.com/rs/zerolog/log"
)

// maxDatagramSize is large enough for any RTP/RTCP/STUN datagram this
// package produces or expects to receive over UDP.
const maxDatagramSize = 1500

// transport owns the two UDP sockets for one session: RTP (also
// carrying demultiplexed STUN Binding checks) and RTCP. It never
// retries a failed send — spec.md 5 treats media and RTCP sends as
// best-effort.
type transport struct {
	rtpConn  *net.UDPConn
	rtcpConn *net.UDPConn

	rtpPort  int
	rtcpPort int

	remoteRTP  *net.UDPAddr
	remoteRTCP *net.UDPAddr
}

// newTransport binds the RTP socket on rtpPort (0 for OS-assigned) and
// the RTCP socket on the adjacent port when rtpPort is explicit, or
// another OS-assigned port otherwise, per spec.md 4.5 "Ports".
func newTransport(localAddr string, rtpPort int) (*transport, error) {
	rtpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(localAddr), Port: rtpPort})
	if err != nil {
		return nil, fmt.Errorf("media: bind RTP socket: %w", err)
	}

	rtcpPort := 0
	if rtpPort != 0 {
		rtcpPort = rtpPort + 1
	}
	rtcpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(localAddr), Port: rtcpPort})
	if err != nil {
		rtpConn.Close()
		return nil, fmt.Errorf("media: bind RTCP socket: %w", err)
	}

	return &transport{
		rtpConn:  rtpConn,
		rtcpConn: rtcpConn,
		rtpPort:  rtpConn.LocalAddr().(*net.UDPAddr).Port,
		rtcpPort: rtcpConn.LocalAddr().(*net.UDPAddr).Port,
	}, nil
}

// setRemote configures where send_frame and RTCP emission target.
// remoteRTCPOverridePort may be 0 to default to (host, remoteRTPPort+1)
// per spec.md 4.5.
func (t *transport) setRemote(host string, remoteRTPPort int, remoteRTCPOverridePort int) {
	t.remoteRTP = &net.UDPAddr{IP: net.ParseIP(host), Port: remoteRTPPort}
	rtcpPort := remoteRTPPort + 1
	if remoteRTCPOverridePort != 0 {
		rtcpPort = remoteRTCPOverridePort
	}
	t.remoteRTCP = &net.UDPAddr{IP: net.ParseIP(host), Port: rtcpPort}
}

func (t *transport) sendRTP(data []byte) {
	if t.remoteRTP == nil {
		return
	}
	if _, err := t.rtpConn.WriteToUDP(data, t.remoteRTP); err != nil {
		log.Warn().Err(err).Msg("media: RTP send failed")
	}
}

func (t *transport) sendRTCP(data []byte) {
	if t.remoteRTCP == nil {
		return
	}
	if _, err := t.rtcpConn.WriteToUDP(data, t.remoteRTCP); err != nil {
		log.Warn().Err(err).Msg("media: RTCP send failed")
	}
}

func (t *transport) close() {
	t.rtpConn.Close()
	t.rtcpConn.Close()
}

// readRTPLoop reads datagrams off the RTP socket in a loop, demuxing
// STUN Binding Requests (auto-replying in place) from RTP packets
// (handed to onRTP). It returns once the socket is closed.
func (t *transport) readRTPLoop(onRTP func(data []byte, from *net.UDPAddr)) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := t.rtpConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := buf[:n]

		if rtp.LooksLikeSTUN(data) {
			t.handleSTUN(data, from)
			continue
		}
		onRTP(append([]byte(nil), data...), from)
	}
}

// readRTCPLoop reads datagrams off the RTCP socket, handing each to
// onRTCP. It returns once the socket is closed.
func (t *transport) readRTCPLoop(onRTCP func(data []byte)) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := t.rtcpConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		onRTCP(append([]byte(nil), buf[:n]...))
	}
}

func (t *transport) handleSTUN(data []byte, from *net.UDPAddr) {
	msg, err := rtp.ParseSTUNMessage(data)
	if err != nil {
		log.Debug().Err(err).Msg("media: dropping malformed STUN datagram")
		return
	}
	if !msg.IsBindingRequest() {
		return
	}

	resp := rtp.NewBindingResponse(msg, from.IP.To4(), uint16(from.Port))
	if from.IP.To4() == nil {
		resp = rtp.NewBindingResponse(msg, from.IP.To16(), uint16(from.Port))
	}
	if _, err := t.rtpConn.WriteToUDP(resp.Marshal(), from); err != nil {
		log.Warn().Err(err).Msg("media: STUN binding response send failed")
	}
}
