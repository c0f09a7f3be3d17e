// Package peerconn implements C2: a facade around a single
// *webrtc.PeerConnection representing this client's one connection to a
// Meet conference. It is grounded on the teacher's peer.go/webrtc.go
// callback wiring, generalized from "SFU inbound publisher accepting many
// peers" to "single client joining one conference": this facade always
// creates its own data channels and closes (without using) any the server
// opens, and Connect blocks the caller until the offer/answer exchange
// completes instead of firing observer callbacks for it, the way
// conference_peer_connection.cc's Connect does with its Notification-based
// observers — pion's SetLocalDescription/SetRemoteDescription are
// synchronous, so no callback-to-blocking-wait adapter is needed there, but
// the ICE-gathering-complete wait still uses the same blocking-channel
// idiom pion itself provides (webrtc.GatheringCompletePromise), matching
// the <-gatherComplete pattern grounded on the OpenAI realtime WebRTC
// example.
package peerconn

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/joinconnector"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/webrtc_ext"
)

// TrackSignaledHandler is invoked once per remote track the conference adds
// to the connection, on pion's own signaling goroutine; it must not block.
type TrackSignaledHandler func(info common.TrackInfo, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// DataChannelMessageHandler is invoked once per inbound text message on a
// client-opened data channel, on pion's own goroutine; it must not block.
type DataChannelMessageHandler func(label string, payload []byte)

// DisconnectedHandler is invoked at most once, when the underlying
// connection transitions to the closed state outside of an explicit
// Close() call.
type DisconnectedHandler func(reason error)

// Facade wraps a single peer connection plus the data channels this client
// opened on it.
type Facade struct {
	logger    *logrus.Entry
	pc        *webrtc.PeerConnection
	connector *joinconnector.Connector

	mu       sync.Mutex
	channels map[string]*webrtc.DataChannel
	closed   bool

	onTrackSignaled TrackSignaledHandler
	onMessage       DataChannelMessageHandler
	onDisconnected  DisconnectedHandler
}

// New creates the underlying peer connection via factory and wires the
// observer callbacks. Data channels are not created yet; call
// OpenDataChannels before Connect.
func New(
	factory *webrtc_ext.PeerConnectionFactory,
	connector *joinconnector.Connector,
	logger *logrus.Entry,
	onTrackSignaled TrackSignaledHandler,
	onMessage DataChannelMessageHandler,
	onDisconnected DisconnectedHandler,
) (*Facade, error) {
	pc, err := factory.CreatePeerConnection()
	if err != nil {
		return nil, gmstatus.Internalf("failed to create peer connection: %v", err)
	}

	f := &Facade{
		logger:          logger,
		pc:              pc,
		connector:       connector,
		channels:        map[string]*webrtc.DataChannel{},
		onTrackSignaled: onTrackSignaled,
		onMessage:       onMessage,
		onDisconnected:  onDisconnected,
	}

	pc.OnTrack(f.onRTPTrackReceived)
	pc.OnDataChannel(f.onServerOpenedDataChannel)
	pc.OnConnectionStateChange(f.onConnectionStateChanged)
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			f.logger.WithField("candidate", candidate.String()).Debug("ICE candidate gathered")
		}
	})

	return f, nil
}

// onServerOpenedDataChannel guards the "client always creates the
// channels" invariant: a channel opened by the server is protocol error,
// closed immediately and logged.
func (f *Facade) onServerOpenedDataChannel(channel *webrtc.DataChannel) {
	f.logger.WithField("label", channel.Label()).Error("server opened a data channel; closing it")
	if err := channel.Close(); err != nil {
		f.logger.WithError(err).Warn("failed to close server-opened data channel")
	}
}

func (f *Facade) onRTPTrackReceived(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if f.onTrackSignaled == nil {
		return
	}
	f.onTrackSignaled(common.TrackInfoFromTrack(track), track, receiver)
}

func (f *Facade) onConnectionStateChanged(state webrtc.PeerConnectionState) {
	f.logger.WithField("state", state.String()).Info("peer connection state changed")
	if state != webrtc.PeerConnectionStateClosed {
		return
	}

	f.mu.Lock()
	alreadyClosed := f.closed
	f.closed = true
	f.mu.Unlock()

	if alreadyClosed || f.onDisconnected == nil {
		return
	}
	f.onDisconnected(gmstatus.Internalf("peer connection closed"))
}

// OpenDataChannels creates one client-initiated data channel per label and
// wires OnOpen/OnMessage/OnClose. It must be called before Connect builds
// the offer, since the offer must list the channels it negotiates.
func (f *Facade) OpenDataChannels(labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	opened := make([]string, 0, len(f.channels))
	for label := range f.channels {
		opened = append(opened, label)
	}

	for _, label := range labels {
		if slices.Contains(opened, label) {
			continue
		}

		channel, err := f.pc.CreateDataChannel(label, nil)
		if err != nil {
			return gmstatus.Internalf("failed to create %s data channel: %v", label, err)
		}

		l := label
		channel.OnOpen(func() {
			f.logger.WithField("label", l).Info("data channel open")
		})
		channel.OnMessage(func(msg webrtc.DataChannelMessage) {
			if f.onMessage != nil {
				f.onMessage(l, msg.Data)
			}
		})
		channel.OnClose(func() {
			f.logger.WithField("label", l).Info("data channel closed")
		})
		channel.OnError(func(err error) {
			f.logger.WithField("label", l).WithError(err).Error("data channel error")
		})

		f.channels[label] = channel
	}

	return nil
}

// Send writes payload on the named data channel. Fails fast if the channel
// was never opened or is not currently open, per C4's "fail fast if the
// channel is not open" contract.
func (f *Facade) Send(label string, payload []byte) error {
	f.mu.Lock()
	channel, ok := f.channels[label]
	f.mu.Unlock()

	if !ok {
		return gmstatus.FailedPreconditionf("data channel %s was never opened", label)
	}
	if channel.ReadyState() != webrtc.DataChannelStateOpen {
		return gmstatus.FailedPreconditionf("data channel %s is not open", label)
	}

	return channel.Send(payload)
}

// Connect performs the offer/answer exchange against the join endpoint. It
// blocks until ICE gathering completes, the answer is received and applied
// as the remote description, or ctx is done; it does not wait for the
// connection itself to reach the connected state.
func (f *Facade) Connect(ctx context.Context, joinEndpoint, conferenceID, accessToken string) error {
	offer, err := f.pc.CreateOffer(nil)
	if err != nil {
		return gmstatus.Internalf("failed to create offer: %v", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(f.pc)

	if err := f.pc.SetLocalDescription(offer); err != nil {
		return gmstatus.Internalf("failed to set local description: %v", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}

	localSDP := f.pc.LocalDescription().SDP

	answerSDP, err := f.connector.ConnectActiveConference(ctx, joinEndpoint, conferenceID, accessToken, localSDP)
	if err != nil {
		return err
	}

	if err := f.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return gmstatus.Internalf("failed to set remote description: %v", err)
	}

	return nil
}

// RequestKeyFrame sends an RTCP feedback packet for track, used by the sink
// collaborator to recover after e.g. a video decoder reset.
func (f *Facade) RequestKeyFrame(track *webrtc.TrackRemote, packetType common.RTCPPacketType) error {
	var packet rtcp.Packet
	switch packetType {
	case common.PictureLossIndicator:
		packet = &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
	case common.FullIntraRequest:
		packet = &rtcp.FullIntraRequest{MediaSSRC: uint32(track.SSRC())}
	default:
		return fmt.Errorf("unsupported RTCP packet type: %d", packetType)
	}

	_, err := f.pc.WriteRTCP([]rtcp.Packet{packet})
	return err
}

// GetStats returns a snapshot WebRTC stats report for the connection, used
// by the stats collector (C5) to build upload-media-stats requests.
func (f *Facade) GetStats() webrtc.StatsReport {
	return f.pc.GetStats()
}

// Close tears the peer connection down. Safe to call more than once.
func (f *Facade) Close() error {
	f.mu.Lock()
	alreadyClosed := f.closed
	f.closed = true
	f.mu.Unlock()

	if alreadyClosed {
		return nil
	}

	return f.pc.Close()
}
