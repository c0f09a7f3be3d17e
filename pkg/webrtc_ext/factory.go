package webrtc_ext

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// PeerConnectionFactory constructs new, pre-configured peer connections.
type PeerConnectionFactory struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer
}

func NewPeerConnectionFactory(config Config) (*PeerConnectionFactory, error) {
	api, err := createWebRTCAPI(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC API: %w", err)
	}

	return &PeerConnectionFactory{api: api, iceServers: config.ICEServers}, nil
}

// CreatePeerConnection creates a peer connection with the factory's API.
func (f *PeerConnectionFactory) CreatePeerConnection() (*webrtc.PeerConnection, error) {
	return f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: f.iceServers,
	})
}
