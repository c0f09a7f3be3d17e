package webrtc_ext

import "github.com/pion/webrtc/v3"

// Config configures the WebRTC API used to create the single peer
// connection the client joins the conference with.
type Config struct {
	// Optional additional ICE servers (STUN/TURN) to use alongside whatever
	// the conference's SDP offer/answer already negotiates.
	ICEServers []webrtc.ICEServer
}
