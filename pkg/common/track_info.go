package common

import (
	"github.com/pion/webrtc/v3"
)

// RTCPPacketType distinguishes the feedback packets the sink collaborator
// may want to send back upstream for a remote track, e.g. to ask the
// conference to re-send a keyframe after a video sink resets.
type RTCPPacketType int

const (
	PictureLossIndicator RTCPPacketType = iota + 1
	FullIntraRequest
)

// TrackInfo is basic information about a remote track, handed to the
// embedder alongside decoded frames so it can tell tracks apart without
// reaching into pion types directly.
type TrackInfo struct {
	TrackID  string
	StreamID string
	Kind     webrtc.RTPCodecType
	Codec    webrtc.RTPCodecCapability
}

func TrackInfoFromTrack(track *webrtc.TrackRemote) TrackInfo {
	return TrackInfo{
		TrackID:  track.ID(),
		StreamID: track.StreamID(),
		Kind:     track.Kind(),
		Codec:    track.Codec().RTPCodecCapability,
	}
}
