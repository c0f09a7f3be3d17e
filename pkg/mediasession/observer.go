// Package mediasession implements C6 (the session state machine) and C7
// (the embedder observer contract): it is the top-level orchestrator an
// embedding Go application talks to.
package mediasession

import (
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// Observer is the push surface delivered to the embedder. All methods are
// invoked by the session's single worker, with two exceptions:
// OnAudioFrame/OnVideoFrame are invoked on a dedicated per-track goroutine
// since media frames bypass the JSON channels (and the worker) entirely,
// and OnDisconnected runs on the embedder's own goroutine when Leave
// (outside Joined) or Connect (when the join job cannot be posted) forces
// the disconnect; that disconnect is not posted to the worker. Implementations must
// not block for long, and must treat every callback as single-consumer:
// the session never fans a callback out to more than one Observer.
type Observer interface {
	// OnJoined fires exactly once, when the session-control channel first
	// reports a Joined connection state.
	OnJoined()
	// OnDisconnected fires exactly once per session, whatever the cause.
	// OK means the conference ended or the user left cleanly.
	OnDisconnected(status gmstatus.Status)
	// OnResourceUpdate fires for every successfully parsed channel message,
	// before any session-internal handling of that message runs.
	OnResourceUpdate(update ResourceUpdate)
	OnAudioFrame(frame AudioFrame)
	OnVideoFrame(frame VideoFrame)
}

// AudioFrame carries one RTP packet's payload from an audio track. Decoding
// the payload into PCM samples is out of scope; the embedder owns that.
type AudioFrame struct {
	Track          common.TrackInfo
	Payload        []byte
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// VideoFrame carries one RTP packet's payload from a video track.
type VideoFrame struct {
	Track          common.TrackInfo
	Payload        []byte
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Marker         bool
}
