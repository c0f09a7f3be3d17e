// Package sessioncontrol implements the codec for the "session-control"
// data channel: the server's view of this client's connection state to the
// conference, and the client's only outbound request on the channel
// (leave).
package sessioncontrol

import (
	"encoding/json"
	"fmt"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// ChannelLabel is the data channel label the client opens for this resource.
const ChannelLabel = "session-control"

// ConnectionState mirrors the server's STATE_* enum.
type ConnectionState int

const (
	ConnectionStateUnknown ConnectionState = iota
	ConnectionStateWaiting
	ConnectionStateJoined
	ConnectionStateDisconnected
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionStateWaiting:
		return "waiting"
	case ConnectionStateJoined:
		return "joined"
	case ConnectionStateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

func connectionStateFromWire(s string) ConnectionState {
	switch s {
	case "STATE_WAITING":
		return ConnectionStateWaiting
	case "STATE_JOINED":
		return ConnectionStateJoined
	case "STATE_DISCONNECTED":
		return ConnectionStateDisconnected
	default:
		return ConnectionStateUnknown
	}
}

// DisconnectReason mirrors the server's REASON_* enum. It is only ever set
// when ConnectionState is ConnectionStateDisconnected.
type DisconnectReason int

const (
	DisconnectReasonClientLeft DisconnectReason = iota + 1
	DisconnectReasonUserStopped
	DisconnectReasonConferenceEnded
	DisconnectReasonSessionUnhealthy
)

func (d DisconnectReason) String() string {
	switch d {
	case DisconnectReasonClientLeft:
		return "client-left"
	case DisconnectReasonUserStopped:
		return "user-stopped"
	case DisconnectReasonConferenceEnded:
		return "conference-ended"
	case DisconnectReasonSessionUnhealthy:
		return "session-unhealthy"
	default:
		return "unspecified"
	}
}

func disconnectReasonFromWire(s string) (DisconnectReason, bool) {
	switch s {
	case "REASON_CLIENT_LEFT":
		return DisconnectReasonClientLeft, true
	case "REASON_USER_STOPPED":
		return DisconnectReasonUserStopped, true
	case "REASON_CONFERENCE_ENDED":
		return DisconnectReasonConferenceEnded, true
	case "REASON_SESSION_UNHEALTHY":
		return DisconnectReasonSessionUnhealthy, true
	default:
		return 0, false
	}
}

// SessionStatus is the single resource this channel tracks.
type SessionStatus struct {
	ConnectionState  ConnectionState
	DisconnectReason *DisconnectReason
}

// WireStatus is the generic {code, message} status pair the server attaches
// to responses on this channel. Code is the raw numeric status code from
// the server, not one of the client-local status.Code values.
type WireStatus struct {
	Code    int32
	Message string
}

func (s WireStatus) OK() bool { return s.Code == 0 }

// Response is the response half of a session-control update, correlated to
// a prior client request by RequestID.
type Response struct {
	// RequestID defaults to 0 if the server omits it; unlike every other
	// channel, session-control tolerates a missing requestId on responses.
	RequestID int64
	Status    WireStatus
	// Leave is set when the response acknowledges a leave request.
	Leave bool
}

// Update is a full session-control channel message from the server.
type Update struct {
	Response  *Response
	Resources []SessionStatus
}

// Request is the only client-initiated message on this channel.
type Request struct {
	RequestID int64
	// Leave asks the server to remove this client from the conference.
	Leave bool
}

type wireUpdate struct {
	Response  *wireResponse          `json:"response"`
	Resources []wireResourceSnapshot `json:"resources"`
}

type wireResponse struct {
	RequestID *int64          `json:"requestId"`
	Status    *wireStatus     `json:"status"`
	Leave     json.RawMessage `json:"leave"`
}

type wireStatus struct {
	Code    *int32  `json:"code"`
	Message *string `json:"message"`
}

type wireResourceSnapshot struct {
	SessionStatus *wireSessionStatus `json:"sessionStatus"`
}

type wireSessionStatus struct {
	ConnectionState  *string `json:"connectionState"`
	DisconnectReason *string `json:"disconnectReason"`
}

// ParseUpdate decodes a raw session-control channel message.
func ParseUpdate(data []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, gmstatus.Internalf("invalid %s json format: %v", ChannelLabel, err)
	}

	var update Update

	if w.Response != nil {
		resp := &Response{}
		if w.Response.RequestID != nil {
			resp.RequestID = *w.Response.RequestID
		}
		if w.Response.Status != nil {
			if w.Response.Status.Code != nil {
				resp.Status.Code = *w.Response.Status.Code
			}
			if w.Response.Status.Message != nil {
				resp.Status.Message = *w.Response.Status.Message
			}
		}
		if w.Response.Leave != nil {
			resp.Leave = true
		}
		update.Response = resp
	}

	for _, r := range w.Resources {
		var snapshot SessionStatus
		if r.SessionStatus != nil {
			if r.SessionStatus.ConnectionState != nil {
				snapshot.ConnectionState = connectionStateFromWire(*r.SessionStatus.ConnectionState)
			}
			if r.SessionStatus.DisconnectReason != nil {
				if reason, ok := disconnectReasonFromWire(*r.SessionStatus.DisconnectReason); ok {
					snapshot.DisconnectReason = &reason
				}
			}
		}
		update.Resources = append(update.Resources, snapshot)
	}

	return update, nil
}

// StringifyRequest encodes a client request for the session-control channel.
func StringifyRequest(req Request) ([]byte, error) {
	if req.RequestID == 0 {
		return nil, gmstatus.InvalidArgumentf("request ID must be set")
	}

	type wireRequestBody struct {
		RequestID int64                    `json:"requestId"`
		Leave     *struct{}                `json:"leave,omitempty"`
	}
	body := wireRequestBody{RequestID: req.RequestID}
	if req.Leave {
		body.Leave = &struct{}{}
	}

	out, err := json.Marshal(struct {
		Request wireRequestBody `json:"request"`
	}{Request: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", ChannelLabel, err)
	}

	return out, nil
}
