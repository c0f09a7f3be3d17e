// Package videoassignment implements the codec for the optional
// "video-assignment" data channel. The distilled spec describes this
// channel only as "analogous to media-stats: accepts both server updates
// and client requests; request IDs must be non-zero" — no original source
// header for this resource was available, so the resource shape below
// follows the resources/deletedResources snapshot pattern shared by every
// non-session-control channel, with a canvas-to-media-entry assignment as
// the payload, which is what "video assignment" means in the Meet Media
// API: which media entry's video should be rendered into which layout
// slot ("canvas").
package videoassignment

import (
	"encoding/json"
	"fmt"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// ChannelLabel is the data channel label the client opens for this resource.
const ChannelLabel = "video-assignment"

// WireStatus is the generic {code, message} status pair the server attaches
// to responses on this channel.
type WireStatus struct {
	Code    int32
	Message string
}

func (s WireStatus) OK() bool { return s.Code == 0 }

// Assignment binds a layout slot to the media entry whose video should be
// rendered there.
type Assignment struct {
	CanvasID     string
	MediaEntryID int64
}

// ResourceSnapshot is an upserted or still-present assignment resource.
type ResourceSnapshot struct {
	ID         int64
	Assignment *Assignment
}

// DeletedResource marks an assignment resource as removed.
type DeletedResource struct {
	ID         int64
	Assignment bool
}

// Response acknowledges a client set-assignment request.
type Response struct {
	RequestID int64
	Status    WireStatus
}

// Update is a full video-assignment channel message from the server.
type Update struct {
	Response         *Response
	Resources        []ResourceSnapshot
	DeletedResources []DeletedResource
}

// Request is the client's request to (re-)assign canvases.
type Request struct {
	RequestID   int64
	Assignments []Assignment
}

type wireUpdate struct {
	Response         *wireResponse          `json:"response"`
	Resources        []wireResourceSnapshot `json:"resources"`
	DeletedResources []wireDeletedResource  `json:"deletedResources"`
}

type wireResponse struct {
	RequestID *int64      `json:"requestId"`
	Status    *wireStatus `json:"status"`
}

type wireStatus struct {
	Code    *int32  `json:"code"`
	Message *string `json:"message"`
}

type wireResourceSnapshot struct {
	ID         int64            `json:"id"`
	Assignment *wireAssignment  `json:"videoAssignment"`
}

type wireAssignment struct {
	CanvasID     string `json:"canvasId"`
	MediaEntryID int64  `json:"mediaEntryId"`
}

type wireDeletedResource struct {
	ID         int64 `json:"id"`
	Assignment *bool `json:"videoAssignment"`
}

// ParseUpdate decodes a raw video-assignment channel message.
func ParseUpdate(data []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, gmstatus.Internalf("invalid %s json format: %v", ChannelLabel, err)
	}

	var update Update

	if w.Response != nil {
		if w.Response.RequestID == nil {
			return Update{}, gmstatus.Internalf("invalid %s json format: response missing requestId", ChannelLabel)
		}
		resp := &Response{RequestID: *w.Response.RequestID}
		if w.Response.Status != nil {
			if w.Response.Status.Code != nil {
				resp.Status.Code = *w.Response.Status.Code
			}
			if w.Response.Status.Message != nil {
				resp.Status.Message = *w.Response.Status.Message
			}
		}
		update.Response = resp
	}

	for _, r := range w.Resources {
		snapshot := ResourceSnapshot{ID: r.ID}
		if r.Assignment != nil {
			snapshot.Assignment = &Assignment{
				CanvasID:     r.Assignment.CanvasID,
				MediaEntryID: r.Assignment.MediaEntryID,
			}
		}
		update.Resources = append(update.Resources, snapshot)
	}

	for _, d := range w.DeletedResources {
		deleted := DeletedResource{ID: d.ID}
		if d.Assignment != nil {
			deleted.Assignment = *d.Assignment
		}
		update.DeletedResources = append(update.DeletedResources, deleted)
	}

	return update, nil
}

// StringifyRequest encodes a client set-assignment request.
func StringifyRequest(req Request) ([]byte, error) {
	if req.RequestID == 0 {
		return nil, gmstatus.InvalidArgumentf("request ID must be set")
	}

	assignments := make([]wireAssignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, wireAssignment{CanvasID: a.CanvasID, MediaEntryID: a.MediaEntryID})
	}

	body := map[string]any{
		"request": map[string]any{
			"requestId":       req.RequestID,
			"setAssignments":  assignments,
		},
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", ChannelLabel, err)
	}

	return out, nil
}
