// Package mediastats implements the codec for the "media-stats" data
// channel: the server tells the client which WebRTC stats sections/keys it
// wants uploaded and how often, and the client periodically uploads a
// filtered snapshot of its local getStats() report.
package mediastats

import (
	"encoding/json"
	"fmt"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// ChannelLabel is the data channel label the client opens for this resource.
const ChannelLabel = "media-stats"

// WireStatus is the generic {code, message} status pair the server attaches
// to responses on this channel.
type WireStatus struct {
	Code    int32
	Message string
}

func (s WireStatus) OK() bool { return s.Code == 0 }

// Configuration tells the client what to upload and how often.
type Configuration struct {
	// UploadIntervalSeconds is the period between uploads. Zero disables
	// uploading entirely.
	UploadIntervalSeconds int32
	// Allowlist maps a getStats() report section type (e.g. "codec",
	// "transport") to the set of attribute names within it that may be
	// uploaded.
	Allowlist map[string][]string
}

// Response acknowledges an upload request from the client.
type Response struct {
	RequestID         int64
	Status            WireStatus
	UploadAcknowledged bool
}

// Update is a full media-stats channel message from the server.
type Update struct {
	Response *Response
	// Configuration is non-nil if a resources entry was present in this
	// update; there is always exactly one media-stats resource.
	Configuration *Configuration
}

// Section is one section of a stats upload, e.g. one "codec" stats entry.
type Section struct {
	// ID identifies this section instance within the report (distinct
	// instances of the same Type, e.g. multiple RTP streams).
	ID string
	// Type is the getStats() report section type, and doubles as the JSON
	// key the section's values are nested under on the wire.
	Type   string
	Values map[string]string
}

// Request is the client's upload-stats request.
type Request struct {
	RequestID int64
	Sections  []Section
}

type wireUpdate struct {
	Response  *wireResponse   `json:"response"`
	Resources []wireResource  `json:"resources"`
}

type wireResponse struct {
	RequestID        *int64          `json:"requestId"`
	Status           *wireStatus     `json:"status"`
	UploadMediaStats json.RawMessage `json:"uploadMediaStats"`
}

type wireStatus struct {
	Code    *int32  `json:"code"`
	Message *string `json:"message"`
}

type wireResource struct {
	Configuration *wireConfiguration `json:"configuration"`
}

type wireConfiguration struct {
	UploadIntervalSeconds *int32                     `json:"uploadIntervalSeconds"`
	Allowlist             map[string]wireAllowlisted `json:"allowlist"`
}

type wireAllowlisted struct {
	Keys []string `json:"keys"`
}

// ParseUpdate decodes a raw media-stats channel message. Unlike
// session-control, a response's requestId and (if status is present) both
// status fields are mandatory; a present resources array must contain
// exactly one element.
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
			if w.Response.Status.Code == nil || w.Response.Status.Message == nil {
				return Update{}, gmstatus.Internalf("invalid %s json format: status present without code and message", ChannelLabel)
			}
			resp.Status = WireStatus{Code: *w.Response.Status.Code, Message: *w.Response.Status.Message}
		}
		if w.Response.UploadMediaStats != nil {
			resp.UploadAcknowledged = true
		}
		update.Response = resp
	}

	if w.Resources != nil {
		if len(w.Resources) != 1 {
			return Update{}, gmstatus.Internalf("invalid %s json format: expected resources to contain exactly one element", ChannelLabel)
		}
		resource := w.Resources[0]
		if resource.Configuration == nil || resource.Configuration.UploadIntervalSeconds == nil || resource.Configuration.Allowlist == nil {
			return Update{}, gmstatus.Internalf("invalid %s json format: expected non-empty configuration", ChannelLabel)
		}

		allowlist := make(map[string][]string, len(resource.Configuration.Allowlist))
		for section, keys := range resource.Configuration.Allowlist {
			allowlist[section] = keys.Keys
		}

		update.Configuration = &Configuration{
			UploadIntervalSeconds: *resource.Configuration.UploadIntervalSeconds,
			Allowlist:             allowlist,
		}
	}

	return update, nil
}

// StringifyRequest encodes a client upload-stats request.
func StringifyRequest(req Request) ([]byte, error) {
	if req.RequestID == 0 {
		return nil, gmstatus.InvalidArgumentf("request ID must be set")
	}

	sections := make([]map[string]any, 0, len(req.Sections))
	for _, section := range req.Sections {
		entry := map[string]any{"id": section.ID}
		values := make(map[string]string, len(section.Values))
		for k, v := range section.Values {
			values[k] = v
		}
		entry[section.Type] = values
		sections = append(sections, entry)
	}

	body := map[string]any{
		"request": map[string]any{
			"requestId": req.RequestID,
			"uploadMediaStats": map[string]any{
				"sections": sections,
			},
		},
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", ChannelLabel, err)
	}

	return out, nil
}
