// Package mediaentries implements the codec for the read-only
// "media-entries" data channel: a snapshot list of the media sources
// (CSRCs) present in the conference and the participant/presentation state
// associated with each. The client never sends requests on this channel.
package mediaentries

import (
	"encoding/json"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// ChannelLabel is the data channel label the client opens for this resource.
const ChannelLabel = "media-entries"

// MediaEntry describes one media source in the conference and the state
// the RTP frames carrying AudioCSRC/VideoCSRCs should be attributed with.
type MediaEntry struct {
	// Participant and Session are currently unused by the server; Session
	// is the participant-session identifier referenced as an open question
	// in the distilled spec, carried through unchanged here.
	Participant string
	ParticipantKey string
	Session        string
	SessionName    string
	AudioCSRC      uint32
	VideoCSRCs     []uint32
	Presenter      bool
	Screenshare    bool
	AudioMuted     bool
	VideoMuted     bool
}

// ResourceSnapshot is an upserted or still-present media-entry resource.
type ResourceSnapshot struct {
	ID         int64
	MediaEntry *MediaEntry
}

// DeletedResource marks a media-entry resource as removed.
type DeletedResource struct {
	ID         int64
	MediaEntry bool
}

// Update is a full media-entries channel message from the server.
// Resources and DeletedResources carry no implied ordering.
type Update struct {
	Resources        []ResourceSnapshot
	DeletedResources []DeletedResource
}

type wireUpdate struct {
	Resources        []wireResourceSnapshot `json:"resources"`
	DeletedResources []wireDeletedResource  `json:"deletedResources"`
}

type wireResourceSnapshot struct {
	ID         int64          `json:"id"`
	MediaEntry *wireMediaEntry `json:"mediaEntry"`
}

type wireMediaEntry struct {
	Participant    *string  `json:"participant"`
	ParticipantKey *string  `json:"participantKey"`
	Session        *string  `json:"session"`
	SessionName    *string  `json:"sessionName"`
	AudioCSRC      *uint32  `json:"audioCsrc"`
	VideoCSRCs     []uint32 `json:"videoCsrcs"`
	Presenter      *bool    `json:"presenter"`
	Screenshare    *bool    `json:"screenshare"`
	AudioMuted     *bool    `json:"audioMuted"`
	VideoMuted     *bool    `json:"videoMuted"`
}

type wireDeletedResource struct {
	ID         int64 `json:"id"`
	MediaEntry *bool `json:"mediaEntry"`
}

// ParseUpdate decodes a raw media-entries channel message.
func ParseUpdate(data []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, gmstatus.Internalf("invalid %s json format: %v", ChannelLabel, err)
	}

	var update Update

	for _, r := range w.Resources {
		snapshot := ResourceSnapshot{ID: r.ID}
		if r.MediaEntry != nil {
			e := &MediaEntry{VideoCSRCs: r.MediaEntry.VideoCSRCs}
			if r.MediaEntry.Participant != nil {
				e.Participant = *r.MediaEntry.Participant
			}
			if r.MediaEntry.ParticipantKey != nil {
				e.ParticipantKey = *r.MediaEntry.ParticipantKey
			}
			if r.MediaEntry.Session != nil {
				e.Session = *r.MediaEntry.Session
			}
			if r.MediaEntry.SessionName != nil {
				e.SessionName = *r.MediaEntry.SessionName
			}
			if r.MediaEntry.AudioCSRC != nil {
				e.AudioCSRC = *r.MediaEntry.AudioCSRC
			}
			if r.MediaEntry.Presenter != nil {
				e.Presenter = *r.MediaEntry.Presenter
			}
			if r.MediaEntry.Screenshare != nil {
				e.Screenshare = *r.MediaEntry.Screenshare
			}
			if r.MediaEntry.AudioMuted != nil {
				e.AudioMuted = *r.MediaEntry.AudioMuted
			}
			if r.MediaEntry.VideoMuted != nil {
				e.VideoMuted = *r.MediaEntry.VideoMuted
			}
			snapshot.MediaEntry = e
		}
		update.Resources = append(update.Resources, snapshot)
	}

	for _, d := range w.DeletedResources {
		deleted := DeletedResource{ID: d.ID}
		if d.MediaEntry != nil {
			deleted.MediaEntry = *d.MediaEntry
		}
		update.DeletedResources = append(update.DeletedResources, deleted)
	}

	return update, nil
}
