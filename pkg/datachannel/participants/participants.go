// Package participants implements the codec for the read-only
// "participants" data channel: a snapshot list of conference participants,
// refreshed via resource upserts and explicit deletions. The client never
// sends requests on this channel.
package participants

import (
	"encoding/json"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// ChannelLabel is the data channel label the client opens for this resource.
const ChannelLabel = "participants"

// UserType distinguishes the three ways a participant can be identified.
type UserType int

const (
	UserTypeSignedIn UserType = iota
	UserTypeAnonymous
	UserTypePhone
)

// SignedInUser identifies a participant by their Google account.
type SignedInUser struct {
	User        string
	DisplayName string
}

// AnonymousUser identifies a participant with no signed-in identity.
type AnonymousUser struct {
	DisplayName string
}

// PhoneUser identifies a participant that dialed in by phone.
type PhoneUser struct {
	DisplayName string
}

// Participant is a single conference participant.
type Participant struct {
	// ParticipantID will eventually be deprecated in favor of the resource
	// id the snapshot carries it under.
	ParticipantID int32
	// Name is currently unused by the server.
	Name          string
	ParticipantKey string
	Type          UserType
	SignedInUser  *SignedInUser
	AnonymousUser *AnonymousUser
	PhoneUser     *PhoneUser
}

// ResourceSnapshot is an upserted or still-present participant resource.
type ResourceSnapshot struct {
	ID          int64
	Participant *Participant
}

// DeletedResource marks a participant resource as removed.
type DeletedResource struct {
	ID int64
	// Participant is true when the deletion specifically concerns the
	// participant sub-resource (the server also models deletion for
	// completeness even though there is no separate sub-resource today).
	Participant bool
}

// Update is a full participants channel message from the server. Resources
// and DeletedResources carry no implied ordering.
type Update struct {
	Resources        []ResourceSnapshot
	DeletedResources []DeletedResource
}

type wireUpdate struct {
	Resources        []wireResourceSnapshot `json:"resources"`
	DeletedResources []wireDeletedResource  `json:"deletedResources"`
}

type wireResourceSnapshot struct {
	ID          int64             `json:"id"`
	Participant *wireParticipant  `json:"participant"`
}

type wireParticipant struct {
	ParticipantID int32              `json:"participantId"`
	Name          *string            `json:"name"`
	ParticipantKey *string           `json:"participantKey"`
	SignedInUser  *wireSignedInUser  `json:"signedInUser"`
	AnonymousUser *wireAnonymousUser `json:"anonymousUser"`
	PhoneUser     *wirePhoneUser     `json:"phoneUser"`
}

type wireSignedInUser struct {
	User        string `json:"user"`
	DisplayName string `json:"displayName"`
}

type wireAnonymousUser struct {
	DisplayName string `json:"displayName"`
}

type wirePhoneUser struct {
	DisplayName string `json:"displayName"`
}

type wireDeletedResource struct {
	ID          int64 `json:"id"`
	Participant *bool `json:"participant"`
}

// ParseUpdate decodes a raw participants channel message.
func ParseUpdate(data []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, gmstatus.Internalf("invalid %s json format: %v", ChannelLabel, err)
	}

	var update Update

	for _, r := range w.Resources {
		snapshot := ResourceSnapshot{ID: r.ID}
		if r.Participant != nil {
			p := &Participant{ParticipantID: r.Participant.ParticipantID}
			if r.Participant.Name != nil {
				p.Name = *r.Participant.Name
			}
			if r.Participant.ParticipantKey != nil {
				p.ParticipantKey = *r.Participant.ParticipantKey
			}
			switch {
			case r.Participant.SignedInUser != nil:
				p.Type = UserTypeSignedIn
				p.SignedInUser = &SignedInUser{
					User:        r.Participant.SignedInUser.User,
					DisplayName: r.Participant.SignedInUser.DisplayName,
				}
			case r.Participant.AnonymousUser != nil:
				p.Type = UserTypeAnonymous
				p.AnonymousUser = &AnonymousUser{DisplayName: r.Participant.AnonymousUser.DisplayName}
			case r.Participant.PhoneUser != nil:
				p.Type = UserTypePhone
				p.PhoneUser = &PhoneUser{DisplayName: r.Participant.PhoneUser.DisplayName}
			}
			snapshot.Participant = p
		}
		update.Resources = append(update.Resources, snapshot)
	}

	for _, d := range w.DeletedResources {
		deleted := DeletedResource{ID: d.ID}
		if d.Participant != nil {
			deleted.Participant = *d.Participant
		}
		update.DeletedResources = append(update.DeletedResources, deleted)
	}

	return update, nil
}
