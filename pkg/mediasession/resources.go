package mediasession

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediaentries"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediastats"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/participants"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/sessioncontrol"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/videoassignment"
)

// ResourceUpdate is the generic envelope handed to Observer.OnResourceUpdate
// for every successfully parsed channel message. Exactly one of the typed
// fields is non-nil, matching Channel.
type ResourceUpdate struct {
	Channel         string
	SessionControl  *sessioncontrol.Update
	MediaStats      *mediastats.Update
	Participants    *participants.Update
	MediaEntries    *mediaentries.Update
	VideoAssignment *videoassignment.Update
}

// bookkeeping tracks the authoritative snapshot of participants and media
// entries derived from resources/deletedResources updates, generalized
// from pkg/conference/conference.go's participant map plus
// maps.Values-based snapshotting. apply* is only ever called from the
// session's worker goroutine, but Participants/MediaEntries are called
// directly by the embedder from its own goroutine, so the maps need a
// mutex rather than relying on worker confinement alone.
type bookkeeping struct {
	mu           sync.Mutex
	participants map[int64]participants.Participant
	mediaEntries map[int64]mediaentries.MediaEntry
}

func newBookkeeping() *bookkeeping {
	return &bookkeeping{
		participants: map[int64]participants.Participant{},
		mediaEntries: map[int64]mediaentries.MediaEntry{},
	}
}

func (b *bookkeeping) applyParticipants(update participants.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, snapshot := range update.Resources {
		if snapshot.Participant != nil {
			b.participants[snapshot.ID] = *snapshot.Participant
		} else {
			delete(b.participants, snapshot.ID)
		}
	}
	for _, deleted := range update.DeletedResources {
		delete(b.participants, deleted.ID)
	}
}

func (b *bookkeeping) applyMediaEntries(update mediaentries.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, snapshot := range update.Resources {
		if snapshot.MediaEntry != nil {
			b.mediaEntries[snapshot.ID] = *snapshot.MediaEntry
		} else {
			delete(b.mediaEntries, snapshot.ID)
		}
	}
	for _, deleted := range update.DeletedResources {
		delete(b.mediaEntries, deleted.ID)
	}
}

// Participants returns a snapshot of the currently known participants.
func (b *bookkeeping) Participants() []participants.Participant {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Values(b.participants)
}

// MediaEntries returns a snapshot of the currently known media entries.
func (b *bookkeeping) MediaEntries() []mediaentries.MediaEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Values(b.mediaEntries)
}
