// Package dispatcher implements C4: it owns the set of opened data
// channels, demultiplexes inbound text messages to the right codec,
// assigns request IDs, and serializes outbound client requests. Outbound
// sends run through one bounded per-channel worker queue each, grounded on
// pkg/peer/datachannel.go's newDataChannelWorker (common.Worker[T] with a
// long timeout standing in for "no timeout").
package dispatcher

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// Sender is the subset of peerconn.Facade the dispatcher needs to send
// bytes on a channel.
type Sender interface {
	Send(label string, payload []byte) error
}

// ParseFunc decodes a raw inbound message on a channel into its typed
// update. Each datachannel codec package's ParseUpdate satisfies this once
// wrapped to erase its concrete return type.
type ParseFunc func(payload []byte) (any, error)

// UpdateHandler receives a successfully parsed update for a channel.
type UpdateHandler func(label string, update any)

type channelState struct {
	worker        *common.Worker[[]byte]
	parse         ParseFunc
	nextRequestID int64
}

// Dispatcher demultiplexes and serializes all data-channel traffic.
type Dispatcher struct {
	sender Sender
	logger *logrus.Entry

	mu       sync.Mutex
	channels map[string]*channelState
	onUpdate UpdateHandler
}

// New creates a Dispatcher that reports parsed updates to onUpdate.
func New(sender Sender, logger *logrus.Entry, onUpdate UpdateHandler) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		logger:   logger,
		channels: map[string]*channelState{},
		onUpdate: onUpdate,
	}
}

// RegisterChannel opens bookkeeping (an outbound worker queue and a
// request-ID counter starting at 1) for label, using parse to decode
// inbound messages on it. Must be called once per channel the embedder
// enabled, before any messages arrive.
func (d *Dispatcher) RegisterChannel(label string, parse ParseFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sender := d.sender
	logger := d.logger

	worker := common.StartWorker(common.WorkerConfig[[]byte]{
		ChannelSize: 32,
		Timeout:     time.Hour,
		OnTimeout:   func() {},
		OnTask: func(payload []byte) {
			if err := sender.Send(label, payload); err != nil {
				logger.WithField("channel", label).WithError(err).Error("failed to send data channel message")
			}
		},
	})

	d.channels[label] = &channelState{worker: worker, parse: parse, nextRequestID: 1}
}

// NextRequestID returns the next non-zero, strictly increasing request ID
// for label. Panics if label was never registered, since that is always a
// programming error (the caller must know which channels are open).
func (d *Dispatcher) NextRequestID(label string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.channels[label]
	if !ok {
		panic("dispatcher: NextRequestID on unregistered channel " + label)
	}

	id := state.nextRequestID
	state.nextRequestID++
	return id
}

// SendRequest enqueues payload for delivery on label. Fails fast if the
// channel was never registered.
func (d *Dispatcher) SendRequest(label string, payload []byte) error {
	d.mu.Lock()
	state, ok := d.channels[label]
	d.mu.Unlock()

	if !ok {
		return gmstatus.FailedPreconditionf("data channel %s is not open", label)
	}

	return state.worker.Send(payload)
}

// HandleMessage routes an inbound message to label's codec. Parse failures
// are logged and dropped; they never propagate to the session.
func (d *Dispatcher) HandleMessage(label string, payload []byte) {
	d.mu.Lock()
	state, ok := d.channels[label]
	d.mu.Unlock()

	if !ok {
		d.logger.WithField("channel", label).Warn("message on unregistered channel, dropping")
		return
	}

	update, err := state.parse(payload)
	if err != nil {
		d.logger.WithField("channel", label).WithError(err).Error("failed to parse channel message, dropping")
		return
	}

	d.onUpdate(label, update)
}

// Close stops every channel's outbound worker. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, state := range d.channels {
		state.worker.Stop()
	}
}
