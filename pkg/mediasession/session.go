package mediasession

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/config"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediaentries"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediastats"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/participants"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/sessioncontrol"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/videoassignment"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/dispatcher"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/joinconnector"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/peerconn"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/statscollector"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/telemetry"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/webrtc_ext"
)

// State is the session's position in the Ready -> Connecting -> Joining ->
// Joined -> Disconnected lifecycle. It only ever advances; Disconnected is
// terminal.
type State int32

const (
	StateReady State = iota
	StateConnecting
	StateJoining
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateConnecting:
		return "connecting"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the top-level orchestrator (C6) joining exactly one
// conference. It owns one worker goroutine that drains both
// embedder-originated jobs and dispatcher-originated resource updates
// through a single select loop, generalized from
// pkg/common/worker.go's StartWorker.
type Session struct {
	id     string
	config *config.Config
	logger *logrus.Entry

	observer    Observer
	facade      *peerconn.Facade
	dispatcher  *dispatcher.Dispatcher
	stats       *statscollector.Collector
	bookkeeping *bookkeeping

	mu    sync.Mutex
	state State

	jobs             chan common.Message[string, func()]
	messageSink      *common.MessageSink[string, func()]
	disconnectedSink *common.MessageSink[string, func()]
	connectSink      *common.MessageSink[string, func()]
	disconnectOnce   sync.Once
	cancel           context.CancelFunc

	joined       *common.Future[struct{}]
	disconnected *common.Future[gmstatus.Status]
}

// New constructs a Session in the Ready state. It does not connect.
func New(cfg *config.Config, observer Observer, logger *logrus.Entry) (*Session, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	id := uuid.NewString()
	logger = logger.WithField("sessionId", id)

	factory, err := webrtc_ext.NewPeerConnectionFactory(webrtc_ext.Config{})
	if err != nil {
		return nil, gmstatus.Internalf("failed to create peer connection factory: %v", err)
	}

	connector, err := joinconnector.New(cfg.Join.CACertPath, logger)
	if err != nil {
		return nil, gmstatus.Internalf("failed to create join connector: %v", err)
	}

	jobs := make(chan common.Message[string, func()], 128)

	s := &Session{
		id:           id,
		config:       cfg,
		logger:       logger,
		observer:     observer,
		bookkeeping:  newBookkeeping(),
		state:        StateReady,
		jobs:         jobs,
		joined:       common.NewFuture[struct{}](),
		disconnected: common.NewFuture[gmstatus.Status](),
	}
	s.messageSink = common.NewMessageSink("peerconn.message", jobs)
	s.disconnectedSink = common.NewMessageSink("peerconn.disconnected", jobs)
	s.connectSink = common.NewMessageSink("session.connect", jobs)

	facade, err := peerconn.New(factory, connector, logger,
		func(info common.TrackInfo, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			go s.readTrack(info, track)
		},
		func(label string, payload []byte) {
			if err := s.messageSink.TrySend(func() { s.dispatcher.HandleMessage(label, payload) }); err != nil {
				s.logger.WithError(err).Warn("dropping data channel message, session is shutting down")
			}
		},
		func(reason error) {
			if err := s.disconnectedSink.TrySend(func() { s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: reason.Error()}) }); err != nil {
				s.logger.WithError(err).Warn("dropping disconnect notification, session is already shutting down")
			}
		},
	)
	if err != nil {
		return nil, err
	}
	s.facade = facade

	s.dispatcher = dispatcher.New(facade, logger, s.handleUpdate)
	s.stats = statscollector.New(statsSourceFunc(facade.GetStats), s.dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.runWorker(ctx)

	return s, nil
}

// statsSourceFunc adapts a bare GetStats method to statscollector.StatsSource.
type statsSourceFunc func() webrtc.StatsReport

func (f statsSourceFunc) GetStats() webrtc.StatsReport { return f() }

func (s *Session) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.jobs:
			msg.Content()
		}
	}
}

// enabledChannelLabels returns the channel labels this session should open,
// session-control and media-stats always, the rest per configuration.
func (s *Session) enabledChannelLabels() []string {
	labels := []string{sessioncontrol.ChannelLabel, mediastats.ChannelLabel}
	if s.config.Channels.Participants {
		labels = append(labels, participants.ChannelLabel)
	}
	if s.config.Channels.MediaEntries {
		labels = append(labels, mediaentries.ChannelLabel)
	}
	if s.config.Channels.VideoAssignment {
		labels = append(labels, videoassignment.ChannelLabel)
	}
	return labels
}

// Connect moves the session from Ready to Connecting and posts the join
// sequence (opening data channels, then the C1 offer/answer exchange) as a
// job on the worker goroutine. It returns as soon as the job is posted, not
// once the join completes: a failure encountered while joining is reported
// exclusively through a subsequent Observer.OnDisconnected, never through
// Connect's return value. The Joined state and Observer.OnJoined are
// reached asynchronously once the server's session-control snapshot
// reports it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return gmstatus.FailedPreconditionf("connect called while session is %s, not ready", s.state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.connectSink.TrySend(func() { s.join(ctx) }); err != nil {
		s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: err.Error()})
		return err
	}

	return nil
}

// join performs the data-channel setup and the blocking C1 offer/answer
// exchange. It always runs on the worker goroutine, posted there by
// Connect, so it never races handleUpdate's processing of inbound updates.
func (s *Session) join(ctx context.Context) {
	labels := s.enabledChannelLabels()
	if err := s.facade.OpenDataChannels(labels); err != nil {
		s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: err.Error()})
		return
	}

	for _, label := range labels {
		s.dispatcher.RegisterChannel(label, parseFuncFor(label))
	}

	s.mu.Lock()
	if s.state == StateConnecting {
		s.state = StateJoining
	}
	s.mu.Unlock()

	span := telemetry.NewTelemetry(ctx, "mediasession.Connect")
	defer span.End()

	if err := s.facade.Connect(ctx, s.config.Join.Endpoint, s.config.Join.ConferenceID, s.config.Join.AccessToken); err != nil {
		span.Fail(err)
		s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: err.Error()})
		return
	}

	span.AddEvent("offer/answer exchange complete")
}

// Leave asks the server to remove this client from the conference. Per
// the error-handling design, a leave issued outside Joined is still sent
// best-effort and then forces a disconnect.
func (s *Session) Leave() error {
	s.mu.Lock()
	joined := s.state == StateJoined
	s.mu.Unlock()

	requestID := s.dispatcher.NextRequestID(sessioncontrol.ChannelLabel)
	payload, err := sessioncontrol.StringifyRequest(sessioncontrol.Request{RequestID: requestID, Leave: true})
	if err != nil {
		return err
	}

	sendErr := s.dispatcher.SendRequest(sessioncontrol.ChannelLabel, payload)

	if !joined {
		s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: "leave invoked outside Joined"})
	}

	return sendErr
}

// SetVideoAssignment requests the server (re-)assign canvases. Fails fast
// if the video-assignment channel was not enabled in configuration.
func (s *Session) SetVideoAssignment(assignments []videoassignment.Assignment) error {
	if !s.config.Channels.VideoAssignment {
		return gmstatus.FailedPreconditionf("video-assignment channel is not enabled")
	}

	requestID := s.dispatcher.NextRequestID(videoassignment.ChannelLabel)
	payload, err := videoassignment.StringifyRequest(videoassignment.Request{RequestID: requestID, Assignments: assignments})
	if err != nil {
		return err
	}

	return s.dispatcher.SendRequest(videoassignment.ChannelLabel, payload)
}

// Participants returns a snapshot of the currently known participants.
func (s *Session) Participants() []participants.Participant { return s.bookkeeping.Participants() }

// MediaEntries returns a snapshot of the currently known media entries.
func (s *Session) MediaEntries() []mediaentries.MediaEntry { return s.bookkeeping.MediaEntries() }

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) handleUpdate(label string, update any) {
	resourceUpdate := ResourceUpdate{Channel: label}

	switch u := update.(type) {
	case sessioncontrol.Update:
		resourceUpdate.SessionControl = &u
		s.observer.OnResourceUpdate(resourceUpdate)
		s.handleSessionControlUpdate(u)
	case mediastats.Update:
		resourceUpdate.MediaStats = &u
		s.observer.OnResourceUpdate(resourceUpdate)
		if u.Configuration != nil {
			s.stats.SetConfiguration(*u.Configuration)
		}
	case participants.Update:
		resourceUpdate.Participants = &u
		s.observer.OnResourceUpdate(resourceUpdate)
		s.bookkeeping.applyParticipants(u)
	case mediaentries.Update:
		resourceUpdate.MediaEntries = &u
		s.observer.OnResourceUpdate(resourceUpdate)
		s.bookkeeping.applyMediaEntries(u)
	case videoassignment.Update:
		resourceUpdate.VideoAssignment = &u
		s.observer.OnResourceUpdate(resourceUpdate)
	default:
		s.logger.WithField("channel", label).Warn("update of unrecognized type, dropping")
	}
}

func (s *Session) handleSessionControlUpdate(update sessioncontrol.Update) {
	for _, snapshot := range update.Resources {
		switch snapshot.ConnectionState {
		case sessioncontrol.ConnectionStateJoined:
			s.transitionToJoined()
		case sessioncontrol.ConnectionStateDisconnected:
			message := "conference disconnected"
			if snapshot.DisconnectReason != nil {
				message = snapshot.DisconnectReason.String()
			}
			s.disconnect(gmstatus.Status{Code: gmstatus.OK, Message: message})
		}
	}
}

func (s *Session) transitionToJoined() {
	s.mu.Lock()
	if s.state == StateJoined || s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateJoined
	s.mu.Unlock()

	s.joined.Resolve(struct{}{})
	s.observer.OnJoined()
}

// WaitUntilJoined blocks until the session reaches Joined or ctx is done.
// It complements the asynchronous Observer.OnJoined callback for embedders
// that prefer a synchronous join.
func (s *Session) WaitUntilJoined(ctx context.Context) error {
	_, err := s.joined.Wait(ctx)
	return err
}

// WaitUntilDisconnected blocks until the session disconnects or ctx is
// done, returning the disconnect status.
func (s *Session) WaitUntilDisconnected(ctx context.Context) (gmstatus.Status, error) {
	return s.disconnected.Wait(ctx)
}

// disconnect performs the single-shot teardown and OnDisconnected
// notification guaranteed by the invariants.
func (s *Session) disconnect(st gmstatus.Status) {
	s.disconnectOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()

		s.messageSink.Seal()
		s.disconnectedSink.Seal()
		s.connectSink.Seal()

		s.stats.Close()
		s.dispatcher.Close()
		if err := s.facade.Close(); err != nil {
			s.logger.WithError(err).Warn("error closing peer connection during disconnect")
		}
		if s.cancel != nil {
			s.cancel()
		}

		s.disconnected.Resolve(st)
		s.observer.OnDisconnected(st)
	})
}

func (s *Session) readTrack(info common.TrackInfo, track *webrtc.TrackRemote) {
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		switch info.Kind {
		case webrtc.RTPCodecTypeAudio:
			s.observer.OnAudioFrame(AudioFrame{
				Track:          info,
				Payload:        packet.Payload,
				SequenceNumber: packet.SequenceNumber,
				Timestamp:      packet.Timestamp,
				SSRC:           uint32(packet.SSRC),
			})
		case webrtc.RTPCodecTypeVideo:
			s.observer.OnVideoFrame(VideoFrame{
				Track:          info,
				Payload:        packet.Payload,
				SequenceNumber: packet.SequenceNumber,
				Timestamp:      packet.Timestamp,
				SSRC:           uint32(packet.SSRC),
				Marker:         packet.Marker,
			})
		}
	}
}

func parseFuncFor(label string) dispatcher.ParseFunc {
	switch label {
	case sessioncontrol.ChannelLabel:
		return func(payload []byte) (any, error) { return sessioncontrol.ParseUpdate(payload) }
	case mediastats.ChannelLabel:
		return func(payload []byte) (any, error) { return mediastats.ParseUpdate(payload) }
	case participants.ChannelLabel:
		return func(payload []byte) (any, error) { return participants.ParseUpdate(payload) }
	case mediaentries.ChannelLabel:
		return func(payload []byte) (any, error) { return mediaentries.ParseUpdate(payload) }
	case videoassignment.ChannelLabel:
		return func(payload []byte) (any, error) { return videoassignment.ParseUpdate(payload) }
	default:
		return func(payload []byte) (any, error) {
			return nil, fmt.Errorf("no codec registered for channel %s", label)
		}
	}
}
