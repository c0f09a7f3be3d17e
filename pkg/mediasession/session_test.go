package mediasession

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/config"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/sessioncontrol"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

type countingObserver struct {
	mu            sync.Mutex
	joinedCount   int32
	disconnects   []gmstatus.Status
	resourceCount int32
}

func (o *countingObserver) OnJoined() {
	atomic.AddInt32(&o.joinedCount, 1)
}

func (o *countingObserver) OnDisconnected(status gmstatus.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnects = append(o.disconnects, status)
}

func (o *countingObserver) OnResourceUpdate(ResourceUpdate) {
	atomic.AddInt32(&o.resourceCount, 1)
}

func (o *countingObserver) OnAudioFrame(AudioFrame) {}
func (o *countingObserver) OnVideoFrame(VideoFrame) {}

func (o *countingObserver) disconnectCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.disconnects)
}

func newTestSession(t *testing.T, observer Observer) *Session {
	t.Helper()

	cfg := &config.Config{
		Join: config.Join{
			Endpoint:     "https://example.invalid",
			ConferenceID: "conf-1",
			AccessToken:  "token",
		},
	}

	base := logrus.New()
	base.SetOutput(io.Discard)
	logger := logrus.NewEntry(base)

	s, err := New(cfg, observer, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.disconnect(gmstatus.Status{Code: gmstatus.OK, Message: "test cleanup"}) })
	return s
}

func TestTransitionToJoinedFiresOnJoinedExactlyOnce(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	s.handleSessionControlUpdate(sessioncontrol.Update{
		Resources: []sessioncontrol.SessionStatus{{ConnectionState: sessioncontrol.ConnectionStateJoined}},
	})
	s.handleSessionControlUpdate(sessioncontrol.Update{
		Resources: []sessioncontrol.SessionStatus{{ConnectionState: sessioncontrol.ConnectionStateJoined}},
	})

	assert.Equal(t, StateJoined, s.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&observer.joinedCount))
}

func TestServerDisconnectReportsOKStatus(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	s.handleSessionControlUpdate(sessioncontrol.Update{
		Resources: []sessioncontrol.SessionStatus{{ConnectionState: sessioncontrol.ConnectionStateDisconnected}},
	})

	assert.Equal(t, StateDisconnected, s.State())
	require.Equal(t, 1, observer.disconnectCount())
	assert.Equal(t, gmstatus.OK, observer.disconnects[0].Code)
}

func TestDisconnectIsSingleShot(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: "concurrent disconnect"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, observer.disconnectCount())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnectFailsFastWhenNotReady(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	s.mu.Lock()
	s.state = StateJoined
	s.mu.Unlock()

	err := s.Connect(context.Background())
	assert.Error(t, err)
}

func TestConnectReturnsOKOnceJobIsPostedAndReportsJoinFailureViaOnDisconnected(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	err := s.Connect(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return observer.disconnectCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, gmstatus.Internal, observer.disconnects[0].Code)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSetVideoAssignmentFailsFastWhenChannelDisabled(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	err := s.SetVideoAssignment(nil)
	assert.Error(t, err)
}

func TestWaitUntilJoinedUnblocksOnTransition(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	done := make(chan error, 1)
	go func() {
		done <- s.WaitUntilJoined(context.Background())
	}()

	s.handleSessionControlUpdate(sessioncontrol.Update{
		Resources: []sessioncontrol.SessionStatus{{ConnectionState: sessioncontrol.ConnectionStateJoined}},
	})

	require.NoError(t, <-done)
}

func TestWaitUntilDisconnectedReturnsStatus(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSession(t, observer)

	done := make(chan gmstatus.Status, 1)
	go func() {
		st, _ := s.WaitUntilDisconnected(context.Background())
		done <- st
	}()

	s.disconnect(gmstatus.Status{Code: gmstatus.Internal, Message: "boom"})

	st := <-done
	assert.Equal(t, "boom", st.Message)
}
