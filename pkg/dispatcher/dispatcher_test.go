package dispatcher_test

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/dispatcher"
)

type fakeSender struct {
	mu  sync.Mutex
	out []sentMessage
}

type sentMessage struct {
	label   string
	payload []byte
}

func (f *fakeSender) Send(label string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sentMessage{label: label, payload: payload})
	return nil
}

func newTestLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestNextRequestIDIsOneBasedAndMonotonic(t *testing.T) {
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {})
	d.RegisterChannel("session-control", func([]byte) (any, error) { return nil, nil })

	assert.EqualValues(t, 1, d.NextRequestID("session-control"))
	assert.EqualValues(t, 2, d.NextRequestID("session-control"))
	assert.EqualValues(t, 3, d.NextRequestID("session-control"))
}

func TestNextRequestIDIsIndependentPerChannel(t *testing.T) {
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {})
	d.RegisterChannel("session-control", func([]byte) (any, error) { return nil, nil })
	d.RegisterChannel("media-stats", func([]byte) (any, error) { return nil, nil })

	assert.EqualValues(t, 1, d.NextRequestID("session-control"))
	assert.EqualValues(t, 1, d.NextRequestID("media-stats"))
	assert.EqualValues(t, 2, d.NextRequestID("session-control"))
}

func TestNextRequestIDPanicsOnUnregisteredChannel(t *testing.T) {
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {})
	assert.Panics(t, func() { d.NextRequestID("never-registered") })
}

func TestSendRequestFailsFastWhenChannelNotRegistered(t *testing.T) {
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {})
	err := d.SendRequest("never-registered", []byte("x"))
	assert.Error(t, err)
}

func TestHandleMessageRoutesParsedUpdateToOnUpdate(t *testing.T) {
	var gotLabel string
	var gotUpdate any
	done := make(chan struct{})

	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(label string, update any) {
		gotLabel = label
		gotUpdate = update
		close(done)
	})
	d.RegisterChannel("media-stats", func(payload []byte) (any, error) {
		return string(payload), nil
	})

	d.HandleMessage("media-stats", []byte("payload"))

	<-done
	assert.Equal(t, "media-stats", gotLabel)
	assert.Equal(t, "payload", gotUpdate)
}

func TestHandleMessageDropsOnParseError(t *testing.T) {
	var called bool
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {
		called = true
	})
	d.RegisterChannel("media-stats", func([]byte) (any, error) {
		return nil, assertError{}
	})

	d.HandleMessage("media-stats", []byte("bad"))
	assert.False(t, called)
}

func TestHandleMessageDropsOnUnregisteredChannel(t *testing.T) {
	var called bool
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {
		called = true
	})

	d.HandleMessage("never-registered", []byte("x"))
	assert.False(t, called)
}

func TestCloseIsIdempotent(t *testing.T) {
	d := dispatcher.New(&fakeSender{}, newTestLogger(), func(string, any) {})
	d.RegisterChannel("media-stats", func([]byte) (any, error) { return nil, nil })

	d.Close()
	d.Close()
}

type assertError struct{}

func (assertError) Error() string { return "parse error" }

func TestSendRequestDeliversPayloadToSender(t *testing.T) {
	sender := &fakeSender{}
	d := dispatcher.New(sender, newTestLogger(), func(string, any) {})
	d.RegisterChannel("media-stats", func([]byte) (any, error) { return nil, nil })

	require.NoError(t, d.SendRequest("media-stats", []byte("hello")))

	assert.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.out) == 1
	}, time.Second, 5*time.Millisecond)
}
