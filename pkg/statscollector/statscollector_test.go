package statscollector_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediastats"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/statscollector"
)

type fakeSource struct {
	report webrtc.StatsReport
}

func (f *fakeSource) GetStats() webrtc.StatsReport { return f.report }

type fakeSender struct {
	mu       sync.Mutex
	requests [][]byte
	nextID   int64
}

func (f *fakeSender) NextRequestID(string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *fakeSender) SendRequest(_ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, payload)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestSetConfigurationZeroIntervalDisablesUploads(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"codec-1": webrtc.CodecStats{Type: webrtc.StatsTypeCodec, MimeType: "video/VP8"},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())
	defer c.Close()

	c.SetConfiguration(mediastats.Configuration{UploadIntervalSeconds: 0})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
}

func TestSetConfigurationUploadsImmediatelyOnFirstCall(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"codec-1": webrtc.CodecStats{Type: webrtc.StatsTypeCodec, MimeType: "video/VP8"},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())
	defer c.Close()

	c.SetConfiguration(mediastats.Configuration{
		UploadIntervalSeconds: 3600,
		Allowlist:             map[string][]string{"codec": {"mimeType"}},
	})

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTickDropsSectionsNotInAllowlist(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"codec-1":     webrtc.CodecStats{Type: webrtc.StatsTypeCodec, MimeType: "video/VP8"},
		"transport-1": webrtc.TransportStats{Type: webrtc.StatsTypeTransport, BytesSent: 10},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())
	defer c.Close()

	c.SetConfiguration(mediastats.Configuration{
		UploadIntervalSeconds: 3600,
		Allowlist:             map[string][]string{"codec": {"mimeType"}},
	})

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	payload := sender.requests[0]
	sender.mu.Unlock()

	assert.Contains(t, string(payload), "mimeType")
	assert.NotContains(t, string(payload), "bytesSent")
}

func TestTickExcludesIDTypeAndTimestampFromAttributeValues(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"codec-1": webrtc.CodecStats{
			Type:        webrtc.StatsTypeCodec,
			ID:          "1",
			Timestamp:   webrtc.StatsTimestamp(1000),
			MimeType:    "video/VP8",
			PayloadType: 111,
		},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())
	defer c.Close()

	c.SetConfiguration(mediastats.Configuration{
		UploadIntervalSeconds: 3600,
		Allowlist:             map[string][]string{"codec": {"id", "mimeType", "payloadType"}},
	})

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	payload := string(sender.requests[0])
	sender.mu.Unlock()

	assert.Contains(t, payload, "mimeType")
	assert.Contains(t, payload, "payloadType")
	assert.NotContains(t, payload, `"timestamp"`)

	// The section's own "id" key is expected; only the codec attribute map
	// must not carry id/type/timestamp.
	var decoded struct {
		Request struct {
			UploadMediaStats struct {
				Sections []map[string]json.RawMessage `json:"sections"`
			} `json:"uploadMediaStats"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	require.Len(t, decoded.Request.UploadMediaStats.Sections, 1)
	var codecValues map[string]string
	require.NoError(t, json.Unmarshal(decoded.Request.UploadMediaStats.Sections[0]["codec"], &codecValues))
	assert.NotContains(t, codecValues, "id")
	assert.NotContains(t, codecValues, "type")
	assert.NotContains(t, codecValues, "timestamp")
}

func TestTickSkipsUploadWhenNoSectionsSurvive(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"transport-1": webrtc.TransportStats{Type: webrtc.StatsTypeTransport, BytesSent: 10},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())
	defer c.Close()

	c.SetConfiguration(mediastats.Configuration{
		UploadIntervalSeconds: 3600,
		Allowlist:             map[string][]string{"codec": {"mimeType"}},
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sender.count())
}

func TestCloseStopsFurtherUploads(t *testing.T) {
	source := &fakeSource{report: webrtc.StatsReport{
		"codec-1": webrtc.CodecStats{Type: webrtc.StatsTypeCodec, MimeType: "video/VP8"},
	}}
	sender := &fakeSender{}
	c := statscollector.New(source, sender, newTestLogger())

	c.SetConfiguration(mediastats.Configuration{
		UploadIntervalSeconds: 1,
		Allowlist:             map[string][]string{"codec": {"mimeType"}},
	})
	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, 5*time.Millisecond)

	c.Close()
	countAtClose := sender.count()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, countAtClose, sender.count())
}
