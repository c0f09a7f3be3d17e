package mediastats_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediastats"
)

func TestParseUpdateDecodesConfiguration(t *testing.T) {
	raw := []byte(`{
		"resources": [{
			"configuration": {
				"uploadIntervalSeconds": 10,
				"allowlist": {"codec": {"keys": ["mimeType", "payloadType"]}}
			}
		}]
	}`)

	update, err := mediastats.ParseUpdate(raw)
	require.NoError(t, err)
	require.NotNil(t, update.Configuration)
	assert.EqualValues(t, 10, update.Configuration.UploadIntervalSeconds)
	assert.Equal(t, []string{"mimeType", "payloadType"}, update.Configuration.Allowlist["codec"])
}

func TestParseUpdateResponseRequiresRequestID(t *testing.T) {
	raw := []byte(`{"response": {"uploadMediaStats": {}}}`)

	_, err := mediastats.ParseUpdate(raw)
	assert.Error(t, err)
}

func TestParseUpdateStatusRequiresBothFields(t *testing.T) {
	raw := []byte(`{"response": {"requestId": 1, "status": {"code": 0}}}`)

	_, err := mediastats.ParseUpdate(raw)
	assert.Error(t, err)
}

func TestParseUpdateResourcesMustBeSingleElement(t *testing.T) {
	raw := []byte(`{"resources": [
		{"configuration": {"uploadIntervalSeconds": 1, "allowlist": {}}},
		{"configuration": {"uploadIntervalSeconds": 2, "allowlist": {}}}
	]}`)

	_, err := mediastats.ParseUpdate(raw)
	assert.Error(t, err)
}

func TestParseUpdateAcknowledgesUpload(t *testing.T) {
	raw := []byte(`{"response": {"requestId": 5, "uploadMediaStats": {}}}`)

	update, err := mediastats.ParseUpdate(raw)
	require.NoError(t, err)
	require.NotNil(t, update.Response)
	assert.True(t, update.Response.UploadAcknowledged)
	assert.Equal(t, int64(5), update.Response.RequestID)
}

func TestStringifyRequestRequiresNonZeroRequestID(t *testing.T) {
	_, err := mediastats.StringifyRequest(mediastats.Request{})
	assert.Error(t, err)
}

func TestStringifyRequestNestsValuesUnderSectionType(t *testing.T) {
	payload, err := mediastats.StringifyRequest(mediastats.Request{
		RequestID: 3,
		Sections: []mediastats.Section{
			{ID: "rtp-1", Type: "codec", Values: map[string]string{"mimeType": "video/VP8"}},
		},
	})
	require.NoError(t, err)

	var decoded struct {
		Request struct {
			RequestID        int64 `json:"requestId"`
			UploadMediaStats struct {
				Sections []map[string]json.RawMessage `json:"sections"`
			} `json:"uploadMediaStats"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, int64(3), decoded.Request.RequestID)
	require.Len(t, decoded.Request.UploadMediaStats.Sections, 1)

	section := decoded.Request.UploadMediaStats.Sections[0]
	var id string
	require.NoError(t, json.Unmarshal(section["id"], &id))
	assert.Equal(t, "rtp-1", id)

	var codecValues map[string]string
	require.NoError(t, json.Unmarshal(section["codec"], &codecValues))
	assert.Equal(t, "video/VP8", codecValues["mimeType"])
}
