// Package joinconnector implements C1: the single HTTP call that exchanges
// a local SDP offer for the conference's SDP answer, grounded on the
// offer/answer exchange pattern used against the OpenAI realtime WebRTC
// endpoint (request/response shape differs, but the
// context-carrying-http.Client, explicit-header, single-Do pattern is the
// same) and on the field names and defaulting rules of the original Meet
// Media API C++ SDK's curl-based connector.
package joinconnector

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

// Connector performs the join HTTP call.
type Connector struct {
	httpClient *http.Client
	logger     *logrus.Entry
}

// New builds a Connector. If caCertPath is non-empty, its contents are
// added to the system root CA pool used to validate the server's
// certificate.
func New(caCertPath string, logger *logrus.Entry) (*Connector, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if caCertPath != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}

		pem, err := os.ReadFile(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}

		if ok := pool.AppendCertsFromPEM(pem); !ok {
			return nil, fmt.Errorf("failed to parse CA cert at %s", caCertPath)
		}

		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &Connector{
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}, nil
}

type connectRequestBody struct {
	Offer string `json:"offer"`
}

type connectResponseBody struct {
	Answer *string          `json:"answer"`
	Error  *connectErrorBody `json:"error"`
}

type connectErrorBody struct {
	Status  *string `json:"status"`
	Message *string `json:"message"`
}

// ConnectActiveConference exchanges sdpOffer for the server's SDP answer.
func (c *Connector) ConnectActiveConference(
	ctx context.Context,
	joinEndpoint, conferenceID, accessToken, sdpOffer string,
) (string, error) {
	url := fmt.Sprintf("%s/spaces/%s:connectActiveConference", joinEndpoint, conferenceID)

	body, err := json.Marshal(connectRequestBody{Offer: sdpOffer})
	if err != nil {
		return "", fmt.Errorf("failed to marshal join request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build join request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	c.logger.WithField("conferenceId", conferenceID).Info("connecting to active conference")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send join request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read join response: %w", err)
	}

	var parsed connectResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", gmstatus.Internalf("unparseable or non-json response from Meet servers: %s", string(respBody))
	}

	switch {
	case parsed.Answer != nil:
		return *parsed.Answer, nil
	case parsed.Error != nil:
		status := "Unknown error status"
		if parsed.Error.Status != nil {
			status = *parsed.Error.Status
		}
		message := "Unknown error message"
		if parsed.Error.Message != nil {
			message = *parsed.Error.Message
		}
		return "", gmstatus.Internalf("%s: %s", status, message)
	default:
		return "", gmstatus.Internalf("received response without `answer` or `error` field: %s", string(respBody))
	}
}
