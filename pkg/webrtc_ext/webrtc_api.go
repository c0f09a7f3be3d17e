package webrtc_ext

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// createWebRTCAPI builds Pion's WebRTC API with the default codec set and
// the default RTP/RTCP interceptor pipeline (NACK, RTCP reports, etc).
// Unlike an SFU, a single conference-joining client never needs simulcast
// header extensions or NAT1To1 IP rewriting, so neither is wired here.
func createWebRTCAPI(config Config) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register default codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to set default interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	return api, nil
}
