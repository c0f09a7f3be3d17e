// Package statscollector implements C5: once the media-stats channel
// delivers its configuration, periodically pulls a WebRTC stats report,
// filters it down to the server's allowlist, and uploads it. The
// filter/report-walk is grounded on stats_request_from_report.cc; the
// periodic upload loop reuses pkg/common/watchdog.go's timeout-driven
// goroutine as-is (its "fire OnTimeout every Timeout unless notified"
// behavior is exactly a periodic re-upload loop; Notify is unused here
// since nothing needs to postpone an upload).
package statscollector

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediastats"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/telemetry"
)

// StatsSource is the subset of *webrtc.PeerConnection the collector needs.
type StatsSource interface {
	GetStats() webrtc.StatsReport
}

// RequestSender is the subset of *dispatcher.Dispatcher the collector
// needs to stamp and send an upload-media-stats request.
type RequestSender interface {
	NextRequestID(label string) int64
	SendRequest(label string, payload []byte) error
}

// Collector drives the periodic media-stats upload loop.
type Collector struct {
	logger *logrus.Entry
	source StatsSource
	sender RequestSender

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	config   *mediastats.Configuration
	watchdog *common.WatchdogChannel
}

// New creates an idle Collector. It does nothing until SetConfiguration is
// called with the channel's singleton snapshot.
func New(source StatsSource, sender RequestSender, logger *logrus.Entry) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		logger: logger,
		source: source,
		sender: sender,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetConfiguration installs the media-stats configuration and, on first
// call, starts the upload loop. A zero upload interval disables uploads;
// later calls are not expected (the configuration is delivered exactly
// once) but are handled by simply replacing the stored configuration.
func (c *Collector) SetConfiguration(config mediastats.Configuration) {
	c.mu.Lock()
	first := c.config == nil
	c.config = &config
	c.mu.Unlock()

	if config.UploadIntervalSeconds <= 0 {
		c.logger.Warn("media-stats upload interval is zero, uploads disabled")
		return
	}

	if first {
		c.tick()

		c.mu.Lock()
		c.watchdog = (&common.WatchdogConfig{
			Timeout:   time.Duration(config.UploadIntervalSeconds) * time.Second,
			OnTimeout: c.tick,
		}).Start()
		c.mu.Unlock()
	}
}

func (c *Collector) tick() {
	select {
	case <-c.ctx.Done():
		return
	default:
	}

	c.mu.Lock()
	config := c.config
	c.mu.Unlock()

	if config == nil || config.UploadIntervalSeconds <= 0 {
		return
	}

	span := telemetry.NewTelemetry(context.Background(), "statscollector.tick")
	defer span.End()

	report := c.source.GetStats()
	sections := sectionsFromReport(report, config.Allowlist)

	if len(sections) > 0 {
		requestID := c.sender.NextRequestID(mediastats.ChannelLabel)
		payload, err := mediastats.StringifyRequest(mediastats.Request{RequestID: requestID, Sections: sections})
		if err != nil {
			span.Fail(err)
			c.logger.WithError(err).Error("failed to stringify media-stats upload request")
		} else if err := c.sender.SendRequest(mediastats.ChannelLabel, payload); err != nil {
			span.Fail(err)
			c.logger.WithError(err).Error("failed to send media-stats upload request")
		} else {
			span.AddEvent("media-stats uploaded")
		}
	}
}

// Close cancels any pending or future scheduled iteration. The collector
// never uploads again after Close.
func (c *Collector) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchdog != nil {
		c.watchdog.Close()
	}
}

// sectionsFromReport walks report and keeps only the sections/attributes
// named in allowlist, stringifying each surviving attribute value. A
// section with no surviving attributes is dropped entirely.
func sectionsFromReport(report webrtc.StatsReport, allowlist map[string][]string) []mediastats.Section {
	var sections []mediastats.Section

	for id, stat := range report {
		statType, ok := statTypeOf(stat)
		if !ok {
			continue
		}

		allowed, ok := allowlist[statType]
		if !ok {
			continue
		}

		values := attributeValues(stat, allowed)
		if len(values) == 0 {
			continue
		}

		sections = append(sections, mediastats.Section{ID: id, Type: statType, Values: values})
	}

	return sections
}

func statTypeOf(stat any) (string, bool) {
	v := reflect.ValueOf(stat)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}

	field := v.FieldByName("Type")
	if !field.IsValid() {
		return "", false
	}

	return fmt.Sprintf("%v", field.Interface()), true
}

// nonAttributeFields are the members pion promotes to a section's own
// id/type (and its timestamp), never part of the attribute value map.
// stats_request_from_report.cc mirrors this by iterating only
// report_section.Attributes(), which already excludes them.
var nonAttributeFields = map[string]struct{}{
	"id":        {},
	"type":      {},
	"timestamp": {},
}

func attributeValues(stat any, allowed []string) map[string]string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	v := reflect.ValueOf(stat)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	values := make(map[string]string)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := jsonFieldName(field)
		if name == "" {
			continue
		}
		if _, ok := nonAttributeFields[name]; ok {
			continue
		}
		if _, ok := allowedSet[name]; !ok {
			continue
		}

		fieldValue := v.Field(i)
		if isZero(fieldValue) {
			continue
		}

		values[name] = fmt.Sprintf("%v", fieldValue.Interface())
	}

	return values
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name := tag
	for i, c := range tag {
		if c == ',' {
			name = tag[:i]
			break
		}
	}
	return name
}

func isZero(v reflect.Value) bool {
	return v.IsZero()
}
