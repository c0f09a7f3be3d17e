package telemetry

// Config identifies this client instance in emitted spans. There is no
// exporter configuration here: this build keeps the otel SDK wired for span
// creation and attribute/event recording, but does not ship a collector
// endpoint, so spans are created and recorded locally without being
// exported anywhere. See DESIGN.md for the reasoning.
type Config struct {
	// The package/service name to use for the telemetry resource.
	Package string `yaml:"package"`
	// ID of this client instance.
	ID string `yaml:"id"`
}
