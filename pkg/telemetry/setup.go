package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTelemetry configures OpenTelemetry for the client and installs it
// as the global tracer provider. There is no configured exporter: the
// provider still samples and builds spans (AddEvent/AddError/Fail on
// Telemetry all work), it simply doesn't ship them anywhere. An embedder
// that wants the spans exported can register its own span processor on
// the returned provider before traffic starts.
func SetupTelemetry(config Config) (*tracesdk.TracerProvider, error) {
	res, err := NewResource(config.Package, config.ID)
	if err != nil {
		return nil, err
	}

	tp := NewTracerProvider(res)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

// NewTracerProvider creates a trace provider bound to res, sampling every
// span, with no span processor attached.
func NewTracerProvider(res *resource.Resource) *tracesdk.TracerProvider {
	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithResource(res),
	)
}

// NewResource creates a new resource identifying this client instance.
func NewResource(pkg, identifier string) (*resource.Resource, error) {
	if pkg == "" || identifier == "" {
		return nil, fmt.Errorf("empty resource name or identifier")
	}

	res, err := resource.New(
		context.Background(),
		resource.WithContainer(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(pkg),
			attribute.String("ID", identifier),
		),
	)
	if err != nil {
		return nil, err
	}

	return res, nil
}
