package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("noop provider should produce invalid span contexts")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "bmlt-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Out:         &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{}, nil)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "bmlt.GetFormats")
	span.End()
	ShutdownTracing(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "bmlt.GetFormats") {
		t.Fatalf("expected exported span in output, got %q", buf.String())
	}
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
