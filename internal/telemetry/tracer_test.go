package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tp, shutdown, err := InitTracer("authpipe-test", &buf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "pipeline.run")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "pipeline.run") {
		t.Errorf("exported spans missing span name: %s", out)
	}
	if !strings.Contains(out, "authpipe-test") {
		t.Errorf("exported spans missing service name: %s", out)
	}
}
