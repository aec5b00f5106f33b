package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/YaganovValera/universe-client/common/logger"
)

func TestApplyDefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, true},
		{"no service", Config{Endpoint: "otel:4317"}, true},
		{"no version", Config{Endpoint: "otel:4317", ServiceName: "svc"}, true},
		{"ok", Config{Endpoint: "otel:4317", ServiceName: "svc", ServiceVersion: "v1"}, false},
		{"bad ratio is reset", Config{Endpoint: "otel:4317", ServiceName: "svc", ServiceVersion: "v1", SamplerRatio: 3}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.cfg
			applyDefaults(&cfg)
			if cfg.Timeout != 5*time.Second {
				t.Errorf("Timeout = %v", cfg.Timeout)
			}
			if err := validateConfig(cfg); (err != nil) != c.wantErr {
				t.Errorf("validateConfig() error = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestInitTracer_InvalidConfig(t *testing.T) {
	if _, err := InitTracer(context.Background(), Config{}, logger.Nop()); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestNewTracerProvider_Samples(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	res, err := newResource(Config{ServiceName: "svc", ServiceVersion: "v1"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	tp := newTracerProvider(exp, res, Config{SamplerRatio: 1})

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := len(exp.GetSpans()); got != 1 {
		t.Errorf("spans = %d; want 1", got)
	}
	_ = tp.Shutdown(context.Background())
}
