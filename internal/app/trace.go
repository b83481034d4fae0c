package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/insead-events/internal/config"
)

const tracerName = "github.com/pfrederiksen/insead-events/internal/app"

// tracerProvider picks the provider for one run. An explicit provider wins.
// With tracing enabled every span is written as JSON to out as it ends;
// otherwise the global provider is used, which is a no-op unless the host
// installed one. The returned func flushes and stops a provider built here.
func tracerProvider(cfg config.Config, provider trace.TracerProvider, out io.Writer) (trace.TracerProvider, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if provider != nil {
		return provider, noop, nil
	}
	if !cfg.Trace.Enabled {
		return otel.GetTracerProvider(), noop, nil
	}

	if out == nil {
		out = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return tp, tp.Shutdown, nil
}
