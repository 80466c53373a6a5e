package context_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	ctxPkg "github.com/yeisme/ingestvault/pkg/context"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

func TestManager(t *testing.T) {
	if ctxPkg.GetManager(context.Background()) != nil {
		t.Fatal("expected nil manager on empty context")
	}

	mgr := &storage.Manager{}
	if got := ctxPkg.GetManager(ctxPkg.WithStorageManager(context.Background(), mgr)); got != mgr {
		t.Errorf("got %p, want %p", got, mgr)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))
	ctx = ctxPkg.WithRequestID(ctx, "req-1")

	l := ctxPkg.Logger(ctx, zerolog.New(&buf))
	l.Info().Msg("upload accepted")

	for _, want := range []string{`"request_id":"req-1"`, `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`, `"span_id":"00f067aa0ba902b7"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %s in %s", want, buf.String())
		}
	}

	buf.Reset()

	plain := ctxPkg.Logger(context.Background(), zerolog.New(&buf))
	plain.Info().Msg("x")

	if strings.Contains(buf.String(), "request_id") || strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected fields %s", buf.String())
	}
}
