package natsutil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := Connect(srv.ClientURL(), "natsutil-test", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type loaded struct {
	ID       string `json:"id"`
	Listings int    `json:"listings"`
}

// syncBuffer is a bytes.Buffer safe for the subscription goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestNatsHeaderCarrier(t *testing.T) {
	carrier := (*natsHeaderCarrier)(&nats.Msg{})
	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublishWritesJSON(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("findyourcar.test.pub", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "findyourcar.test.pub", loaded{ID: "a", Listings: 81}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		var got loaded
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got != (loaded{ID: "a", Listings: 81}) {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeRoundTripWithTraceContext(t *testing.T) {
	_, nc := startTestNATS(t)

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	type got struct {
		v   loaded
		ctx context.Context
	}
	ch := make(chan got, 1)
	sub, err := Subscribe(nc, "findyourcar.test.sub", nil, func(ctx context.Context, v loaded) {
		ch <- got{v, ctx}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	if err := Publish(ctx, nc, "findyourcar.test.sub", loaded{ID: "b", Listings: 9}); err != nil {
		t.Fatal(err)
	}

	select {
	case g := <-ch:
		if g.v.ID != "b" || g.v.Listings != 9 {
			t.Fatalf("unexpected: %+v", g.v)
		}
		if sc := trace.SpanContextFromContext(g.ctx); sc.TraceID() != traceID {
			t.Fatalf("trace not propagated: %v", sc.TraceID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	_, nc := startTestNATS(t)

	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "findyourcar.test.bad", logger, func(ctx context.Context, v loaded) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	nc.Publish("findyourcar.test.bad", []byte("{bad"))
	nc.Flush()

	select {
	case <-called:
		t.Fatal("handler should not be called for malformed data")
	case <-time.After(100 * time.Millisecond):
	}
	if !strings.Contains(logs.String(), "dropping malformed message") {
		t.Fatalf("expected a warning, got %q", logs.String())
	}
}

func TestPublishMarshalError(t *testing.T) {
	_, nc := startTestNATS(t)
	if err := Publish(context.Background(), nc, "findyourcar.test.err", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", "natsutil-test", nil); err == nil {
		t.Fatal("expected connect error")
	}
}
