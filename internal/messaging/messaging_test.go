package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func useTracing(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func newTestConsumer(reader messageReader, maxAttempts uint) *Consumer {
	return &Consumer{
		reader:      reader,
		topic:       "order.placed",
		groupID:     "test",
		maxAttempts: maxAttempts,
		backoff:     func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) },
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "a", Value: []byte("1")}}}
	carrier := NewHeaderCarrier(&msg)

	carrier.Set("a", "2")
	carrier.Set("b", "3")

	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}
	if got := carrier.Get("a"); got != "2" {
		t.Errorf("expected a=2, got %q", got)
	}
	if got := carrier.Get("b"); got != "3" {
		t.Errorf("expected b=3, got %q", got)
	}
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestProducerPublish(t *testing.T) {
	useTracing(t)

	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "order.placed"}

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	if err := p.Publish(ctx, "order-1", map[string]string{"order_id": "order-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "order-1" {
		t.Errorf("unexpected key %q", msg.Key)
	}

	var payload map[string]string
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["order_id"] != "order-1" {
		t.Errorf("unexpected payload %v", payload)
	}

	if NewHeaderCarrier(&msg).Get("traceparent") == "" {
		t.Error("expected traceparent header")
	}
}

func TestProducerPublish_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "order.placed"}

	if err := p.Publish(context.Background(), "k", struct{}{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConsumer_PropagatesTraceAndCommits(t *testing.T) {
	useTracing(t)

	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "order.placed"}

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	if err := p.Publish(ctx, "order-1", map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	span.End()
	traceID := span.SpanContext().TraceID()

	reader := &fakeReader{pending: writer.msgs}
	c := newTestConsumer(reader, 3)

	var got trace.TraceID
	err := c.Consume(context.Background(), func(ctx context.Context, payload []byte) error {
		got = trace.SpanContextFromContext(ctx).TraceID()
		return nil
	})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected reader EOF, got %v", err)
	}

	if got != traceID {
		t.Errorf("expected trace %s to continue, got %s", traceID, got)
	}
	if len(reader.committed) != 1 {
		t.Errorf("expected 1 commit, got %d", len(reader.committed))
	}
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Value: []byte("a")}, {Value: []byte("b")}}}
	c := newTestConsumer(reader, 3)

	calls := map[string]int{}
	_ = c.Consume(context.Background(), func(_ context.Context, payload []byte) error {
		calls[string(payload)]++
		if string(payload) == "a" && calls["a"] < 2 {
			return errors.New("transient")
		}
		if string(payload) == "b" {
			return errors.New("always fails")
		}
		return nil
	})

	if calls["a"] != 2 {
		t.Errorf("expected a to succeed on the 2nd attempt, got %d calls", calls["a"])
	}
	if calls["b"] != 3 {
		t.Errorf("expected b to be attempted 3 times, got %d", calls["b"])
	}
	if len(reader.committed) != 2 {
		t.Errorf("expected both messages committed, got %d", len(reader.committed))
	}
}

func TestConsumer_PermanentErrorIsNotRetried(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Value: []byte("bad")}}}
	c := newTestConsumer(reader, 5)

	calls := 0
	_ = c.Consume(context.Background(), func(context.Context, []byte) error {
		calls++
		return backoff.Permanent(errors.New("malformed"))
	})

	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
	if len(reader.committed) != 1 {
		t.Errorf("expected message committed, got %d", len(reader.committed))
	}
}
