package transport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shhac/bolt/internal/domain"
)

const tracerName = "github.com/shhac/bolt/internal/transport"

var (
	transportKey     = attribute.Key("bolt.transport")
	requestIndexKey  = attribute.Key("bolt.request.index")
	requestMethodKey = attribute.Key("bolt.request.method")
	requestURLKey    = attribute.Key("bolt.request.url")
)

type tracedTransport struct {
	next   Transport
	tracer trace.Tracer
}

// WithTracing wraps next so that every backend operation becomes a client
// span named "bolt.<operation>". A nil provider returns next unchanged.
func WithTracing(next Transport, tp trace.TracerProvider) Transport {
	if tp == nil {
		return next
	}
	return &tracedTransport{
		next:   next,
		tracer: tp.Tracer(tracerName),
	}
}

func (t *tracedTransport) Name() string {
	return t.next.Name()
}

func (t *tracedTransport) InlineResponses() bool {
	return t.next.InlineResponses()
}

func (t *tracedTransport) SendRequest(ctx context.Context, payload domain.DispatchPayload) (string, error) {
	ctx, span := t.start(ctx, OpSendRequest,
		requestIndexKey.Int(payload.Index),
		requestMethodKey.String(string(payload.Method)),
		requestURLKey.String(payload.URL),
	)
	reply, err := t.next.SendRequest(ctx, payload)
	end(span, err)
	return reply, err
}

func (t *tracedTransport) SaveState(ctx context.Context, blob string) error {
	ctx, span := t.start(ctx, OpSaveState, attribute.Int("bolt.state.bytes", len(blob)))
	err := t.next.SaveState(ctx, blob)
	end(span, err)
	return err
}

func (t *tracedTransport) RestoreState(ctx context.Context) (string, error) {
	ctx, span := t.start(ctx, OpRestoreState)
	blob, err := t.next.RestoreState(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("bolt.state.bytes", len(blob)))
	}
	end(span, err)
	return blob, err
}

func (t *tracedTransport) OpenLink(ctx context.Context, link string) error {
	ctx, span := t.start(ctx, OpOpenLink)
	err := t.next.OpenLink(ctx, link)
	end(span, err)
	return err
}

// Log is forwarded without a span; it is fed by the log mirror and tracing it
// would only add noise.
func (t *tracedTransport) Log(ctx context.Context, line string) error {
	return t.next.Log(ctx, line)
}

func (t *tracedTransport) ReportFatal(ctx context.Context, line string) error {
	ctx, span := t.start(ctx, OpReportFatal)
	err := t.next.ReportFatal(ctx, line)
	end(span, err)
	return err
}

func (t *tracedTransport) SubscribeResponses(ctx context.Context) (<-chan string, error) {
	_, span := t.start(ctx, EventReceiveResponse)
	events, err := t.next.SubscribeResponses(ctx)
	end(span, err)
	return events, err
}

func (t *tracedTransport) Close() error {
	return t.next.Close()
}

func (t *tracedTransport) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, transportKey.String(t.next.Name()))
	return t.tracer.Start(ctx, "bolt."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "OK")
	}
	span.End()
}
