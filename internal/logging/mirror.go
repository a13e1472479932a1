package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Sink receives one formatted log line. Sinks are best effort and must not
// log through the handler that feeds them.
type Sink func(line string)

// MirrorHandler passes every record to the wrapped handler and additionally
// forwards records at or above its level to a Sink, typically the backend's
// log command. The sink can be attached after the logger was built.
type MirrorHandler struct {
	next   slog.Handler
	level  slog.Leveler
	sink   *atomic.Pointer[Sink]
	attrs  []slog.Attr
	groups []string
}

// NewMirrorHandler wraps next. Records at level or above are mirrored once a
// sink is attached with SetSink.
func NewMirrorHandler(next slog.Handler, level slog.Leveler) *MirrorHandler {
	return &MirrorHandler{
		next:  next,
		level: level,
		sink:  &atomic.Pointer[Sink]{},
	}
}

// SetSink attaches (or with nil, detaches) the mirror destination. It affects
// every handler derived from this one.
func (h *MirrorHandler) SetSink(sink Sink) {
	if sink == nil {
		h.sink.Store(nil)
		return
	}
	h.sink.Store(&sink)
}

// Enabled implements slog.Handler.
func (h *MirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next.Enabled(ctx, level) {
		return true
	}
	return h.sink.Load() != nil && level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *MirrorHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}

	if r.Level >= h.level.Level() {
		if sink := h.sink.Load(); sink != nil {
			(*sink)(h.format(r))
		}
	}

	return err
}

// WithAttrs implements slog.Handler.
func (h *MirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *MirrorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *MirrorHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(h.groups) == 0 {
		return attrs
	}
	prefix := strings.Join(h.groups, ".") + "."
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

// format renders "LEVEL message key=value ..." for the sink.
func (h *MirrorHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.Resolve().String())
	}
	for _, a := range h.attrs {
		write(a)
	}
	var recordAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		recordAttrs = append(recordAttrs, a)
		return true
	})
	for _, a := range h.qualify(recordAttrs) {
		write(a)
	}

	return b.String()
}
