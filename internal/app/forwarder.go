package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shhac/bolt/internal/transport"
)

const (
	forwardQueue   = 128
	forwardTimeout = 2 * time.Second
)

// logForwarder copies mirrored log lines to the backend's log command on its
// own goroutine. Lines are dropped when the queue is full; the logging path
// never waits on the backend.
type logForwarder struct {
	transport transport.Transport
	// fallback must not feed back into the mirror
	fallback *slog.Logger

	lines chan string
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newLogForwarder(t transport.Transport, fallback *slog.Logger) *logForwarder {
	f := &logForwarder{
		transport: t,
		fallback:  fallback,
		lines:     make(chan string, forwardQueue),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go f.run()
	return f
}

// sink is the logging.Sink attached to the mirror handler.
func (f *logForwarder) sink(line string) {
	select {
	case <-f.stop:
	case f.lines <- line:
	default:
	}
}

func (f *logForwarder) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			return
		case line := <-f.lines:
			f.forward(line)
		}
	}
}

func (f *logForwarder) forward(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()
	if err := f.transport.Log(ctx, line); err != nil {
		f.fallback.Debug("failed to forward log line", slog.Any("error", err))
	}
}

// Close stops forwarding. Queued lines that have not been sent are dropped.
func (f *logForwarder) Close() {
	f.once.Do(func() { close(f.stop) })
	<-f.done
}
