package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownCommand is returned by a Host that has no handler for a command.
var ErrUnknownCommand = errors.New("unknown command")

// listenBuffer is the per-subscriber queue length of a FuncHost event.
const listenBuffer = 64

// Host is a co-located process (or in-process component) that executes
// backend commands and pushes events.
type Host interface {
	// Invoke runs one command with JSON-encoded args and returns its reply.
	Invoke(ctx context.Context, command string, args []byte) (string, error)

	// Listen subscribes to an event. The channel is closed when ctx ends.
	Listen(ctx context.Context, event string) (<-chan string, error)
}

// CommandFunc handles one host command.
type CommandFunc func(ctx context.Context, args []byte) (string, error)

// FuncHost is an in-process Host backed by registered command functions.
// Events emitted with Emit are delivered to every current listener in
// emission order.
type FuncHost struct {
	mu        sync.RWMutex
	commands  map[string]CommandFunc
	listeners map[string]map[*listener]struct{}
}

type listener struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

// NewFuncHost creates an empty FuncHost.
func NewFuncHost() *FuncHost {
	return &FuncHost{
		commands:  make(map[string]CommandFunc),
		listeners: make(map[string]map[*listener]struct{}),
	}
}

// Handle registers fn for command, replacing any earlier handler.
func (h *FuncHost) Handle(command string, fn CommandFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[command] = fn
}

// Invoke implements Host.
func (h *FuncHost) Invoke(ctx context.Context, command string, args []byte) (string, error) {
	h.mu.RLock()
	fn, ok := h.commands[command]
	h.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return fn(ctx, args)
}

// Listen implements Host.
func (h *FuncHost) Listen(ctx context.Context, event string) (<-chan string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &listener{
		ch:   make(chan string, listenBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.listeners[event] == nil {
		h.listeners[event] = make(map[*listener]struct{})
	}
	h.listeners[event][l] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.removeListener(event, l)
	}()

	return l.ch, nil
}

// Emit delivers payload to every listener of event. It blocks while a
// listener's queue is full, until that listener goes away.
func (h *FuncHost) Emit(event, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for l := range h.listeners[event] {
		select {
		case l.ch <- payload:
		case <-l.done:
		}
	}
}

// Listeners returns the number of current subscribers to event.
func (h *FuncHost) Listeners(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[event])
}

func (h *FuncHost) removeListener(event string, l *listener) {
	// Unblock any Emit waiting on this listener before taking the write lock.
	l.once.Do(func() { close(l.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners[event], l)
	close(l.ch)
}
