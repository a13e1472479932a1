package model

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

// UpdateKind tells observers which part of an Update is set.
type UpdateKind int

const (
	UpdateResponse  UpdateKind = iota // Response holds a delivered reply
	UpdateWorkspace                   // Workspace holds the restored state
	UpdateError                       // Err holds a user-facing failure
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateResponse:
		return "response"
	case UpdateWorkspace:
		return "workspace"
	case UpdateError:
		return "error"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// Update is one notification for the UI layer.
type Update struct {
	Kind      UpdateKind
	Op        string
	Response  domain.Response
	Workspace domain.Workspace
	Err       *apperrors.UIError
}

// ErrorUpdate classifies err for display as the outcome of op.
func ErrorUpdate(op string, err error) Update {
	return Update{
		Kind: UpdateError,
		Op:   op,
		Err:  apperrors.ClassifyError(err),
	}
}

// Observer receives updates on the publishing goroutine.
type Observer func(Update)

// Bus fans updates out to observers. Updates are delivered one at a time in
// the order they were published. An observer may publish from inside its
// callback: the new update is queued and delivered once the current one has
// reached every observer.
type Bus struct {
	mu         sync.Mutex
	observers  map[int]Observer
	order      []int
	nextID     int
	queue      []Update
	delivering bool

	logger *slog.Logger
}

// NewBus creates a Bus without observers.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		observers: make(map[int]Observer),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Observer) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.observers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish calls every observer with u, in subscription order. When another
// delivery is already running, u is queued behind it and Publish returns at
// once; the running delivery hands it out. A panicking observer is logged
// and skipped.
func (b *Bus) Publish(u Update) {
	b.mu.Lock()
	b.queue = append(b.queue, u)
	if b.delivering {
		b.mu.Unlock()
		return
	}
	b.delivering = true

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue[0] = Update{}
		b.queue = b.queue[1:]

		targets := make([]Observer, 0, len(b.order))
		for _, id := range b.order {
			targets = append(targets, b.observers[id])
		}
		b.mu.Unlock()

		for _, fn := range targets {
			b.notify(fn, next)
		}

		b.mu.Lock()
	}

	b.delivering = false
	b.mu.Unlock()
}

func (b *Bus) notify(fn Observer, u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked",
				slog.String("kind", u.Kind.String()),
				slog.Any("panic", r),
			)
		}
	}()
	fn(u)
}
