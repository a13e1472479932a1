package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/model"
	"github.com/shhac/bolt/internal/transport"
)

// indexField is the field of a pushed response that echoes the correlation
// index of its request.
const indexField = "request_index"

// maxIndex is the largest correlation index accepted on dispatch and on
// receipt, so every index that can be sent can also be delivered.
const maxIndex = math.MaxInt32

// Ingress turns backend replies into response updates. Each in-flight index
// is delivered at most once; replies for unknown indices are dropped.
type Ingress struct {
	mu       sync.Mutex
	inFlight map[int]struct{}

	bus    *model.Bus
	logger *slog.Logger
}

// NewIngress creates an Ingress publishing to bus.
func NewIngress(bus *model.Bus, logger *slog.Logger) *Ingress {
	return &Ingress{
		inFlight: make(map[int]struct{}),
		bus:      bus,
		logger:   logger,
	}
}

// Expect marks index as awaiting a response. Indices outside 0..maxIndex
// are rejected as input errors.
func (in *Ingress) Expect(index int) error {
	if index < 0 || index > maxIndex {
		return apperrors.UserInputError{
			Field:   "index",
			Value:   fmt.Sprint(index),
			Message: fmt.Sprintf("correlation index must be between 0 and %d", maxIndex),
		}
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if _, ok := in.inFlight[index]; ok {
		return fmt.Errorf("index %d: %w", index, apperrors.ErrDuplicateIndex)
	}
	in.inFlight[index] = struct{}{}
	return nil
}

// Forget releases index without delivering anything, after a failed send.
func (in *Ingress) Forget(index int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.inFlight, index)
}

// Pending returns the in-flight indices in ascending order.
func (in *Ingress) Pending() []int {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make([]int, 0, len(in.inFlight))
	for index := range in.inFlight {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// OnResponse handles one pushed reply. The correlation index is read from its
// request_index field; replies that are not JSON or carry no usable index
// are logged and skipped.
func (in *Ingress) OnResponse(raw string) bool {
	if !gjson.Valid(raw) {
		in.logger.Warn("dropping response that is not valid JSON", slog.Int("bytes", len(raw)))
		return false
	}

	field := gjson.Get(raw, indexField)
	if field.Type != gjson.Number {
		in.logger.Warn("dropping response without a correlation index",
			slog.String("field", indexField),
			slog.String("found", field.Type.String()),
		)
		return false
	}
	if field.Num < 0 || field.Num != math.Trunc(field.Num) || field.Num > maxIndex {
		in.logger.Warn("dropping response with an invalid correlation index",
			slog.String("value", field.Raw),
		)
		return false
	}

	return in.Complete(int(field.Int()), raw)
}

// Complete delivers raw as the response for index. It reports whether the
// index was in flight.
func (in *Ingress) Complete(index int, raw string) bool {
	in.mu.Lock()
	_, ok := in.inFlight[index]
	delete(in.inFlight, index)
	in.mu.Unlock()

	if !ok {
		in.logger.Warn("dropping response for an index that is not in flight", slog.Int("index", index))
		return false
	}

	in.bus.Publish(model.Update{
		Kind:     model.UpdateResponse,
		Op:       transport.EventReceiveResponse,
		Response: domain.Response{Index: index, Raw: raw},
	})
	return true
}

// Run feeds events to OnResponse until ctx ends or the channel is closed.
func (in *Ingress) Run(ctx context.Context, events <-chan string) {
	in.logger.Debug("response loop started")
	defer in.logger.Debug("response loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				in.logger.Warn("response subscription closed by backend")
				return
			}
			in.handle(raw)
		}
	}
}

func (in *Ingress) handle(raw string) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("panic while handling response",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	in.OnResponse(raw)
}
