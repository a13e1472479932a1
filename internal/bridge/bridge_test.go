package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shhac/bolt/internal/async"
	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/logging"
	"github.com/shhac/bolt/internal/model"
)

// fakeTransport is a scriptable Transport. send decides the reply to every
// send_request; nil means an empty acknowledgement.
type fakeTransport struct {
	inline bool
	send   func(ctx context.Context, payload domain.DispatchPayload) (string, error)

	mu    sync.Mutex
	sent  []domain.DispatchPayload
	fatal []string
	links []string
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) InlineResponses() bool { return f.inline }

func (f *fakeTransport) SendRequest(ctx context.Context, payload domain.DispatchPayload) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, payload)
	send := f.send
	f.mu.Unlock()

	if send == nil {
		return "", nil
	}
	return send(ctx, payload)
}

func (f *fakeTransport) SaveState(context.Context, string) error { return nil }

func (f *fakeTransport) RestoreState(context.Context) (string, error) { return "", nil }

func (f *fakeTransport) Log(context.Context, string) error { return nil }

func (f *fakeTransport) SubscribeResponses(context.Context) (<-chan string, error) {
	return nil, apperrors.ErrNoPushChannel
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) OpenLink(_ context.Context, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	return nil
}

func (f *fakeTransport) ReportFatal(_ context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatal = append(f.fatal, line)
	return nil
}

func (f *fakeTransport) sentPayloads() []domain.DispatchPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DispatchPayload(nil), f.sent...)
}

func (f *fakeTransport) fatalLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fatal...)
}

type bridgeFixture struct {
	transport  *fakeTransport
	scheduler  *async.Scheduler
	ingress    *Ingress
	dispatcher *Dispatcher
	updates    chan model.Update
}

func newBridgeFixture(t *testing.T, ft *fakeTransport) *bridgeFixture {
	t.Helper()

	logger := logging.NewNopLogger()
	scheduler := async.NewScheduler(context.Background(), logger)
	t.Cleanup(scheduler.Close)

	bus := model.NewBus(logger)
	updates := make(chan model.Update, 64)
	bus.Subscribe(func(u model.Update) { updates <- u })

	ingress := NewIngress(bus, logger)
	return &bridgeFixture{
		transport:  ft,
		scheduler:  scheduler,
		ingress:    ingress,
		dispatcher: NewDispatcher(ft, ingress, scheduler, bus, logger),
		updates:    updates,
	}
}

func (f *bridgeFixture) next(t *testing.T) model.Update {
	t.Helper()
	select {
	case u := <-f.updates:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an update")
		return model.Update{}
	}
}

func (f *bridgeFixture) none(t *testing.T) {
	t.Helper()
	select {
	case u := <-f.updates:
		t.Fatalf("unexpected update: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func composed(index int) domain.ComposedRequest {
	return domain.ComposedRequest{
		URL:     "http://api.test/items",
		Method:  domain.MethodGet,
		Params:  []domain.Pair{{Key: "page", Value: "1"}},
		Headers: []domain.Pair{{Key: "Accept", Value: "application/json"}},
		Index:   index,
	}
}
