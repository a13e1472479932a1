package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/logging"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())

	var calls []string
	bus.Subscribe(func(u Update) { calls = append(calls, "a:"+u.Response.Raw) })
	bus.Subscribe(func(u Update) { calls = append(calls, "b:"+u.Response.Raw) })

	bus.Publish(Update{Kind: UpdateResponse, Response: domain.Response{Index: 1, Raw: "1"}})
	bus.Publish(Update{Kind: UpdateResponse, Response: domain.Response{Index: 0, Raw: "0"}})

	assert.Equal(t, []string{"a:1", "b:1", "a:0", "b:0"}, calls)
}

func TestBus_PublishFromObserverIsQueued(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())

	var calls []string
	bus.Subscribe(func(u Update) {
		calls = append(calls, "a:"+u.Response.Raw)
		if u.Response.Raw == "outer" {
			bus.Publish(Update{Kind: UpdateResponse, Response: domain.Response{Raw: "nested"}})
		}
	})
	bus.Subscribe(func(u Update) { calls = append(calls, "b:"+u.Response.Raw) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(Update{Kind: UpdateResponse, Response: domain.Response{Raw: "outer"}})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing from an observer blocked")
	}
	assert.Equal(t, []string{"a:outer", "b:outer", "a:nested", "b:nested"}, calls)
}

func TestBus_StoreReplaceFromObserver(t *testing.T) {
	logger := logging.NewNopLogger()
	bus := NewBus(logger)
	store := NewStore(domain.NewWorkspace(), nil, nil, bus, logger)

	restored := domain.NewWorkspace()
	var kinds []UpdateKind
	bus.Subscribe(func(u Update) {
		kinds = append(kinds, u.Kind)
		if u.Kind == UpdateError {
			store.Replace(restored)
		}
	})

	bus.Publish(ErrorUpdate("restore_state", context.Canceled))

	assert.Equal(t, []UpdateKind{UpdateError, UpdateWorkspace}, kinds)
	assert.Equal(t, restored, store.Snapshot())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())

	count := 0
	cancel := bus.Subscribe(func(Update) { count++ })
	bus.Publish(Update{})
	cancel()
	cancel()
	bus.Publish(Update{})

	assert.Equal(t, 1, count)
}

func TestBus_PanickingObserverIsContained(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())

	var got []UpdateKind
	bus.Subscribe(func(Update) { panic("boom") })
	bus.Subscribe(func(u Update) { got = append(got, u.Kind) })

	require.NotPanics(t, func() {
		bus.Publish(Update{Kind: UpdateWorkspace})
		bus.Publish(Update{Kind: UpdateError})
	})
	assert.Equal(t, []UpdateKind{UpdateWorkspace, UpdateError}, got)
}

func TestErrorUpdate(t *testing.T) {
	u := ErrorUpdate("send_request", context.DeadlineExceeded)

	assert.Equal(t, UpdateError, u.Kind)
	assert.Equal(t, "send_request", u.Op)
	require.NotNil(t, u.Err)
	assert.Equal(t, apperrors.SeverityError, u.Err.Severity)
	assert.ErrorIs(t, u.Err, context.DeadlineExceeded)
}

func TestUpdateKind_String(t *testing.T) {
	assert.Equal(t, "response", UpdateResponse.String())
	assert.Equal(t, "workspace", UpdateWorkspace.String())
	assert.Equal(t, "error", UpdateError.String())
	assert.Equal(t, "UpdateKind(9)", UpdateKind(9).String())
}
