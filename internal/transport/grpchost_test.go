package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	apperrors "github.com/shhac/bolt/internal/errors"
)

// startHostServer serves host on an ephemeral local port and returns a
// client for it. Everything is torn down with the test.
func startHostServer(t *testing.T, host Host) *GRPCHost {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	RegisterHost(server, host)
	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		server.Stop()
	})

	return NewGRPCHost(conn, testLogger)
}

type refusingHost struct{}

func (refusingHost) Invoke(context.Context, string, []byte) (string, error) {
	return "", errors.New("refused")
}

func (refusingHost) Listen(context.Context, string) (<-chan string, error) {
	return nil, errors.New("no listeners allowed")
}

func TestGRPCHost_Invoke(t *testing.T) {
	backend, args := recordingHost(t, OpSaveState)
	client := startHostServer(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.Invoke(ctx, OpSaveState, []byte(`{"save":"blob"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok:save_state", reply)
	assert.JSONEq(t, `{"save":"blob"}`, string(args(OpSaveState)))
}

func TestGRPCHost_InvokeErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startHostServer(t, NewFuncHost())
	_, err := client.Invoke(ctx, "nope", nil)
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	refusing := startHostServer(t, refusingHost{})
	_, err = refusing.Invoke(ctx, OpLog, nil)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "refused")
}

func TestGRPCHost_Listen(t *testing.T) {
	backend := NewFuncHost()
	client := startHostServer(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Listen(ctx, EventReceiveResponse)
	require.NoError(t, err)

	// Listen only returns after the host registered the subscriber
	assert.Equal(t, 1, backend.Listeners(EventReceiveResponse))

	backend.Emit(EventReceiveResponse, `{"request_index":1}`)
	backend.Emit(EventReceiveResponse, `{"request_index":0}`)

	for _, want := range []string{`{"request_index":1}`, `{"request_index":0}`} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("event channel was not closed after cancel")
	}
}

func TestGRPCHost_ListenRefused(t *testing.T) {
	client := startHostServer(t, refusingHost{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Listen(ctx, EventReceiveResponse)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))

	bridge := NewEmbeddedBridge(client, testLogger)
	_, err = bridge.SubscribeResponses(ctx)
	assert.ErrorIs(t, err, apperrors.ErrTransportUnavailable)
}

func TestGRPCHost_EmbeddedBridgeRoundTrip(t *testing.T) {
	backend, args := recordingHost(t, OpSendRequest)
	bridge := NewEmbeddedBridge(startHostServer(t, backend), testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := bridge.SubscribeResponses(ctx)
	require.NoError(t, err)

	_, err = bridge.SendRequest(ctx, testPayload(7))
	require.NoError(t, err)
	assert.Contains(t, string(args(OpSendRequest)), `"index":7`)

	backend.Emit(EventReceiveResponse, `{"request_index":7,"body":"hi"}`)
	select {
	case got := <-events:
		assert.JSONEq(t, `{"request_index":7,"body":"hi"}`, got)
	case <-ctx.Done():
		t.Fatal("no response event")
	}
}

func TestGRPCHost_CloseOwnership(t *testing.T) {
	client := startHostServer(t, NewFuncHost())
	// Borrowed connections are left to their owner
	require.NoError(t, client.Close())

	dialed, err := DialHost("127.0.0.1:1", testLogger)
	require.NoError(t, err)
	assert.NoError(t, dialed.Close())
}
