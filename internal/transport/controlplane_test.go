package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

func testPayload(index int) domain.DispatchPayload {
	return domain.DispatchPayload{
		URL:     "http://api.test/items?page=1",
		Method:  domain.MethodGet,
		Headers: []domain.Pair{},
		Index:   index,
	}
}

type recordedPost struct {
	path        string
	contentType string
	body        string
}

// controlPlaneServer replies to each path with the mapped body, or 404.
func controlPlaneServer(t *testing.T, replies map[string]string) (*httptest.Server, func() []recordedPost) {
	t.Helper()

	var mu sync.Mutex
	var posts []recordedPost

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		posts = append(posts, recordedPost{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply, ok := replies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedPost {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedPost(nil), posts...)
	}
}

func TestNewLocalControlPlane(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{"default", "", DefaultControlPlaneURL, false},
		{"adds trailing slash", "http://127.0.0.1:9000", "http://127.0.0.1:9000/", false},
		{"keeps path", "http://127.0.0.1:9000/api/", "http://127.0.0.1:9000/api/", false},
		{"bad scheme", "ftp://127.0.0.1", "", true},
		{"no host", "http://", "", true},
		{"unparseable", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := NewLocalControlPlane(tt.base, nil, testLogger)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsUserInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cp.BaseURL())
		})
	}
}

func TestLocalControlPlane_Operations(t *testing.T) {
	srv, posts := controlPlaneServer(t, map[string]string{
		"/send_request":  `{"status":200,"body":"hi"}`,
		"/save_state":    "",
		"/restore_state": "blob",
		"/open_link":     "",
		"/log":           "",
		"/report_fatal":  "",
	})
	cp, err := NewLocalControlPlane(srv.URL, srv.Client(), testLogger)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, "control-plane", cp.Name())
	assert.True(t, cp.InlineResponses())

	raw, err := cp.SendRequest(ctx, testPayload(2))
	require.NoError(t, err)
	assert.Equal(t, `{"status":200,"body":"hi"}`, raw)

	require.NoError(t, cp.SaveState(ctx, "state"))
	blob, err := cp.RestoreState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "blob", blob)
	require.NoError(t, cp.OpenLink(ctx, "https://example.com"))
	require.NoError(t, cp.Log(ctx, "line"))
	require.NoError(t, cp.ReportFatal(ctx, "fatal"))

	got := posts()
	require.Len(t, got, 6)

	wantPaths := []string{"/send_request", "/save_state", "/restore_state", "/open_link", "/log", "/report_fatal"}
	wantBodies := []string{
		`{"url":"http://api.test/items?page=1","method":"GET","body":"","headers":[],"index":2}`,
		`{"save":"state"}`,
		`{}`,
		`{"link":"https://example.com"}`,
		`{"log":"line"}`,
		`{"log":"fatal"}`,
	}
	for i, p := range got {
		assert.Equal(t, wantPaths[i], p.path)
		assert.Equal(t, "application/json", p.contentType)
		assert.JSONEq(t, wantBodies[i], p.body)
	}
}

func TestLocalControlPlane_Failures(t *testing.T) {
	srv, _ := controlPlaneServer(t, map[string]string{})
	cp, err := NewLocalControlPlane(srv.URL, srv.Client(), testLogger)
	require.NoError(t, err)

	_, err = cp.SendRequest(context.Background(), testPayload(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransportUnavailable)
	assert.Contains(t, err.Error(), "status 404")

	// Nothing listens here once the server is gone
	srv.Close()
	err = cp.SaveState(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrTransportUnavailable)
}

func TestLocalControlPlane_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cp, err := NewLocalControlPlane(srv.URL, srv.Client(), testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = cp.RestoreState(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransportUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalControlPlane_NoPushChannel(t *testing.T) {
	cp, err := NewLocalControlPlane("", nil, testLogger)
	require.NoError(t, err)

	events, err := cp.SubscribeResponses(context.Background())
	assert.Nil(t, events)
	assert.ErrorIs(t, err, apperrors.ErrNoPushChannel)
}
