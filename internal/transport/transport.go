package transport

import (
	"context"

	"github.com/shhac/bolt/internal/domain"
)

// Backend operation names shared by every transport.
const (
	OpSendRequest  = "send_request"
	OpSaveState    = "save_state"
	OpRestoreState = "restore_state"
	OpOpenLink     = "open_link"
	OpLog          = "log"
	OpReportFatal  = "report_fatal"

	// EventReceiveResponse is the push event carrying one raw response.
	EventReceiveResponse = "receive_response"
)

// Transport is the connector to the backend. Exactly one implementation is
// active per run. Every method blocks until the backend has replied, so
// callers run them on a background scheduler.
type Transport interface {
	// Name identifies the transport in logs and traces.
	Name() string

	// InlineResponses reports whether SendRequest's reply is the raw
	// response itself. When false, the reply is an acknowledgement and
	// responses arrive through SubscribeResponses.
	InlineResponses() bool

	SendRequest(ctx context.Context, payload domain.DispatchPayload) (string, error)
	SaveState(ctx context.Context, blob string) error
	RestoreState(ctx context.Context) (string, error)
	OpenLink(ctx context.Context, link string) error
	Log(ctx context.Context, line string) error
	ReportFatal(ctx context.Context, line string) error

	// SubscribeResponses opens the push channel of raw responses. The
	// channel is closed when ctx ends or the backend drops the subscription.
	SubscribeResponses(ctx context.Context) (<-chan string, error)

	Close() error
}

type savePayload struct {
	Save string `json:"save"`
}

type linkPayload struct {
	Link string `json:"link"`
}

type logPayload struct {
	Log string `json:"log"`
}

type emptyPayload struct{}
