package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

// EmbeddedBridge reaches the backend through a co-located Host: single-shot
// command invocations plus one push-event subscription for responses.
type EmbeddedBridge struct {
	host   Host
	logger *slog.Logger
}

// NewEmbeddedBridge creates a bridge over host.
func NewEmbeddedBridge(host Host, logger *slog.Logger) *EmbeddedBridge {
	return &EmbeddedBridge{
		host:   host,
		logger: logger,
	}
}

// Name implements Transport.
func (b *EmbeddedBridge) Name() string {
	return "embedded"
}

// InlineResponses implements Transport. The send_request reply is only an
// acknowledgement.
func (b *EmbeddedBridge) InlineResponses() bool {
	return false
}

// SendRequest implements Transport.
func (b *EmbeddedBridge) SendRequest(ctx context.Context, payload domain.DispatchPayload) (string, error) {
	return b.invoke(ctx, OpSendRequest, payload)
}

// SaveState implements Transport.
func (b *EmbeddedBridge) SaveState(ctx context.Context, blob string) error {
	_, err := b.invoke(ctx, OpSaveState, savePayload{Save: blob})
	return err
}

// RestoreState implements Transport.
func (b *EmbeddedBridge) RestoreState(ctx context.Context) (string, error) {
	return b.invoke(ctx, OpRestoreState, emptyPayload{})
}

// OpenLink implements Transport.
func (b *EmbeddedBridge) OpenLink(ctx context.Context, link string) error {
	_, err := b.invoke(ctx, OpOpenLink, linkPayload{Link: link})
	return err
}

// Log implements Transport.
func (b *EmbeddedBridge) Log(ctx context.Context, line string) error {
	_, err := b.invoke(ctx, OpLog, logPayload{Log: line})
	return err
}

// ReportFatal implements Transport.
func (b *EmbeddedBridge) ReportFatal(ctx context.Context, line string) error {
	_, err := b.invoke(ctx, OpReportFatal, logPayload{Log: line})
	return err
}

// SubscribeResponses implements Transport.
func (b *EmbeddedBridge) SubscribeResponses(ctx context.Context) (<-chan string, error) {
	events, err := b.host.Listen(ctx, EventReceiveResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", apperrors.ErrTransportUnavailable, EventReceiveResponse, err)
	}

	b.logger.Info("subscribed to backend responses", slog.String("event", EventReceiveResponse))
	return events, nil
}

// Close releases the host when it owns resources.
func (b *EmbeddedBridge) Close() error {
	if closer, ok := b.host.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (b *EmbeddedBridge) invoke(ctx context.Context, command string, payload any) (string, error) {
	args, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", command, err)
	}

	reply, err := b.host.Invoke(ctx, command, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", apperrors.ErrTransportUnavailable, command, err)
	}

	return reply, nil
}
