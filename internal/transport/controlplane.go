package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

// DefaultControlPlaneURL is where the local backend listens unless configured
// otherwise.
const DefaultControlPlaneURL = "http://0.0.0.0:4458/"

// maxReplyBytes caps a single backend reply read into memory.
const maxReplyBytes = 64 << 20

// LocalControlPlane talks to a backend on a local HTTP port. Every operation
// is a POST to <base><operation> with a JSON body, and the reply body is the
// operation's result.
type LocalControlPlane struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewLocalControlPlane creates a control-plane transport rooted at baseURL.
// An empty baseURL selects DefaultControlPlaneURL and a nil client selects
// http.DefaultClient.
func NewLocalControlPlane(baseURL string, client *http.Client, logger *slog.Logger) (*LocalControlPlane, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultControlPlaneURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, apperrors.UserInputError{Field: "backend url", Value: baseURL, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.UserInputError{Field: "backend url", Value: baseURL, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, apperrors.UserInputError{Field: "backend url", Value: baseURL, Message: "host is required"}
	}

	base := u.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &LocalControlPlane{
		base:   base,
		client: client,
		logger: logger,
	}, nil
}

// BaseURL returns the normalized base, always ending in "/".
func (c *LocalControlPlane) BaseURL() string {
	return c.base
}

// Name implements Transport.
func (c *LocalControlPlane) Name() string {
	return "control-plane"
}

// InlineResponses implements Transport. The send_request reply body is the
// raw response.
func (c *LocalControlPlane) InlineResponses() bool {
	return true
}

// SendRequest implements Transport.
func (c *LocalControlPlane) SendRequest(ctx context.Context, payload domain.DispatchPayload) (string, error) {
	return c.post(ctx, OpSendRequest, payload)
}

// SaveState implements Transport.
func (c *LocalControlPlane) SaveState(ctx context.Context, blob string) error {
	_, err := c.post(ctx, OpSaveState, savePayload{Save: blob})
	return err
}

// RestoreState implements Transport.
func (c *LocalControlPlane) RestoreState(ctx context.Context) (string, error) {
	return c.post(ctx, OpRestoreState, emptyPayload{})
}

// OpenLink implements Transport.
func (c *LocalControlPlane) OpenLink(ctx context.Context, link string) error {
	_, err := c.post(ctx, OpOpenLink, linkPayload{Link: link})
	return err
}

// Log implements Transport.
func (c *LocalControlPlane) Log(ctx context.Context, line string) error {
	_, err := c.post(ctx, OpLog, logPayload{Log: line})
	return err
}

// ReportFatal implements Transport.
func (c *LocalControlPlane) ReportFatal(ctx context.Context, line string) error {
	_, err := c.post(ctx, OpReportFatal, logPayload{Log: line})
	return err
}

// SubscribeResponses implements Transport. Responses come back inline, so
// there is nothing to subscribe to.
func (c *LocalControlPlane) SubscribeResponses(context.Context) (<-chan string, error) {
	return nil, apperrors.ErrNoPushChannel
}

// Close implements Transport.
func (c *LocalControlPlane) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *LocalControlPlane) post(ctx context.Context, op string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+op, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", apperrors.ErrTransportUnavailable, op, err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %s: read reply: %w", apperrors.ErrTransportUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("control plane rejected operation",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("%w: %s: status %d", apperrors.ErrTransportUnavailable, op, resp.StatusCode)
	}

	return string(reply), nil
}
