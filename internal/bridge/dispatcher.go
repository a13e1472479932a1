package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shhac/bolt/internal/async"
	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/model"
	"github.com/shhac/bolt/internal/transport"
)

// ErrSchedulerClosed is returned when work is submitted during shutdown.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Dispatcher sends composed requests and one-off commands to the backend
// without blocking the caller.
type Dispatcher struct {
	transport transport.Transport
	ingress   *Ingress
	scheduler *async.Scheduler
	bus       *model.Bus
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Replies from inline transports are
// handed to ingress.
func NewDispatcher(t transport.Transport, ingress *Ingress, scheduler *async.Scheduler, bus *model.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: t,
		ingress:   ingress,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger,
	}
}

// BuildPayload folds params into the URL and produces the wire payload.
func BuildPayload(req domain.ComposedRequest) domain.DispatchPayload {
	headers := req.Headers
	if headers == nil {
		headers = []domain.Pair{}
	}
	return domain.DispatchPayload{
		URL:     ComposeURL(req.URL, req.Params),
		Method:  req.Method,
		Body:    req.Body,
		Headers: headers,
		Index:   req.Index,
	}
}

// Dispatch schedules req for sending and returns at once. The response is
// published later by the ingress. Requests that cannot be sent at all are
// rejected here: the error is returned and published. Failures of the send
// itself are only published.
func (d *Dispatcher) Dispatch(req domain.ComposedRequest) error {
	if !req.Method.Valid() {
		return d.reject(apperrors.UserInputError{
			Field:   "method",
			Value:   string(req.Method),
			Message: "unsupported request method",
		})
	}

	payload := BuildPayload(req)
	if err := d.ingress.Expect(payload.Index); err != nil {
		return d.reject(err)
	}

	started := d.scheduler.Go(transport.OpSendRequest, func(ctx context.Context) {
		d.send(ctx, payload)
	})
	if !started {
		d.ingress.Forget(payload.Index)
		return d.reject(fmt.Errorf("dispatch index %d: %w", payload.Index, ErrSchedulerClosed))
	}

	d.logger.Debug("request dispatched",
		slog.Int("index", payload.Index),
		slog.String("method", string(payload.Method)),
		slog.String("transport", d.transport.Name()),
	)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, payload domain.DispatchPayload) {
	reply, err := d.transport.SendRequest(ctx, payload)
	if err != nil {
		d.logger.Error("failed to send request",
			slog.Int("index", payload.Index),
			slog.String("url", payload.URL),
			slog.Any("error", err),
		)
		d.ingress.Forget(payload.Index)
		d.bus.Publish(model.ErrorUpdate(transport.OpSendRequest, err))
		return
	}

	if d.transport.InlineResponses() {
		d.ingress.Complete(payload.Index, reply)
		return
	}
	d.logger.Debug("request acknowledged", slog.Int("index", payload.Index))
}

// OpenLink asks the backend to open link outside the app.
func (d *Dispatcher) OpenLink(link string) {
	d.scheduler.Go(transport.OpOpenLink, func(ctx context.Context) {
		if err := d.transport.OpenLink(ctx, link); err != nil {
			d.logger.Error("failed to open link", slog.String("link", link), slog.Any("error", err))
			d.bus.Publish(model.ErrorUpdate(transport.OpOpenLink, err))
		}
	})
}

// ReportFatal forwards an unrecoverable condition to the backend in the
// background.
func (d *Dispatcher) ReportFatal(message string) {
	d.logger.Error("fatal condition", slog.String("message", message))
	d.scheduler.Go(transport.OpReportFatal, func(ctx context.Context) {
		if err := d.transport.ReportFatal(ctx, message); err != nil {
			d.logger.Error("failed to report fatal condition", slog.Any("error", err))
		}
	})
}

// ResolveMethod maps a lower-case editor selector to a Method. An unknown
// selector is reported as fatal and resolves to GET.
func (d *Dispatcher) ResolveMethod(selector string) domain.Method {
	method, err := ParseMethod(selector)
	if err != nil {
		d.ReportFatal(err.Error())
		return domain.MethodGet
	}
	return method
}

func (d *Dispatcher) reject(err error) error {
	d.logger.Warn("request rejected", slog.Any("error", err))
	d.bus.Publish(model.ErrorUpdate(transport.OpSendRequest, err))
	return err
}
