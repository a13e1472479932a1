package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shhac/bolt/internal/async"
	"github.com/shhac/bolt/internal/bridge"
	"github.com/shhac/bolt/internal/domain"
	"github.com/shhac/bolt/internal/logging"
	"github.com/shhac/bolt/internal/model"
	"github.com/shhac/bolt/internal/telemetry"
	"github.com/shhac/bolt/internal/transport"
)

const (
	appName = "bolt"

	// mirrorLevel is the lowest level copied to the backend log.
	mirrorLevel = slog.LevelWarn

	shutdownTimeout = 5 * time.Second
	fatalTimeout    = 2 * time.Second
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type options struct {
	logger        *slog.Logger
	transport     transport.Transport
	host          transport.Host
	workspace     *domain.Workspace
	telemetryOpts []telemetry.Option
}

// Option customizes New.
type Option func(*options)

// WithLogger logs to logger instead of the platform log file.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTransport uses t instead of building one from the config.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithHost runs the embedded transport over an in-process host instead of
// dialing HostAddr.
func WithHost(host transport.Host) Option {
	return func(o *options) { o.host = host }
}

// WithWorkspace starts from ws instead of the first-launch workspace.
func WithWorkspace(ws domain.Workspace) Option {
	return func(o *options) { o.workspace = &ws }
}

// WithTelemetryOptions passes options through to telemetry.New.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(o *options) { o.telemetryOpts = append(o.telemetryOpts, opts...) }
}

// App is the main application coordinator, responsible for wiring
// together all components and managing their lifecycle.
type App struct {
	config    *Config
	logger    *slog.Logger
	logCloser io.Closer
	mirror    *logging.MirrorHandler
	forwarder *logForwarder

	telemetry  *telemetry.Provider
	transport  transport.Transport
	scheduler  *async.Scheduler
	bus        *model.Bus
	store      *model.Store
	ingress    *bridge.Ingress
	dispatcher *bridge.Dispatcher

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// New creates a new App instance with the given configuration.
// This performs all dependency injection and wiring.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	// Initialize logger
	base := o.logger
	var logCloser io.Closer = nopCloser{}
	if base == nil {
		var err error
		base, logCloser, err = logging.InitLogger(appName, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	mirror := logging.NewMirrorHandler(base.Handler(), mirrorLevel)
	logger := slog.New(mirror)

	logger.Info("initializing bolt",
		slog.Bool("debug", cfg.Debug),
		slog.String("transport", string(cfg.Transport)),
	)

	// Initialize tracing
	tel, err := telemetry.New(cfg.Telemetry, o.telemetryOpts...)
	if err != nil {
		return nil, closeLog(logCloser, fmt.Errorf("failed to initialize telemetry: %w", err))
	}

	// Initialize transport
	t, err := newTransport(cfg, o, logger)
	if err != nil {
		err = fmt.Errorf("failed to initialize transport: %w", err)
		if serr := tel.Shutdown(context.Background()); serr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown telemetry: %w", serr))
		}
		return nil, closeLog(logCloser, err)
	}
	if tel.Enabled() {
		t = transport.WithTracing(t, tel.TracerProvider())
	}

	ws := domain.NewWorkspace()
	if o.workspace != nil {
		ws = *o.workspace
	}

	scheduler := async.NewScheduler(context.Background(), logger)
	bus := model.NewBus(logger)
	ingress := bridge.NewIngress(bus, logger)

	// Warnings and errors also go to the backend log
	forwarder := newLogForwarder(t, base)
	mirror.SetSink(forwarder.sink)

	logger.Info("application initialized successfully", slog.String("transport", t.Name()))

	return &App{
		config:     cfg,
		logger:     logger,
		logCloser:  logCloser,
		mirror:     mirror,
		forwarder:  forwarder,
		telemetry:  tel,
		transport:  t,
		scheduler:  scheduler,
		bus:        bus,
		store:      model.NewStore(ws, t, scheduler, bus, logger),
		ingress:    ingress,
		dispatcher: bridge.NewDispatcher(t, ingress, scheduler, bus, logger),
	}, nil
}

func newTransport(cfg *Config, o options, logger *slog.Logger) (transport.Transport, error) {
	if o.transport != nil {
		return o.transport, nil
	}

	switch cfg.Transport {
	case TransportEmbedded:
		host := o.host
		if host == nil {
			if cfg.HostAddr == "" {
				return nil, fmt.Errorf("embedded transport needs a host address (BOLT_HOST_ADDR)")
			}
			grpcHost, err := transport.DialHost(cfg.HostAddr, logger)
			if err != nil {
				return nil, err
			}
			host = grpcHost
		}
		return transport.NewEmbeddedBridge(host, logger), nil

	default:
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		return transport.NewLocalControlPlane(cfg.BackendURL, client, logger)
	}
}

// Start opens the response subscription when the transport pushes responses
// and, if configured, restores the saved workspace in the background. A
// subscription failure is fatal: it is reported to the backend and returned.
func (a *App) Start() error {
	a.startOnce.Do(func() {
		a.startErr = a.start()
	})
	return a.startErr
}

func (a *App) start() error {
	if !a.transport.InlineResponses() {
		events, err := a.transport.SubscribeResponses(a.scheduler.Context())
		if err != nil {
			a.logger.Error("failed to subscribe to responses", slog.Any("error", err))
			a.reportFatalNow(fmt.Sprintf("could not create response listener: %v", err))
			return fmt.Errorf("subscribe to responses: %w", err)
		}
		a.scheduler.Go(transport.EventReceiveResponse, func(ctx context.Context) {
			a.ingress.Run(ctx, events)
		})
	}

	if a.config.RestoreOnStart {
		a.store.Restore()
	}

	a.logger.Info("application started")
	return nil
}

func (a *App) reportFatalNow(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), fatalTimeout)
	defer cancel()
	if err := a.transport.ReportFatal(ctx, message); err != nil {
		a.logger.Debug("failed to report fatal condition", slog.Any("error", err))
	}
}

// Close stops background work and releases the transport, telemetry and log
// file. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down")

		a.scheduler.Close()
		a.mirror.SetSink(nil)
		a.forwarder.Close()

		if cerr := a.transport.Close(); cerr != nil {
			err = fmt.Errorf("close transport: %w", cerr)
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := a.telemetry.Shutdown(ctx); serr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown telemetry: %w", serr))
		}

		a.logger.Info("application shutdown complete")
		err = closeLog(a.logCloser, err)
	})
	return err
}

// closeLog closes the log file and joins a close failure onto err.
func closeLog(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close log file: %w", cerr))
	}
	return err
}

// Config returns the configuration the app was built with.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Transport returns the active transport.
func (a *App) Transport() transport.Transport {
	return a.transport
}

// Store returns the workspace store.
func (a *App) Store() *model.Store {
	return a.store
}

// Dispatcher returns the request dispatcher.
func (a *App) Dispatcher() *bridge.Dispatcher {
	return a.dispatcher
}

// Ingress returns the response ingress.
func (a *App) Ingress() *bridge.Ingress {
	return a.ingress
}

// Bus returns the update bus UI components subscribe to.
func (a *App) Bus() *model.Bus {
	return a.bus
}

// Scheduler returns the background scheduler.
func (a *App) Scheduler() *async.Scheduler {
	return a.scheduler
}
