package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/shhac/bolt/internal/errors"
	"github.com/shhac/bolt/internal/telemetry"
	"github.com/shhac/bolt/internal/transport"
)

// TransportKind selects how the backend is reached.
type TransportKind string

const (
	// TransportControlPlane posts every operation to a local HTTP port.
	TransportControlPlane TransportKind = "control-plane"
	// TransportEmbedded talks to a co-located host process.
	TransportEmbedded TransportKind = "embedded"
)

// Config holds application-wide configuration.
type Config struct {
	// Debug enables debug logging and additional diagnostics
	Debug bool

	// Transport selects the backend connector
	Transport TransportKind

	// BackendURL is the control-plane base URL
	BackendURL string

	// HostAddr is the gRPC address of the embedded host process
	HostAddr string

	// HTTPTimeout bounds each control-plane call; zero means no limit
	HTTPTimeout time.Duration

	// RestoreOnStart fetches the saved workspace during Start
	RestoreOnStart bool

	// Telemetry configures span export
	Telemetry telemetry.Config
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		Transport:      TransportControlPlane,
		BackendURL:     transport.DefaultControlPlaneURL,
		RestoreOnStart: true,
		Telemetry:      telemetry.Config{ServiceName: "bolt"},
	}
}

// ConfigFromEnv creates a configuration from environment variables.
// Reads BOLT_DEBUG, BOLT_TRANSPORT, BOLT_BACKEND_URL, BOLT_HOST_ADDR,
// BOLT_HTTP_TIMEOUT and the BOLT_OTEL_* telemetry settings.
func ConfigFromEnv() *Config {
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) *Config {
	cfg := DefaultConfig()

	if debugStr := getenv("BOLT_DEBUG"); debugStr != "" {
		if debug, err := strconv.ParseBool(debugStr); err == nil {
			cfg.Debug = debug
		}
	}

	if kind := strings.TrimSpace(getenv("BOLT_TRANSPORT")); kind != "" {
		cfg.Transport = TransportKind(strings.ToLower(kind))
	}

	if backendURL := strings.TrimSpace(getenv("BOLT_BACKEND_URL")); backendURL != "" {
		cfg.BackendURL = backendURL
	}

	if hostAddr := strings.TrimSpace(getenv("BOLT_HOST_ADDR")); hostAddr != "" {
		cfg.HostAddr = hostAddr
	}

	if timeoutStr := strings.TrimSpace(getenv("BOLT_HTTP_TIMEOUT")); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout >= 0 {
			cfg.HTTPTimeout = timeout
		}
	}

	cfg.Telemetry = telemetry.ConfigFromEnv(getenv)
	return cfg
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportControlPlane, TransportEmbedded:
	default:
		return apperrors.UserInputError{
			Field:   "transport",
			Value:   string(c.Transport),
			Message: fmt.Sprintf("must be %q or %q", TransportControlPlane, TransportEmbedded),
		}
	}

	if c.HTTPTimeout < 0 {
		return apperrors.UserInputError{
			Field:   "http timeout",
			Value:   c.HTTPTimeout.String(),
			Message: "must not be negative",
		}
	}

	return nil
}
