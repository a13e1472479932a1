package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"

	"github.com/spf13/pflag"

	boltApp "github.com/shhac/bolt/internal/app"
	"github.com/shhac/bolt/internal/transport"
)

func main() {
	if err := runApp(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags override the BOLT_* environment for one run.
type globalFlags struct {
	transport  string
	backendURL string
	hostAddr   string
	verbose    bool
	debug      bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.transport, "transport", "", `backend connector: "control-plane" or "embedded" (env BOLT_TRANSPORT)`)
	fs.StringVar(&g.backendURL, "backend-url", "", "control-plane base URL (env BOLT_BACKEND_URL, default "+transport.DefaultControlPlaneURL+")")
	fs.StringVar(&g.hostAddr, "host-addr", "", "embedded host gRPC address (env BOLT_HOST_ADDR)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr instead of the log file")
	fs.BoolVar(&g.debug, "debug", false, "enable debug logging (env BOLT_DEBUG)")
}

func (g *globalFlags) apply(fs *pflag.FlagSet, cfg *boltApp.Config) {
	if fs.Changed("transport") {
		cfg.Transport = boltApp.TransportKind(g.transport)
	}
	if fs.Changed("backend-url") {
		cfg.BackendURL = g.backendURL
	}
	if fs.Changed("host-addr") {
		cfg.HostAddr = g.hostAddr
	}
	if fs.Changed("debug") {
		cfg.Debug = g.debug
	}
}

// runApp is the main application entry point with panic recovery.
func runApp(args []string, stdout, stderr io.Writer) (err error) {
	// Create a temporary stderr logger for bootstrap errors
	tempLogger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			tempLogger.Error("panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printHelp(stderr)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printHelp(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	var global globalFlags
	flagSet := pflag.NewFlagSet("bolt "+args[0], pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	global.register(flagSet)
	run := cmd.setup(flagSet)

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Load configuration from environment, then apply flags
	cfg := boltApp.ConfigFromEnv()
	global.apply(flagSet, cfg)
	cfg.RestoreOnStart = false

	var opts []boltApp.Option
	if global.verbose {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		opts = append(opts, boltApp.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))))
	}

	// Create and wire the application
	a, err := boltApp.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, a, flagSet.Args(), stdout)
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `bolt drives the bolt backend without the editor.

Usage:
  bolt <command> [flags] [args]

Commands:
`)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, `
Run "bolt <command> --help" for the flags of a command.
`)
}
