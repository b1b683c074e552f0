// Command vestel-tv discovers and controls Vestel televisions on the local
// network.
//
// Usage:
//
//	vestel-tv [flags] <command> [device] [argument]
//
// Flags:
//
//	-config string        Configuration file path
//	-log-level string     Log level: debug, info, warn, error (overrides config)
//	-trace-file string    Write a protocol trace to this file (overrides config)
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-otel                 Export OpenTelemetry spans to stdout
//	-interactive          Start the interactive shell
//	-serve string         Serve the HTTP bridge on this address
//	-discover             Run discovery before the shell or bridge starts
//	-timeout duration     Per-operation timeout (default 10s)
//
// Commands:
//
//	discover                 Search the network for televisions
//	list                     List known televisions
//	show <device>            Show the device context
//	active <device>          Query whether the television is on
//	on <device> [force]      Send wake-on-LAN
//	off <device>             Send the standby key
//	input <device> <id>      Select an input source
//	volume <device>          Read the volume level
//	volume-up <device>       Raise the volume
//	volume-down <device>     Lower the volume
//
// A one-shot device command needs the device in the config file or in the
// device cache, which every discovery updates.
//
// Examples:
//
//	# Find televisions
//	vestel-tv discover
//
//	# Read the volume of a configured television
//	vestel-tv volume "Living Room"
//
//	# Interactive shell after discovery
//	vestel-tv -discover -interactive
//
//	# HTTP bridge with metrics at /metrics
//	vestel-tv -discover -serve :8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesteltv/vestel-go/pkg/config"
	"github.com/vesteltv/vestel-go/pkg/discovery"
	"github.com/vesteltv/vestel-go/pkg/persistence"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

var version = "dev"

// Options holds the command-line flags.
type Options struct {
	ConfigFile  string
	LogLevel    string
	TraceFile   string
	MetricsAddr string
	OTel        bool
	Interactive bool
	Serve       string
	Discover    bool
	Timeout     time.Duration
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.TraceFile, "trace-file", "", "Write a protocol trace to this file")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&opts.OTel, "otel", false, "Export OpenTelemetry spans to stdout")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive shell")
	flag.StringVar(&opts.Serve, "serve", "", "Serve the HTTP bridge on this address")
	flag.BoolVar(&opts.Discover, "discover", false, "Run discovery before the shell or bridge starts")
	flag.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Per-operation timeout")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	tl, closeTrace, err := setupTrace(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeTrace()

	if cfg.OTel.Enabled {
		shutdown, err := telemetry.InitTracer(version)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	tvConfig, err := TVConfig(cfg, logger, tl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	engine := discovery.NewEngine(DiscoveryConfig(cfg, tvConfig, logger))

	registry, err := NewRegistry(cfg, tvConfig, engine, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer registry.Close()

	if !cfg.Cache.Disabled {
		if store, err := cacheStore(cfg); err != nil {
			logger.Warn("device cache unavailable", "error", err)
		} else if err := registry.UseCache(store, cfg.Cache.MaxAge); err != nil {
			logger.Warn("device cache unusable", "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.Discover {
		if _, failed, err := registry.Discover(ctx); err != nil {
			logger.Warn("discovery failed", "error", err)
		} else if failed > 0 {
			logger.Warn("some responders could not be read", "count", failed)
		}
	}

	if cfg.Metrics.Listen != "" || opts.Serve != "" {
		telemetry.InitMetrics()
	}
	if cfg.Metrics.Listen != "" && opts.Serve == "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, logger)
	}

	switch {
	case opts.Serve != "":
		bridge := NewBridge(registry, opts.Timeout, logger)
		if err := bridge.Run(ctx, opts.Serve); err != nil {
			logger.Error("bridge failed", "error", err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "Shutting down...")
		return 0

	case opts.Interactive:
		shell, err := NewShell(registry, opts.Timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		// Route log output through readline so it does not break the prompt.
		logOut.Set(shell.Stdout())
		stop := shell.Watch()
		defer stop()

		shell.Run(ctx, cancel)
		logOut.Set(os.Stderr)
		return 0

	default:
		if flag.NArg() == 0 {
			flag.Usage()
			return 2
		}
		cmdCtx, cmdCancel := context.WithTimeout(ctx, commandTimeout(cfg, flag.Arg(0)))
		defer cmdCancel()

		err := NewCommander(registry, os.Stdout).RunOnce(cmdCtx, flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCode(err)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.ConfigFile != "" {
		cfg, path, err = config.LoadFromPath(opts.ConfigFile)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if opts.LogLevel != "" {
		if _, err := config.ParseLogLevel(opts.LogLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = opts.LogLevel
	}
	if opts.TraceFile != "" {
		cfg.Trace.File = opts.TraceFile
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Listen = opts.MetricsAddr
	}
	if opts.OTel {
		cfg.OTel.Enabled = true
	}
	return cfg, nil
}

func cacheStore(cfg *config.Config) (*persistence.DeviceCacheStore, error) {
	path := cfg.Cache.File
	if path == "" {
		var err error
		if path, err = persistence.DefaultCachePath(); err != nil {
			return nil, err
		}
	}
	return persistence.NewDeviceCacheStore(path), nil
}

// setupTrace builds the protocol trace sink. Debug logging mirrors every
// event to the operational log.
func setupTrace(cfg *config.Config, logger *slog.Logger) (trace.Logger, func(), error) {
	var sinks []trace.Logger
	closeFn := func() {}

	if cfg.Trace.File != "" {
		fl, err := trace.NewFileLogger(cfg.Trace.File)
		if err != nil {
			return nil, nil, fmt.Errorf("trace file: %w", err)
		}
		sinks = append(sinks, fl)
		closeFn = func() { _ = fl.Close() }
	}
	if cfg.LogLevel() <= slog.LevelDebug {
		sinks = append(sinks, trace.NewSlogAdapter(logger))
	}

	if len(sinks) == 0 {
		return nil, closeFn, nil
	}
	return trace.NewMultiLogger(sinks...), closeFn, nil
}

// commandTimeout covers the discovery window for the discover command.
func commandTimeout(cfg *config.Config, cmd string) time.Duration {
	if cmd == "discover" && cfg.Discovery.Timeout+5*time.Second > opts.Timeout {
		return cfg.Discovery.Timeout + 5*time.Second
	}
	return opts.Timeout
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

// switchWriter is an io.Writer whose destination can be replaced.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
