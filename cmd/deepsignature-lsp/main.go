package main

import (
	"context"
	"errors"
	"expvar" // For publishing metrics
	"io"
	stlog "log" // Renamed standard log
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehackedyou/deepsignature"
)

// App version (set via linker flags -ldflags="-X main.appVersion=...")
var appVersion = "dev"

func main() {
	// --- Basic Setup ---
	logFile, err := os.OpenFile("deepsignature-lsp.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		stlog.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// stdout carries the protocol, so logs go to stderr and the log file.
	logWriter := io.MultiWriter(os.Stderr, logFile)
	tempLogger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// --- Initialize Core Service ---
	helper, initErr := deepsignature.NewSignatureHelper(tempLogger)
	if initErr != nil {
		tempLogger.Error("Failed to initialize SignatureHelper service", "error", initErr)
		// Config problems are warnings; anything else is fatal.
		if !errors.Is(initErr, deepsignature.ErrConfig) || helper == nil {
			os.Exit(1)
		}
	}
	defer func() {
		slog.Info("Closing SignatureHelper service...")
		if err := helper.Close(); err != nil {
			slog.Error("Error closing signature helper", "error", err)
		}
	}()

	// --- Setup Global Logger ---
	initialConfig := helper.GetCurrentConfig()
	logLevel, parseLevelErr := deepsignature.ParseLogLevel(initialConfig.LogLevel)
	if parseLevelErr != nil {
		logLevel = slog.LevelInfo
		tempLogger.Warn("Invalid log level in config, using default 'info'", "config_level", initialConfig.LogLevel, "error", parseLevelErr)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(logLevel)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: levelVar, AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("DeepSignature LSP server starting...", "version", appVersion, "log_level", logLevel.String())
	if initErr != nil {
		slog.Warn("SignatureHelper initialized with configuration warnings", "error", initErr)
	}

	// --- Setup Profiling & Metrics ---
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	if initialConfig.DebugAddr != "" {
		startDebugServer(initialConfig.DebugAddr)
	}

	// --- Initialize and Run LSP Server ---
	lspServer := deepsignature.NewServer(helper, logger, levelVar, appVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchConfigFile(ctx, lspServer, logger)

	lspServer.Run(os.Stdin, os.Stdout)

	slog.Info("LSP server has shut down gracefully.")
}

// newDebugRouter serves pprof, expvar and Prometheus metrics.
func newDebugRouter() *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.Handle("/debug/vars", expvar.Handler()).Methods("GET")
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline).Methods("GET")
	router.HandleFunc("/debug/pprof/profile", pprof.Profile).Methods("GET")
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol).Methods("GET", "POST")
	router.HandleFunc("/debug/pprof/trace", pprof.Trace).Methods("GET")
	router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index).Methods("GET")
	return router
}

// startDebugServer starts the HTTP server for pprof, expvar and metrics.
func startDebugServer(addr string) {
	go func() {
		slog.Info("Starting debug server for pprof/expvar/metrics", "addr", addr)
		srv := &http.Server{
			Addr:              addr,
			Handler:           newDebugRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("Debug server failed", "error", err)
		}
	}()
}

// watchConfigFile reloads the configuration when the primary config file is
// written. The directory is watched because editors often replace files.
func watchConfigFile(ctx context.Context, server *deepsignature.Server, logger *slog.Logger) {
	watchLogger := logger.With("component", "configWatcher")
	primary, _, err := deepsignature.GetConfigPaths(watchLogger)
	if err != nil || primary == "" {
		watchLogger.Warn("Config path unknown, not watching for changes", "error", err)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		watchLogger.Warn("Failed to create config watcher", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(primary)
	if err := watcher.Add(dir); err != nil {
		watchLogger.Warn("Failed to watch config directory", "dir", dir, "error", err)
		return
	}
	watchLogger.Info("Watching config directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			cfg, loadErr := deepsignature.LoadConfig(watchLogger)
			if loadErr != nil {
				watchLogger.Warn("Config reloaded with warnings", "path", event.Name, "error", loadErr)
			}
			if applyErr := server.ApplyConfig(cfg, "file"); applyErr != nil {
				watchLogger.Error("Failed to apply reloaded config", "error", applyErr)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			watchLogger.Warn("Config watcher error", "error", watchErr)
		}
	}
}

func isConfigFile(path string) bool {
	switch filepath.Base(path) {
	case "config.json", "config.yaml":
		return true
	}
	return false
}
