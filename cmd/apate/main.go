package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/admin"
	"github.com/rustrum/apate/internal/common/logger"
	"github.com/rustrum/apate/internal/common/metricsserver"
	"github.com/rustrum/apate/internal/dispatcher"
	"github.com/rustrum/apate/internal/matcher"
	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/registry"
	"github.com/rustrum/apate/internal/responsebuilder"
	"github.com/rustrum/apate/internal/script"
	"github.com/rustrum/apate/internal/spec"
	"github.com/rustrum/apate/internal/store"
	"github.com/rustrum/apate/internal/template"
)

const (
	defaultPort          = 8228
	defaultScriptTimeout = 250 * time.Millisecond
	specsFileEnvPrefix   = "APATHE_SPECS_FILE"
	portEnvVar           = "APATHE_PORT"
	metricsNamespace     = "apate"
)

func main() {
	port := flag.Int("p", defaultPort, "port to listen on")
	level := flag.String("l", logger.LevelInfo, "log level: debug, info, warn, error")
	metricsListen := flag.String("metrics-listen", "", "address to serve Prometheus metrics on (disabled if empty)")
	metricsPath := flag.String("metrics-path", "/metrics", "path to serve Prometheus metrics on")
	scriptTimeout := flag.Duration("script-timeout", defaultScriptTimeout, "per-evaluation step budget for matcher/body/processor script execution")
	flag.Parse()

	initialLogger := logger.NewDefault()
	initialLogger.Info("starting apate")

	portSetExplicitly := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "p" {
			portSetExplicitly = true
		}
	})
	resolvedPort := resolvePort(*port, portSetExplicitly)

	specFiles := flag.Args()
	if len(specFiles) == 0 {
		specFiles = specFilesFromEnv()
	}

	initialSpec, err := loadInitialSpec(specFiles)
	if err != nil {
		initialLogger.Fatal("failed to load initial specification", zap.Error(err))
	}

	appLogger, err := logger.New(logger.Config{Level: *level})
	if err != nil {
		initialLogger.Fatal("failed to create logger", zap.Error(err))
	}
	defer appLogger.Sync()

	appLogger.Info("loaded initial specification",
		zap.Int("deceits", len(initialSpec.Deceits)),
		zap.Strings("spec_files", specFiles))

	reg := registry.New(initialSpec)
	shared := store.New()
	scripts := script.NewHost(*scriptTimeout)
	renderer := template.NewRenderer()
	metricsCollector := metrics.NewCollector(metricsNamespace, appLogger.Logger)
	matchers := matcher.New(scripts, appLogger.Logger, metricsCollector)
	builder := responsebuilder.New(renderer, scripts, metricsCollector)
	adminHandler := admin.New(reg, metricsCollector)

	disp := dispatcher.New(reg, matchers, builder, shared, metricsCollector, appLogger.Logger, adminHandler)

	metricsServer, err := metricsserver.StartMetricsServer(
		*metricsListen != "",
		*metricsListen,
		*metricsPath,
		metricsCollector,
		appLogger.Logger,
	)
	if err != nil {
		appLogger.Fatal("failed to start metrics server", zap.Error(err))
	}

	httpServer := &fasthttp.Server{
		Handler:               disp.HandleRequest,
		Name:                  "apate",
		NoDefaultServerHeader: true,
		NoDefaultDate:         true,
	}

	listenAddr := fmt.Sprintf(":%d", resolvedPort)
	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("listening", zap.String("address", listenAddr))
		if err := httpServer.ListenAndServe(listenAddr); err != nil {
			serverErrors <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		appLogger.Fatal("server failed to start", zap.Error(err))
	default:
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("shutting down apate")
	case err := <-serverErrors:
		appLogger.Error("server error, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("http server shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if err := disp.Shutdown(); err != nil {
		appLogger.Error("dispatcher shutdown error", zap.Error(err))
	}

	appLogger.Info("apate stopped")
}

// resolvePort applies APATHE_PORT, overridden by an explicitly-set -p flag.
func resolvePort(flagPort int, flagSet bool) int {
	if flagSet {
		return flagPort
	}
	if raw := os.Getenv(portEnvVar); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
		log.Printf("apate: ignoring invalid %s=%q", portEnvVar, raw)
	}
	return flagPort
}

// specFilesFromEnv collects every APATHE_SPECS_FILE*-prefixed environment
// variable, ordered alphabetically by variable name, as spec.md §6 requires.
func specFilesFromEnv() []string {
	type kv struct{ key, value string }
	var matched []kv
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, specsFileEnvPrefix) {
			continue
		}
		matched = append(matched, kv{key: name, value: value})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].key < matched[j].key })

	paths := make([]string, 0, len(matched))
	for _, m := range matched {
		paths = append(paths, m.value)
	}
	return paths
}

func loadInitialSpec(paths []string) (*spec.Specification, error) {
	if len(paths) == 0 {
		return spec.Empty(), nil
	}
	s, err := spec.LoadFiles(paths)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(s); err != nil {
		return nil, fmt.Errorf("initial specification invalid: %w", err)
	}
	return s, nil
}
