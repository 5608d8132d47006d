// Command lottraced serves the lot identity and traceability HTTP API.
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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lottrace/internal/config"
	"lottrace/internal/core"
	"lottrace/internal/export"
	"lottrace/internal/httpapi"
	"lottrace/internal/lotseq"
	"lottrace/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("lottraced", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to YAML config (default lottrace.yaml, LOTTRACE_CONFIG)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	store, err := config.OpenStore(cfg)
	if err != nil {
		logger.Error("open persistent store", "error", err)
		return 1
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := config.OpenBlob(ctx, cfg)
	if err != nil {
		logger.Error("open blob store", "error", err)
		return 1
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	generator, err := lotseq.NewGenerator(store, cfg.Lot,
		lotseq.WithLogger(logger), lotseq.WithMetrics(recorder))
	if err != nil {
		logger.Error("configure lot generator", "error", err)
		return 1
	}
	service := core.NewService(store, generator,
		core.WithLogger(logger), core.WithMetrics(recorder))
	exporter, err := export.NewExporter(store, blobs, export.WithLogger(logger))
	if err != nil {
		logger.Error("configure archive exporter", "error", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", &httpapi.Handler{Service: service, Exporter: exporter})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lottraced listening",
			"addr", cfg.ListenAddr,
			"storage_driver", cfg.Storage.Driver,
			"blob_driver", string(blobs.Driver()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			return 1
		}
		return 0
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	logger.Info("lottraced stopped")
	return 0
}
