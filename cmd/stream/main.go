// Package main is the live-feed onset-detection entry point: a long-lived
// websocket tick source driven through a ShardedPipeline via
// ingestion.Runner, persisting events to one or more configured sinks.
// Flag, signal-handling, and metrics-server wiring follow cmd/ingest/
// main.go's runLive shape, generalized from Solana RPC/WS sources to a
// single onset-detection WSTickSource.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"onset-detect/internal/config"
	"onset-detect/internal/ingestion"
	"onset-detect/internal/observability"
	"onset-detect/internal/pipeline"
	"onset-detect/internal/storage"
)

func main() {
	wsURL := flag.String("ws-url", "", "websocket endpoint streaming line-oriented JSON ticks")
	configPath := flag.String("config", "", "path to YAML configuration (defaults applied if omitted)")
	outDir := flag.String("out-dir", "", "directory for append-only JSONL event capture (disabled if empty)")
	shards := flag.Int("shards", runtime.NumCPU(), "number of per-symbol pipeline shards")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "stats log interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[stream] ", log.LstdFlags)

	if *wsURL == "" {
		logger.Fatal("--ws-url is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	source, err := ingestion.NewWSTickSource(ctx, *wsURL, ingestion.DefaultWSSourceConfig())
	if err != nil {
		logger.Fatalf("connect to %s: %v", *wsURL, err)
	}
	defer source.Close()

	sharded, err := pipeline.NewSharded(ctx, *shards, 1024, pipeline.Options{Config: cfg})
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	var sinks []storage.EventSink
	if *outDir != "" {
		sink, err := storage.NewJSONLEventSink(*outDir)
		if err != nil {
			logger.Fatalf("open jsonl sink: %v", err)
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:        source,
		Sharded:       sharded,
		Sinks:         sinks,
		StatsInterval: *statsInterval,
		Logger:        logger,
	})

	logger.Println("starting live onset-detection stream")
	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("runner error: %v", err)
	}

	logger.Println("shutdown complete")
}
