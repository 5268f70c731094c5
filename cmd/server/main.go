// Package main is the unified live-deployment entry point: a websocket
// tick source driven through a ShardedPipeline via ingestion.Runner,
// running alongside an HTTP server exposing /metrics and /healthz.
// Structure follows cmd/server/main.go's Server/allStores wiring style and
// signal-handling shape, generalized from the three-component
// ingestion/pipeline/reporting scheduler to the single continuous
// onset-detection runner this domain needs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"onset-detect/internal/config"
	"onset-detect/internal/ingestion"
	"onset-detect/internal/observability"
	"onset-detect/internal/pipeline"
	"onset-detect/internal/storage"
	"onset-detect/internal/storage/postgres"
)

// Server wires a live ingestion Runner to an HTTP status/metrics surface.
type Server struct {
	wsURL         string
	shards        int
	statsInterval time.Duration
	cfg           config.Config
	sinks         []storage.EventSink
	logger        *log.Logger

	mu      sync.Mutex
	started time.Time
	runner  *ingestion.Runner
}

func main() {
	wsURL := flag.String("ws-url", "", "websocket endpoint streaming line-oriented JSON ticks")
	configPath := flag.String("config", "", "path to YAML configuration (defaults applied if omitted)")
	outDir := flag.String("out-dir", "", "directory for append-only JSONL event capture (disabled if empty)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN for the operational event audit trail (disabled if empty)")
	shards := flag.Int("shards", runtime.NumCPU(), "number of per-symbol pipeline shards")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "stats log interval")
	httpAddr := flag.String("http-addr", ":9090", "address for the /metrics and /healthz HTTP server")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if *wsURL == "" {
		logger.Fatal("--ws-url is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sinks, cleanup, err := createSinks(ctx, *outDir, *postgresDSN)
	if err != nil {
		logger.Fatalf("failed to create sinks: %v", err)
	}
	defer cleanup()

	srv := &Server{
		wsURL:         *wsURL,
		shards:        *shards,
		statsInterval: *statsInterval,
		cfg:           cfg,
		sinks:         sinks,
		logger:        logger,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, initiating graceful shutdown...", sig)
		cancel()
		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go srv.startHTTPServer(*httpAddr)

	err = srv.runIngestion(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("shutdown complete")
}

// createSinks builds the configured EventSink set. A JSONL sink under
// outDir and/or a Postgres audit-trail sink under postgresDSN are both
// optional and additive; neither is required to run live.
func createSinks(ctx context.Context, outDir, postgresDSN string) ([]storage.EventSink, func(), error) {
	var sinks []storage.EventSink
	var closers []func() error

	if outDir != "" {
		sink, err := storage.NewJSONLEventSink(outDir)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink.Close)
	}

	if postgresDSN != "" {
		pool, err := postgres.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		sink := postgres.NewEventStore(pool)
		sinks = append(sinks, sink)
		closers = append(closers, func() error { pool.Close(); return nil })
	}

	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return sinks, cleanup, nil
}

// runIngestion builds the websocket source and sharded pipeline and runs
// the continuous Runner until ctx is cancelled.
func (s *Server) runIngestion(ctx context.Context) error {
	source, err := ingestion.NewWSTickSource(ctx, s.wsURL, ingestion.DefaultWSSourceConfig())
	if err != nil {
		return err
	}
	defer source.Close()

	sharded, err := pipeline.NewSharded(ctx, s.shards, 1024, pipeline.Options{Config: s.cfg})
	if err != nil {
		return err
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:        source,
		Sharded:       sharded,
		Sinks:         s.sinks,
		StatsInterval: s.statsInterval,
		Logger:        log.New(os.Stdout, "[runner] ", log.LstdFlags),
	})

	s.mu.Lock()
	s.runner = runner
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Println("ingestion started")
	return runner.Run(ctx)
}

// startHTTPServer serves /healthz and /metrics, and /status for runner
// counters.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// statusResponse is the JSON response for /status.
type statusResponse struct {
	Status  string                  `json:"status"`
	Uptime  string                  `json:"uptime"`
	Started time.Time               `json:"started"`
	Stats   ingestion.ManagerStats  `json:"stats"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := statusResponse{Status: "running", Started: s.started}
	if !s.started.IsZero() {
		resp.Uptime = time.Since(s.started).String()
	}
	if s.runner != nil {
		resp.Stats = s.runner.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
