// Package main is the batch onset-detection entry point named in spec.md
// section 6: it reads a line-oriented JSON tick stream from a file, stdin,
// or "--stream" mode, drives it through a single Pipeline via
// ingestion.Manager, and writes confirmed/candidate/rejection events as
// line-oriented JSON on stdout. Flag and signal-handling structure follows
// cmd/ingest/main.go's mode-dispatch shape, generalized from a
// live/backfill/replay Solana ingestion mode switch to file-vs-stdin tick
// delivery.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"onset-detect/internal/config"
	"onset-detect/internal/domain"
	"onset-detect/internal/ingestion"
	"onset-detect/internal/pipeline"
	"onset-detect/internal/storage"
)

// Exit codes per spec.md section 7: 0 clean run, 2 configuration error, 3
// malformed input stream.
const (
	exitOK          = 0
	exitConfigError = 2
	exitInputError  = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration (defaults applied if omitted)")
	stream := fs.String("stream", "", "path to input file, or '-'/omitted for stdin tick-by-tick mode")
	emitStats := fs.Bool("stats", false, "emit summary event counts to stderr on completion")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitConfigError
	}

	p, err := pipeline.New(pipeline.Options{Config: cfg})
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitConfigError
	}

	var input *os.File
	if *stream == "" || *stream == "-" {
		input = stdin
	} else {
		f, err := os.Open(*stream)
		if err != nil {
			fmt.Fprintf(stderr, "input error: %v\n", err)
			return exitInputError
		}
		defer f.Close()
		input = f
	}
	source := ingestion.NewJSONLSource(input)
	defer source.Close()

	logger := log.New(stderr, "", 0)
	sink := &stdoutSink{w: bufio.NewWriter(stdout)}
	defer sink.w.Flush()

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Source:   source,
		Pipeline: p,
		Sinks:    []storage.EventSink{sink},
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	stats, err := mgr.Run(ctx)
	sink.w.Flush()

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "input error: %v\n", err)
		if *emitStats {
			printStats(stderr, stats)
		}
		return exitInputError
	}

	if *emitStats {
		printStats(stderr, stats)
	}
	return exitOK
}

func printStats(stderr *os.File, stats ingestion.ManagerStats) {
	fmt.Fprintf(stderr, "ticks_processed=%d ticks_rejected=%d candidates=%d confirmed=%d refractory_rejected=%d\n",
		stats.TicksProcessed, stats.TicksRejected, stats.CandidatesEmitted, stats.ConfirmedEmitted, stats.RefractoryRejected)
}

// stdoutSink is the line-oriented JSON EventSink spec.md section 6 names
// as the batch entry point's output surface: one JSON object per event,
// written as it arrives.
type stdoutSink struct {
	w *bufio.Writer
}

func (s *stdoutSink) Write(ctx context.Context, ev *domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *stdoutSink) WriteBulk(ctx context.Context, events []*domain.Event) error {
	for _, ev := range events {
		if err := s.Write(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *stdoutSink) Close() error { return s.w.Flush() }
