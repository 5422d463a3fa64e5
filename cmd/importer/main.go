// Command importer ingests dictionary records from a JSON-lines file into
// the staging tables, then merges every staged source into production.
//
// Flags:
//
//	--input       path to the JSON-lines input file ("-" for stdin)
//	--producers   number of concurrent producer goroutines (default 4)
//	--migrate     apply pending schema migrations before importing
//	--skip-merge  stage only; leave the merge to the merge command
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres/staging"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/app"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/config"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/ingest"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/source/jsonl"
)

// Compile-time interface assertions.
var (
	_ ingest.Dispatcher = (*staging.Repo)(nil)
	_ ingest.MergeRepo  = (*staging.Repo)(nil)
)

// maxLineSize bounds one JSON-lines record; raw fragments can be large.
const maxLineSize = 4 << 20

func main() {
	inputFlag := flag.String("input", "-", `path to JSON-lines input file ("-" for stdin)`)
	producersFlag := flag.Int("producers", 4, "number of concurrent producer goroutines")
	migrateFlag := flag.Bool("migrate", false, "apply pending schema migrations before importing")
	skipMergeFlag := flag.Bool("skip-merge", false, "stage only, do not merge into production")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if *migrateFlag {
		if err := postgres.Migrate(ctx, pool); err != nil {
			logger.Error("migrate", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	input, err := openInput(*inputFlag)
	if err != nil {
		logger.Error("open input", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer input.Close()

	txm := postgres.NewTxManager(pool)
	repo := staging.New(pool, txm)

	flusher, err := ingest.NewFlusher(repo, cfg.Ingest.FlushWorkers, logger)
	if err != nil {
		logger.Error("create flusher", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer flusher.Close()

	collector := ingest.NewCollector(cfg.Ingest.BatchSize, cfg.Ingest.QueueCapacity)

	flushDone := make(chan error, 1)
	go func() {
		flushDone <- flusher.Run(ctx, collector.Batches())
	}()

	sources, parseErrors, err := produce(ctx, logger, collector, input, *producersFlag)
	if err != nil {
		logger.Error("read input", slog.String("error", err.Error()))
	}

	if flushErr := collector.FlushAll(ctx); flushErr != nil {
		logger.Error("flush remaining buffers", slog.String("error", flushErr.Error()))
	}
	collector.Close()

	flushErr := <-flushDone
	if flushErr != nil {
		logger.Error("flush queue drained with failures", slog.String("error", flushErr.Error()))
	}

	if parseErrors > 0 {
		logger.Warn("malformed input lines skipped", slog.Int64("count", parseErrors))
	}

	var mergeErr error
	if *skipMergeFlag {
		logger.Info("merge skipped", slog.Any("sources", sources))
	} else {
		merger := ingest.NewMerger(repo, cfg.Ingest.MergeConcurrency, logger)
		_, mergeErr = merger.MergeAll(ctx, sources)
	}

	if err != nil || flushErr != nil || mergeErr != nil {
		os.Exit(1)
	}

	logger.Info("import completed")
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// produce fans input lines out to producer goroutines. Returns the distinct
// source codes seen and the count of malformed lines skipped.
func produce(ctx context.Context, logger *slog.Logger, collector *ingest.Collector, input io.Reader, producers int) ([]string, int64, error) {
	if producers < 1 {
		producers = 1
	}

	lines := make(chan []byte, producers*4)

	var (
		parseErrors atomic.Int64
		sourceMu    sync.Mutex
		sourceSet   = make(map[string]bool)
	)

	var g errgroup.Group
	for i := 0; i < producers; i++ {
		p := collector.Producer()
		g.Go(func() error {
			for line := range lines {
				item, err := jsonl.ParseLine(line)
				if err != nil {
					parseErrors.Add(1)
					logger.Warn("skip line", slog.String("error", err.Error()))
					continue
				}

				sourceMu.Lock()
				sourceSet[item.SourceCode] = true
				sourceMu.Unlock()

				p.Add(item)
			}
			return nil
		})
	}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var scanErr error
scan:
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := slices.Clone(raw)

		select {
		case lines <- line:
		case <-ctx.Done():
			scanErr = ctx.Err()
			break scan
		}
	}
	if scanErr == nil {
		scanErr = scanner.Err()
	}

	close(lines)
	_ = g.Wait()

	sourceMu.Lock()
	sources := make([]string, 0, len(sourceSet))
	for code := range sourceSet {
		sources = append(sources, code)
	}
	sourceMu.Unlock()
	slices.Sort(sources)

	return sources, parseErrors.Load(), scanErr
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics listener started", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener", slog.String("error", err.Error()))
	}
}
