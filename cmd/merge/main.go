// Command merge promotes staged dictionary rows into the production tables.
// It is used to rerun merges that failed during an import, or to merge
// batches staged with importer --skip-merge.
//
// Usage:
//
//	merge --source=src-a --source=src-b
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres/staging"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/app"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/config"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/ingest"
)

type sourceList []string

func (s *sourceList) String() string { return fmt.Sprint(*s) }

func (s *sourceList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var sources sourceList
	flag.Var(&sources, "source", "source code to merge (repeatable)")
	flag.Parse()

	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: merge --source=src-a [--source=src-b ...]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	repo := staging.New(pool, postgres.NewTxManager(pool))
	merger := ingest.NewMerger(repo, cfg.Ingest.MergeConcurrency, logger)

	results, err := merger.MergeAll(ctx, sources)
	if err != nil {
		logger.Error("merge failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, r := range results {
		fmt.Printf("source %s: staged=%d unique=%d duplicates=%d inserted=%d cleared=%d\n",
			r.SourceCode, r.Staged, r.UniqueKeys, r.Duplicates, r.Inserted, r.Cleared)
	}
}
