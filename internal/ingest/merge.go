package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// MergeRepo promotes one source's staged rows into production.
type MergeRepo interface {
	MergeStagedSource(ctx context.Context, sourceCode string) (domain.MergeStats, error)
}

// Merger fans per-source merges out over a bounded number of goroutines.
// Each source merges independently; one source failing rolls back only its
// own transaction and never blocks the others.
type Merger struct {
	repo        MergeRepo
	concurrency int
	logger      *slog.Logger
}

// NewMerger creates a Merger running at most concurrency merges at once.
func NewMerger(repo MergeRepo, concurrency int, logger *slog.Logger) *Merger {
	if concurrency < 1 {
		concurrency = 1
	}
	ingMetrics.init()
	return &Merger{
		repo:        repo,
		concurrency: concurrency,
		logger:      logger,
	}
}

// MergeAll merges every given source and returns the stats of the sources
// that succeeded. Failed sources are logged and reported through the joined
// error; their staging rows stay put, so rerunning the merge is safe.
func (m *Merger) MergeAll(ctx context.Context, sourceCodes []string) ([]domain.MergeStats, error) {
	var (
		mu      sync.Mutex
		results []domain.MergeStats
	)

	// A plain group, not errgroup.WithContext: one source failing must not
	// cancel the merges of its siblings.
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for _, code := range sourceCodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			stats, err := m.mergeOne(ctx, code)
			if err != nil {
				return err
			}

			mu.Lock()
			results = append(results, stats)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (m *Merger) mergeOne(ctx context.Context, sourceCode string) (domain.MergeStats, error) {
	started := time.Now()
	stats, err := m.repo.MergeStagedSource(ctx, sourceCode)
	ingMetrics.mergeDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		ingMetrics.mergesFailed.Inc()
		m.logger.Error("merge source",
			slog.String("source", sourceCode),
			slog.Any("error", err),
		)
		return domain.MergeStats{}, err
	}

	ingMetrics.mergesSucceeded.Inc()
	ingMetrics.rowsPromoted.Add(float64(stats.Inserted))
	m.logger.Info("source merged",
		slog.String("source", sourceCode),
		slog.Int("staged", stats.Staged),
		slog.Int("unique_keys", stats.UniqueKeys),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("inserted", stats.Inserted),
		slog.Int("cleared", stats.Cleared),
	)
	return stats, nil
}
