package staging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres/testhelper"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// The merge SQL's observable behavior (representative selection, insert-if-
// absent, child attachment) lives inside one statement, so it is verified
// here against a real PostgreSQL instead of a mock.

func stagedEntry(seq int, title, definition, source string) domain.StagingEntry {
	return domain.StagingEntry{
		Seq:             seq,
		EntryID:         uuid.New(),
		Title:           title,
		TitleNormalized: domain.NormalizeTitle(title),
		Definition:      definition,
		RawFragment:     title + " n.",
		SenseNumber:     1,
		SourceCode:      source,
	}
}

func uniqueSource() string {
	return "src-" + uuid.New().String()[:8]
}

func productionEntry(t *testing.T, pool *pgxpool.Pool, source string) (count int, definition string) {
	t.Helper()
	err := pool.QueryRow(context.Background(),
		`SELECT count(*), min(definition) FROM production_entries WHERE source_code = $1`,
		source,
	).Scan(&count, &definition)
	if err != nil {
		t.Fatalf("query production_entries: %v", err)
	}
	return count, definition
}

func TestMergeStagedSource_NewestStagedRowWins(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := New(pool, postgres.NewTxManager(pool))

	source := uniqueSource()
	batchID := uuid.New()
	now := time.Now().UTC()

	// Two staged rows with the same dedup key; the newer one carries the
	// alias that should survive.
	testhelper.StageEntry(t, pool, batchID, stagedEntry(1, "lantern", "older def", source), now.Add(-time.Hour))
	testhelper.StageAlias(t, pool, batchID, domain.StagingAlias{Seq: 1, Alias: "old-lamp", SourceCode: source})
	testhelper.StageEntry(t, pool, batchID, stagedEntry(2, "lantern", "newer def", source), now)
	testhelper.StageAlias(t, pool, batchID, domain.StagingAlias{Seq: 2, Alias: "new-lamp", SourceCode: source})

	stats, err := repo.MergeStagedSource(context.Background(), source)
	if err != nil {
		t.Fatalf("MergeStagedSource: %v", err)
	}

	want := domain.MergeStats{
		SourceCode: source,
		Staged:     2,
		UniqueKeys: 1,
		Duplicates: 1,
		Inserted:   1,
		Cleared:    2,
	}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	count, definition := productionEntry(t, pool, source)
	if count != 1 {
		t.Fatalf("production rows = %d, want 1", count)
	}
	if definition != "newer def" {
		t.Errorf("representative definition = %q, want %q", definition, "newer def")
	}

	// Only the representative's children were promoted.
	var alias string
	err = pool.QueryRow(context.Background(),
		`SELECT a.alias FROM production_aliases a
		 JOIN production_entries e ON e.id = a.production_entry_id
		 WHERE e.source_code = $1`,
		source,
	).Scan(&alias)
	if err != nil {
		t.Fatalf("query production_aliases: %v", err)
	}
	if alias != "new-lamp" {
		t.Errorf("promoted alias = %q, want %q", alias, "new-lamp")
	}

	if n := testhelper.CountRows(t, pool, "staging_entries", source); n != 0 {
		t.Errorf("staging_entries left = %d, want 0", n)
	}
	if n := testhelper.CountRows(t, pool, "staging_aliases", source); n != 0 {
		t.Errorf("staging_aliases left = %d, want 0", n)
	}
}

func TestMergeStagedSource_RerunNeverDuplicates(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := New(pool, postgres.NewTxManager(pool))

	source := uniqueSource()
	now := time.Now().UTC()

	testhelper.StageEntry(t, pool, uuid.New(), stagedEntry(1, "beacon", "first def", source), now)

	first, err := repo.MergeStagedSource(context.Background(), source)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if first.Inserted != 1 {
		t.Fatalf("first merge inserted = %d, want 1", first.Inserted)
	}

	// A later import stages the same key again, with a newer definition
	// and a child row of its own.
	batchID := uuid.New()
	testhelper.StageEntry(t, pool, batchID, stagedEntry(1, "beacon", "second def", source), now.Add(time.Hour))
	testhelper.StageAlias(t, pool, batchID, domain.StagingAlias{Seq: 1, Alias: "signal-fire", SourceCode: source})

	second, err := repo.MergeStagedSource(context.Background(), source)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.Inserted != 0 {
		t.Errorf("second merge inserted = %d, want 0", second.Inserted)
	}
	if second.Cleared != 1 {
		t.Errorf("second merge cleared = %d, want 1", second.Cleared)
	}

	// The pre-existing production row is untouched, and no children were
	// attached to it by the second run.
	count, definition := productionEntry(t, pool, source)
	if count != 1 {
		t.Fatalf("production rows after rerun = %d, want 1", count)
	}
	if definition != "first def" {
		t.Errorf("definition after rerun = %q, want %q", definition, "first def")
	}
	if n := testhelper.CountRows(t, pool, "production_aliases", source); n != 0 {
		t.Errorf("aliases attached to pre-existing row = %d, want 0", n)
	}
}
