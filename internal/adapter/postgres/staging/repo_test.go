package staging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	postgres "github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// fakeBatchResults replays canned command tags; pgxmock cannot mock
// SendBatch, so the bulk-dispatch path is tested against this fake.
type fakeBatchResults struct {
	tags []pgconn.CommandTag
	errs []error
	idx  int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	i := r.idx
	r.idx++
	if i < len(r.errs) && r.errs[i] != nil {
		return pgconn.CommandTag{}, r.errs[i]
	}
	if i < len(r.tags) {
		return r.tags[i], nil
	}
	return pgconn.CommandTag{}, errors.New("no more results")
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

// fakePool records the batches sent through it.
type fakePool struct {
	batches []*pgx.Batch
	results *fakeBatchResults
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (p *fakePool) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	p.batches = append(p.batches, b)
	return p.results
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("unexpected Begin")
}

func insertTag(n int64) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", n))
}

func samplePayload() domain.RelationalPayload {
	usage := "informal"
	return domain.RelationalPayload{
		BatchID: uuid.New(),
		Entries: []domain.StagingEntry{
			{
				Seq:             1,
				EntryID:         uuid.New(),
				Title:           "Tea Kettle",
				TitleNormalized: "tea kettle",
				Definition:      "a vessel for boiling water",
				RawFragment:     "tea-kettle n.",
				SenseNumber:     1,
				UsageLabel:      &usage,
				SourceCode:      "src-a",
			},
			{
				Seq:             2,
				EntryID:         uuid.New(),
				Title:           "kettle",
				TitleNormalized: "kettle",
				Definition:      "see tea kettle",
				RawFragment:     "kettle n.",
				SenseNumber:     1,
				SourceCode:      "src-a",
			},
		},
		Aliases:   []domain.StagingAlias{{Seq: 1, Alias: "teakettle", SourceCode: "src-a"}},
		CrossRefs: []domain.StagingCrossRef{{Seq: 2, TargetWord: "tea kettle", RefType: "see", SourceCode: "src-a"}},
	}
}

func TestBulkInsert_SingleBatchRoundTrip(t *testing.T) {
	pool := &fakePool{
		results: &fakeBatchResults{
			tags: []pgconn.CommandTag{insertTag(2), insertTag(1), insertTag(1)},
		},
	}
	repo := New(pool, postgres.NewTxManager(pool))

	staged, err := repo.BulkInsert(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if staged != 4 {
		t.Errorf("staged rows = %d, want 4", staged)
	}

	if len(pool.batches) != 1 {
		t.Fatalf("SendBatch calls = %d, want 1", len(pool.batches))
	}
	batch := pool.batches[0]

	// Only non-empty tables get a statement: entries, aliases, cross refs.
	if batch.Len() != 3 {
		t.Fatalf("queued statements = %d, want 3", batch.Len())
	}

	first := batch.QueuedQueries[0].SQL
	if !strings.Contains(first, "INSERT INTO staging_entries") {
		t.Errorf("first statement targets %q, want staging_entries", first)
	}
	// Both parent rows ride in one multi-row statement.
	if !strings.Contains(first, "),(") && !strings.Contains(first, "), (") {
		t.Errorf("expected multi-row insert, got %q", first)
	}
	if !strings.Contains(batch.QueuedQueries[1].SQL, "staging_aliases") {
		t.Errorf("second statement: %q", batch.QueuedQueries[1].SQL)
	}
	if !strings.Contains(batch.QueuedQueries[2].SQL, "staging_cross_references") {
		t.Errorf("third statement: %q", batch.QueuedQueries[2].SQL)
	}
}

func TestBulkInsert_EmptyPayload(t *testing.T) {
	pool := &fakePool{results: &fakeBatchResults{}}
	repo := New(pool, postgres.NewTxManager(pool))

	staged, err := repo.BulkInsert(context.Background(), domain.RelationalPayload{BatchID: uuid.New()})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if staged != 0 {
		t.Errorf("staged = %d, want 0", staged)
	}
	if len(pool.batches) != 0 {
		t.Errorf("SendBatch calls = %d, want 0", len(pool.batches))
	}
}

func TestBulkInsert_ExecFailureWrapsFlushError(t *testing.T) {
	pool := &fakePool{
		results: &fakeBatchResults{
			tags: []pgconn.CommandTag{insertTag(2)},
			errs: []error{nil, errors.New("deadlock detected")},
		},
	}
	repo := New(pool, postgres.NewTxManager(pool))

	_, err := repo.BulkInsert(context.Background(), samplePayload())
	if !errors.Is(err, domain.ErrFlushFailed) {
		t.Fatalf("err = %v, want ErrFlushFailed", err)
	}
}

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return New(mock, postgres.NewTxManager(mock)), mock
}

func expectStagingDeletes(mock pgxmock.PgxPoolIface, source string, parentRows int64) {
	for _, table := range stagingChildTables {
		mock.ExpectExec(`DELETE FROM ` + table).
			WithArgs(source).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	mock.ExpectExec(`DELETE FROM staging_entries`).
		WithArgs(source).
		WillReturnResult(pgxmock.NewResult("DELETE", parentRows))
}

func TestMergeStagedSource_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count`).
		WithArgs("src-a").
		WillReturnRows(pgxmock.NewRows([]string{"staged", "unique_keys"}).AddRow(5, 3))
	mock.ExpectQuery(`WITH ranked AS`).
		WithArgs("src-a").
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(2))
	expectStagingDeletes(mock, "src-a", 5)
	mock.ExpectCommit()

	stats, err := repo.MergeStagedSource(context.Background(), "src-a")
	if err != nil {
		t.Fatalf("MergeStagedSource: %v", err)
	}

	want := domain.MergeStats{
		SourceCode: "src-a",
		Staged:     5,
		UniqueKeys: 3,
		Duplicates: 2,
		Inserted:   2,
		Cleared:    5,
	}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMergeStagedSource_NothingStaged(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count`).
		WithArgs("src-b").
		WillReturnRows(pgxmock.NewRows([]string{"staged", "unique_keys"}).AddRow(0, 0))
	mock.ExpectQuery(`WITH ranked AS`).
		WithArgs("src-b").
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(0))
	expectStagingDeletes(mock, "src-b", 0)
	mock.ExpectCommit()

	stats, err := repo.MergeStagedSource(context.Background(), "src-b")
	if err != nil {
		t.Fatalf("MergeStagedSource: %v", err)
	}
	if stats.Staged != 0 || stats.Inserted != 0 || stats.Cleared != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}

func TestMergeStagedSource_RollbackPreservesStaging(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count`).
		WithArgs("src-a").
		WillReturnRows(pgxmock.NewRows([]string{"staged", "unique_keys"}).AddRow(5, 3))
	mock.ExpectQuery(`WITH ranked AS`).
		WithArgs("src-a").
		WillReturnError(errors.New("could not serialize access"))
	mock.ExpectRollback()

	stats, err := repo.MergeStagedSource(context.Background(), "src-a")
	if !errors.Is(err, domain.ErrMergeFailed) {
		t.Fatalf("err = %v, want ErrMergeFailed", err)
	}
	if stats.Staged != 0 || stats.Inserted != 0 {
		t.Errorf("failed merge must not report progress: %+v", stats)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
