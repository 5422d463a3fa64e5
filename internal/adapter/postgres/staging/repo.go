// Package staging implements the durable-store boundary of the ingestion
// pipeline: the single-round-trip bulk insert of a batch payload into the
// staging tables, and the transactional staging→production merge.
package staging

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	postgres "github.com/ankitdsmb/DictionaryImporter-sub007/internal/adapter/postgres"
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// Repo persists batch payloads and promotes staged rows to production.
type Repo struct {
	pool postgres.Pool
	txm  *postgres.TxManager
	sb   sq.StatementBuilderType
}

// New creates a staging repository.
func New(pool postgres.Pool, txm *postgres.TxManager) *Repo {
	return &Repo{
		pool: pool,
		txm:  txm,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ---------------------------------------------------------------------------
// Bulk dispatch
// ---------------------------------------------------------------------------

// BulkInsert writes every table of the payload into staging in one pgx.Batch
// round trip. The batch is sent on a single connection; its statements are
// executed as one implicit transaction by the server, so a payload is staged
// either completely or not at all. Returns the number of staged rows.
// Failures wrap domain.ErrFlushFailed; the caller owns retry policy.
func (r *Repo) BulkInsert(ctx context.Context, payload domain.RelationalPayload) (int, error) {
	if payload.Rows() == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	if err := r.queuePayload(batch, payload); err != nil {
		return 0, fmt.Errorf("%w: build staging insert: %v", domain.ErrFlushFailed, err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	var staged int
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return staged, fmt.Errorf("%w: batch %s: %v", domain.ErrFlushFailed, payload.BatchID, err)
		}
		staged += int(tag.RowsAffected())
	}

	return staged, nil
}

// queuePayload appends one multi-row INSERT per non-empty payload table.
func (r *Repo) queuePayload(batch *pgx.Batch, p domain.RelationalPayload) error {
	if len(p.Entries) > 0 {
		ins := r.sb.Insert("staging_entries").Columns(
			"batch_id", "seq", "entry_id", "sense_id", "title", "title_normalized",
			"definition", "raw_fragment", "sense_number", "domain_label",
			"usage_label", "has_foreign_text", "foreign_text_ref", "source_code",
		)
		for _, e := range p.Entries {
			ins = ins.Values(
				p.BatchID, e.Seq, e.EntryID, e.SenseID, e.Title, e.TitleNormalized,
				e.Definition, e.RawFragment, e.SenseNumber, e.DomainLabel,
				e.UsageLabel, e.HasForeignText, e.ForeignTextRef, e.SourceCode,
			)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_entries: %w", err)
		}
	}

	if len(p.Aliases) > 0 {
		ins := r.sb.Insert("staging_aliases").Columns("batch_id", "seq", "alias", "source_code")
		for _, a := range p.Aliases {
			ins = ins.Values(p.BatchID, a.Seq, a.Alias, a.SourceCode)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_aliases: %w", err)
		}
	}

	if len(p.Synonyms) > 0 {
		ins := r.sb.Insert("staging_synonyms").Columns("batch_id", "seq", "synonym", "source_code")
		for _, s := range p.Synonyms {
			ins = ins.Values(p.BatchID, s.Seq, s.Synonym, s.SourceCode)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_synonyms: %w", err)
		}
	}

	if len(p.Examples) > 0 {
		ins := r.sb.Insert("staging_examples").Columns("batch_id", "seq", "sentence", "source_code")
		for _, e := range p.Examples {
			ins = ins.Values(p.BatchID, e.Seq, e.Sentence, e.SourceCode)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_examples: %w", err)
		}
	}

	if len(p.CrossRefs) > 0 {
		ins := r.sb.Insert("staging_cross_references").Columns("batch_id", "seq", "target_word", "ref_type", "source_code")
		for _, c := range p.CrossRefs {
			ins = ins.Values(p.BatchID, c.Seq, c.TargetWord, c.RefType, c.SourceCode)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_cross_references: %w", err)
		}
	}

	if len(p.Etymologies) > 0 {
		ins := r.sb.Insert("staging_etymologies").Columns("batch_id", "seq", "text", "lang_code", "is_foreign", "source_code")
		for _, e := range p.Etymologies {
			ins = ins.Values(p.BatchID, e.Seq, e.Text, e.LangCode, e.IsForeign, e.SourceCode)
		}
		if err := queueInsert(batch, ins); err != nil {
			return fmt.Errorf("staging_etymologies: %w", err)
		}
	}

	return nil
}

func queueInsert(batch *pgx.Batch, ins sq.InsertBuilder) error {
	sql, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	batch.Queue(sql, args...)
	return nil
}

// ---------------------------------------------------------------------------
// Staging → production merge
// ---------------------------------------------------------------------------

// analyzeRow is the observability snapshot taken before a merge.
type analyzeRow struct {
	Staged     int `db:"staged"`
	UniqueKeys int `db:"unique_keys"`
}

const analyzeSQL = `
SELECT count(*)::int AS staged,
       count(DISTINCT (title_normalized, sense_number))::int AS unique_keys
FROM staging_entries
WHERE source_code = $1`

// mergeSQL promotes one source in a single statement: rank staged rows per
// (title_normalized, sense_number) newest-first, pick one representative per
// key, insert absent parents into production, then attach the children of
// parents that were actually inserted. Pre-existing production rows are never
// touched, and neither are their children.
const mergeSQL = `
WITH ranked AS (
    SELECT id, batch_id, seq, entry_id, sense_id, title, title_normalized,
           definition, raw_fragment, sense_number, domain_label, usage_label,
           has_foreign_text, foreign_text_ref, source_code,
           row_number() OVER (
               PARTITION BY title_normalized, sense_number
               ORDER BY created_at DESC, id DESC
           ) AS rn
    FROM staging_entries
    WHERE source_code = $1
),
picked AS (
    SELECT * FROM ranked WHERE rn = 1
),
ins_entries AS (
    INSERT INTO production_entries (
        entry_id, sense_id, title, title_normalized, definition, raw_fragment,
        sense_number, domain_label, usage_label, has_foreign_text,
        foreign_text_ref, source_code
    )
    SELECT entry_id, sense_id, title, title_normalized, definition, raw_fragment,
           sense_number, domain_label, usage_label, has_foreign_text,
           foreign_text_ref, source_code
    FROM picked
    ON CONFLICT ON CONSTRAINT uq_production_entries_key DO NOTHING
    RETURNING id, title_normalized, sense_number
),
key_map AS (
    SELECT i.id AS production_entry_id, p.batch_id, p.seq, p.source_code
    FROM ins_entries i
    JOIN picked p ON p.title_normalized = i.title_normalized
                 AND p.sense_number = i.sense_number
),
ins_aliases AS (
    INSERT INTO production_aliases (production_entry_id, alias, source_code)
    SELECT m.production_entry_id, s.alias, s.source_code
    FROM key_map m
    JOIN staging_aliases s ON s.batch_id = m.batch_id AND s.seq = m.seq
    RETURNING 1
),
ins_synonyms AS (
    INSERT INTO production_synonyms (production_entry_id, synonym, source_code)
    SELECT m.production_entry_id, s.synonym, s.source_code
    FROM key_map m
    JOIN staging_synonyms s ON s.batch_id = m.batch_id AND s.seq = m.seq
    RETURNING 1
),
ins_examples AS (
    INSERT INTO production_examples (production_entry_id, sentence, source_code)
    SELECT m.production_entry_id, s.sentence, s.source_code
    FROM key_map m
    JOIN staging_examples s ON s.batch_id = m.batch_id AND s.seq = m.seq
    RETURNING 1
),
ins_cross_references AS (
    INSERT INTO production_cross_references (production_entry_id, target_word, ref_type, source_code)
    SELECT m.production_entry_id, s.target_word, s.ref_type, s.source_code
    FROM key_map m
    JOIN staging_cross_references s ON s.batch_id = m.batch_id AND s.seq = m.seq
    RETURNING 1
),
ins_etymologies AS (
    INSERT INTO production_etymologies (production_entry_id, text, lang_code, is_foreign, source_code)
    SELECT m.production_entry_id, s.text, s.lang_code, s.is_foreign, s.source_code
    FROM key_map m
    JOIN staging_etymologies s ON s.batch_id = m.batch_id AND s.seq = m.seq
    RETURNING 1
)
SELECT count(*)::int AS inserted FROM ins_entries`

// stagingTables lists the child tables cleared after a merge; the parent
// table is cleared last so its delete count can be reported.
var stagingChildTables = []string{
	"staging_aliases",
	"staging_synonyms",
	"staging_examples",
	"staging_cross_references",
	"staging_etymologies",
}

// MergeStagedSource deduplicates and promotes all staged rows for one source
// into production, then clears the source's staging rows. Everything runs in
// one transaction: on error the transaction is rolled back, staging rows are
// preserved, and the returned error wraps domain.ErrMergeFailed so the merge
// can simply be re-run.
func (r *Repo) MergeStagedSource(ctx context.Context, sourceCode string) (domain.MergeStats, error) {
	stats := domain.MergeStats{SourceCode: sourceCode}

	err := r.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q := postgres.QuerierFromCtx(txCtx, r.pool)

		// 1. Analyze (observability only, never gates the merge).
		var analyzed analyzeRow
		if err := pgxscan.Get(txCtx, q, &analyzed, analyzeSQL, sourceCode); err != nil {
			return fmt.Errorf("analyze staged rows: %w", err)
		}
		stats.Staged = analyzed.Staged
		stats.UniqueKeys = analyzed.UniqueKeys
		stats.Duplicates = analyzed.Staged - analyzed.UniqueKeys

		// 2+3. Deduplicate, select representatives, insert-if-absent.
		if err := q.QueryRow(txCtx, mergeSQL, sourceCode).Scan(&stats.Inserted); err != nil {
			return fmt.Errorf("merge staged rows: %w", err)
		}

		// 4. Clear staging for this source, children first.
		for _, table := range stagingChildTables {
			if _, err := q.Exec(txCtx,
				fmt.Sprintf(`DELETE FROM %s WHERE source_code = $1`, table), sourceCode,
			); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		tag, err := q.Exec(txCtx, `DELETE FROM staging_entries WHERE source_code = $1`, sourceCode)
		if err != nil {
			return fmt.Errorf("clear staging_entries: %w", err)
		}
		stats.Cleared = int(tag.RowsAffected())

		return nil
	})
	if err != nil {
		return domain.MergeStats{SourceCode: sourceCode}, fmt.Errorf("%w: source %q: %v", domain.ErrMergeFailed, sourceCode, err)
	}

	return stats, nil
}
