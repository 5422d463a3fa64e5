package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// StageEntry inserts one staging_entries row directly, bypassing the bulk
// dispatcher, with an explicit creation timestamp so merge ordering is
// deterministic in tests.
func StageEntry(t *testing.T, pool *pgxpool.Pool, batchID uuid.UUID, e domain.StagingEntry, createdAt time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO staging_entries (
		     batch_id, seq, entry_id, sense_id, title, title_normalized,
		     definition, raw_fragment, sense_number, domain_label,
		     usage_label, has_foreign_text, foreign_text_ref, source_code,
		     created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		batchID, e.Seq, e.EntryID, e.SenseID, e.Title, e.TitleNormalized,
		e.Definition, e.RawFragment, e.SenseNumber, e.DomainLabel,
		e.UsageLabel, e.HasForeignText, e.ForeignTextRef, e.SourceCode,
		createdAt,
	)
	if err != nil {
		t.Fatalf("testhelper: StageEntry insert: %v", err)
	}
}

// StageAlias inserts one staging_aliases row keyed to a staged parent.
func StageAlias(t *testing.T, pool *pgxpool.Pool, batchID uuid.UUID, a domain.StagingAlias) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO staging_aliases (batch_id, seq, alias, source_code)
		 VALUES ($1, $2, $3, $4)`,
		batchID, a.Seq, a.Alias, a.SourceCode,
	)
	if err != nil {
		t.Fatalf("testhelper: StageAlias insert: %v", err)
	}
}

// CountRows returns the row count of table filtered by source_code.
func CountRows(t *testing.T, pool *pgxpool.Pool, table, sourceCode string) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM `+table+` WHERE source_code = $1`, sourceCode,
	).Scan(&n)
	if err != nil {
		t.Fatalf("testhelper: count %s: %v", table, err)
	}
	return n
}
