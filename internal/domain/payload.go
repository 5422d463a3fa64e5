package domain

import (
	"github.com/google/uuid"
)

// RelationalPayload is the flat-table projection of one FrozenBatch:
// one parent table plus one table per child collection type. Child rows
// carry the owning item's sequence id as the join key. A payload is built
// once, consumed once by the bulk dispatcher, then discarded.
type RelationalPayload struct {
	BatchID     uuid.UUID
	Entries     []StagingEntry
	Aliases     []StagingAlias
	Synonyms    []StagingSynonym
	Examples    []StagingExample
	CrossRefs   []StagingCrossRef
	Etymologies []StagingEtymology
}

// Rows returns the total row count across all tables.
func (p RelationalPayload) Rows() int {
	return len(p.Entries) + len(p.Aliases) + len(p.Synonyms) +
		len(p.Examples) + len(p.CrossRefs) + len(p.Etymologies)
}

// StagingEntry is one parent row. (SourceCode, TitleNormalized, SenseNumber)
// is the natural key the merge deduplicates on.
type StagingEntry struct {
	Seq             int
	EntryID         uuid.UUID
	SenseID         *uuid.UUID
	Title           string
	TitleNormalized string
	Definition      string
	RawFragment     string
	SenseNumber     int
	DomainLabel     *string
	UsageLabel      *string
	HasForeignText  bool
	ForeignTextRef  *string
	SourceCode      string
}

// StagingAlias is one alias row keyed to its parent by Seq.
type StagingAlias struct {
	Seq        int
	Alias      string
	SourceCode string
}

// StagingSynonym is one synonym row keyed to its parent by Seq.
type StagingSynonym struct {
	Seq        int
	Synonym    string
	SourceCode string
}

// StagingExample is one usage example row keyed to its parent by Seq.
type StagingExample struct {
	Seq        int
	Sentence   string
	SourceCode string
}

// StagingCrossRef is one cross-reference row keyed to its parent by Seq.
// RefType is always populated; the builder substitutes "see" when the
// source left it unspecified.
type StagingCrossRef struct {
	Seq        int
	TargetWord string
	RefType    string
	SourceCode string
}

// StagingEtymology is one etymology row keyed to its parent by Seq.
type StagingEtymology struct {
	Seq        int
	Text       string
	LangCode   string
	IsForeign  bool
	SourceCode string
}
