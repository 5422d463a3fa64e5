package domain

import (
	"slices"

	"github.com/google/uuid"
)

// BatchItem is one parsed dictionary record pending persistence, together
// with the child data collected while the record was the parser's current
// record. Optional scalar fields are pointers: nil maps to SQL NULL and is
// distinct from an empty string.
type BatchItem struct {
	EntryID        uuid.UUID  // resolved parent entry (external FK)
	SenseID        *uuid.UUID // optional parent sense
	Title          string
	Definition     string
	RawFragment    string
	SenseNumber    int
	DomainLabel    *string
	UsageLabel     *string
	HasForeignText bool
	ForeignTextRef *string // reference to externally stored non-English text
	SourceCode     string  // which import source produced the record

	Aliases     []string
	Synonyms    []string
	Examples    []string
	CrossRefs   []CrossReference
	Etymologies []Etymology
}

// CrossReference points a record at another headword.
// An empty RefType means the generic "see" reference.
type CrossReference struct {
	TargetWord string
	RefType    string
}

// Etymology is one origin note attached to a record.
type Etymology struct {
	Text      string
	LangCode  string
	IsForeign bool
}

// Clone returns a deep copy: scalar fields by value, every child slice
// copied into newly owned storage. Mutating the receiver afterwards can
// never be observed through the copy.
func (b BatchItem) Clone() BatchItem {
	c := b
	c.SenseID = cloneUUIDPtr(b.SenseID)
	c.DomainLabel = cloneStringPtr(b.DomainLabel)
	c.UsageLabel = cloneStringPtr(b.UsageLabel)
	c.ForeignTextRef = cloneStringPtr(b.ForeignTextRef)
	c.Aliases = slices.Clone(b.Aliases)
	c.Synonyms = slices.Clone(b.Synonyms)
	c.Examples = slices.Clone(b.Examples)
	c.CrossRefs = slices.Clone(b.CrossRefs)
	c.Etymologies = slices.Clone(b.Etymologies)
	return c
}

// SealedBatch is a producer harvest awaiting freeze. It is owned by the
// flush path from the moment it is enqueued; producers never touch it again.
type SealedBatch []BatchItem

// FrozenItem is a deep-copied batch item with its batch-local sequence id.
type FrozenItem struct {
	Seq  int // 1-based, contiguous, unique within the batch
	Item BatchItem
}

// FrozenBatch is an immutable snapshot of a sealed batch. No field may be
// observed to change after creation.
type FrozenBatch struct {
	ID    uuid.UUID
	Items []FrozenItem
}

// SourceCodes returns the distinct source codes present in the batch,
// in first-seen order.
func (f FrozenBatch) SourceCodes() []string {
	seen := make(map[string]bool, 4)
	var codes []string
	for _, it := range f.Items {
		if !seen[it.Item.SourceCode] {
			seen[it.Item.SourceCode] = true
			codes = append(codes, it.Item.SourceCode)
		}
	}
	return codes
}

// MergeStats reports one staging→production merge for a single source.
type MergeStats struct {
	SourceCode string
	Staged     int // rows found in staging before the merge
	UniqueKeys int // distinct (source, normalized key, sense number) keys
	Duplicates int // Staged - UniqueKeys
	Inserted   int // production rows actually inserted
	Cleared    int // staging rows deleted after the merge
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUUIDPtr(p *uuid.UUID) *uuid.UUID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
