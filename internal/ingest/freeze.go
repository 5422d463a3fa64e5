package ingest

import (
	"github.com/google/uuid"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// Freeze turns a sealed batch into an immutable FrozenBatch: every item is
// deep-copied so no producer alias can reach the frozen data, and each item
// is assigned a sequence id 1..N in batch order. The sequence id is the
// join key between the parent staging row and its child rows.
func Freeze(batch domain.SealedBatch) domain.FrozenBatch {
	frozen := domain.FrozenBatch{
		ID:    uuid.New(),
		Items: make([]domain.FrozenItem, len(batch)),
	}
	for i, item := range batch {
		frozen.Items[i] = domain.FrozenItem{
			Seq:  i + 1,
			Item: item.Clone(),
		}
	}
	return frozen
}
