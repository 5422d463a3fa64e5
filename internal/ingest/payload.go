package ingest

import (
	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// defaultRefType is substituted for cross-references whose source left the
// reference kind unspecified.
const defaultRefType = "see"

// BuildPayload projects a frozen batch into the flat relational payload the
// bulk dispatcher writes. It is a pure function of its input: child rows are
// emitted in item order carrying the owning item's sequence id, optional
// scalars pass through as pointers so nil reaches the database as NULL.
func BuildPayload(frozen domain.FrozenBatch) domain.RelationalPayload {
	payload := domain.RelationalPayload{
		BatchID: frozen.ID,
		Entries: make([]domain.StagingEntry, 0, len(frozen.Items)),
	}

	for _, fi := range frozen.Items {
		item := fi.Item

		payload.Entries = append(payload.Entries, domain.StagingEntry{
			Seq:             fi.Seq,
			EntryID:         item.EntryID,
			SenseID:         item.SenseID,
			Title:           item.Title,
			TitleNormalized: domain.NormalizeTitle(item.Title),
			Definition:      item.Definition,
			RawFragment:     item.RawFragment,
			SenseNumber:     item.SenseNumber,
			DomainLabel:     item.DomainLabel,
			UsageLabel:      item.UsageLabel,
			HasForeignText:  item.HasForeignText,
			ForeignTextRef:  item.ForeignTextRef,
			SourceCode:      item.SourceCode,
		})

		for _, alias := range item.Aliases {
			payload.Aliases = append(payload.Aliases, domain.StagingAlias{
				Seq:        fi.Seq,
				Alias:      alias,
				SourceCode: item.SourceCode,
			})
		}

		for _, synonym := range item.Synonyms {
			payload.Synonyms = append(payload.Synonyms, domain.StagingSynonym{
				Seq:        fi.Seq,
				Synonym:    synonym,
				SourceCode: item.SourceCode,
			})
		}

		for _, sentence := range item.Examples {
			payload.Examples = append(payload.Examples, domain.StagingExample{
				Seq:        fi.Seq,
				Sentence:   sentence,
				SourceCode: item.SourceCode,
			})
		}

		for _, ref := range item.CrossRefs {
			refType := ref.RefType
			if refType == "" {
				refType = defaultRefType
			}
			payload.CrossRefs = append(payload.CrossRefs, domain.StagingCrossRef{
				Seq:        fi.Seq,
				TargetWord: ref.TargetWord,
				RefType:    refType,
				SourceCode: item.SourceCode,
			})
		}

		for _, ety := range item.Etymologies {
			payload.Etymologies = append(payload.Etymologies, domain.StagingEtymology{
				Seq:        fi.Seq,
				Text:       ety.Text,
				LangCode:   ety.LangCode,
				IsForeign:  ety.IsForeign,
				SourceCode: item.SourceCode,
			})
		}
	}

	return payload
}
