// Package jsonl parses dictionary import files: one JSON record per line.
// This is the interchange format the upstream extraction jobs emit.
package jsonl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

type crossRef struct {
	TargetWord string `json:"target_word"`
	RefType    string `json:"ref_type,omitempty"`
}

type etymology struct {
	Text      string `json:"text"`
	LangCode  string `json:"lang_code,omitempty"`
	IsForeign bool   `json:"is_foreign,omitempty"`
}

type record struct {
	EntryID        string      `json:"entry_id"`
	SenseID        string      `json:"sense_id,omitempty"`
	Title          string      `json:"title"`
	Definition     string      `json:"definition"`
	RawFragment    string      `json:"raw_fragment"`
	SenseNumber    int         `json:"sense_number"`
	DomainLabel    *string     `json:"domain_label,omitempty"`
	UsageLabel     *string     `json:"usage_label,omitempty"`
	HasForeignText bool        `json:"has_foreign_text,omitempty"`
	ForeignTextRef *string     `json:"foreign_text_ref,omitempty"`
	SourceCode     string      `json:"source_code"`
	Aliases        []string    `json:"aliases,omitempty"`
	Synonyms       []string    `json:"synonyms,omitempty"`
	Examples       []string    `json:"examples,omitempty"`
	CrossRefs      []crossRef  `json:"cross_references,omitempty"`
	Etymologies    []etymology `json:"etymologies,omitempty"`
}

// ParseLine decodes one JSON line into a batch item.
func ParseLine(line []byte) (domain.BatchItem, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.BatchItem{}, fmt.Errorf("decode record: %w", err)
	}

	if strings.TrimSpace(rec.Title) == "" {
		return domain.BatchItem{}, fmt.Errorf("record has empty title")
	}
	if rec.SourceCode == "" {
		return domain.BatchItem{}, fmt.Errorf("record %q has no source_code", rec.Title)
	}

	entryID, err := uuid.Parse(rec.EntryID)
	if err != nil {
		return domain.BatchItem{}, fmt.Errorf("record %q: invalid entry_id: %w", rec.Title, err)
	}

	var senseID *uuid.UUID
	if rec.SenseID != "" {
		id, err := uuid.Parse(rec.SenseID)
		if err != nil {
			return domain.BatchItem{}, fmt.Errorf("record %q: invalid sense_id: %w", rec.Title, err)
		}
		senseID = &id
	}

	item := domain.BatchItem{
		EntryID:        entryID,
		SenseID:        senseID,
		Title:          rec.Title,
		Definition:     rec.Definition,
		RawFragment:    rec.RawFragment,
		SenseNumber:    rec.SenseNumber,
		DomainLabel:    rec.DomainLabel,
		UsageLabel:     rec.UsageLabel,
		HasForeignText: rec.HasForeignText,
		ForeignTextRef: rec.ForeignTextRef,
		SourceCode:     rec.SourceCode,
		Aliases:        rec.Aliases,
		Synonyms:       rec.Synonyms,
		Examples:       rec.Examples,
	}

	for _, r := range rec.CrossRefs {
		item.CrossRefs = append(item.CrossRefs, domain.CrossReference{
			TargetWord: r.TargetWord,
			RefType:    r.RefType,
		})
	}
	for _, e := range rec.Etymologies {
		item.Etymologies = append(item.Etymologies, domain.Etymology{
			Text:      e.Text,
			LangCode:  e.LangCode,
			IsForeign: e.IsForeign,
		})
	}

	return item, nil
}
