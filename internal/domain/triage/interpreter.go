package triage

import (
	"strings"

	"github.com/pretriage/pretriage/internal/catalog"
)

// PhraseMatch records one synonym variant found in the text.
type PhraseMatch struct {
	Variant   string `json:"variant"`
	Canonical string `json:"canonical"`
}

// Interpretation is the deterministic output of the symptom interpreter.
// Canonicals holds every detected canonical exactly once; a canonical found
// by a phrase is never re-counted by the keyword pass.
type Interpretation struct {
	Canonicals               []string      `json:"canonicals"`
	MatchedPhrases           []PhraseMatch `json:"matched_phrases"`
	MatchedKeywordCanonicals []string      `json:"matched_keyword_canonicals"`
}

// Locked reports whether the canonical was detected via a phrase match.
func (in *Interpretation) Locked(canonical string) bool {
	for _, p := range in.MatchedPhrases {
		if p.Canonical == canonical {
			return true
		}
	}
	return false
}

// Interpret runs the phrase-then-keyword matcher over normalized text.
// The phrase pass walks the synonym variants longest-first (ties by variant
// ascending) and locks each hit's canonical; the keyword pass walks the
// canonical names alphabetically and only marks canonicals not already
// locked. Identical input always yields identical output.
func Interpret(normalized string, cat *catalog.Catalog) *Interpretation {
	out := &Interpretation{}
	locked := make(map[string]bool)

	for _, v := range cat.SortedVariants() {
		if !strings.Contains(normalized, v.Variant) {
			continue
		}
		if locked[v.Canonical] {
			continue
		}
		locked[v.Canonical] = true
		out.MatchedPhrases = append(out.MatchedPhrases, PhraseMatch{Variant: v.Variant, Canonical: v.Canonical})
		out.Canonicals = append(out.Canonicals, v.Canonical)
	}

	for _, canonical := range cat.Canonicals() {
		if locked[canonical] {
			continue
		}
		if !strings.Contains(normalized, canonical) {
			continue
		}
		locked[canonical] = true
		out.MatchedKeywordCanonicals = append(out.MatchedKeywordCanonicals, canonical)
		out.Canonicals = append(out.Canonicals, canonical)
	}

	return out
}
