package triage

import (
	"sort"
	"strings"

	"github.com/pretriage/pretriage/internal/catalog"
)

// SpecialtyScore is the Layer B output for one specialty, with the hit trace
// kept for the result's why_specialty lines.
type SpecialtyScore struct {
	SpecialtyID  string   `json:"specialty_id"`
	Score        int      `json:"score"`
	KeywordScore int      `json:"keyword_score"`
	PhraseHits   []string `json:"phrase_hits,omitempty"`
	KeywordHits  []string `json:"keyword_hits,omitempty"`
	NegativeHits []string `json:"negative_hits,omitempty"`
}

// SpecialtyRanking is the ordered Layer B output. TopTied flags a dead heat
// between the first two specialties on both score and keyword score.
type SpecialtyRanking struct {
	Scores  []SpecialtyScore `json:"scores"`
	TopTied bool             `json:"top_tied"`
}

// ScoreSpecialties runs the keyword/phrase scorer over the interpretation.
// Per specialty, each canonical scores at most once: a phrase hit awards the
// phrase points and locks the canonical, then keyword canonicals award the
// keyword points, then every negative keyword literally present in the text
// applies its penalty. Ranking is score desc, keyword score desc, id asc.
func ScoreSpecialties(cat *catalog.Catalog, normalized string, in *Interpretation) SpecialtyRanking {
	pts := cat.Scoring

	var scores []SpecialtyScore
	for _, spec := range cat.Specialties {
		keywords := make(map[string]bool, len(spec.Keywords))
		for _, k := range spec.Keywords {
			keywords[k] = true
		}

		s := SpecialtyScore{SpecialtyID: spec.ID}
		scored := make(map[string]bool)

		for _, p := range in.MatchedPhrases {
			if scored[p.Canonical] {
				continue
			}
			if keywords[p.Canonical] || keywords[p.Variant] {
				s.Score += pts.PhraseMatchPoints
				s.PhraseHits = append(s.PhraseHits, p.Canonical)
				scored[p.Canonical] = true
			}
		}

		for _, canonical := range in.MatchedKeywordCanonicals {
			if scored[canonical] {
				continue
			}
			if keywords[canonical] {
				s.Score += pts.KeywordMatchPoints
				s.KeywordScore += pts.KeywordMatchPoints
				s.KeywordHits = append(s.KeywordHits, canonical)
				scored[canonical] = true
			}
		}

		for _, neg := range spec.NegativeKeywords {
			if strings.Contains(normalized, neg) {
				s.Score += pts.NegativeKeywordPenalty
				s.NegativeHits = append(s.NegativeHits, neg)
			}
		}

		scores = append(scores, s)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if scores[i].KeywordScore != scores[j].KeywordScore {
			return scores[i].KeywordScore > scores[j].KeywordScore
		}
		return scores[i].SpecialtyID < scores[j].SpecialtyID
	})

	ranking := SpecialtyRanking{Scores: scores}
	if len(scores) >= 2 && scores[0].Score == scores[1].Score && scores[0].KeywordScore == scores[1].KeywordScore {
		ranking.TopTied = true
	}
	return ranking
}
