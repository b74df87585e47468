package triage

import (
	"sort"

	"github.com/pretriage/pretriage/internal/catalog"
)

// rankPoints maps a Layer A rank (1-based) to its prior contribution.
var rankPoints = map[int]float64{1: 4, 2: 3, 3: 2, 4: 1, 5: 1}

// MergedSpecialty carries both component scores so the final ranking stays
// explainable.
type MergedSpecialty struct {
	SpecialtyID  string  `json:"specialty_id"`
	Final        float64 `json:"final"`
	RulesScore   int     `json:"rules_score"`
	KeywordScore int     `json:"keyword_score"`
	Prior        float64 `json:"prior"`
}

// MergeDecision fuses the Layer A candidate ranking and the Layer B rules
// scores. Each ranked disease adds rank_points x mapping_confidence to its
// specialty's prior; final = rules + prior. When either layer is empty the
// other drives alone. Ordering: final desc, keyword score desc, id asc.
func MergeDecision(cat *catalog.Catalog, candidates []Candidate, ranking SpecialtyRanking) []MergedSpecialty {
	priors := make(map[string]float64)
	for i, cand := range candidates {
		mapping, ok := cat.DiseaseSpecialty[cand.DiseaseLabel]
		if !ok {
			continue
		}
		priors[mapping.ID] += rankPoints[i+1] * mapping.Confidence
	}

	merged := make(map[string]*MergedSpecialty)
	for _, s := range ranking.Scores {
		merged[s.SpecialtyID] = &MergedSpecialty{
			SpecialtyID:  s.SpecialtyID,
			RulesScore:   s.Score,
			KeywordScore: s.KeywordScore,
		}
	}
	for id, prior := range priors {
		m, ok := merged[id]
		if !ok {
			m = &MergedSpecialty{SpecialtyID: id}
			merged[id] = m
		}
		m.Prior = prior
	}

	out := make([]MergedSpecialty, 0, len(merged))
	for _, m := range merged {
		m.Final = float64(m.RulesScore) + m.Prior
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Final != out[j].Final {
			return out[i].Final > out[j].Final
		}
		if out[i].KeywordScore != out[j].KeywordScore {
			return out[i].KeywordScore > out[j].KeywordScore
		}
		return out[i].SpecialtyID < out[j].SpecialtyID
	})
	return out
}
