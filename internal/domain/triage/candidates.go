package triage

import (
	"sort"

	"github.com/pretriage/pretriage/internal/catalog"
)

// Candidate is one ranked disease from the weighted-Jaccard pass, with the
// kaggle-space overlap kept for the selector and the result payload.
type Candidate struct {
	DiseaseLabel    string   `json:"disease_label"`
	Score0To1       float64  `json:"score_0_1"`
	MatchedSymptoms []string `json:"matched_symptoms"`
	MissingSymptoms []string `json:"missing_symptoms"`
}

// GenerateCandidates scores every disease in the matrix against the user's
// canonicals expanded into kaggle space. Symptom weight is
// default_symptom_weight + severity*severity_weight_multiplier; the score is
// the weighted intersection over the weighted union. Diseases below
// min_score_to_include are dropped; the rest sort by score descending, label
// ascending, truncated to top_k. The generator is pure.
func GenerateCandidates(cat *catalog.Catalog, userCanonicals []string) []Candidate {
	userKaggle := make(map[string]bool)
	for _, canonical := range userCanonicals {
		for _, k := range cat.KaggleFor(canonical) {
			userKaggle[k] = true
		}
	}
	if len(userKaggle) == 0 {
		return nil
	}

	cfg := cat.CandidateGen
	weight := func(s string) float64 {
		return cfg.DefaultSymptomWeight + float64(cat.SymptomSeverity[s])*cfg.SeverityWeightMultiplier
	}

	diseases := make([]string, 0, len(cat.DiseaseSymptoms))
	for label := range cat.DiseaseSymptoms {
		diseases = append(diseases, label)
	}
	sort.Strings(diseases)

	var out []Candidate
	for _, label := range diseases {
		symptoms := cat.DiseaseSymptoms[label]
		diseaseSet := make(map[string]bool, len(symptoms))
		for _, s := range symptoms {
			diseaseSet[s] = true
		}

		var interW, unionW float64
		var matched, missing []string
		for _, s := range symptoms {
			unionW += weight(s)
			if userKaggle[s] {
				interW += weight(s)
				matched = append(matched, s)
			} else {
				missing = append(missing, s)
			}
		}
		for k := range userKaggle {
			if !diseaseSet[k] {
				unionW += weight(k)
			}
		}

		if unionW == 0 {
			continue
		}
		score := interW / unionW
		if score < cfg.MinScoreToInclude {
			continue
		}
		sort.Strings(matched)
		sort.Strings(missing)
		out = append(out, Candidate{
			DiseaseLabel:    label,
			Score0To1:       score,
			MatchedSymptoms: matched,
			MissingSymptoms: missing,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score0To1 != out[j].Score0To1 {
			return out[i].Score0To1 > out[j].Score0To1
		}
		return out[i].DiseaseLabel < out[j].DiseaseLabel
	})

	if len(out) > cfg.TopK {
		out = out[:cfg.TopK]
	}
	return out
}
