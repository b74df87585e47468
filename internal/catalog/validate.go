package catalog

import (
	"fmt"
	"sort"
)

// Validate cross-checks referential integrity between the catalog tables.
// It runs at startup and from the `catalog validate` command; a broken
// catalog must never reach the turn loop.
func (c *Catalog) Validate() error {
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Synonyms) == 0 {
		report("synonyms: empty")
	}
	if len(c.Specialties) == 0 {
		report("specialty_keywords: no specialties")
	}
	if c.Scoring.PhraseMatchPoints == 0 && c.Scoring.KeywordMatchPoints == 0 {
		report("specialty_keywords: scoring points are all zero")
	}

	// Every kaggle symptom in the disease matrix needs a severity weight.
	for disease, symptoms := range c.DiseaseSymptoms {
		if len(symptoms) == 0 {
			report("disease_symptoms[%s]: empty symptom list", disease)
		}
		for _, s := range symptoms {
			if _, ok := c.SymptomSeverity[s]; !ok {
				report("disease_symptoms[%s]: kaggle symptom %q has no severity", disease, s)
			}
		}
	}

	// Every disease must route to a known specialty.
	for disease := range c.DiseaseSymptoms {
		mapping, ok := c.DiseaseSpecialty[disease]
		if !ok {
			report("disease_to_specialty: missing entry for %q", disease)
			continue
		}
		if _, ok := c.specialtyByID[mapping.ID]; !ok {
			report("disease_to_specialty[%s]: unknown specialty %q", disease, mapping.ID)
		}
		if mapping.Confidence < 0 || mapping.Confidence > 1 {
			report("disease_to_specialty[%s]: confidence %v outside [0,1]", disease, mapping.Confidence)
		}
	}

	// Reverse mapping must point at real canonicals and real kaggle symptoms.
	for canonical, kaggles := range c.KaggleToCanonical {
		if !c.canonicalSet[canonical] {
			report("kaggle_to_canonical: %q is not a synonym canonical", canonical)
		}
		for _, k := range kaggles {
			if _, ok := c.SymptomSeverity[k]; !ok {
				report("kaggle_to_canonical[%s]: kaggle symptom %q has no severity", canonical, k)
			}
		}
	}

	// Question banks must exist for the default locale and name real canonicals.
	if _, ok := c.QuestionBanks[c.DefaultLocale]; !ok {
		report("question_bank: missing default locale %s", c.DefaultLocale)
	}
	for locale, bank := range c.QuestionBanks {
		for _, q := range bank {
			if !c.canonicalSet[q.Canonical] {
				report("question_bank.%s: %q is not a canonical", locale, q.Canonical)
			}
			switch q.AnswerType {
			case "yes_no", "free_text", "number", "multi_choice":
			default:
				report("question_bank.%s[%s]: bad answer_type %q", locale, q.Canonical, q.AnswerType)
			}
			for _, p := range q.PriorityWhenKnown {
				if !c.canonicalSet[p] {
					report("question_bank.%s[%s]: priority_when_known %q is not a canonical", locale, q.Canonical, p)
				}
			}
		}
	}

	// Skip rules must name bank canonicals on both sides.
	inBank := func(canonical string) bool {
		for _, bank := range c.bankByLocale {
			if _, ok := bank[canonical]; ok {
				return true
			}
		}
		return false
	}
	for _, r := range c.SkipRules {
		if !c.canonicalSet[r.CanonicalSymptom] {
			report("question_skip_rules: %q is not a canonical", r.CanonicalSymptom)
		} else if !inBank(r.CanonicalSymptom) {
			report("question_skip_rules: %q has no question bank entry", r.CanonicalSymptom)
		}
		for _, d := range r.SkipIfDenied {
			if !c.canonicalSet[d] {
				report("question_skip_rules[%s]: skip_if_denied %q is not a canonical", r.CanonicalSymptom, d)
			}
		}
	}

	for _, q := range c.ContextQuestions {
		switch q.WhenAsk {
		case "always", "when_symptoms_any", "pregnancy_rule":
		default:
			report("context_questions[%s]: bad when_ask %q", q.ID, q.WhenAsk)
		}
		if q.Question[c.DefaultLocale] == "" {
			report("context_questions[%s]: no %s question text", q.ID, c.DefaultLocale)
		}
	}

	for _, rules := range [][]SafetyRule{c.EmergencyRules, c.SameDayRules} {
		for _, r := range rules {
			if len(r.RequireAll) == 0 && len(r.AnyOf) == 0 {
				report("safety rule %s: no predicate", r.ID)
			}
			for _, s := range append(append([]string{}, r.RequireAll...), r.AnyOf...) {
				if !c.canonicalSet[s] {
					report("safety rule %s: %q is not a canonical", r.ID, s)
				}
			}
		}
	}

	if c.StopRules.MaxQuestions <= 0 {
		report("stop_rules: max_questions must be positive")
	}
	if c.StopRules.MaxQuestionsEmergency <= 0 {
		report("stop_rules: max_questions_emergency must be positive")
	}
	for _, id := range c.StopRules.EmergencySpecialtyIDs {
		if _, ok := c.specialtyByID[id]; !ok {
			report("stop_rules: emergency specialty %q unknown", id)
		}
	}

	if c.CandidateGen.TopK <= 0 {
		report("candidate_generator: top_k must be positive")
	}

	for _, f := range c.Facilities {
		for _, id := range f.SpecialtyIDs {
			if _, ok := c.specialtyByID[id]; !ok {
				report("facilities[%s]: unknown specialty %q", f.Name, id)
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("catalog validation failed:\n  %s", joinLines(problems))
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n  "
		}
		out += l
	}
	return out
}
