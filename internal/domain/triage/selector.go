package triage

import (
	"sort"

	"github.com/pretriage/pretriage/internal/catalog"
)

// priorityBoost is added to a discriminative score when the bank entry's
// priority_when_known intersects the known symptoms.
const priorityBoost = 0.35

// SelectedQuestion pairs the outgoing payload with bookkeeping the turn
// handler needs to persist.
type SelectedQuestion struct {
	Payload   QuestionPayload
	ContextID string  // set when Source == "context"
	DiscScore float64 // set when Source == "discriminative"
}

// SelectQuestion picks the next question: context first, then red-flag, then
// the highest-information discriminative symptom. Nil means no question is
// available and the orchestrator should close the loop.
func SelectQuestion(cat *catalog.Catalog, sess *Session, candidates []Candidate, trace *SelectorTrace) *SelectedQuestion {
	if q := selectContext(cat, sess); q != nil {
		if trace != nil {
			trace.Source = "context"
		}
		return q
	}
	if q := selectRedFlag(cat, sess); q != nil {
		if trace != nil {
			trace.Source = "red_flag"
		}
		return q
	}
	q := selectDiscriminative(cat, sess, candidates, trace)
	if q != nil && trace != nil {
		trace.Source = "discriminative"
	}
	return q
}

// selectContext walks the ordered context questions (age, sex, pregnancy,
// chronic) and emits the first one not yet asked and not already answered by
// the profile. The pregnancy question additionally requires a female profile
// and a pregnancy-relevant known symptom.
func selectContext(cat *catalog.Catalog, sess *Session) *SelectedQuestion {
	for _, cq := range cat.ContextQuestionsOrdered() {
		if sess.AskedContext(cq.ID) || profileHas(&sess.Profile, cq.ProfileField) {
			continue
		}

		switch cq.WhenAsk {
		case "always":
		case "when_symptoms_any":
			if !anyKnown(sess, cq.WhenSymptomsAny) {
				continue
			}
		case "pregnancy_rule":
			if sess.Profile.Sex == nil || *sess.Profile.Sex != "female" {
				continue
			}
			if !anyKnown(sess, cat.ContextRules.PregnancyRelevant) {
				continue
			}
		default:
			continue
		}

		return &SelectedQuestion{
			ContextID: cq.ID,
			Payload: QuestionPayload{
				QuestionID: cq.ID,
				Canonical:  cq.ID,
				QuestionTR: cat.LocaleText(cq.Question, sess.Locale),
				AnswerType: cq.AnswerType,
				ChoicesTR:  cat.LocaleList(cq.Choices, sess.Locale),
				Source:     "context",
			},
		}
	}
	return nil
}

// selectRedFlag emits the first red-flag question whose precondition
// symptoms are all known and whose id has not been asked.
func selectRedFlag(cat *catalog.Catalog, sess *Session) *SelectedQuestion {
	for _, rf := range cat.RedFlags {
		if sess.Asked(rf.ID) {
			continue
		}
		if !allKnown(sess, rf.Preconditions) {
			continue
		}
		return &SelectedQuestion{
			Payload: QuestionPayload{
				QuestionID:  rf.ID,
				Canonical:   rf.ID,
				QuestionTR:  cat.LocaleText(rf.Question, sess.Locale),
				AnswerType:  AnswerYesNo,
				WhyAskingTR: cat.LocaleText(rf.Reason, sess.Locale),
				Source:      "red_flag",
			},
		}
	}
	return nil
}

// selectDiscriminative scores every kaggle symptom across the current
// candidates by how evenly it splits them (1 - |c/C - 0.5|), boosts bank
// entries whose priority_when_known intersects the known symptoms, drops
// everything known, denied, asked, unmapped or forbidden by a skip rule,
// and returns the best surviving canonical's bank question.
func selectDiscriminative(cat *catalog.Catalog, sess *Session, candidates []Candidate, trace *SelectorTrace) *SelectedQuestion {
	if len(candidates) < 2 {
		return nil
	}

	total := len(candidates)
	counts := make(map[string]int)
	for _, cand := range candidates {
		for _, s := range cand.MatchedSymptoms {
			counts[s]++
		}
		for _, s := range cand.MissingSymptoms {
			counts[s]++
		}
	}

	kaggles := make([]string, 0, len(counts))
	for s := range counts {
		kaggles = append(kaggles, s)
	}
	sort.Strings(kaggles)

	best := make(map[string]float64) // canonical -> max disc score
	for _, kaggle := range kaggles {
		canonical, ok := cat.CanonicalForKaggle(kaggle)
		if !ok {
			continue
		}
		if sess.Knows(canonical) || sess.Denied(canonical) || sess.Asked(canonical) {
			skip(trace, canonical)
			continue
		}
		if _, ok := cat.BankQuestionFor(sess.Locale, canonical); !ok {
			continue
		}
		if skippedByRule(cat, sess, canonical) {
			skip(trace, canonical)
			continue
		}

		ratio := float64(counts[kaggle]) / float64(total)
		score := 1.0 - abs(ratio-0.5)

		bank, _ := cat.BankQuestionFor(sess.Locale, canonical)
		if len(bank.PriorityWhenKnown) > 0 && anyKnown(sess, bank.PriorityWhenKnown) {
			score += priorityBoost
		}

		if score > best[canonical] {
			best[canonical] = score
		}
	}

	if trace != nil && len(best) > 0 {
		trace.Scores = make(map[string]float64, len(best))
		for c, s := range best {
			trace.Scores[c] = s
		}
	}

	var topCanonical string
	var topScore float64
	ordered := make([]string, 0, len(best))
	for c := range best {
		ordered = append(ordered, c)
	}
	sort.Strings(ordered)
	for _, c := range ordered {
		if best[c] > topScore {
			topScore = best[c]
			topCanonical = c
		}
	}
	if topCanonical == "" {
		return nil
	}

	bank, _ := cat.BankQuestionFor(sess.Locale, topCanonical)
	return &SelectedQuestion{
		DiscScore: topScore,
		Payload: QuestionPayload{
			QuestionID:  "q_" + topCanonical,
			Canonical:   topCanonical,
			QuestionTR:  bank.Question,
			AnswerType:  bank.AnswerType,
			ChoicesTR:   bank.Choices,
			WhyAskingTR: bank.WhyAsking,
			Source:      "discriminative",
		},
	}
}

// skippedByRule reports whether a skip rule forbids asking the canonical
// because one of its skip_if_denied symptoms was denied.
func skippedByRule(cat *catalog.Catalog, sess *Session, canonical string) bool {
	for _, denied := range cat.SkipDeniedFor(canonical) {
		if sess.Denied(denied) {
			return true
		}
	}
	return false
}

func skip(trace *SelectorTrace, canonical string) {
	if trace != nil {
		trace.Skipped = append(trace.Skipped, canonical)
	}
}

func profileHas(p *Profile, field string) bool {
	switch field {
	case "age":
		return p.Age != nil
	case "sex":
		return p.Sex != nil
	case "pregnant":
		return p.Pregnant != nil
	case "chronic":
		return len(p.Chronic) > 0
	}
	return false
}

func anyKnown(sess *Session, canonicals []string) bool {
	for _, c := range canonicals {
		if sess.Knows(c) {
			return true
		}
	}
	return false
}

func allKnown(sess *Session, canonicals []string) bool {
	for _, c := range canonicals {
		if !sess.Knows(c) {
			return false
		}
	}
	return len(canonicals) > 0
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
