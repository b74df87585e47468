package triage

import (
	"strings"

	"github.com/pretriage/pretriage/internal/catalog"
)

// Confidence thresholds for the high/medium labels.
const (
	confidenceHighAt   = 0.70
	confidenceMediumAt = 0.45
)

// FiredRule reports which safety rule matched, with its localized texts.
type FiredRule struct {
	RuleID       string
	ReasonTR     string
	Instructions []string
}

// EvaluateEmergency checks every emergency rule against the session; the
// first match (catalog order) fires. Emergency always wins over any other
// envelope.
func EvaluateEmergency(cat *catalog.Catalog, sess *Session) *FiredRule {
	return evaluateRules(cat, sess, cat.EmergencyRules)
}

// EvaluateSameDay checks the softer same-day rules. A match never stops the
// loop; it only decorates the next envelope.
func EvaluateSameDay(cat *catalog.Catalog, sess *Session) *FiredRule {
	return evaluateRules(cat, sess, cat.SameDayRules)
}

func evaluateRules(cat *catalog.Catalog, sess *Session, rules []catalog.SafetyRule) *FiredRule {
	for _, r := range rules {
		if !ruleMatches(&r, sess) {
			continue
		}
		return &FiredRule{
			RuleID:       r.ID,
			ReasonTR:     cat.LocaleText(r.Reason, sess.Locale),
			Instructions: cat.LocaleList(r.Instructions, sess.Locale),
		}
	}
	return nil
}

// ruleMatches evaluates one safety rule as a pure predicate over the known
// symptoms and parsed answers.
func ruleMatches(r *catalog.SafetyRule, sess *Session) bool {
	for _, c := range r.RequireAll {
		if !sess.Knows(c) {
			return false
		}
	}

	if len(r.AnyOf) > 0 {
		min := r.MinAny
		if min <= 0 {
			min = 1
		}
		n := 0
		for _, c := range r.AnyOf {
			if sess.Knows(c) {
				n++
			}
		}
		if n < min {
			return false
		}
	}

	if r.MinSeverity != nil {
		pa, ok := sess.ParsedAnswers[r.MinSeverity.Canonical]
		if !ok || pa.Severity0To10 == nil || *pa.Severity0To10 < r.MinSeverity.Min {
			return false
		}
	}
	if r.MinDuration != nil {
		pa, ok := sess.ParsedAnswers[r.MinDuration.Canonical]
		if !ok || pa.DurationDays == nil || *pa.DurationDays < r.MinDuration.MinDays {
			return false
		}
	}

	return len(r.RequireAll) > 0 || len(r.AnyOf) > 0
}

// MaxQuestionsFor picks the question budget: the tighter emergency budget
// applies when the top merged specialty is in the emergency set or the top
// candidate's label contains an emergency disease keyword.
func MaxQuestionsFor(cat *catalog.Catalog, merged []MergedSpecialty, candidates []Candidate) int {
	stop := cat.StopRules
	if len(merged) > 0 {
		for _, id := range stop.EmergencySpecialtyIDs {
			if merged[0].SpecialtyID == id {
				return stop.MaxQuestionsEmergency
			}
		}
	}
	if len(candidates) > 0 {
		label := strings.ToLower(candidates[0].DiseaseLabel)
		for _, kw := range stop.EmergencyDiseaseKeywords {
			if strings.Contains(label, strings.ToLower(kw)) {
				return stop.MaxQuestionsEmergency
			}
		}
	}
	return stop.MaxQuestions
}

// Confidence is the routing confidence triplet on a RESULT.
type Confidence struct {
	Value     float64
	LabelTR   string
	ExplainTR string
}

// ComputeConfidence derives confidence from the Layer A top score and the
// gap to the runner-up: clamp01(top1*0.75 + gap*0.6), labelled at the 0.70
// and 0.45 thresholds.
func ComputeConfidence(cat *catalog.Catalog, locale string, candidates []Candidate) Confidence {
	var top1, top2 float64
	if len(candidates) > 0 {
		top1 = candidates[0].Score0To1
	}
	if len(candidates) > 1 {
		top2 = candidates[1].Score0To1
	}
	gap := top1 - top2
	if gap < 0 {
		gap = 0
	}

	value := top1*0.75 + gap*0.6
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	var label, explain string
	switch {
	case value >= confidenceHighAt:
		label = cat.Message(locale, "confidence_high")
		explain = cat.Message(locale, "confidence_explain_high")
	case value >= confidenceMediumAt:
		label = cat.Message(locale, "confidence_medium")
		explain = cat.Message(locale, "confidence_explain_medium")
	default:
		label = cat.Message(locale, "confidence_low")
		explain = cat.Message(locale, "confidence_explain_low")
	}

	return Confidence{Value: value, LabelTR: label, ExplainTR: explain}
}
