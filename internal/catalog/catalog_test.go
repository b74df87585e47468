package catalog

import (
	"testing"
)

func loadDefaults(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Load("")
	if err != nil {
		t.Fatalf("load embedded defaults: %v", err)
	}
	return cat
}

func TestLoadDefaults(t *testing.T) {
	cat := loadDefaults(t)

	if len(cat.Canonicals()) == 0 {
		t.Error("no canonicals loaded")
	}
	if len(cat.DiseaseSymptoms) == 0 {
		t.Error("no diseases loaded")
	}
	if _, ok := cat.QuestionBanks["tr-TR"]; !ok {
		t.Error("tr-TR question bank missing")
	}
	if _, ok := cat.QuestionBanks["en-US"]; !ok {
		t.Error("en-US question bank missing")
	}
	if cat.Scoring.PhraseMatchPoints != 5 || cat.Scoring.KeywordMatchPoints != 3 || cat.Scoring.NegativeKeywordPenalty != -4 {
		t.Errorf("unexpected scoring points: %+v", cat.Scoring)
	}
}

func TestSortedVariantsOrder(t *testing.T) {
	cat := loadDefaults(t)
	variants := cat.SortedVariants()
	for i := 1; i < len(variants); i++ {
		prev, cur := variants[i-1], variants[i]
		if len(prev.Variant) < len(cur.Variant) {
			t.Fatalf("variants not length-descending at %d: %q before %q", i, prev.Variant, cur.Variant)
		}
		if len(prev.Variant) == len(cur.Variant) && prev.Variant > cur.Variant {
			t.Fatalf("equal-length variants not ascending at %d: %q before %q", i, prev.Variant, cur.Variant)
		}
	}
}

func TestKaggleReverseMapping(t *testing.T) {
	cat := loadDefaults(t)

	canonical, ok := cat.CanonicalForKaggle("high_fever")
	if !ok || canonical != "ateş" {
		t.Errorf("high_fever -> %q/%v, want ateş", canonical, ok)
	}
	if _, ok := cat.CanonicalForKaggle("no_such_symptom"); ok {
		t.Error("unknown kaggle symptom must not resolve")
	}
}

func TestBankQuestionLocaleFallback(t *testing.T) {
	cat := loadDefaults(t)

	q, ok := cat.BankQuestionFor("en-US", "ateş")
	if !ok || q.Question != "Do you have a fever?" {
		t.Errorf("en-US bank lookup = %+v/%v", q, ok)
	}

	// Unknown locale falls back to the default bank.
	q, ok = cat.BankQuestionFor("de-DE", "ateş")
	if !ok || q.Question != "Ateşiniz var mı?" {
		t.Errorf("fallback lookup = %+v/%v", q, ok)
	}
}

func TestMessageFallback(t *testing.T) {
	cat := loadDefaults(t)

	if got := cat.Message("en-US", "EMPTY_INPUT"); got == "" || got == "EMPTY_INPUT" {
		t.Errorf("en-US message = %q", got)
	}
	if got := cat.Message("de-DE", "EMPTY_INPUT"); got != cat.Message("tr-TR", "EMPTY_INPUT") {
		t.Errorf("unknown locale should fall back to default, got %q", got)
	}
	if got := cat.Message("tr-TR", "no_such_key"); got != "no_such_key" {
		t.Errorf("missing key should echo the key, got %q", got)
	}
}

func TestContextQuestionsOrdered(t *testing.T) {
	cat := loadDefaults(t)
	ordered := cat.ContextQuestionsOrdered()
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Order > ordered[i].Order {
			t.Fatalf("context questions out of order at %d", i)
		}
	}
	if ordered[0].ID != "ctx_age" {
		t.Errorf("first context question = %s, want ctx_age", ordered[0].ID)
	}
}

func TestValidateCatchesBrokenReferences(t *testing.T) {
	cat := loadDefaults(t)

	// Orphan a disease's specialty mapping and re-validate.
	delete(cat.DiseaseSpecialty, "Migraine")
	if err := cat.Validate(); err == nil {
		t.Error("expected validation failure for missing disease_to_specialty entry")
	}
}

func TestValidateCatchesUnknownSeverity(t *testing.T) {
	cat := loadDefaults(t)
	cat.DiseaseSymptoms["Broken disease"] = []string{"not_a_symptom"}
	if err := cat.Validate(); err == nil {
		t.Error("expected validation failure for unmapped kaggle symptom")
	}
}

func TestSkipDeniedFor(t *testing.T) {
	cat := loadDefaults(t)
	denied := cat.SkipDeniedFor("balgam")
	if len(denied) == 0 || denied[0] != "öksürük" {
		t.Errorf("skip rule for balgam = %v", denied)
	}
	if got := cat.SkipDeniedFor("bulantı"); got != nil {
		t.Errorf("unexpected skip rule %v", got)
	}
}
