package triage

import (
	"math"
	"testing"
)

func TestMergeDecisionPriorsOnly(t *testing.T) {
	cat := testCatalog(t)
	candidates := GenerateCandidates(cat, []string{"baş ağrısı", "bulantı"})
	// Empty rules ranking: priors alone drive.
	ranking := ScoreSpecialties(cat, "", Interpret("", cat))
	merged := MergeDecision(cat, candidates, ranking)

	if merged[0].SpecialtyID != "neurology" {
		t.Fatalf("top = %s, want neurology", merged[0].SpecialtyID)
	}
	// Migraine rank 1 (4 x 0.9) + Tension headache rank 2 (3 x 0.85).
	want := 4*0.9 + 3*0.85
	if math.Abs(merged[0].Prior-want) > 1e-9 {
		t.Errorf("neurology prior = %v, want %v", merged[0].Prior, want)
	}
	if merged[0].RulesScore != 0 {
		t.Errorf("rules score = %d, want 0", merged[0].RulesScore)
	}
}

func TestMergeDecisionRulesOnly(t *testing.T) {
	cat := testCatalog(t)
	text := Normalize("başım ağrıyor")
	ranking := ScoreSpecialties(cat, text, Interpret(text, cat))
	merged := MergeDecision(cat, nil, ranking)

	if merged[0].SpecialtyID != "neurology" {
		t.Fatalf("top = %s, want neurology", merged[0].SpecialtyID)
	}
	if merged[0].Prior != 0 {
		t.Errorf("prior = %v, want 0 with no candidates", merged[0].Prior)
	}
	if merged[0].Final != float64(merged[0].RulesScore) {
		t.Errorf("final = %v, want rules score %d", merged[0].Final, merged[0].RulesScore)
	}
}

func TestMergeDecisionFusion(t *testing.T) {
	cat := testCatalog(t)
	text := Normalize("başım ağrıyor ve bulantı var")
	in := Interpret(text, cat)
	candidates := GenerateCandidates(cat, in.Canonicals)
	ranking := ScoreSpecialties(cat, text, in)
	merged := MergeDecision(cat, candidates, ranking)

	if merged[0].SpecialtyID != "neurology" {
		t.Fatalf("top = %s, want neurology", merged[0].SpecialtyID)
	}
	if merged[0].Final != float64(merged[0].RulesScore)+merged[0].Prior {
		t.Error("final must equal rules + prior")
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Final > merged[i-1].Final {
			t.Errorf("merged not sorted at %d", i)
		}
	}
}

func TestMergeDecisionRankPointsTail(t *testing.T) {
	// Ranks 4 and 5 both contribute a single point.
	if rankPoints[4] != 1 || rankPoints[5] != 1 {
		t.Errorf("rank points tail = %v/%v, want 1/1", rankPoints[4], rankPoints[5])
	}
	if rankPoints[1] != 4 || rankPoints[2] != 3 || rankPoints[3] != 2 {
		t.Error("rank points head must be 4/3/2")
	}
}
