package triage

import "testing"

func TestParseFreeTextDuration(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		raw  string
		want int
	}{
		{"3 gün", 3},
		{"3 gündür", 3},
		{"2 hafta", 14},
		{"2 haftadır", 14},
		{"1 ay", 30},
		{"5", 5},
		{"yaklaşık 4 gündür sürüyor", 4},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseFreeText(cat, "tr-TR", "öksürük süresi", tt.raw)
			if got.DurationDays == nil {
				t.Fatalf("no duration parsed from %q", tt.raw)
			}
			if *got.DurationDays != tt.want {
				t.Errorf("duration = %d, want %d", *got.DurationDays, tt.want)
			}
		})
	}
}

func TestParseFreeTextDurationEnglish(t *testing.T) {
	cat := testCatalog(t)
	got := ParseFreeText(cat, "en-US", "öksürük süresi", "about 2 weeks")
	if got.DurationDays == nil || *got.DurationDays != 14 {
		t.Fatalf("got %+v, want 14 days", got)
	}
}

func TestParseFreeTextSeverity(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		raw  string
		want int
	}{
		{"7/10", 7},
		{"8", 8},
		{"şiddetli", 8},
		{"orta", 6},
		{"hafif", 2},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseFreeText(cat, "tr-TR", "baş ağrısı", tt.raw)
			if got.Severity0To10 == nil {
				t.Fatalf("no severity parsed from %q", tt.raw)
			}
			if *got.Severity0To10 != tt.want {
				t.Errorf("severity = %d, want %d", *got.Severity0To10, tt.want)
			}
		})
	}
}

func TestParseFreeTextTiming(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		raw  string
		want string
	}{
		{"genelde gece oluyor", "night"},
		{"sabahları", "morning"},
		{"akşam saatlerinde", "evening"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseFreeText(cat, "tr-TR", "öksürük gece artışı", tt.raw)
			if got.Timing == nil {
				t.Fatalf("no timing parsed from %q", tt.raw)
			}
			if *got.Timing != tt.want {
				t.Errorf("timing = %q, want %q", *got.Timing, tt.want)
			}
		})
	}
}

func TestParseFreeTextInapplicableCanonical(t *testing.T) {
	cat := testCatalog(t)
	// "bulantı" is in none of the parser canonical sets.
	got := ParseFreeText(cat, "tr-TR", "bulantı", "3 gündür ve şiddetli")
	if got != (ParsedAnswer{}) {
		t.Errorf("expected empty parse, got %+v", got)
	}
}

func TestParseFreeTextUnparsable(t *testing.T) {
	cat := testCatalog(t)
	got := ParseFreeText(cat, "tr-TR", "öksürük süresi", "bilmiyorum")
	if got != (ParsedAnswer{}) {
		t.Errorf("expected empty parse, got %+v", got)
	}
}

func TestParseFreeTextIdempotent(t *testing.T) {
	cat := testCatalog(t)
	first := ParseFreeText(cat, "tr-TR", "göğüs ağrısı süresi", "2 gündür")
	second := ParseFreeText(cat, "tr-TR", "göğüs ağrısı süresi", "2 gündür")
	if *first.DurationDays != *second.DurationDays {
		t.Error("parser is not idempotent")
	}
}
