package triage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pretriage/pretriage/internal/catalog"
)

// ParseFreeText extracts duration, severity and timing from a raw answer to
// the given canonical. The three sub-parsers run only when the locale's
// parser config lists the canonical for them. Unparsable input yields an
// empty struct, never an error.
func ParseFreeText(cat *catalog.Catalog, locale, canonical, raw string) ParsedAnswer {
	var out ParsedAnswer
	text := Normalize(raw)

	if contains(cat.Parser.DurationCanonicals, canonical) {
		if d, ok := parseDurationDays(cat, locale, text); ok {
			out.DurationDays = &d
		}
	}
	if contains(cat.Parser.SeverityCanonicals, canonical) {
		if s, ok := parseSeverity(cat, locale, text); ok {
			out.Severity0To10 = &s
		}
	}
	if contains(cat.Parser.TimingCanonicals, canonical) {
		if t, ok := parseTiming(cat, locale, text); ok {
			out.Timing = &t
		}
	}
	return out
}

// parseDurationDays recognizes "<int> <unit><suffix>" with locale unit words
// (gün/hafta/ay, day/week/month); a bare integer is read as days.
func parseDurationDays(cat *catalog.Catalog, locale, text string) (int, bool) {
	units := localeTable(cat.Parser.DurationUnits, locale, cat.DefaultLocale)
	tokens := strings.Fields(text)

	for i, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			continue
		}
		if i+1 < len(tokens) {
			if mult, ok := unitFor(units, tokens[i+1]); ok {
				return n * mult, true
			}
		}
		return n, true
	}

	// Digits glued to the unit ("3gündür").
	for _, tok := range tokens {
		digits := leadingDigits(tok)
		if digits == "" || digits == tok {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if mult, ok := unitFor(units, tok[len(digits):]); ok {
			return n * mult, true
		}
	}

	return 0, false
}

// unitFor matches a token against the unit words by prefix, so suffixed forms
// like "gündür" and "haftadır" resolve to their bare unit.
func unitFor(units map[string]int, token string) (int, bool) {
	best := ""
	for unit := range units {
		if strings.HasPrefix(token, unit) && len(unit) > len(best) {
			best = unit
		}
	}
	if best == "" {
		return 0, false
	}
	return units[best], true
}

func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}

// parseSeverity accepts "n/10", a bare 0..10 integer, or a locale word from
// the lexical severity map.
func parseSeverity(cat *catalog.Catalog, locale, text string) (int, bool) {
	tokens := strings.Fields(text)

	for i, tok := range tokens {
		// "7/10" survives normalization because '/' is not punctuation.
		if idx := strings.Index(tok, "/10"); idx > 0 {
			if n, err := strconv.Atoi(tok[:idx]); err == nil && n >= 0 && n <= 10 {
				return n, true
			}
		}
		// "7 / 10" as separate tokens.
		if i+2 < len(tokens) && tokens[i+1] == "/" && tokens[i+2] == "10" {
			if n, err := strconv.Atoi(tok); err == nil && n >= 0 && n <= 10 {
				return n, true
			}
		}
	}

	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 && n <= 10 {
			return n, true
		}
	}

	words := localeTable(cat.Parser.SeverityWords, locale, cat.DefaultLocale)
	for _, tok := range tokens {
		if n, ok := words[tok]; ok {
			return n, true
		}
	}

	return 0, false
}

// parseTiming classifies the answer into morning/evening/night/day by the
// locale keyword table; the first keyword found in token order wins.
func parseTiming(cat *catalog.Catalog, locale, text string) (string, bool) {
	words := localeStringTable(cat.Parser.TimingWords, locale, cat.DefaultLocale)
	keys := make([]string, 0, len(words))
	for word := range words {
		keys = append(keys, word)
	}
	sort.Strings(keys)

	for _, tok := range strings.Fields(text) {
		for _, word := range keys {
			if strings.HasPrefix(tok, word) {
				return words[word], true
			}
		}
	}
	return "", false
}

func localeTable(m map[string]map[string]int, locale, fallback string) map[string]int {
	if t, ok := m[locale]; ok {
		return t
	}
	return m[fallback]
}

func localeStringTable(m map[string]map[string]string, locale, fallback string) map[string]string {
	if t, ok := m[locale]; ok {
		return t
	}
	return m[fallback]
}
