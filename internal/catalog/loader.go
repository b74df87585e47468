package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed defaults/*.json
var defaultFS embed.FS

// DefaultLocale is the catalog's primary locale; banks and messages for other
// locales fall back to it.
const DefaultLocale = "tr-TR"

// Load builds a Catalog from the JSON files in dir. Files missing from dir
// fall back to the embedded defaults, so an empty dir ("" included) yields
// the shipped catalog set. Every file must parse; a malformed file is a
// startup error, never a silent default.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{DefaultLocale: DefaultLocale}

	if err := loadFile(dir, "synonyms.json", &c.Synonyms); err != nil {
		return nil, err
	}

	var spec SpecialtyFile
	if err := loadFile(dir, "specialty_keywords.json", &spec); err != nil {
		return nil, err
	}
	c.Specialties = spec.Specialties
	c.Scoring = spec.Scoring

	if err := loadFile(dir, "disease_symptoms.json", &c.DiseaseSymptoms); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "symptom_severity.json", &c.SymptomSeverity); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "kaggle_to_canonical.json", &c.KaggleToCanonical); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "disease_to_specialty.json", &c.DiseaseSpecialty); err != nil {
		return nil, err
	}

	c.QuestionBanks = make(map[string][]BankQuestion)
	for _, locale := range bankLocales(dir) {
		var bank []BankQuestion
		if err := loadFile(dir, "question_bank."+locale+".json", &bank); err != nil {
			return nil, err
		}
		c.QuestionBanks[locale] = bank
	}

	if err := loadFile(dir, "question_skip_rules.json", &c.SkipRules); err != nil {
		return nil, err
	}

	var ctx struct {
		Questions []ContextQuestion `json:"questions"`
		Rules     ContextRules      `json:"rules"`
	}
	if err := loadFile(dir, "context_questions.json", &ctx); err != nil {
		return nil, err
	}
	c.ContextQuestions = ctx.Questions
	c.ContextRules = ctx.Rules

	if err := loadFile(dir, "red_flag_questions.json", &c.RedFlags); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "emergency_rules.json", &c.EmergencyRules); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "same_day_rules.json", &c.SameDayRules); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "stop_rules.json", &c.StopRules); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "candidate_generator.json", &c.CandidateGen); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "free_text_parser.json", &c.Parser); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "messages.json", &c.Messages); err != nil {
		return nil, err
	}
	if err := loadFile(dir, "facilities.json", &c.Facilities); err != nil {
		return nil, err
	}

	c.buildIndexes()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLoadDefaults loads the embedded catalog set; it panics on failure and
// exists for tests, which ship with known-good defaults.
func MustLoadDefaults() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

func loadFile(dir, name string, out interface{}) error {
	data, err := readFile(dir, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("catalog %s: %w", name, err)
	}
	return nil
}

func readFile(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
	}
	data, err := defaultFS.ReadFile("defaults/" + name)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: no file in %q and no embedded default", name, dir)
	}
	return data, nil
}

// bankLocales discovers which question_bank.<locale>.json files exist across
// the override dir and the embedded defaults.
func bankLocales(dir string) []string {
	seen := map[string]bool{}
	collect := func(names []string) {
		for _, name := range names {
			if !strings.HasPrefix(name, "question_bank.") || !strings.HasSuffix(name, ".json") {
				continue
			}
			locale := strings.TrimSuffix(strings.TrimPrefix(name, "question_bank."), ".json")
			if locale != "" {
				seen[locale] = true
			}
		}
	}

	if entries, err := fs.ReadDir(defaultFS, "defaults"); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		collect(names)
	}
	if dir != "" {
		if entries, err := os.ReadDir(dir); err == nil {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			collect(names)
		}
	}

	locales := make([]string, 0, len(seen))
	for locale := range seen {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}
