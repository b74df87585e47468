package catalog

// Raw shapes of the catalog JSON files. Everything here is immutable after
// Load; the orchestrator and its collaborators only ever read these.

// SynonymEntry maps surface variants onto one canonical symptom name.
type SynonymEntry struct {
	Canonical string   `json:"canonical"`
	Type      string   `json:"type"`
	Variants  []string `json:"variants"`
}

// Scoring holds the specialty scorer point values.
type Scoring struct {
	KeywordMatchPoints     int      `json:"keyword_match_points"`
	PhraseMatchPoints      int      `json:"phrase_match_points"`
	NegativeKeywordPenalty int      `json:"negative_keyword_penalty"`
	TieBreakers            []string `json:"tie_breakers"`
}

// Specialty is one scored medical specialty.
type Specialty struct {
	ID               string   `json:"id"`
	NameTR           string   `json:"name_tr"`
	NameEN           string   `json:"name_en,omitempty"`
	Keywords         []string `json:"keywords"`
	NegativeKeywords []string `json:"negative_keywords"`
}

// SpecialtyFile is the on-disk shape of specialty_keywords.json.
type SpecialtyFile struct {
	Specialties []Specialty `json:"specialties"`
	Scoring     Scoring     `json:"scoring"`
}

// DiseaseSpecialty maps a disease label to its routed specialty.
type DiseaseSpecialty struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
}

// BankQuestion is one askable symptom question in a single locale's bank.
type BankQuestion struct {
	Canonical         string   `json:"canonical"`
	Question          string   `json:"question"`
	AnswerType        string   `json:"answer_type"`
	Choices           []string `json:"choices,omitempty"`
	PriorityWhenKnown []string `json:"priority_when_known,omitempty"`
	WhyAsking         string   `json:"why_asking,omitempty"`
}

// SkipRule forbids asking CanonicalSymptom once any of SkipIfDenied was denied.
type SkipRule struct {
	CanonicalSymptom string   `json:"canonical_symptom"`
	SkipIfDenied     []string `json:"skip_if_denied"`
}

// ContextQuestion collects profile facts (age, sex, pregnancy, chronic).
type ContextQuestion struct {
	ID              string            `json:"id"`
	Question        map[string]string `json:"question"` // locale -> text
	AnswerType      string            `json:"answer_type"`
	ProfileField    string            `json:"profile_field"`
	WhenAsk         string            `json:"when_ask"` // always | when_symptoms_any | pregnancy_rule
	WhenSymptomsAny []string          `json:"when_symptoms_any,omitempty"`
	Order           int               `json:"order"`
	Choices         map[string][]string `json:"choices,omitempty"` // locale -> choices
}

// RedFlagQuestion is asked when its precondition symptoms are all known.
type RedFlagQuestion struct {
	ID            string            `json:"id"`
	Question      map[string]string `json:"question"`
	Preconditions []string          `json:"preconditions"`
	Reason        map[string]string `json:"reason"`
}

// SeverityCondition gates a safety rule on a parsed answer value.
type SeverityCondition struct {
	Canonical string `json:"canonical"`
	Min       int    `json:"min"`
}

// DurationCondition gates a safety rule on a parsed duration.
type DurationCondition struct {
	Canonical string `json:"canonical"`
	MinDays   int    `json:"min_days"`
}

// SafetyRule is a pure predicate over the session's known symptoms. RequireAll
// must all be known; at least MinAny of AnyOf must be known (MinAny defaults
// to 1 when AnyOf is non-empty). Optional severity/duration conditions consult
// parsed answers.
type SafetyRule struct {
	ID           string             `json:"id"`
	RequireAll   []string           `json:"require_all,omitempty"`
	AnyOf        []string           `json:"any_of,omitempty"`
	MinAny       int                `json:"min_any,omitempty"`
	MinSeverity  *SeverityCondition `json:"min_severity,omitempty"`
	MinDuration  *DurationCondition `json:"min_duration,omitempty"`
	Reason       map[string]string  `json:"reason"`
	Instructions map[string][]string `json:"instructions,omitempty"`
}

// StopRules bounds the question loop and flags emergency-adjacent routing.
type StopRules struct {
	MaxQuestions             int      `json:"max_questions"`
	MaxQuestionsEmergency    int      `json:"max_questions_emergency"`
	EmergencySpecialtyIDs    []string `json:"emergency_specialty_ids"`
	EmergencyDiseaseKeywords []string `json:"emergency_disease_keywords"`
	MinExpectedGain          float64  `json:"min_expected_gain"`
	RetractKnownOnDeny       bool     `json:"retract_known_on_deny"`
}

// CandidateGen holds the Layer A weights and cut-offs.
type CandidateGen struct {
	TopK                     int     `json:"top_k"`
	MinScoreToInclude        float64 `json:"min_score_to_include"`
	DefaultSymptomWeight     float64 `json:"default_symptom_weight"`
	SeverityWeightMultiplier float64 `json:"severity_weight_multiplier"`
}

// ParserConfig drives the free-text parser: which canonicals each sub-parser
// applies to, and the locale-specific word tables.
type ParserConfig struct {
	DurationCanonicals []string                      `json:"duration_canonicals"`
	SeverityCanonicals []string                      `json:"severity_canonicals"`
	TimingCanonicals   []string                      `json:"timing_canonicals"`
	DurationUnits      map[string]map[string]int     `json:"duration_units"` // locale -> unit word -> days
	SeverityWords      map[string]map[string]int     `json:"severity_words"` // locale -> word -> 0..10
	TimingWords        map[string]map[string]string  `json:"timing_words"`   // locale -> word -> morning|evening|night|day
}

// Facility is one entry of the static facility directory.
type Facility struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	SpecialtyIDs []string `json:"specialty_ids"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

// ContextRules carries cross-cutting context-question configuration.
type ContextRules struct {
	PregnancyRelevant []string `json:"pregnancy_relevant"`
}
