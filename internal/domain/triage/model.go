package triage

import (
	"time"
)

// Envelope discriminator values. Exactly one payload pointer is set per
// envelope, matching the type.
const (
	EnvelopeQuestion  = "QUESTION"
	EnvelopeResult    = "RESULT"
	EnvelopeEmergency = "EMERGENCY"
	EnvelopeSameDay   = "SAME_DAY"
	EnvelopeError     = "ERROR"
)

// Error codes surfaced in ERROR envelopes.
const (
	CodeEmptyInput     = "EMPTY_INPUT"
	CodeBadSession     = "BAD_SESSION"
	CodeBadState       = "BAD_STATE"
	CodeCatalogError   = "CATALOG_ERROR"
	CodeInternal       = "INTERNAL"
	CodeConcurrentTurn = "CONCURRENT_TURN"
)

// Stop reasons recorded on a RESULT.
const (
	StopMaxQuestions        = "max_questions"
	StopMinExpectedGain     = "min_expected_gain"
	StopNoQuestionAvailable = "no_question_available"
)

// Urgency levels on RESULT and EMERGENCY payloads.
const (
	UrgencyEmergency   = "EMERGENCY"
	UrgencyERNow       = "ER_NOW"
	UrgencySameDay     = "SAME_DAY"
	UrgencyWithin3Days = "WITHIN_3_DAYS"
	UrgencyRoutine     = "ROUTINE"
)

// Answer value types a bank question can declare.
const (
	AnswerYesNo       = "yes_no"
	AnswerFreeText    = "free_text"
	AnswerNumber      = "number"
	AnswerMultiChoice = "multi_choice"
)

// Profile holds the optional patient context collected via context questions
// or supplied with the request.
type Profile struct {
	Age      *int     `json:"age,omitempty"`
	Sex      *string  `json:"sex,omitempty"`
	Pregnant *bool    `json:"pregnant,omitempty"`
	Chronic  []string `json:"chronic,omitempty"`
}

// ParsedAnswer is the structured extraction from one free-text answer.
// Unset fields mean the sub-parser found nothing.
type ParsedAnswer struct {
	DurationDays *int    `json:"duration_days,omitempty"`
	Severity0To10 *int   `json:"severity_0_10,omitempty"`
	Timing       *string `json:"timing,omitempty"`
}

// Session is the full per-conversation state. It is owned by the store,
// exclusively held during a turn, and otherwise a passive record.
type Session struct {
	ID        string    `json:"session_id" db:"id"`
	Locale    string    `json:"locale" db:"locale"`
	TurnIndex int       `json:"turn_index" db:"turn_index"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Profile Profile `json:"profile"`

	KnownSymptoms  []string `json:"known_symptoms"`  // sorted set of canonicals
	DeniedSymptoms []string `json:"denied_symptoms"` // sorted set of canonicals
	AskedCanonicals []string `json:"asked_canonicals"` // insertion-ordered, no repeats

	Answers       map[string]string       `json:"answers"`
	ParsedAnswers map[string]ParsedAnswer `json:"parsed_answers"`

	AskedContextIDs []string `json:"asked_context_ids"`
	LastContextID   *string  `json:"last_context_id,omitempty"`

	LastQuestion     *QuestionPayload `json:"last_question,omitempty"`
	LastEnvelopeType string           `json:"envelope_type,omitempty"`
	StopReason       *string          `json:"stop_reason,omitempty"`

	Debug *DebugTrace `json:"debug,omitempty"`
}

// Terminal reports whether the session can accept no further turns.
func (s *Session) Terminal() bool {
	return s.LastEnvelopeType == EnvelopeResult ||
		s.LastEnvelopeType == EnvelopeEmergency ||
		s.LastEnvelopeType == EnvelopeSameDay
}

// Knows reports whether the canonical was confirmed or volunteered.
func (s *Session) Knows(canonical string) bool { return contains(s.KnownSymptoms, canonical) }

// Denied reports whether the user explicitly negated the canonical.
func (s *Session) Denied(canonical string) bool { return contains(s.DeniedSymptoms, canonical) }

// Asked reports whether the canonical was already queried.
func (s *Session) Asked(canonical string) bool { return contains(s.AskedCanonicals, canonical) }

// AskedContext reports whether the context question id was already asked.
func (s *Session) AskedContext(id string) bool { return contains(s.AskedContextIDs, id) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// TurnRequest is the transport-facing input of one turn.
type TurnRequest struct {
	SessionID   string       `json:"session_id,omitempty"`
	Locale      string       `json:"locale"`
	UserMessage string       `json:"user_message"`
	Answer      *TurnAnswer  `json:"answer,omitempty"`
	Profile     *Profile     `json:"profile,omitempty"`
	Lat         *float64     `json:"lat,omitempty"`
	Lon         *float64     `json:"lon,omitempty"`
}

// TurnAnswer carries the reply to the previously asked question.
type TurnAnswer struct {
	Canonical string `json:"canonical"`
	Value     string `json:"value"`
}

// Envelope is the single discriminated response of every turn.
type Envelope struct {
	EnvelopeType string            `json:"envelope_type"`
	SessionID    string            `json:"session_id"`
	TurnIndex    int               `json:"turn_index"`
	Question     *QuestionPayload  `json:"question,omitempty"`
	Result       *ResultPayload    `json:"result,omitempty"`
	Emergency    *EmergencyPayload `json:"emergency,omitempty"`
	Error        *ErrorPayload     `json:"error,omitempty"`
	Meta         *EnvelopeMeta     `json:"meta,omitempty"`
}

// EnvelopeMeta decorates envelopes with the disclaimer, the optional same-day
// banner and the facility hint.
type EnvelopeMeta struct {
	DisclaimerTR  string         `json:"disclaimer_tr,omitempty"`
	SameDay       bool           `json:"same_day,omitempty"`
	SameDayTextTR string         `json:"same_day_text_tr,omitempty"`
	Facilities    []FacilityHint `json:"facilities,omitempty"`
}

// FacilityHint is the nearest-facility suggestion attached to a RESULT.
type FacilityHint struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Address    string   `json:"address"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
}

// QuestionPayload is emitted for QUESTION envelopes and persisted as the
// session's last question.
type QuestionPayload struct {
	QuestionID  string   `json:"question_id"`
	Canonical   string   `json:"canonical"`
	QuestionTR  string   `json:"question_tr"`
	AnswerType  string   `json:"answer_type"`
	ChoicesTR   []string `json:"choices_tr,omitempty"`
	WhyAskingTR string   `json:"why_asking_tr,omitempty"`
	Source      string   `json:"source"` // context | red_flag | discriminative
}

// ConditionScore is one ranked disease candidate on a RESULT.
type ConditionScore struct {
	DiseaseLabel string  `json:"disease_label"`
	Score0To1    float64 `json:"score_0_1"`
}

// RecommendedSpecialty names the routed specialty.
type RecommendedSpecialty struct {
	ID     string `json:"id"`
	NameTR string `json:"name_tr"`
}

// ResultPayload terminates a session with a routing decision.
type ResultPayload struct {
	Urgency              string               `json:"urgency"`
	RecommendedSpecialty RecommendedSpecialty `json:"recommended_specialty"`
	TopConditions        []ConditionScore     `json:"top_conditions"`
	DoctorReadySummaryTR []string             `json:"doctor_ready_summary_tr"`
	SafetyNotesTR        []string             `json:"safety_notes_tr"`
	Confidence0To1       float64              `json:"confidence_0_1"`
	ConfidenceLabelTR    string               `json:"confidence_label_tr"`
	ConfidenceExplainTR  string               `json:"confidence_explain_tr"`
	WhySpecialtyTR       []string             `json:"why_specialty_tr"`
	StopReason           string               `json:"stop_reason"`
}

// EmergencyPayload terminates a session with a hard stop.
type EmergencyPayload struct {
	Urgency        string   `json:"urgency"`
	ReasonTR       string   `json:"reason_tr"`
	InstructionsTR []string `json:"instructions_tr"`
	RuleID         string   `json:"rule_id,omitempty"`
}

// ErrorPayload reports a core error without advancing the session.
type ErrorPayload struct {
	Code      string `json:"code"`
	MessageTR string `json:"message_tr"`
	Retryable bool   `json:"retryable"`
}

// DebugTrace carries the per-turn scoring traces for auditability.
type DebugTrace struct {
	Interpretation *Interpretation   `json:"interpretation,omitempty"`
	Candidates     []Candidate       `json:"candidates,omitempty"`
	Specialties    []SpecialtyScore  `json:"specialties,omitempty"`
	Merged         []MergedSpecialty `json:"merged,omitempty"`
	Selector       *SelectorTrace    `json:"selector,omitempty"`
}

// SelectorTrace records why the selector picked (or skipped) its question.
type SelectorTrace struct {
	Source     string            `json:"source,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Skipped    []string          `json:"skipped,omitempty"`
}

// Event is one append-only audit record per emitted envelope.
type Event struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	TurnIndex    int       `json:"turn_index"`
	EnvelopeType string    `json:"envelope_type"`
	Payload      []byte    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
}
