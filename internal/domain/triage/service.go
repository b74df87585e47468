package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pretriage/pretriage/internal/catalog"
	"github.com/pretriage/pretriage/internal/domain/facility"
	"github.com/pretriage/pretriage/internal/platform/telemetry"
)

// Service is the turn handler: one call is one state transition of one
// session. Catalogs are shared immutable state; the session is exclusively
// owned for the duration of the call via the per-session lock.
type Service struct {
	cat        *catalog.Catalog
	repo       Repository
	facilities *facility.Service
	locks      *sessionLocks
	logger     zerolog.Logger
	counters   *telemetry.Counters
}

func NewService(cat *catalog.Catalog, repo Repository, facilities *facility.Service, logger zerolog.Logger, counters *telemetry.Counters) *Service {
	return &Service{
		cat:        cat,
		repo:       repo,
		facilities: facilities,
		locks:      newSessionLocks(),
		logger:     logger,
		counters:   counters,
	}
}

// GetSession exposes a stored session for the audit endpoints.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.repo.Load(ctx, id)
}

// Events exposes the append-only event log for the audit endpoints.
func (s *Service) Events(ctx context.Context, id string) ([]*Event, error) {
	return s.repo.ListEvents(ctx, id)
}

// HandleTurn executes one turn of the pre-triage conversation and always
// returns an envelope; core failures surface as ERROR envelopes, never as
// Go errors crossing this boundary.
func (s *Service) HandleTurn(ctx context.Context, req *TurnRequest) *Envelope {
	locale := req.Locale
	if locale == "" {
		locale = s.cat.DefaultLocale
	}
	if !s.cat.HasBank(locale) || !s.cat.HasMessages(locale) {
		return s.errorEnvelope(req.SessionID, 0, locale, CodeCatalogError, false)
	}
	if strings.TrimSpace(req.UserMessage) == "" && req.Answer == nil {
		return s.errorEnvelope(req.SessionID, 0, locale, CodeEmptyInput, true)
	}

	// Load or create under the per-session lock.
	var sess *Session
	if req.SessionID != "" {
		if !s.locks.acquire(req.SessionID) {
			return s.errorEnvelope(req.SessionID, 0, locale, CodeConcurrentTurn, false)
		}
		defer s.locks.release(req.SessionID)

		var err error
		sess, err = s.repo.Load(ctx, req.SessionID)
		if err == ErrNotFound {
			return s.errorEnvelope(req.SessionID, 0, locale, CodeBadSession, false)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("session load failed")
			return s.errorEnvelope(req.SessionID, 0, locale, CodeInternal, true)
		}
		if sess.Terminal() {
			return s.errorEnvelope(sess.ID, sess.TurnIndex, sess.Locale, CodeBadState, false)
		}
	} else {
		now := time.Now().UTC()
		sess = &Session{
			ID:            s.repo.CreateID(),
			Locale:        locale,
			CreatedAt:     now,
			UpdatedAt:     now,
			Answers:       make(map[string]string),
			ParsedAnswers: make(map[string]ParsedAnswer),
		}
		s.locks.acquire(sess.ID)
		defer s.locks.release(sess.ID)
		if s.counters != nil {
			s.counters.Inc("sessions_created")
		}
	}

	if req.Profile != nil {
		mergeProfile(&sess.Profile, req.Profile)
	}

	// Ingest the answer to the previous question, if any.
	var redFlagFired *FiredRule
	if req.Answer != nil {
		fired, errCode := s.ingestAnswer(sess, req.Answer)
		if errCode != "" {
			return s.errorEnvelope(sess.ID, sess.TurnIndex, sess.Locale, errCode, false)
		}
		redFlagFired = fired
	}

	// Ingest the free-text message.
	normalized := Normalize(req.UserMessage)
	interp := Interpret(normalized, s.cat)
	for _, canonical := range interp.Canonicals {
		if !sess.Denied(canonical) && !sess.Knows(canonical) {
			sess.KnownSymptoms = append(sess.KnownSymptoms, canonical)
		}
	}
	sort.Strings(sess.KnownSymptoms)

	// Scoring pipelines. Layer B sees this turn's phrases plus every known
	// canonical as keywords, so answer-only turns keep their rules signal.
	scoringInterp := s.scoringInterpretation(sess, interp)
	candidates := GenerateCandidates(s.cat, sess.KnownSymptoms)
	ranking := ScoreSpecialties(s.cat, normalized, scoringInterp)
	merged := MergeDecision(s.cat, candidates, ranking)

	selTrace := &SelectorTrace{}
	sess.Debug = &DebugTrace{
		Interpretation: interp,
		Candidates:     candidates,
		Specialties:    ranking.Scores,
		Merged:         merged,
		Selector:       selTrace,
	}

	// Safety: emergency short-circuits everything.
	fired := redFlagFired
	if fired == nil {
		fired = EvaluateEmergency(s.cat, sess)
	}
	if fired != nil {
		return s.finishEmergency(ctx, sess, fired)
	}
	sameDay := EvaluateSameDay(s.cat, sess)

	// Stop policy, then the selector; a missing question falls back to a
	// result with its own stop reason.
	maxQ := MaxQuestionsFor(s.cat, merged, candidates)
	if sess.TurnIndex >= maxQ {
		return s.finishResult(ctx, sess, req, candidates, ranking, merged, sameDay, StopMaxQuestions)
	}

	sel := SelectQuestion(s.cat, sess, candidates, selTrace)
	if sel == nil {
		return s.finishResult(ctx, sess, req, candidates, ranking, merged, sameDay, StopNoQuestionAvailable)
	}
	if sel.Payload.Source == "discriminative" && sel.DiscScore < s.cat.StopRules.MinExpectedGain {
		return s.finishResult(ctx, sess, req, candidates, ranking, merged, sameDay, StopMinExpectedGain)
	}

	// Emit the question. Asked-markers are written at emission so a question
	// can never repeat, answered or not.
	if sel.ContextID != "" {
		id := sel.ContextID
		sess.LastContextID = &id
		if !sess.AskedContext(id) {
			sess.AskedContextIDs = append(sess.AskedContextIDs, id)
		}
	} else if !sess.Asked(sel.Payload.Canonical) {
		sess.AskedCanonicals = append(sess.AskedCanonicals, sel.Payload.Canonical)
	}
	payload := sel.Payload
	sess.LastQuestion = &payload
	sess.LastEnvelopeType = EnvelopeQuestion
	sess.TurnIndex++

	env := &Envelope{
		EnvelopeType: EnvelopeQuestion,
		SessionID:    sess.ID,
		TurnIndex:    sess.TurnIndex,
		Question:     &payload,
		Meta:         s.meta(sess.Locale, sameDay, nil),
	}
	return s.persist(ctx, sess, env)
}

// ingestAnswer applies the reply to the pending context, red-flag or bank
// question. It returns a fired rule when an affirmative red-flag answer must
// escalate, or an error code when the canonical was never asked.
func (s *Service) ingestAnswer(sess *Session, a *TurnAnswer) (*FiredRule, string) {
	if sess.LastContextID != nil && *sess.LastContextID == a.Canonical {
		s.applyContextAnswer(sess, *sess.LastContextID, a.Value)
		sess.LastContextID = nil
		return nil, ""
	}

	if rf := s.redFlagByID(a.Canonical); rf != nil {
		if !sess.Asked(a.Canonical) {
			return nil, CodeBadState
		}
		sess.Answers[a.Canonical] = a.Value
		if s.isAffirmative(sess.Locale, a.Value) {
			return &FiredRule{
				RuleID:       rf.ID,
				ReasonTR:     s.cat.LocaleText(rf.Reason, sess.Locale),
				Instructions: []string{s.cat.Message(sess.Locale, "safety_note_2")},
			}, ""
		}
		return nil, ""
	}

	bank, ok := s.cat.BankQuestionFor(sess.Locale, a.Canonical)
	if !ok {
		return nil, CodeBadState
	}
	// Replying to a question that was never asked is a client bug.
	if !sess.Asked(a.Canonical) {
		return nil, CodeBadState
	}

	sess.Answers[a.Canonical] = a.Value
	switch bank.AnswerType {
	case AnswerYesNo:
		switch {
		case s.isAffirmative(sess.Locale, a.Value):
			sess.DeniedSymptoms = remove(sess.DeniedSymptoms, a.Canonical)
			if !sess.Knows(a.Canonical) {
				sess.KnownSymptoms = append(sess.KnownSymptoms, a.Canonical)
				sort.Strings(sess.KnownSymptoms)
			}
		case s.isNegative(sess.Locale, a.Value):
			if !sess.Denied(a.Canonical) {
				sess.DeniedSymptoms = append(sess.DeniedSymptoms, a.Canonical)
				sort.Strings(sess.DeniedSymptoms)
			}
			if s.cat.StopRules.RetractKnownOnDeny {
				sess.KnownSymptoms = remove(sess.KnownSymptoms, a.Canonical)
			}
		}
	default:
		if parsed := ParseFreeText(s.cat, sess.Locale, a.Canonical, a.Value); parsed != (ParsedAnswer{}) {
			sess.ParsedAnswers[a.Canonical] = parsed
		}
	}
	return nil, ""
}

// applyContextAnswer writes the context answer into the profile.
func (s *Service) applyContextAnswer(sess *Session, id, value string) {
	var cq *catalog.ContextQuestion
	for i := range s.cat.ContextQuestions {
		if s.cat.ContextQuestions[i].ID == id {
			cq = &s.cat.ContextQuestions[i]
			break
		}
	}
	if cq == nil {
		return
	}

	normalized := Normalize(value)
	switch cq.ProfileField {
	case "age":
		var age int
		if _, err := fmt.Sscanf(normalized, "%d", &age); err == nil && age > 0 && age < 130 {
			sess.Profile.Age = &age
		}
	case "sex":
		switch {
		case strings.Contains(normalized, "kadın") || strings.Contains(normalized, "female") || strings.Contains(normalized, "woman"):
			sex := "female"
			sess.Profile.Sex = &sex
		case strings.Contains(normalized, "erkek") || strings.Contains(normalized, "male") || strings.Contains(normalized, "man"):
			sex := "male"
			sess.Profile.Sex = &sex
		}
	case "pregnant":
		if s.isAffirmative(sess.Locale, value) {
			t := true
			sess.Profile.Pregnant = &t
		} else if s.isNegative(sess.Locale, value) {
			f := false
			sess.Profile.Pregnant = &f
		}
	case "chronic":
		if !s.isNegative(sess.Locale, value) && normalized != "" {
			sess.Profile.Chronic = append(sess.Profile.Chronic, normalized)
		}
	}
}

// scoringInterpretation extends this turn's phrase matches with every known
// canonical as a keyword, de-duplicated per canonical.
func (s *Service) scoringInterpretation(sess *Session, turn *Interpretation) *Interpretation {
	out := &Interpretation{MatchedPhrases: turn.MatchedPhrases}
	seen := make(map[string]bool)
	for _, p := range turn.MatchedPhrases {
		seen[p.Canonical] = true
		out.Canonicals = append(out.Canonicals, p.Canonical)
	}
	for _, canonical := range sess.KnownSymptoms {
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out.MatchedKeywordCanonicals = append(out.MatchedKeywordCanonicals, canonical)
		out.Canonicals = append(out.Canonicals, canonical)
	}
	return out
}

func (s *Service) redFlagByID(id string) *catalog.RedFlagQuestion {
	for i := range s.cat.RedFlags {
		if s.cat.RedFlags[i].ID == id {
			return &s.cat.RedFlags[i]
		}
	}
	return nil
}

// finishEmergency assembles the terminal EMERGENCY envelope.
func (s *Service) finishEmergency(ctx context.Context, sess *Session, fired *FiredRule) *Envelope {
	sess.LastEnvelopeType = EnvelopeEmergency
	sess.TurnIndex++
	if s.counters != nil {
		s.counters.Inc("emergencies_fired")
	}

	env := &Envelope{
		EnvelopeType: EnvelopeEmergency,
		SessionID:    sess.ID,
		TurnIndex:    sess.TurnIndex,
		Emergency: &EmergencyPayload{
			Urgency:        UrgencyEmergency,
			ReasonTR:       fired.ReasonTR,
			InstructionsTR: fired.Instructions,
			RuleID:         fired.RuleID,
		},
		Meta: s.meta(sess.Locale, nil, nil),
	}
	return s.persist(ctx, sess, env)
}

// finishResult assembles the terminal RESULT envelope for the stop reason.
func (s *Service) finishResult(ctx context.Context, sess *Session, req *TurnRequest, candidates []Candidate, ranking SpecialtyRanking, merged []MergedSpecialty, sameDay *FiredRule, stopReason string) *Envelope {
	locale := sess.Locale

	topID := "family_medicine"
	if len(merged) > 0 {
		topID = merged[0].SpecialtyID
	}
	spec, _ := s.cat.SpecialtyByID(topID)

	urgency := s.deriveUrgency(topID, candidates, sameDay, stopReason)
	conf := ComputeConfidence(s.cat, locale, candidates)

	conditions := make([]ConditionScore, 0, len(candidates))
	for _, c := range candidates {
		conditions = append(conditions, ConditionScore{DiseaseLabel: c.DiseaseLabel, Score0To1: round3(c.Score0To1)})
	}

	payload := &ResultPayload{
		Urgency:              urgency,
		RecommendedSpecialty: RecommendedSpecialty{ID: topID, NameTR: spec.NameTR},
		TopConditions:        conditions,
		DoctorReadySummaryTR: s.doctorSummary(sess, urgency),
		SafetyNotesTR: []string{
			s.cat.Message(locale, "safety_note_1"),
			s.cat.Message(locale, "safety_note_2"),
		},
		Confidence0To1:      round3(conf.Value),
		ConfidenceLabelTR:   conf.LabelTR,
		ConfidenceExplainTR: conf.ExplainTR,
		WhySpecialtyTR:      s.whySpecialty(locale, topID, ranking, merged),
		StopReason:          stopReason,
	}

	sess.LastEnvelopeType = EnvelopeResult
	sess.StopReason = &stopReason
	sess.TurnIndex++

	var hints []FacilityHint
	if s.facilities != nil && req != nil {
		for _, f := range s.facilities.Find(topID, "", req.Lat, req.Lon, 3) {
			hints = append(hints, FacilityHint{
				Name: f.Name, Type: f.Type, Address: f.Address,
				DistanceKM: f.DistanceKM, Lat: f.Lat, Lon: f.Lon,
			})
		}
	}

	env := &Envelope{
		EnvelopeType: EnvelopeResult,
		SessionID:    sess.ID,
		TurnIndex:    sess.TurnIndex,
		Result:       payload,
		Meta:         s.meta(locale, sameDay, hints),
	}
	return s.persist(ctx, sess, env)
}

// deriveUrgency maps the routing context onto the result urgency ladder.
func (s *Service) deriveUrgency(topID string, candidates []Candidate, sameDay *FiredRule, stopReason string) string {
	if topID == "emergency" {
		return UrgencyERNow
	}
	if sameDay != nil {
		return UrgencySameDay
	}
	for _, id := range s.cat.StopRules.EmergencySpecialtyIDs {
		if topID == id {
			return UrgencySameDay
		}
	}
	if len(candidates) > 0 {
		label := strings.ToLower(candidates[0].DiseaseLabel)
		for _, kw := range s.cat.StopRules.EmergencyDiseaseKeywords {
			if strings.Contains(label, strings.ToLower(kw)) {
				return UrgencySameDay
			}
		}
	}
	if stopReason == StopMaxQuestions {
		return UrgencyWithin3Days
	}
	return UrgencyRoutine
}

// doctorSummary builds the ordered clinician-facing summary: symptoms,
// durations, severities, timings, answered questions, risk level.
func (s *Service) doctorSummary(sess *Session, urgency string) []string {
	locale := sess.Locale
	var lines []string

	if len(sess.KnownSymptoms) > 0 {
		lines = append(lines, s.cat.Message(locale, "summary_symptoms")+": "+strings.Join(sess.KnownSymptoms, ", "))
	}

	keys := make([]string, 0, len(sess.ParsedAnswers))
	for k := range sess.ParsedAnswers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var durations, severities, timings []string
	for _, k := range keys {
		pa := sess.ParsedAnswers[k]
		if pa.DurationDays != nil {
			durations = append(durations, fmt.Sprintf("%s: %d gün", k, *pa.DurationDays))
		}
		if pa.Severity0To10 != nil {
			severities = append(severities, fmt.Sprintf("%s: %d/10", k, *pa.Severity0To10))
		}
		if pa.Timing != nil {
			timings = append(timings, fmt.Sprintf("%s: %s", k, *pa.Timing))
		}
	}
	if len(durations) > 0 {
		lines = append(lines, s.cat.Message(locale, "summary_duration")+": "+strings.Join(durations, "; "))
	}
	if len(severities) > 0 {
		lines = append(lines, s.cat.Message(locale, "summary_severity")+": "+strings.Join(severities, "; "))
	}
	if len(timings) > 0 {
		lines = append(lines, s.cat.Message(locale, "summary_timing")+": "+strings.Join(timings, "; "))
	}

	if len(sess.Answers) > 0 {
		qa := make([]string, 0, len(sess.Answers))
		answered := make([]string, 0, len(sess.Answers))
		for k := range sess.Answers {
			answered = append(answered, k)
		}
		sort.Strings(answered)
		for _, k := range answered {
			qa = append(qa, k+"="+sess.Answers[k])
		}
		lines = append(lines, s.cat.Message(locale, "summary_qa")+": "+strings.Join(qa, "; "))
	}

	riskKey := map[string]string{
		UrgencyERNow:       "risk_er_now",
		UrgencySameDay:     "risk_same_day",
		UrgencyWithin3Days: "risk_within_3_days",
		UrgencyRoutine:     "risk_routine",
	}[urgency]
	if riskKey != "" {
		lines = append(lines, s.cat.Message(locale, "summary_risk")+": "+s.cat.Message(locale, riskKey))
	}
	return lines
}

// whySpecialty extracts explanation lines for the recommended specialty from
// the scorer and merger traces.
func (s *Service) whySpecialty(locale, topID string, ranking SpecialtyRanking, merged []MergedSpecialty) []string {
	spec, ok := s.cat.SpecialtyByID(topID)
	if !ok {
		return nil
	}
	name := spec.NameTR
	if locale != s.cat.DefaultLocale && spec.NameEN != "" {
		name = spec.NameEN
	}

	var lines []string
	for _, sc := range ranking.Scores {
		if sc.SpecialtyID != topID {
			continue
		}
		for _, hit := range sc.PhraseHits {
			lines = append(lines, fmt.Sprintf("%q "+s.cat.Message(locale, "why_phrase_hit"), hit, name))
		}
		for _, hit := range sc.KeywordHits {
			lines = append(lines, fmt.Sprintf("%q "+s.cat.Message(locale, "why_phrase_hit"), hit, name))
		}
		break
	}
	for _, m := range merged {
		if m.SpecialtyID == topID && m.Prior > 0 {
			lines = append(lines, fmt.Sprintf(s.cat.Message(locale, "why_prior_hit"), name))
		}
	}
	return lines
}

func (s *Service) meta(locale string, sameDay *FiredRule, hints []FacilityHint) *EnvelopeMeta {
	m := &EnvelopeMeta{
		DisclaimerTR: s.cat.Message(locale, "disclaimer"),
		Facilities:   hints,
	}
	if sameDay != nil {
		m.SameDay = true
		m.SameDayTextTR = s.cat.Message(locale, "same_day_banner")
	}
	return m
}

// persist saves the session and appends the envelope event. A cancelled
// context abandons the turn; the session stays at its last committed state.
func (s *Service) persist(ctx context.Context, sess *Session, env *Envelope) *Envelope {
	if err := ctx.Err(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("turn abandoned before persist")
		return s.errorEnvelope(sess.ID, sess.TurnIndex-1, sess.Locale, CodeInternal, true)
	}

	sess.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, sess); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("session save failed")
		return s.errorEnvelope(sess.ID, sess.TurnIndex-1, sess.Locale, CodeInternal, true)
	}

	payload, err := json.Marshal(env)
	if err == nil {
		err = s.repo.AppendEvent(ctx, &Event{
			SessionID:    sess.ID,
			TurnIndex:    env.TurnIndex,
			EnvelopeType: env.EnvelopeType,
			Payload:      payload,
		})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("event append failed")
	}

	if s.counters != nil {
		s.counters.Inc("turns_handled")
		s.counters.Inc("envelope_" + strings.ToLower(env.EnvelopeType))
	}
	return env
}

func (s *Service) errorEnvelope(sessionID string, turnIndex int, locale string, code string, retryable bool) *Envelope {
	if locale == "" {
		locale = s.cat.DefaultLocale
	}
	msgKey := code
	if code == CodeConcurrentTurn {
		msgKey = CodeBadState
	}
	if s.counters != nil {
		s.counters.Inc("envelope_error")
	}
	return &Envelope{
		EnvelopeType: EnvelopeError,
		SessionID:    sessionID,
		TurnIndex:    turnIndex,
		Error: &ErrorPayload{
			Code:      code,
			MessageTR: s.cat.Message(locale, msgKey),
			Retryable: retryable,
		},
		Meta: s.meta(locale, nil, nil),
	}
}

// isAffirmative and isNegative classify yes/no replies per locale.
func (s *Service) isAffirmative(locale, value string) bool {
	v := Normalize(value)
	if strings.HasPrefix(locale, "tr") {
		return v == "evet" || v == "e" || v == "var" || strings.HasPrefix(v, "evet ")
	}
	return v == "yes" || v == "y" || strings.HasPrefix(v, "yes ")
}

func (s *Service) isNegative(locale, value string) bool {
	v := Normalize(value)
	if strings.HasPrefix(locale, "tr") {
		return v == "hayır" || v == "h" || v == "yok" || strings.HasPrefix(v, "hayır ")
	}
	return v == "no" || v == "n" || strings.HasPrefix(v, "no ")
}

func mergeProfile(dst, src *Profile) {
	if src.Age != nil {
		dst.Age = src.Age
	}
	if src.Sex != nil {
		dst.Sex = src.Sex
	}
	if src.Pregnant != nil {
		dst.Pregnant = src.Pregnant
	}
	if len(src.Chronic) > 0 {
		dst.Chronic = append(dst.Chronic, src.Chronic...)
	}
}

func remove(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
