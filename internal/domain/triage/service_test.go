package triage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pretriage/pretriage/internal/catalog"
	"github.com/pretriage/pretriage/internal/domain/facility"
)

func newTestService(t *testing.T) (*Service, *MemRepository) {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	repo := NewMemRepository()
	svc := NewService(cat, repo, facility.NewService(cat), zerolog.Nop(), nil)
	return svc, repo
}

func turn(t *testing.T, svc *Service, req *TurnRequest) *Envelope {
	t.Helper()
	env := svc.HandleTurn(context.Background(), req)
	if env == nil {
		t.Fatal("nil envelope")
	}
	return env
}

// answerUntilResult keeps replying "Hayır" to every question until the
// session terminates, returning the terminal envelope.
func answerUntilResult(t *testing.T, svc *Service, sessionID string, first *Envelope, maxTurns int) *Envelope {
	t.Helper()
	env := first
	for i := 0; i < maxTurns; i++ {
		if env.EnvelopeType != EnvelopeQuestion {
			return env
		}
		env = turn(t, svc, &TurnRequest{
			SessionID: sessionID,
			Locale:    "tr-TR",
			Answer:    &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
		})
	}
	t.Fatalf("no terminal envelope after %d turns, last=%s", maxTurns, env.EnvelopeType)
	return nil
}

func TestTurnEmptyInput(t *testing.T) {
	svc, _ := newTestService(t)
	env := turn(t, svc, &TurnRequest{Locale: "tr-TR"})
	if env.EnvelopeType != EnvelopeError || env.Error.Code != CodeEmptyInput {
		t.Fatalf("got %s/%v, want ERROR/EMPTY_INPUT", env.EnvelopeType, env.Error)
	}
	if !env.Error.Retryable {
		t.Error("EMPTY_INPUT must be retryable")
	}
}

func TestTurnBadSession(t *testing.T) {
	svc, _ := newTestService(t)
	env := turn(t, svc, &TurnRequest{SessionID: "missing", Locale: "tr-TR", UserMessage: "başım ağrıyor"})
	if env.EnvelopeType != EnvelopeError || env.Error.Code != CodeBadSession {
		t.Fatalf("got %s/%v, want ERROR/BAD_SESSION", env.EnvelopeType, env.Error)
	}
}

func TestTurnUnknownLocale(t *testing.T) {
	svc, _ := newTestService(t)
	// An unknown locale falls back to the default bank, so it still works.
	env := turn(t, svc, &TurnRequest{Locale: "de-DE", UserMessage: "başım ağrıyor"})
	if env.EnvelopeType != EnvelopeQuestion {
		t.Fatalf("got %s, want QUESTION via default-locale fallback", env.EnvelopeType)
	}
}

func TestHeadacheToNeurology(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "Başım ağrıyor ve bulantı var"})
	if env.EnvelopeType != EnvelopeQuestion {
		t.Fatalf("turn 1 = %s, want QUESTION", env.EnvelopeType)
	}
	if env.TurnIndex != 1 {
		t.Errorf("turn_index = %d, want 1", env.TurnIndex)
	}
	if env.Question.Canonical != "boyun tutulması" {
		t.Errorf("turn 1 canonical = %s, want boyun tutulması", env.Question.Canonical)
	}
	sessionID := env.SessionID

	// Deny neck stiffness; the visual-symptom question must follow.
	env = turn(t, svc, &TurnRequest{
		SessionID: sessionID, Locale: "tr-TR",
		Answer: &TurnAnswer{Canonical: "boyun tutulması", Value: "Hayır"},
	})
	if env.EnvelopeType != EnvelopeQuestion || env.Question.Canonical != "bulanık görme" {
		t.Fatalf("turn 2 = %s/%s, want QUESTION/bulanık görme", env.EnvelopeType, env.Question.Canonical)
	}

	env = turn(t, svc, &TurnRequest{
		SessionID: sessionID, Locale: "tr-TR",
		Answer: &TurnAnswer{Canonical: "bulanık görme", Value: "Evet"},
	})
	final := answerUntilResult(t, svc, sessionID, env, 10)

	if final.EnvelopeType != EnvelopeResult {
		t.Fatalf("terminal = %s, want RESULT", final.EnvelopeType)
	}
	if final.Result.RecommendedSpecialty.ID != "neurology" {
		t.Errorf("specialty = %s, want neurology", final.Result.RecommendedSpecialty.ID)
	}
	if len(final.Result.TopConditions) == 0 || final.Result.TopConditions[0].DiseaseLabel != "Migraine" {
		t.Fatalf("top condition = %v, want Migraine", final.Result.TopConditions)
	}
	if final.Result.TopConditions[0].Score0To1 < 0.40 {
		t.Errorf("Migraine score %v, want >= 0.40", final.Result.TopConditions[0].Score0To1)
	}
	if len(final.Result.DoctorReadySummaryTR) == 0 || len(final.Result.SafetyNotesTR) != 2 {
		t.Error("summary and safety notes must be populated")
	}
}

func TestUTIToUrology(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "idrarımı yaparken yanıyor"})
	if env.EnvelopeType != EnvelopeQuestion || env.Question.Canonical != "ateş" {
		t.Fatalf("turn 1 = %s/%v, want QUESTION/ateş", env.EnvelopeType, env.Question)
	}

	final := answerUntilResult(t, svc, env.SessionID, env, 10)
	if final.EnvelopeType != EnvelopeResult {
		t.Fatalf("terminal = %s, want RESULT", final.EnvelopeType)
	}
	if final.Result.RecommendedSpecialty.ID != "urology_internal" {
		t.Errorf("specialty = %s, want urology_internal", final.Result.RecommendedSpecialty.ID)
	}
	if final.Result.TopConditions[0].DiseaseLabel != "Urinary tract infection" {
		t.Errorf("top condition = %s, want Urinary tract infection", final.Result.TopConditions[0].DiseaseLabel)
	}
}

func TestEmergencyShortCircuit(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{
		Locale:      "tr-TR",
		UserMessage: "göğüs ağrısı, baskı hissi ve terliyorum, nefes darlığı",
	})
	if env.EnvelopeType != EnvelopeEmergency {
		t.Fatalf("turn 1 = %s, want EMERGENCY", env.EnvelopeType)
	}
	if env.Emergency.ReasonTR == "" || len(env.Emergency.InstructionsTR) == 0 {
		t.Error("emergency reason and instructions must be populated")
	}
	if env.Emergency.Urgency != UrgencyEmergency {
		t.Errorf("urgency = %s, want EMERGENCY", env.Emergency.Urgency)
	}

	// Terminality: any further call is BAD_STATE.
	next := turn(t, svc, &TurnRequest{SessionID: env.SessionID, Locale: "tr-TR", UserMessage: "devam"})
	if next.EnvelopeType != EnvelopeError || next.Error.Code != CodeBadState {
		t.Fatalf("post-terminal = %s/%v, want ERROR/BAD_STATE", next.EnvelopeType, next.Error)
	}
}

func TestSkipRuleHonored(t *testing.T) {
	svc, repo := newTestService(t)

	sess := newSession([]string{"nefes darlığı"}, []string{"öksürük"}, nil)
	sess.ID = repo.CreateID()
	sess.Profile.Chronic = []string{"astım"}
	if err := repo.Save(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	forbidden := map[string]bool{
		"balgam": true, "balgam rengi": true,
		"öksürük süresi": true, "öksürük gece artışı": true,
	}
	env := turn(t, svc, &TurnRequest{SessionID: sess.ID, Locale: "tr-TR", UserMessage: "nefes almakta zorlanıyorum"})
	for env.EnvelopeType == EnvelopeQuestion {
		if forbidden[env.Question.Canonical] {
			t.Fatalf("forbidden canonical %q asked despite denied öksürük", env.Question.Canonical)
		}
		env = turn(t, svc, &TurnRequest{
			SessionID: sess.ID, Locale: "tr-TR",
			Answer: &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
		})
	}
}

func TestPriorityBoostPrefersChestFollowUps(t *testing.T) {
	svc, repo := newTestService(t)

	sess := newSession([]string{"göğüs ağrısı"}, nil, nil)
	sess.ID = repo.CreateID()
	age := 50
	sess.Profile.Age = &age
	sess.Profile.Chronic = []string{"tansiyon"}
	if err := repo.Save(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	env := turn(t, svc, &TurnRequest{SessionID: sess.ID, Locale: "tr-TR", UserMessage: "göğsüm ağrıyor"})
	if env.EnvelopeType != EnvelopeQuestion {
		t.Fatalf("got %s, want QUESTION", env.EnvelopeType)
	}
	if env.Question.Canonical != "nefes darlığı" {
		t.Errorf("first question = %s, want the boosted nefes darlığı", env.Question.Canonical)
	}
}

func TestMaxQuestionsStop(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "Başım ağrıyor ve bulantı var"})
	questions := 0
	for env.EnvelopeType == EnvelopeQuestion {
		questions++
		env = turn(t, svc, &TurnRequest{
			SessionID: env.SessionID, Locale: "tr-TR",
			Answer: &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
		})
	}

	if env.EnvelopeType != EnvelopeResult {
		t.Fatalf("terminal = %s, want RESULT", env.EnvelopeType)
	}
	if questions > 6 {
		t.Errorf("asked %d questions, max_questions is 6", questions)
	}
	if questions == 6 && env.Result.StopReason != StopMaxQuestions {
		t.Errorf("stop reason = %s, want max_questions", env.Result.StopReason)
	}
}

func TestNoDuplicateQuestions(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "öksürüyorum ve ateşim var"})
	seen := map[string]bool{}
	lastIndex := env.TurnIndex
	for env.EnvelopeType == EnvelopeQuestion {
		c := env.Question.Canonical
		if seen[c] {
			t.Fatalf("canonical %q asked twice", c)
		}
		seen[c] = true
		env = turn(t, svc, &TurnRequest{
			SessionID: env.SessionID, Locale: "tr-TR",
			Answer: &TurnAnswer{Canonical: c, Value: "Hayır"},
		})
		if env.TurnIndex != lastIndex+1 {
			t.Fatalf("turn index jumped from %d to %d", lastIndex, env.TurnIndex)
		}
		lastIndex = env.TurnIndex
	}
}

func TestAnswerForUnaskedCanonicalIsBadState(t *testing.T) {
	svc, _ := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "başım ağrıyor"})
	if env.EnvelopeType != EnvelopeQuestion {
		t.Fatalf("got %s, want QUESTION", env.EnvelopeType)
	}

	bad := turn(t, svc, &TurnRequest{
		SessionID: env.SessionID, Locale: "tr-TR",
		Answer: &TurnAnswer{Canonical: "ishal", Value: "Evet"},
	})
	if bad.EnvelopeType != EnvelopeError || bad.Error.Code != CodeBadState {
		t.Fatalf("got %s/%v, want ERROR/BAD_STATE", bad.EnvelopeType, bad.Error)
	}
}

func TestDeterministicEnvelopeSequence(t *testing.T) {
	run := func() []string {
		svcA, _ := newTestService(t)
		var out []string
		env := svcA.HandleTurn(context.Background(), &TurnRequest{Locale: "tr-TR", UserMessage: "Başım ağrıyor ve bulantı var"})
		for i := 0; i < 10; i++ {
			env.SessionID = ""
			raw, err := json.Marshal(env)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, string(raw))
			if env.EnvelopeType != EnvelopeQuestion {
				break
			}
			env = svcA.HandleTurn(context.Background(), &TurnRequest{
				SessionID: envSessionID(svcA, t), Locale: "tr-TR",
				Answer: &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
			})
		}
		return out
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("sequence lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("envelope %d differs:\n%s\n%s", i, first[i], second[i])
		}
	}
}

// envSessionID digs the single live session id out of the service's store.
func envSessionID(svc *Service, t *testing.T) string {
	t.Helper()
	repo, ok := svc.repo.(*MemRepository)
	if !ok {
		t.Fatal("expected mem repository")
	}
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	for id := range repo.sessions {
		return id
	}
	t.Fatal("no session stored")
	return ""
}

func TestSessionRoundTrip(t *testing.T) {
	svc, repo := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "Başım ağrıyor ve bulantı var"})
	sessionID := env.SessionID

	before, err := repo.Load(context.Background(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(before)
	if err != nil {
		t.Fatal(err)
	}
	var reloaded Session
	if err := json.Unmarshal(raw, &reloaded); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(context.Background(), &reloaded); err != nil {
		t.Fatal(err)
	}

	// Continuing after the reload must produce the same next envelope.
	next := turn(t, svc, &TurnRequest{
		SessionID: sessionID, Locale: "tr-TR",
		Answer: &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
	})
	if next.EnvelopeType != EnvelopeQuestion || next.Question.Canonical != "bulanık görme" {
		t.Fatalf("post-reload turn = %s/%v, want QUESTION/bulanık görme", next.EnvelopeType, next.Question)
	}
}

func TestEventsAppendedPerEnvelope(t *testing.T) {
	svc, repo := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "idrarımı yaparken yanıyor"})
	final := answerUntilResult(t, svc, env.SessionID, env, 10)

	events, err := repo.ListEvents(context.Background(), env.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != final.TurnIndex {
		t.Errorf("%d events for %d turns", len(events), final.TurnIndex)
	}
	for i, e := range events {
		if e.TurnIndex != i+1 {
			t.Errorf("event %d has turn_index %d", i, e.TurnIndex)
		}
	}
	if events[len(events)-1].EnvelopeType != EnvelopeResult {
		t.Error("last event must be the RESULT")
	}
}

func TestMinExpectedGainStop(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	// A floor above the theoretical 1.35 maximum forces the gain stop on the
	// first discriminative selection.
	cat.StopRules.MinExpectedGain = 2.0
	svc := NewService(cat, NewMemRepository(), facility.NewService(cat), zerolog.Nop(), nil)

	env := svc.HandleTurn(context.Background(), &TurnRequest{Locale: "tr-TR", UserMessage: "Başım ağrıyor ve bulantı var"})
	if env.EnvelopeType != EnvelopeResult {
		t.Fatalf("got %s, want RESULT", env.EnvelopeType)
	}
	if env.Result.StopReason != StopMinExpectedGain {
		t.Errorf("stop reason = %s, want min_expected_gain", env.Result.StopReason)
	}
}

func TestContextAnswerUpdatesProfile(t *testing.T) {
	svc, repo := newTestService(t)

	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "göğsüm ağrıyor"})
	if env.EnvelopeType != EnvelopeQuestion || env.Question.QuestionID != "ctx_age" {
		t.Fatalf("turn 1 = %v, want the age context question", env.Question)
	}

	env = turn(t, svc, &TurnRequest{
		SessionID: env.SessionID, Locale: "tr-TR",
		Answer: &TurnAnswer{Canonical: "ctx_age", Value: "52"},
	})

	sess, err := repo.Load(context.Background(), env.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Profile.Age == nil || *sess.Profile.Age != 52 {
		t.Errorf("profile age = %v, want 52", sess.Profile.Age)
	}
	if !sess.AskedContext("ctx_age") {
		t.Error("ctx_age not recorded as asked")
	}
}

func TestFacilityHintOnResult(t *testing.T) {
	svc, _ := newTestService(t)

	lat, lon := 41.0, 29.0
	env := turn(t, svc, &TurnRequest{Locale: "tr-TR", UserMessage: "idrarımı yaparken yanıyor", Lat: &lat, Lon: &lon})
	for env.EnvelopeType == EnvelopeQuestion {
		env = turn(t, svc, &TurnRequest{
			SessionID: env.SessionID, Locale: "tr-TR",
			Answer: &TurnAnswer{Canonical: env.Question.Canonical, Value: "Hayır"},
			Lat:    &lat, Lon: &lon,
		})
	}

	if env.EnvelopeType != EnvelopeResult {
		t.Fatalf("terminal = %s, want RESULT", env.EnvelopeType)
	}
	if env.Meta == nil || len(env.Meta.Facilities) == 0 {
		t.Fatal("expected facility hints with coordinates supplied")
	}
	for _, f := range env.Meta.Facilities {
		if f.DistanceKM == nil {
			t.Errorf("facility %s missing distance", f.Name)
		}
	}
	// İstanbul is closest to (41, 29) among the urology facilities.
	if env.Meta.Facilities[0].Name != "İstanbul Şehir Hastanesi" {
		t.Errorf("nearest = %s, want İstanbul Şehir Hastanesi", env.Meta.Facilities[0].Name)
	}
}
