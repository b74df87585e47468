package triage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"), e.Group("/admin"))
	return e, svc
}

func postTurn(t *testing.T, e *echo.Echo, body string) (*httptest.ResponseRecorder, *Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage/turn", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, rec.Body.String())
	}
	return rec, &env
}

func TestTurnEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, env := postTurn(t, e, `{"locale":"tr-TR","user_message":"Başım ağrıyor ve bulantı var"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.EnvelopeType != EnvelopeQuestion {
		t.Fatalf("envelope = %s, want QUESTION", env.EnvelopeType)
	}
	if env.SessionID == "" || env.TurnIndex != 1 {
		t.Errorf("session_id=%q turn_index=%d", env.SessionID, env.TurnIndex)
	}
	if env.Meta == nil || env.Meta.DisclaimerTR == "" {
		t.Error("disclaimer missing")
	}
}

func TestTurnEndpointEmptyInput(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := postTurn(t, e, `{"locale":"tr-TR"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != CodeEmptyInput {
		t.Errorf("error = %+v, want EMPTY_INPUT", env.Error)
	}
}

func TestTurnEndpointBadSession(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := postTurn(t, e, `{"session_id":"nope","locale":"tr-TR","user_message":"test"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != CodeBadSession {
		t.Errorf("error = %+v, want BAD_SESSION", env.Error)
	}
}

func TestSessionAuditEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	_, env := postTurn(t, e, `{"locale":"tr-TR","user_message":"idrarımı yaparken yanıyor"}`)

	req := httptest.NewRequest(http.MethodGet, "/admin/triage/sessions/"+env.SessionID, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("session fetch status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/triage/sessions/"+env.SessionID+"/events", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("events fetch status = %d", rec.Code)
	}

	var events []Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].EnvelopeType != EnvelopeQuestion {
		t.Errorf("events = %+v, want single QUESTION event", events)
	}
}
